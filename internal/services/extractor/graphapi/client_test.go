package graphapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(baseURL string) *Client {
	client := NewClient(baseURL, "test-token", nil)
	client.MaxAttempts = 3
	client.RetryBackoff = time.Millisecond
	client.RetryMaxDelay = 2 * time.Millisecond
	return client
}

func TestListPostsDecodesPageAndCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page-1/posts" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/page-1/posts")
		}
		if got := r.URL.Query().Get("fields"); got != "id,message,created_time,permalink_url" {
			t.Errorf("fields = %q", got)
		}
		if got := r.URL.Query().Get("access_token"); got != "test-token" {
			t.Errorf("access_token = %q", got)
		}
		fmt.Fprint(w, `{
			"data": [
				{"id": "p1", "message": "hello", "created_time": "2024-03-01T17:45:09+0000", "permalink_url": "https://example.com/p1"}
			],
			"paging": {"cursors": {"before": "b1", "after": "a1"}, "next": "https://example.com/next"}
		}`)
	}))
	defer server.Close()

	posts, cursor, err := testClient(server.URL).ListPosts(context.Background(), "page-1", "")
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(posts))
	}
	if posts[0].ID != "p1" || posts[0].Message != "hello" {
		t.Fatalf("unexpected post %+v", posts[0])
	}
	if cursor != "a1" {
		t.Fatalf("cursor = %q, want %q", cursor, "a1")
	}
}

func TestListPostsReturnsEmptyCursorOnLastPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [], "paging": {"cursors": {"before": "b1", "after": "a1"}}}`)
	}))
	defer server.Close()

	_, cursor, err := testClient(server.URL).ListPosts(context.Background(), "page-1", "a0")
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if cursor != "" {
		t.Fatalf("cursor = %q, want empty on last page", cursor)
	}
}

func TestListCommentsForwardsCursor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("after"); got != "cursor-2" {
			t.Errorf("after = %q, want %q", got, "cursor-2")
		}
		fmt.Fprint(w, `{"data": [{"id": "c1", "message": "nice", "created_time": "2024-03-01T18:00:00+0000", "from": {"id": "u1", "name": "Alice"}}]}`)
	}))
	defer server.Close()

	comments, cursor, err := testClient(server.URL).ListComments(context.Background(), "p1", "cursor-2")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(comments))
	}
	if comments[0].From.ID != "u1" || comments[0].From.Name != "Alice" {
		t.Fatalf("unexpected author %+v", comments[0].From)
	}
	if cursor != "" {
		t.Fatalf("cursor = %q, want empty", cursor)
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error": {"message": "invalid token"}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, _, err := testClient(server.URL).ListReactions(context.Background(), "p1", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upstreamErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", upstreamErr.StatusCode, http.StatusBadRequest)
	}
	if !upstreamErr.Permanent() {
		t.Fatal("expected 4xx to be permanent")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 attempt for 4xx, got %d", got)
	}
}

func TestServerErrorIsRetriedUntilSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"data": [{"id": "u2", "name": "Bob", "type": "LIKE"}]}`)
	}))
	defer server.Close()

	reactions, _, err := testClient(server.URL).ListReactions(context.Background(), "p1", "")
	if err != nil {
		t.Fatalf("list reactions: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Type != "LIKE" {
		t.Fatalf("unexpected reactions %+v", reactions)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestServerErrorSurfacesAfterRetryBudget(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "still down", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, _, err := testClient(server.URL).ListPosts(context.Background(), "page-1", "")
	if err == nil {
		t.Fatal("expected error")
	}
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if upstreamErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", upstreamErr.StatusCode, http.StatusInternalServerError)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected attempts to stop at MaxAttempts=3, got %d", got)
	}
}
