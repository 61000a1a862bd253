// Package graphapi fetches pages of typed engagement records from the source
// platform's Graph-style HTTP API.
package graphapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultBaseURL points at the upstream Graph API version the pipeline is
// validated against.
const DefaultBaseURL = "https://graph.facebook.com/v24.0"

const maxErrorBodyBytes = 4 << 10

// Post is one raw post record from the content-owner feed.
type Post struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
}

// Actor identifies the author of a comment.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is one raw comment record on a post.
type Comment struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	From        Actor  `json:"from"`
}

// Reaction is one raw reaction record on a post. The upstream exposes the
// reacting user's id and name directly on the record.
type Reaction struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type page[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

// UpstreamError reports a non-success response from the source API, carrying
// the status code and body for diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream api error: status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Permanent reports whether the failure should not be retried. Client errors
// (4xx) will not improve on replay; server errors and transport failures may.
func (e *UpstreamError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Client fetches one page of records per call. It never paginates on its own;
// callers follow the returned cursor. Transient failures are retried with
// bounded exponential backoff before surfacing.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client

	// MaxAttempts bounds fetch attempts per page, including the first.
	// Zero selects the default of 4.
	MaxAttempts   uint
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

// NewClient creates a Graph API client. A nil httpClient selects
// http.DefaultClient; callers wanting request timeouts inject their own.
func NewClient(baseURL, accessToken string, httpClient *http.Client) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		HTTPClient:  httpClient,
	}
}

// ListPosts fetches one page of posts from the content owner's feed. It
// returns the page's records and the cursor for the next page, empty when the
// feed is exhausted.
func (c *Client) ListPosts(ctx context.Context, ownerID, after string) ([]Post, string, error) {
	return fetchPage[Post](ctx, c, ownerID+"/posts", "id,message,created_time,permalink_url", after)
}

// ListComments fetches one page of comments on a post.
func (c *Client) ListComments(ctx context.Context, postID, after string) ([]Comment, string, error) {
	return fetchPage[Comment](ctx, c, postID+"/comments", "id,message,created_time,from", after)
}

// ListReactions fetches one page of reactions on a post.
func (c *Client) ListReactions(ctx context.Context, postID, after string) ([]Reaction, string, error) {
	return fetchPage[Reaction](ctx, c, postID+"/reactions", "id,name,type", after)
}

func fetchPage[T any](ctx context.Context, c *Client, path, fields, after string) ([]T, string, error) {
	endpoint, err := c.pageURL(path, fields, after)
	if err != nil {
		return nil, "", err
	}

	operation := func() (page[T], error) {
		return getPage[T](ctx, c.HTTPClient, endpoint)
	}

	expo := backoff.NewExponentialBackOff()
	if c.RetryBackoff > 0 {
		expo.InitialInterval = c.RetryBackoff
	}
	if c.RetryMaxDelay > 0 {
		expo.MaxInterval = c.RetryMaxDelay
	}

	attempts := c.MaxAttempts
	if attempts == 0 {
		attempts = 4
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(attempts),
	)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s page: %w", path, err)
	}

	cursor := ""
	if result.Paging.Next != "" {
		cursor = result.Paging.Cursors.After
	}
	return result.Data, cursor, nil
}

func (c *Client) pageURL(path, fields, after string) (string, error) {
	endpoint, err := url.Parse(c.BaseURL + "/" + path)
	if err != nil {
		return "", fmt.Errorf("build page url: %w", err)
	}
	query := url.Values{}
	query.Set("fields", fields)
	query.Set("access_token", c.AccessToken)
	if after != "" {
		query.Set("after", after)
	}
	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

func getPage[T any](ctx context.Context, httpClient *http.Client, endpoint string) (page[T], error) {
	var empty page[T]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return empty, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		upstreamErr := &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
		if upstreamErr.Permanent() {
			return empty, backoff.Permanent(upstreamErr)
		}
		return empty, upstreamErr
	}

	var result page[T]
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return empty, fmt.Errorf("decode page: %w", err)
	}
	return result, nil
}
