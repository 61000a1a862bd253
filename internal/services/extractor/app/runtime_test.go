package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrelhq/leadscout/internal/services/extractor/graphapi"
	_ "modernc.org/sqlite"
)

func TestRuntimeConfigRequiresCredentials(t *testing.T) {
	if _, err := (RuntimeConfig{PageID: "page-1"}).normalized(); err == nil {
		t.Fatal("expected missing access token error")
	}
	if _, err := (RuntimeConfig{AccessToken: "token"}).normalized(); err == nil {
		t.Fatal("expected missing page id error")
	}
}

func TestRuntimeConfigDefaults(t *testing.T) {
	cfg, err := (RuntimeConfig{AccessToken: "token", PageID: "page-1"}).normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Port != defaultExtractorPort {
		t.Fatalf("port = %d, want %d", cfg.Port, defaultExtractorPort)
	}
	if cfg.DBPath != defaultExtractorDB {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, defaultExtractorDB)
	}
	if cfg.GraphBaseURI != graphapi.DefaultBaseURL {
		t.Fatalf("base uri = %q, want %q", cfg.GraphBaseURI, graphapi.DefaultBaseURL)
	}
	if cfg.PollInterval != defaultPollInterval {
		t.Fatalf("poll interval = %s, want %s", cfg.PollInterval, defaultPollInterval)
	}
	if cfg.HTTPTimeout <= 0 {
		t.Fatalf("http timeout = %s, want a positive default", cfg.HTTPTimeout)
	}
}

func TestRuntimeConfigKeepsExplicitValues(t *testing.T) {
	in := RuntimeConfig{
		Port:         9000,
		DBPath:       "custom/extractor.db",
		GraphBaseURI: "https://example.com/v1",
		AccessToken:  "token",
		PageID:       "page-1",
		PollInterval: time.Minute,
		HTTPTimeout:  5 * time.Second,
	}
	cfg, err := in.normalized()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg != in {
		t.Fatalf("normalized = %+v, want %+v", cfg, in)
	}
}

func TestRunOnceExtractsAndExits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/page-1/posts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"id": "P1", "message": "launch day", "created_time": "2024-03-01T09:00:00+0000", "permalink_url": "https://example.com/P1"}
		]}`))
	})
	mux.HandleFunc("/P1/comments", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"id": "C1", "message": "looks great", "created_time": "2024-03-01T10:00:00+0000", "from": {"id": "U1", "name": "Alice"}}
		]}`))
	})
	mux.HandleFunc("/P1/reactions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [
			{"id": "U2", "name": "Bob", "type": "LIKE"}
		]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dbPath := filepath.Join(t.TempDir(), "extractor.db")
	err := Run(context.Background(), RuntimeConfig{
		DBPath:       dbPath,
		GraphBaseURI: server.URL,
		AccessToken:  "token",
		PageID:       "page-1",
		Once:         true,
	})
	if err != nil {
		t.Fatalf("run once: %v", err)
	}

	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	var leads int64
	if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM leads`).Scan(&leads); err != nil {
		t.Fatalf("count leads: %v", err)
	}
	if leads != 2 {
		t.Fatalf("leads = %d, want 2", leads)
	}
	var runs int64
	if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM extraction_runs WHERE state = 'committed'`).Scan(&runs); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 1 {
		t.Fatalf("committed runs = %d, want 1", runs)
	}
}
