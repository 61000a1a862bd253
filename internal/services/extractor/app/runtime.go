// Package app wires extractor runtime dependencies and drives the polling
// loop that schedules extraction passes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kestrelhq/leadscout/internal/platform/timeouts"
	"github.com/kestrelhq/leadscout/internal/services/extractor/extract"
	"github.com/kestrelhq/leadscout/internal/services/extractor/graphapi"
	extractorsqlite "github.com/kestrelhq/leadscout/internal/services/extractor/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls extractor startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	GraphBaseURI  string
	AccessToken   string
	PageID        string
	PollInterval  time.Duration
	HTTPTimeout   time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	Once          bool
}

const (
	defaultExtractorPort = 8091
	defaultExtractorDB   = "data/extractor.db"
	defaultPollInterval  = 15 * time.Minute
)

func (cfg RuntimeConfig) normalized() (RuntimeConfig, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return RuntimeConfig{}, fmt.Errorf("access token is required")
	}
	if strings.TrimSpace(cfg.PageID) == "" {
		return RuntimeConfig{}, fmt.Errorf("page id is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultExtractorPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultExtractorDB
	}
	if strings.TrimSpace(cfg.GraphBaseURI) == "" {
		cfg.GraphBaseURI = graphapi.DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = timeouts.HTTPRequest
	}
	return cfg, nil
}

// Run starts extractor runtime dependencies and the polling loop. With Once
// set it performs a single extraction pass and exits.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := cfg.normalized()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create extractor storage dir: %w", err)
		}
	}

	store, err := extractorsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open extractor sqlite store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close extractor sqlite store: %v", closeErr)
		}
	}()

	client := graphapi.NewClient(cfg.GraphBaseURI, cfg.AccessToken, &http.Client{
		Timeout: cfg.HTTPTimeout,
	})
	if cfg.MaxAttempts > 0 {
		client.MaxAttempts = uint(cfg.MaxAttempts)
	}
	if cfg.RetryBackoff > 0 {
		client.RetryBackoff = cfg.RetryBackoff
	}
	if cfg.RetryMaxDelay > 0 {
		client.RetryMaxDelay = cfg.RetryMaxDelay
	}

	extractor := extract.New(client, store, cfg.PageID)

	if cfg.Once {
		return runOnce(ctx, extractor)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on extractor port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("extractor.runtime", grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	log.Printf("extractor server listening at %v", listener.Addr())
	return pollLoop(ctx, extractor, cfg.PollInterval)
}

func runOnce(ctx context.Context, extractor *extract.Extractor) error {
	stats, err := extractor.Run(ctx)
	if err != nil {
		return fmt.Errorf("extraction pass: %w", err)
	}
	logStats(stats.Posts, stats.NewComments, stats.NewReactions, stats.TotalLeads, len(stats.Anomalies))
	return nil
}

// pollLoop runs one pass immediately, then one per tick until the context
// ends. A failed pass is logged and retried on the next tick.
func pollLoop(ctx context.Context, extractor *extract.Extractor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runPass := func() {
		stats, err := extractor.Run(ctx)
		switch {
		case errors.Is(err, extract.ErrRunInProgress):
			log.Printf("extraction pass skipped: previous pass still running")
		case err != nil:
			log.Printf("extraction pass failed: %v", err)
		default:
			logStats(stats.Posts, stats.NewComments, stats.NewReactions, stats.TotalLeads, len(stats.Anomalies))
		}
	}

	runPass()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runPass()
		}
	}
}

func logStats(posts, newComments, newReactions int, totalLeads int64, anomalies int) {
	log.Printf("extraction pass committed: posts=%d new_comments=%d new_reactions=%d total_leads=%d anomalies=%d",
		posts, newComments, newReactions, totalLeads, anomalies)
}
