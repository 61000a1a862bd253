// Package extractor parses extractor command flags and launches the
// extraction runtime.
package extractor

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/kestrelhq/leadscout/internal/platform/cmd"
	extractorserver "github.com/kestrelhq/leadscout/internal/services/extractor/app"
)

// Config holds extractor command configuration.
type Config struct {
	Port          int           `env:"LEADSCOUT_EXTRACTOR_PORT" envDefault:"8091"`
	DBPath        string        `env:"LEADSCOUT_EXTRACTOR_DB_PATH" envDefault:"data/extractor.db"`
	GraphBaseURI  string        `env:"LEADSCOUT_GRAPH_BASE_URI"`
	AccessToken   string        `env:"LEADSCOUT_PAGE_ACCESS_TOKEN"`
	PageID        string        `env:"LEADSCOUT_PAGE_ID"`
	PollInterval  time.Duration `env:"LEADSCOUT_EXTRACTOR_POLL_INTERVAL" envDefault:"15m"`
	HTTPTimeout   time.Duration `env:"LEADSCOUT_EXTRACTOR_HTTP_TIMEOUT" envDefault:"30s"`
	MaxAttempts   int           `env:"LEADSCOUT_EXTRACTOR_MAX_ATTEMPTS" envDefault:"4"`
	RetryBackoff  time.Duration `env:"LEADSCOUT_EXTRACTOR_RETRY_BACKOFF" envDefault:"2s"`
	RetryMaxDelay time.Duration `env:"LEADSCOUT_EXTRACTOR_RETRY_MAX_DELAY" envDefault:"1m"`
	Once          bool          `env:"LEADSCOUT_EXTRACTOR_ONCE" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The extractor health gRPC server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The extractor SQLite database path")
	fs.StringVar(&cfg.GraphBaseURI, "graph-base-uri", cfg.GraphBaseURI, "Graph API base URI")
	fs.StringVar(&cfg.AccessToken, "access-token", cfg.AccessToken, "Graph API page access token")
	fs.StringVar(&cfg.PageID, "page-id", cfg.PageID, "Graph API page id to extract from")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Interval between extraction passes")
	fs.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Graph API request timeout")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum fetch attempts per page")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	fs.BoolVar(&cfg.Once, "once", cfg.Once, "Run one extraction pass and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the extractor runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceExtractor, func(context.Context) error {
		return extractorserver.Run(ctx, extractorserver.RuntimeConfig{
			Port:          cfg.Port,
			DBPath:        cfg.DBPath,
			GraphBaseURI:  cfg.GraphBaseURI,
			AccessToken:   cfg.AccessToken,
			PageID:        cfg.PageID,
			PollInterval:  cfg.PollInterval,
			HTTPTimeout:   cfg.HTTPTimeout,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
			Once:          cfg.Once,
		})
	})
}
