// Package extract drives one full extraction pass: enumerate posts, resolve
// content and identities, deduplicate engagement events, and keep aggregate
// counters consistent, all inside a single all-or-nothing transaction.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrelhq/leadscout/internal/services/extractor/domain"
	"github.com/kestrelhq/leadscout/internal/services/extractor/graphapi"
	"github.com/kestrelhq/leadscout/internal/services/extractor/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrRunInProgress indicates an extraction pass was requested while another
// pass holds the run lock.
var ErrRunInProgress = errors.New("extraction run already in progress")

// Upstream fetches one page of typed records per call. The cursor returned by
// each call feeds the next; an empty cursor ends the sequence.
type Upstream interface {
	ListPosts(ctx context.Context, ownerID, after string) ([]graphapi.Post, string, error)
	ListComments(ctx context.Context, postID, after string) ([]graphapi.Comment, string, error)
	ListReactions(ctx context.Context, postID, after string) ([]graphapi.Reaction, string, error)
}

// Extractor orchestrates extraction passes over one content owner's feed.
// A single Extractor allows one pass at a time.
type Extractor struct {
	upstream Upstream
	store    storage.Store
	ownerID  string

	runLock sync.Mutex

	stateMu sync.Mutex
	state   domain.RunState

	clock  func() time.Time
	logf   func(format string, args ...any)
	tracer trace.Tracer
}

// New creates an extractor for the given content owner.
func New(upstream Upstream, store storage.Store, ownerID string) *Extractor {
	return &Extractor{
		upstream: upstream,
		store:    store,
		ownerID:  ownerID,
		state:    domain.RunStateIdle,
		clock:    time.Now,
		logf:     log.Printf,
		tracer:   otel.Tracer("leadscout/extract"),
	}
}

// State reports the lifecycle state of the most recent pass.
func (e *Extractor) State() domain.RunState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Extractor) setState(state domain.RunState) {
	e.stateMu.Lock()
	e.state = state
	e.stateMu.Unlock()
}

// Run executes one extraction pass and returns its statistics. The pass is
// all-or-nothing: any unhandled failure rolls back every write made during
// the pass before the error is surfaced, and the partial statistics are
// discarded. Repeated runs over the same upstream data are no-ops by
// construction, which is the de facto retry mechanism.
func (e *Extractor) Run(ctx context.Context) (domain.RunStats, error) {
	if e.upstream == nil || e.store == nil {
		return domain.RunStats{}, fmt.Errorf("extractor is not configured")
	}
	if !e.runLock.TryLock() {
		return domain.RunStats{}, ErrRunInProgress
	}
	defer e.runLock.Unlock()

	ctx, span := e.tracer.Start(ctx, "extractor.run")
	defer span.End()

	runID := uuid.NewString()
	startedAt := e.clock().UTC()
	span.SetAttributes(attribute.String("run.id", runID))
	e.setState(domain.RunStateRunning)

	tx, err := e.store.BeginRun(ctx)
	if err != nil {
		e.setState(domain.RunStateRolledBack)
		span.SetStatus(codes.Error, err.Error())
		return domain.RunStats{}, err
	}

	stats, runErr := e.pass(ctx, tx)
	if runErr == nil {
		stats.TotalLeads, runErr = tx.CountLeads(ctx)
	}
	if runErr == nil {
		runErr = tx.Commit()
	}
	if runErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logf("rollback run %s: %v", runID, rbErr)
		}
		e.setState(domain.RunStateRolledBack)
		e.recordRun(runID, storage.RunStateRolledBack, stats, runErr, startedAt)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return domain.RunStats{}, runErr
	}

	e.setState(domain.RunStateCommitted)
	e.recordRun(runID, storage.RunStateCommitted, stats, nil, startedAt)
	span.SetAttributes(
		attribute.Int("run.posts", stats.Posts),
		attribute.Int("run.new_comments", stats.NewComments),
		attribute.Int("run.new_reactions", stats.NewReactions),
		attribute.Int64("run.total_leads", stats.TotalLeads),
		attribute.Int("run.anomalies", len(stats.Anomalies)),
	)
	return stats, nil
}

// pass walks the content owner's feed page by page inside the run
// transaction, accumulating statistics as it goes.
func (e *Extractor) pass(ctx context.Context, tx storage.RunTx) (domain.RunStats, error) {
	var stats domain.RunStats

	after := ""
	for {
		posts, next, err := e.upstream.ListPosts(ctx, e.ownerID, after)
		if err != nil {
			return stats, fmt.Errorf("list posts: %w", err)
		}
		for _, raw := range posts {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := e.processPost(ctx, tx, raw, &stats); err != nil {
				return stats, err
			}
		}
		if next == "" {
			return stats, nil
		}
		after = next
	}
}

func (e *Extractor) processPost(ctx context.Context, tx storage.RunTx, raw graphapi.Post, stats *domain.RunStats) error {
	post, err := e.resolvePost(ctx, tx, raw)
	if err != nil {
		if skipAnomaly(err) {
			e.noteAnomaly(stats, fmt.Sprintf("post %s skipped: %v", raw.ID, err))
			return nil
		}
		return err
	}
	stats.Posts++

	if err := e.ingestComments(ctx, tx, post, stats); err != nil {
		return err
	}
	return e.ingestReactions(ctx, tx, post, stats)
}

func (e *Extractor) ingestComments(ctx context.Context, tx storage.RunTx, post domain.Post, stats *domain.RunStats) error {
	after := ""
	for {
		comments, next, err := e.upstream.ListComments(ctx, post.PlatformPostID, after)
		if err != nil {
			return fmt.Errorf("list comments for %s: %w", post.PlatformPostID, err)
		}
		for _, raw := range comments {
			lead, err := e.resolveLead(ctx, tx, raw.From.ID, raw.From.Name)
			if err != nil {
				return err
			}
			createdTime, err := domain.ParseUpstreamTime(raw.CreatedTime)
			if err != nil {
				e.noteAnomaly(stats, fmt.Sprintf("comment %s skipped: %v", raw.ID, err))
				continue
			}
			inserted, err := e.ingestComment(ctx, tx, post, lead, raw.ID, raw.Message, createdTime)
			if err != nil {
				return err
			}
			if inserted {
				stats.NewComments++
			}
		}
		if next == "" {
			return nil
		}
		after = next
	}
}

func (e *Extractor) ingestReactions(ctx context.Context, tx storage.RunTx, post domain.Post, stats *domain.RunStats) error {
	after := ""
	for {
		reactions, next, err := e.upstream.ListReactions(ctx, post.PlatformPostID, after)
		if err != nil {
			return fmt.Errorf("list reactions for %s: %w", post.PlatformPostID, err)
		}
		for _, raw := range reactions {
			lead, err := e.resolveLead(ctx, tx, raw.ID, raw.Name)
			if err != nil {
				return err
			}
			inserted, err := e.ingestReaction(ctx, tx, post, lead, raw.Type)
			if err != nil {
				return err
			}
			if inserted {
				stats.NewReactions++
			}
		}
		if next == "" {
			return nil
		}
		after = next
	}
}

// skipAnomaly reports whether an item-level failure should skip the item
// instead of aborting the pass. One malformed record must not discard an
// entire pass.
func skipAnomaly(err error) bool {
	var malformed *domain.MalformedTimestampError
	return errors.As(err, &malformed)
}

func (e *Extractor) noteAnomaly(stats *domain.RunStats, message string) {
	stats.Anomalies = append(stats.Anomalies, message)
	e.logf("extraction anomaly: %s", message)
}

func (e *Extractor) recordRun(runID, state string, stats domain.RunStats, runErr error, startedAt time.Time) {
	record := storage.RunRecord{
		RunID:        runID,
		State:        state,
		Posts:        stats.Posts,
		NewComments:  stats.NewComments,
		NewReactions: stats.NewReactions,
		TotalLeads:   stats.TotalLeads,
		Anomalies:    len(stats.Anomalies),
		StartedAt:    startedAt,
		FinishedAt:   e.clock().UTC(),
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	// The audit row is written outside the pass transaction so rolled-back
	// passes still leave a trace. Failing to write it must not mask the
	// pass outcome.
	if err := e.store.RecordRun(context.Background(), record); err != nil {
		e.logf("record run %s: %v", runID, err)
	}
}
