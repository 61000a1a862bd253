// Package storage defines persistence contracts for the extraction pipeline.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelhq/leadscout/internal/services/extractor/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Run terminal states recorded in the audit log.
const (
	RunStateCommitted  = "committed"
	RunStateRolledBack = "rolled_back"
)

// RunRecord is one audit row per extraction pass, written after the pass
// transaction resolves.
type RunRecord struct {
	RunID        string
	State        string
	Posts        int
	NewComments  int
	NewReactions int
	TotalLeads   int64
	Anomalies    int
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Store opens run-scoped transactions and persists the run audit log. It is
// constructed explicitly and passed into the orchestrator; there is no
// process-wide session.
type Store interface {
	// BeginRun opens the single transaction scope for one extraction pass.
	BeginRun(ctx context.Context) (RunTx, error)
	RecordRun(ctx context.Context, record RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	CountLeads(ctx context.Context) (int64, error)
	Close() error
}

// RunTx exposes the writes of one extraction pass. All mutations are
// invisible to other readers until Commit; Rollback discards everything.
type RunTx interface {
	GetLeadByPlatformUserID(ctx context.Context, platformUserID string) (domain.Lead, error)
	InsertLead(ctx context.Context, lead domain.Lead) (int64, error)

	GetPostByPlatformPostID(ctx context.Context, platformPostID string) (domain.Post, error)
	InsertPost(ctx context.Context, post domain.Post) (int64, error)

	CommentExists(ctx context.Context, platformCommentID string) (bool, error)
	InsertComment(ctx context.Context, comment domain.Comment) (int64, error)

	ReactionExists(ctx context.Context, postID, leadID int64) (bool, error)
	InsertReaction(ctx context.Context, reaction domain.Reaction) (int64, error)

	// ApplyCommentCounters increments the post and lead comment counters,
	// and the lead interaction total, by one each.
	ApplyCommentCounters(ctx context.Context, postID, leadID int64, updatedAt time.Time) error
	// ApplyReactionCounters increments the post and lead reaction counters,
	// and the lead interaction total, by one each.
	ApplyReactionCounters(ctx context.Context, postID, leadID int64, updatedAt time.Time) error

	CountLeads(ctx context.Context) (int64, error)

	Commit() error
	Rollback() error
}
