// Package sqlite provides SQLite-backed persistence for the extraction
// pipeline.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/kestrelhq/leadscout/internal/platform/storage/sqlitemigrate"
	"github.com/kestrelhq/leadscout/internal/services/extractor/storage"
	"github.com/kestrelhq/leadscout/internal/services/extractor/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed lead, post, and engagement persistence.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens an extractor SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// BeginRun opens the transaction scope for one extraction pass.
func (s *Store) BeginRun(ctx context.Context) (storage.RunTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin run transaction: %w", err)
	}
	return &runTx{tx: tx}, nil
}

// CountLeads counts all persisted leads outside any pass transaction.
func (s *Store) CountLeads(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return count, nil
}

// RecordRun persists one extraction pass audit row.
func (s *Store) RecordRun(ctx context.Context, record storage.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	record.RunID = strings.TrimSpace(record.RunID)
	record.State = strings.TrimSpace(record.State)
	if record.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if record.State != storage.RunStateCommitted && record.State != storage.RunStateRolledBack {
		return fmt.Errorf("invalid run state %q", record.State)
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}
	if record.FinishedAt.IsZero() {
		record.FinishedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO extraction_runs (
	run_id,
	state,
	posts,
	new_comments,
	new_reactions,
	total_leads,
	anomalies,
	error,
	started_at,
	finished_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.RunID,
		record.State,
		record.Posts,
		record.NewComments,
		record.NewReactions,
		record.TotalLeads,
		record.Anomalies,
		record.Error,
		record.StartedAt.UTC().UnixMilli(),
		record.FinishedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns lists newest-first run audit rows.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT run_id, state, posts, new_comments, new_reactions, total_leads, anomalies, error, started_at, finished_at
FROM extraction_runs
ORDER BY started_at DESC, run_id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []storage.RunRecord
	for rows.Next() {
		var record storage.RunRecord
		var startedAt, finishedAt int64
		if err := rows.Scan(
			&record.RunID,
			&record.State,
			&record.Posts,
			&record.NewComments,
			&record.NewReactions,
			&record.TotalLeads,
			&record.Anomalies,
			&record.Error,
			&startedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		record.StartedAt = time.UnixMilli(startedAt).UTC()
		record.FinishedAt = time.UnixMilli(finishedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return records, nil
}
