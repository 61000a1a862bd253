package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kestrelhq/leadscout/internal/services/extractor/domain"
	"github.com/kestrelhq/leadscout/internal/services/extractor/storage"
)

// runTx implements storage.RunTx over one SQLite transaction.
type runTx struct {
	tx *sql.Tx
}

var _ storage.RunTx = (*runTx)(nil)

func (t *runTx) GetLeadByPlatformUserID(ctx context.Context, platformUserID string) (domain.Lead, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, platform_user_id, platform, username, user_profile_url,
	intent_category, intent_score, keywords_matched,
	total_comments, total_reactions, total_interactions,
	status, routed, discovered_at, updated_at
FROM leads
WHERE platform_user_id = ?
`, platformUserID)

	var lead domain.Lead
	var routed int64
	var discoveredAt, updatedAt int64
	err := row.Scan(
		&lead.ID,
		&lead.PlatformUserID,
		&lead.Platform,
		&lead.Username,
		&lead.ProfileURL,
		&lead.IntentCategory,
		&lead.IntentScore,
		&lead.KeywordsMatched,
		&lead.TotalComments,
		&lead.TotalReactions,
		&lead.TotalInteractions,
		&lead.Status,
		&routed,
		&discoveredAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Lead{}, storage.ErrNotFound
		}
		return domain.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	lead.Routed = routed != 0
	lead.DiscoveredAt = fromMillis(discoveredAt)
	lead.UpdatedAt = fromMillis(updatedAt)
	return lead, nil
}

func (t *runTx) InsertLead(ctx context.Context, lead domain.Lead) (int64, error) {
	if lead.PlatformUserID == "" {
		return 0, fmt.Errorf("platform user id is required")
	}
	if lead.Platform == "" {
		lead.Platform = domain.PlatformFacebook
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	if lead.KeywordsMatched == "" {
		lead.KeywordsMatched = "[]"
	}

	result, err := t.tx.ExecContext(ctx, `
INSERT INTO leads (
	platform_user_id, platform, username, user_profile_url,
	intent_category, intent_score, keywords_matched,
	total_comments, total_reactions, total_interactions,
	status, routed, discovered_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		lead.PlatformUserID,
		lead.Platform,
		lead.Username,
		lead.ProfileURL,
		lead.IntentCategory,
		lead.IntentScore,
		lead.KeywordsMatched,
		lead.TotalComments,
		lead.TotalReactions,
		lead.TotalInteractions,
		lead.Status,
		boolToInt(lead.Routed),
		toMillis(lead.DiscoveredAt),
		toMillis(lead.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("lead insert id: %w", err)
	}
	return id, nil
}

func (t *runTx) GetPostByPlatformPostID(ctx context.Context, platformPostID string) (domain.Post, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, platform_post_id, message, created_time, post_url,
	total_comments, total_reactions, discovered_at
FROM posts
WHERE platform_post_id = ?
`, platformPostID)

	var post domain.Post
	var createdTime, discoveredAt int64
	err := row.Scan(
		&post.ID,
		&post.PlatformPostID,
		&post.Message,
		&createdTime,
		&post.PostURL,
		&post.TotalComments,
		&post.TotalReactions,
		&discoveredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Post{}, storage.ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("get post: %w", err)
	}
	post.CreatedTime = fromMillis(createdTime)
	post.DiscoveredAt = fromMillis(discoveredAt)
	return post, nil
}

func (t *runTx) InsertPost(ctx context.Context, post domain.Post) (int64, error) {
	if post.PlatformPostID == "" {
		return 0, fmt.Errorf("platform post id is required")
	}

	result, err := t.tx.ExecContext(ctx, `
INSERT INTO posts (
	platform_post_id, message, created_time, post_url,
	total_comments, total_reactions, discovered_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		post.PlatformPostID,
		post.Message,
		toMillis(post.CreatedTime),
		post.PostURL,
		post.TotalComments,
		post.TotalReactions,
		toMillis(post.DiscoveredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("post insert id: %w", err)
	}
	return id, nil
}

func (t *runTx) CommentExists(ctx context.Context, platformCommentID string) (bool, error) {
	var found int
	row := t.tx.QueryRowContext(ctx, `SELECT 1 FROM comments WHERE platform_comment_id = ?`, platformCommentID)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check comment: %w", err)
	}
	return true, nil
}

func (t *runTx) InsertComment(ctx context.Context, comment domain.Comment) (int64, error) {
	if comment.PlatformCommentID == "" {
		return 0, fmt.Errorf("platform comment id is required")
	}
	if comment.PostID == 0 || comment.LeadID == 0 {
		return 0, fmt.Errorf("post and lead references are required")
	}

	result, err := t.tx.ExecContext(ctx, `
INSERT INTO comments (
	platform_comment_id, message, created_time, post_id, lead_id, discovered_at
) VALUES (?, ?, ?, ?, ?, ?)
`,
		comment.PlatformCommentID,
		comment.Message,
		toMillis(comment.CreatedTime),
		comment.PostID,
		comment.LeadID,
		toMillis(comment.DiscoveredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("comment insert id: %w", err)
	}
	return id, nil
}

func (t *runTx) ReactionExists(ctx context.Context, postID, leadID int64) (bool, error) {
	var found int
	row := t.tx.QueryRowContext(ctx, `SELECT 1 FROM reactions WHERE post_id = ? AND lead_id = ?`, postID, leadID)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check reaction: %w", err)
	}
	return true, nil
}

func (t *runTx) InsertReaction(ctx context.Context, reaction domain.Reaction) (int64, error) {
	if reaction.ReactionType == "" {
		return 0, fmt.Errorf("reaction type is required")
	}
	if reaction.PostID == 0 || reaction.LeadID == 0 {
		return 0, fmt.Errorf("post and lead references are required")
	}

	result, err := t.tx.ExecContext(ctx, `
INSERT INTO reactions (
	reaction_type, post_id, lead_id, discovered_at
) VALUES (?, ?, ?, ?)
`,
		reaction.ReactionType,
		reaction.PostID,
		reaction.LeadID,
		toMillis(reaction.DiscoveredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert reaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reaction insert id: %w", err)
	}
	return id, nil
}

func (t *runTx) ApplyCommentCounters(ctx context.Context, postID, leadID int64, updatedAt time.Time) error {
	if _, err := t.tx.ExecContext(ctx, `
UPDATE posts SET total_comments = total_comments + 1 WHERE id = ?
`, postID); err != nil {
		return fmt.Errorf("increment post comment counter: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `
UPDATE leads
SET total_comments = total_comments + 1,
	total_interactions = total_interactions + 1,
	updated_at = ?
WHERE id = ?
`, toMillis(updatedAt), leadID); err != nil {
		return fmt.Errorf("increment lead comment counters: %w", err)
	}
	return nil
}

func (t *runTx) ApplyReactionCounters(ctx context.Context, postID, leadID int64, updatedAt time.Time) error {
	if _, err := t.tx.ExecContext(ctx, `
UPDATE posts SET total_reactions = total_reactions + 1 WHERE id = ?
`, postID); err != nil {
		return fmt.Errorf("increment post reaction counter: %w", err)
	}
	if _, err := t.tx.ExecContext(ctx, `
UPDATE leads
SET total_reactions = total_reactions + 1,
	total_interactions = total_interactions + 1,
	updated_at = ?
WHERE id = ?
`, toMillis(updatedAt), leadID); err != nil {
		return fmt.Errorf("increment lead reaction counters: %w", err)
	}
	return nil
}

func (t *runTx) CountLeads(ctx context.Context) (int64, error) {
	var count int64
	row := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return count, nil
}

func (t *runTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit run transaction: %w", err)
	}
	return nil
}

func (t *runTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback run transaction: %w", err)
	}
	return nil
}

// Zero times round-trip as zero so absent upstream timestamps stay absent.
func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
