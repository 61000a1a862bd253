package extract

import (
	"context"
	"errors"
	"time"

	"github.com/kestrelhq/leadscout/internal/services/extractor/domain"
	"github.com/kestrelhq/leadscout/internal/services/extractor/graphapi"
	"github.com/kestrelhq/leadscout/internal/services/extractor/storage"
)

// resolveLead returns the durable lead for an external user id, creating one
// on first sight. The insert is issued immediately so the lead id is
// available to dependent writes within the same pass transaction. The
// first-seen display name wins; repeat sightings never update it.
func (e *Extractor) resolveLead(ctx context.Context, tx storage.RunTx, platformUserID, username string) (domain.Lead, error) {
	lead, err := tx.GetLeadByPlatformUserID(ctx, platformUserID)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Lead{}, err
	}

	now := e.clock().UTC()
	lead = domain.Lead{
		PlatformUserID: platformUserID,
		Platform:       domain.PlatformFacebook,
		Username:       username,
		Status:         domain.LeadStatusNew,
		DiscoveredAt:   now,
		UpdatedAt:      now,
	}
	id, err := tx.InsertLead(ctx, lead)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.ID = id
	return lead, nil
}

// resolvePost returns the durable post for an external post id, creating one
// on first sight. A malformed creation time surfaces as
// domain.MalformedTimestampError and aborts only this post.
func (e *Extractor) resolvePost(ctx context.Context, tx storage.RunTx, raw graphapi.Post) (domain.Post, error) {
	post, err := tx.GetPostByPlatformPostID(ctx, raw.ID)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Post{}, err
	}

	createdTime, err := domain.ParseUpstreamTime(raw.CreatedTime)
	if err != nil {
		return domain.Post{}, err
	}

	post = domain.Post{
		PlatformPostID: raw.ID,
		Message:        raw.Message,
		CreatedTime:    createdTime,
		PostURL:        raw.PermalinkURL,
		DiscoveredAt:   e.clock().UTC(),
	}
	id, err := tx.InsertPost(ctx, post)
	if err != nil {
		return domain.Post{}, err
	}
	post.ID = id
	return post, nil
}

// ingestComment persists a comment when its platform comment id is unseen and
// bumps the dependent counters. It reports whether a row was inserted; a seen
// dedup key is a no-op with no counter change.
func (e *Extractor) ingestComment(ctx context.Context, tx storage.RunTx, post domain.Post, lead domain.Lead, platformCommentID, message string, createdTime time.Time) (bool, error) {
	exists, err := tx.CommentExists(ctx, platformCommentID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := e.clock().UTC()
	if _, err := tx.InsertComment(ctx, domain.Comment{
		PlatformCommentID: platformCommentID,
		Message:           message,
		CreatedTime:       createdTime,
		PostID:            post.ID,
		LeadID:            lead.ID,
		DiscoveredAt:      now,
	}); err != nil {
		return false, err
	}
	if err := tx.ApplyCommentCounters(ctx, post.ID, lead.ID, now); err != nil {
		return false, err
	}
	return true, nil
}

// ingestReaction persists a reaction when the (post, lead) pair is unseen and
// bumps the dependent counters. The source API exposes no stable reaction
// identifier, so the pair is the dedup key.
func (e *Extractor) ingestReaction(ctx context.Context, tx storage.RunTx, post domain.Post, lead domain.Lead, reactionType string) (bool, error) {
	exists, err := tx.ReactionExists(ctx, post.ID, lead.ID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := e.clock().UTC()
	if _, err := tx.InsertReaction(ctx, domain.Reaction{
		ReactionType: reactionType,
		PostID:       post.ID,
		LeadID:       lead.ID,
		DiscoveredAt: now,
	}); err != nil {
		return false, err
	}
	if err := tx.ApplyReactionCounters(ctx, post.ID, lead.ID, now); err != nil {
		return false, err
	}
	return true, nil
}
