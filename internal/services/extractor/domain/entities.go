// Package domain defines the entities produced by the extraction pipeline and
// the invariants the pipeline maintains over them.
package domain

import "time"

// PlatformFacebook identifies the source platform for extracted records.
const PlatformFacebook = "facebook"

// LeadStatusNew is the lifecycle status assigned to a freshly discovered lead.
const LeadStatusNew = "new"

// Lead is one external platform user observed interacting with tracked
// content. A lead is created on the first comment or reaction seen from its
// platform user id and is never deleted by the pipeline.
//
// Invariant: TotalInteractions == TotalComments + TotalReactions after any
// pipeline operation.
type Lead struct {
	ID             int64
	PlatformUserID string
	Platform       string
	Username       string
	ProfileURL     string

	// Classification fields are written by the intent classifier, not by
	// the extraction pipeline. They are carried so collaborators can read
	// a complete record.
	IntentCategory  string
	IntentScore     float64
	KeywordsMatched string

	TotalComments     int64
	TotalReactions    int64
	TotalInteractions int64

	Status       string
	Routed       bool
	DiscoveredAt time.Time
	UpdatedAt    time.Time
}

// Post is one piece of tracked content from the source platform.
//
// Invariant: TotalComments and TotalReactions equal the number of persisted
// Comment and Reaction rows referencing the post.
type Post struct {
	ID             int64
	PlatformPostID string
	Message        string
	CreatedTime    time.Time
	PostURL        string

	TotalComments  int64
	TotalReactions int64

	DiscoveredAt time.Time
}

// Comment is an immutable record of one lead's comment on one post. The
// platform comment id is the deduplication key.
type Comment struct {
	ID                int64
	PlatformCommentID string
	Message           string
	CreatedTime       time.Time
	PostID            int64
	LeadID            int64
	DiscoveredAt      time.Time
}

// Reaction is an immutable record of one lead's reaction on one post. The
// source API exposes no stable reaction identifier, so uniqueness is the
// (post, lead) pair instead.
type Reaction struct {
	ID           int64
	ReactionType string
	PostID       int64
	LeadID       int64
	DiscoveredAt time.Time
}

// Reaction types observed on the source platform. The pipeline treats the
// value as an opaque string; these cover the documented set.
const (
	ReactionLike  = "LIKE"
	ReactionLove  = "LOVE"
	ReactionWow   = "WOW"
	ReactionHaha  = "HAHA"
	ReactionSad   = "SAD"
	ReactionAngry = "ANGRY"
)
