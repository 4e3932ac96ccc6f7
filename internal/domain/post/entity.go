package post

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/domain/moderation"
)

// Status is the visibility state a submission was stored with
type Status string

const (
	StatusPublished     Status = "published"
	StatusPendingReview Status = "pending_review"
	StatusBlocked       Status = "blocked"
)

// Post is a top-level post or, when ParentID is set, a comment
type Post struct {
	ID               uuid.UUID                 `db:"id" json:"id"`
	AuthorID         uuid.UUID                 `db:"author_id" json:"author_id"`
	ParentID         uuid.NullUUID             `db:"parent_id" json:"parent_id"`
	Kind             moderation.ContentKind    `db:"kind" json:"kind"`
	Content          string                    `db:"content" json:"content"`
	Status           Status                    `db:"status" json:"status"`
	ModerationAction moderation.Action         `db:"moderation_action" json:"moderation_action"`
	IntentCategory   moderation.IntentCategory `db:"intent_category" json:"intent_category"`
	DampenedUntil    *time.Time                `db:"dampened_until" json:"dampened_until,omitempty"`
	CreatedAt        time.Time                 `db:"created_at" json:"created_at"`
}

// IsVisible reports whether the post is shown to other users
func (p *Post) IsVisible() bool {
	return p.Status == StatusPublished
}

// IsDampened reports whether the post is down-ranked at now
func (p *Post) IsDampened(now time.Time) bool {
	return p.DampenedUntil != nil && now.Before(*p.DampenedUntil)
}

// statusFor maps a pipeline action onto the stored status
func statusFor(action moderation.Action) Status {
	switch action {
	case moderation.ActionQueueForReview:
		return StatusPendingReview
	case moderation.ActionTempMute, moderation.ActionHardBlock:
		return StatusBlocked
	default:
		return StatusPublished
	}
}
