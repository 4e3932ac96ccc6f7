package post

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/domain/moderation"
)

// CreateRequest for POST /posts and POST /posts/{id}/comments
type CreateRequest struct {
	Content string `json:"content" validate:"required,notblank,max=20000"`
}

// PostResponse is a stored submission plus the moderation outcome
type PostResponse struct {
	ID            uuid.UUID  `json:"id"`
	AuthorID      uuid.UUID  `json:"author_id"`
	ParentID      *uuid.UUID `json:"parent_id,omitempty"`
	Kind          string     `json:"kind"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	DampenedUntil *time.Time `json:"dampened_until,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`

	Moderation *ModerationSummary `json:"moderation,omitempty"`
}

// ModerationSummary is the part of the decision shown to the author
type ModerationSummary struct {
	Action     moderation.Action `json:"action"`
	Reason     string            `json:"reason,omitempty"`
	Confidence int               `json:"confidence"`
	Degraded   bool              `json:"degraded,omitempty"`
}

// PostResponseFromEntity converts a post to its response
func PostResponseFromEntity(p *Post) *PostResponse {
	resp := &PostResponse{
		ID:            p.ID,
		AuthorID:      p.AuthorID,
		Kind:          string(p.Kind),
		Content:       p.Content,
		Status:        string(p.Status),
		DampenedUntil: p.DampenedUntil,
		CreatedAt:     p.CreatedAt,
	}
	if p.ParentID.Valid {
		id := p.ParentID.UUID
		resp.ParentID = &id
	}
	return resp
}

// withDecision attaches the moderation outcome
func (r *PostResponse) withDecision(d *moderation.DecisionResult) *PostResponse {
	if d != nil {
		r.Moderation = &ModerationSummary{
			Action:     d.Action,
			Reason:     d.Reason,
			Confidence: d.Confidence,
			Degraded:   d.Degraded,
		}
	}
	return r
}
