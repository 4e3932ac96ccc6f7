package moderation

import (
	"time"

	"github.com/google/uuid"
)

// OverrideRequest is an operator override of an automated decision
type OverrideRequest struct {
	Action string `json:"action" validate:"required,max=64,override_action"`
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// MuteRequest mutes an account by hand. Zero minutes mutes indefinitely.
type MuteRequest struct {
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=525600"`
	Reason          string `json:"reason" validate:"required,notblank,max=1000"`
}

// ReasonRequest carries only a reason
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// ProbationRequest opens a probation window; a null until closes it
type ProbationRequest struct {
	Until  *time.Time `json:"until"`
	Reason string     `json:"reason" validate:"required,notblank,max=1000"`
}

// RiskRequest stores an externally computed risk score
type RiskRequest struct {
	Score  uint   `json:"score" validate:"lte=1000"`
	Reason string `json:"reason" validate:"required,notblank,max=1000"`
}

// AutoMuteRequest toggles the auto-mute opt-out
type AutoMuteRequest struct {
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason" validate:"required,notblank,max=1000"`
}

// ViolationRequest records a violation detected outside the pipeline
type ViolationRequest struct {
	Kind        string     `json:"kind" validate:"required,violation_kind"`
	Reason      string     `json:"reason" validate:"required,notblank,max=1000"`
	Content     string     `json:"content,omitempty" validate:"max=20000"`
	ContentType string     `json:"content_type,omitempty" validate:"content_kind"`
	ContentID   *uuid.UUID `json:"content_id,omitempty"`
}

// NoteRequest appends an operator note
type NoteRequest struct {
	Note string `json:"note" validate:"required,notblank,max=2000"`
}

// EvaluateDryRunRequest runs the pipeline without writing state
type EvaluateDryRunRequest struct {
	AccountID     uuid.UUID       `json:"account_id" validate:"required"`
	Content       string          `json:"content" validate:"max=20000"`
	ContentType   string          `json:"content_type,omitempty" validate:"content_kind"`
	RecentContent []RecentContent `json:"recent_content,omitempty" validate:"max=50"`
	UserContext   UserContext     `json:"user_context"`
}

// ProfileResponse is the admin view of an account's moderation state
type ProfileResponse struct {
	AccountID       uuid.UUID `json:"account_id"`
	CreatedAt       time.Time `json:"created_at"`
	Profile         Profile   `json:"moderation"`
	OnProbation     bool      `json:"on_probation"`
	TotalViolations uint      `json:"total_violations"`
}

// NewProfileResponse creates ProfileResponse from an account
func NewProfileResponse(acc *Account, now time.Time) ProfileResponse {
	return ProfileResponse{
		AccountID:       acc.ID,
		CreatedAt:       acc.CreatedAt,
		Profile:         acc.Profile,
		OnProbation:     acc.Profile.OnProbation(now),
		TotalViolations: acc.Profile.TotalViolations(),
	}
}
