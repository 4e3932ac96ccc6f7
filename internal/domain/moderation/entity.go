package moderation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ContentKind is the kind of submission being moderated
type ContentKind string

const (
	ContentKindPost    ContentKind = "post"
	ContentKindComment ContentKind = "comment"
	ContentKindMessage ContentKind = "message"
	ContentKindProfile ContentKind = "profile"
	ContentKindOther   ContentKind = "other"
)

// EventAction names an entry in the moderation audit log
type EventAction string

const (
	EventWarning         EventAction = "warning"
	EventMute            EventAction = "mute"
	EventUnmute          EventAction = "unmute"
	EventContentRemoved  EventAction = "content-removed"
	EventSpamDetected    EventAction = "spam-detected"
	EventSlurDetected    EventAction = "slur-detected"
	EventDecayApplied    EventAction = "decay-applied"
	EventAdminNote       EventAction = "admin-note"
	EventHardBlock       EventAction = "hard-block"
	EventPipelineDecided EventAction = "moderation-v2-processed"

	overridePrefix = "admin-override-"
)

// RiskLevel is the coarse bucket of an account's risk score
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// RiskLevelForScore buckets a risk score
func RiskLevelForScore(score uint) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskModerate
	default:
		return RiskLow
	}
}

// ViolationKind selects which counter a violation increments
type ViolationKind string

const (
	ViolationSpeech ViolationKind = "speech"
	ViolationSpam   ViolationKind = "spam"
	ViolationSlur   ViolationKind = "slur"
)

// Profile is the per-account moderation record. It is always fully
// materialized; see decodeProfile for how legacy records are filled in.
type Profile struct {
	IsMuted            bool       `json:"is_muted"`
	MuteExpiresAt      *time.Time `json:"mute_expires_at"`
	MuteReason         string     `json:"mute_reason"`
	ViolationCount     uint       `json:"violation_count"`
	SpamViolationCount uint       `json:"spam_violation_count"`
	SlurViolationCount uint       `json:"slur_violation_count"`
	LastViolationAt    *time.Time `json:"last_violation_at"`
	LastDecayAppliedAt *time.Time `json:"last_decay_applied_at"`
	AutoMuteEnabled    bool       `json:"auto_mute_enabled"`
	BehaviorScore      uint       `json:"behavior_score"`
	RiskScore          uint       `json:"risk_score"`
	RiskLevel          RiskLevel  `json:"risk_level"`
	ProbationUntil     *time.Time `json:"probation_until"`
}

// TotalViolations sums all three violation counters
func (p *Profile) TotalViolations() uint {
	return p.ViolationCount + p.SpamViolationCount + p.SlurViolationCount
}

// OnProbation reports whether the probation window is still open at now
func (p *Profile) OnProbation(now time.Time) bool {
	return p.ProbationUntil != nil && now.Before(*p.ProbationUntil)
}

// Account is the slice of the account record the engine reads and writes
type Account struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Profile   Profile   `json:"moderation"`
}

// Event is one append-only moderation log entry
type Event struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	AccountID          uuid.UUID       `db:"user_id" json:"account_id"`
	Action             EventAction     `db:"action" json:"action"`
	Reason             string          `db:"reason" json:"reason"`
	ContentType        ContentKind     `db:"content_type" json:"content_type"`
	ContentID          uuid.NullUUID   `db:"content_id" json:"content_id"`
	ContentPreview     string          `db:"content_preview" json:"content_preview"`
	ContentHash        string          `db:"content_hash" json:"content_hash,omitempty"`
	DetectedViolations pq.StringArray  `db:"detected_violations" json:"detected_violations"`
	ModeratorID        uuid.NullUUID   `db:"moderator_id" json:"moderator_id"`
	Automated          bool            `db:"automated" json:"automated"`
	Override           bool            `db:"override" json:"override"`
	Skipped            bool            `db:"skipped" json:"skipped"`
	EvidenceKey        string          `db:"evidence_key" json:"evidence_key,omitempty"`
	LayerOutputs       json.RawMessage `db:"layer_outputs" json:"layer_outputs,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"timestamp"`
}
