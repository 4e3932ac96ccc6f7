package moderation

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultBehaviorScore is the soft reputation of an account with no history
	DefaultBehaviorScore uint = 100

	// PreviewLimit caps the content snapshot stored on events
	PreviewLimit = 500
)

// storedProfile mirrors the persisted JSON. Every field is optional because
// accounts created before the moderation schema carry partial or no data.
type storedProfile struct {
	IsMuted            *bool      `json:"is_muted,omitempty"`
	MuteExpiresAt      *time.Time `json:"mute_expires_at,omitempty"`
	MuteReason         *string    `json:"mute_reason,omitempty"`
	ViolationCount     *uint      `json:"violation_count,omitempty"`
	SpamViolationCount *uint      `json:"spam_violation_count,omitempty"`
	SlurViolationCount *uint      `json:"slur_violation_count,omitempty"`
	LastViolationAt    *time.Time `json:"last_violation_at,omitempty"`
	LastDecayAppliedAt *time.Time `json:"last_decay_applied_at,omitempty"`
	AutoMuteEnabled    *bool      `json:"auto_mute_enabled,omitempty"`
	BehaviorScore      *uint      `json:"behavior_score,omitempty"`
	RiskScore          *uint      `json:"risk_score,omitempty"`
	RiskLevel          *string    `json:"risk_level,omitempty"`
	ProbationUntil     *time.Time `json:"probation_until,omitempty"`
}

// NewProfile returns the profile a brand-new account starts with
func NewProfile() Profile {
	return Profile{
		AutoMuteEnabled: true,
		BehaviorScore:   DefaultBehaviorScore,
		RiskLevel:       RiskLow,
	}
}

// decodeProfile materializes a complete Profile from stored JSON. NULL or
// empty input yields NewProfile(); unknown risk levels are re-derived from
// the score, and out-of-range behavior scores are clamped.
func decodeProfile(raw []byte) (Profile, error) {
	p := NewProfile()
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}

	var s storedProfile
	if err := json.Unmarshal(raw, &s); err != nil {
		return p, fmt.Errorf("decode moderation profile: %w", err)
	}

	if s.IsMuted != nil {
		p.IsMuted = *s.IsMuted
	}
	p.MuteExpiresAt = s.MuteExpiresAt
	if s.MuteReason != nil {
		p.MuteReason = *s.MuteReason
	}
	if s.ViolationCount != nil {
		p.ViolationCount = *s.ViolationCount
	}
	if s.SpamViolationCount != nil {
		p.SpamViolationCount = *s.SpamViolationCount
	}
	if s.SlurViolationCount != nil {
		p.SlurViolationCount = *s.SlurViolationCount
	}
	p.LastViolationAt = s.LastViolationAt
	p.LastDecayAppliedAt = s.LastDecayAppliedAt
	if s.AutoMuteEnabled != nil {
		p.AutoMuteEnabled = *s.AutoMuteEnabled
	}
	if s.BehaviorScore != nil {
		p.BehaviorScore = min(*s.BehaviorScore, 100)
	}
	if s.RiskScore != nil {
		p.RiskScore = *s.RiskScore
	}
	p.RiskLevel = RiskLevelForScore(p.RiskScore)
	if s.RiskLevel != nil {
		switch lvl := RiskLevel(*s.RiskLevel); lvl {
		case RiskLow, RiskModerate, RiskHigh:
			p.RiskLevel = lvl
		}
	}
	p.ProbationUntil = s.ProbationUntil

	// a mute flag without the flag set carries no meaning
	if !p.IsMuted {
		p.MuteExpiresAt = nil
	}

	return p, nil
}

func encodeProfile(p Profile) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode moderation profile: %w", err)
	}
	return b, nil
}

// muteRemaining returns whether the account is muted at now and, for timed
// mutes, how long is left. A past-due mute reports (false, 0, true): the
// caller must clear it.
func muteRemaining(p *Profile, now time.Time) (muted bool, remaining time.Duration, expired bool) {
	if !p.IsMuted {
		return false, 0, false
	}
	if p.MuteExpiresAt == nil {
		return true, 0, false
	}
	if !now.Before(*p.MuteExpiresAt) {
		return false, 0, true
	}
	return true, p.MuteExpiresAt.Sub(now), false
}
