package moderation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command is one state transition of the enforcement state machine. Commands
// are only applied through AccountUpdate so that every transition happens
// inside the store's per-account atomic unit.
type Command interface {
	applyTo(p *Profile, now time.Time) bool
	String() string
}

// Mute mutes the account. A zero Duration mutes indefinitely. With
// KeepLonger set, an active mute that already lasts at least as long is left
// untouched.
type Mute struct {
	Duration   time.Duration
	Reason     string
	KeepLonger bool
}

func (c Mute) applyTo(p *Profile, now time.Time) bool {
	if c.KeepLonger && p.IsMuted {
		switch {
		case p.MuteExpiresAt == nil:
			return false
		case c.Duration > 0 && !p.MuteExpiresAt.Before(now.Add(c.Duration)):
			return false
		}
	}
	p.IsMuted = true
	p.MuteReason = c.Reason
	if c.Duration > 0 {
		exp := now.Add(c.Duration)
		p.MuteExpiresAt = &exp
	} else {
		p.MuteExpiresAt = nil
	}
	return true
}

func (c Mute) String() string {
	if c.Duration <= 0 {
		return "mute(indefinite)"
	}
	return fmt.Sprintf("mute(%s)", c.Duration)
}

// ClearMute lifts any mute
type ClearMute struct{}

func (ClearMute) applyTo(p *Profile, _ time.Time) bool {
	if !p.IsMuted && p.MuteExpiresAt == nil && p.MuteReason == "" {
		return false
	}
	p.IsMuted = false
	p.MuteExpiresAt = nil
	p.MuteReason = ""
	return true
}

func (ClearMute) String() string { return "clear-mute" }

// IncrementViolation bumps the counter for Kind and stamps lastViolationAt
type IncrementViolation struct {
	Kind ViolationKind
}

func (c IncrementViolation) applyTo(p *Profile, now time.Time) bool {
	switch c.Kind {
	case ViolationSpam:
		p.SpamViolationCount++
	case ViolationSlur:
		p.SlurViolationCount++
	default:
		p.ViolationCount++
	}
	t := now
	p.LastViolationAt = &t
	return true
}

func (c IncrementViolation) String() string {
	return fmt.Sprintf("increment-violation(%s)", c.Kind)
}

// ApplyDecay reduces every counter by Policy.Amount once the account has
// been clean for Policy.Interval. Counters never go below zero.
type ApplyDecay struct {
	Policy DecayPolicy
}

func (c ApplyDecay) due(p *Profile, now time.Time) bool {
	if c.Policy.Interval <= 0 || c.Policy.Amount == 0 || p.TotalViolations() == 0 {
		return false
	}
	var ref time.Time
	if p.LastViolationAt != nil {
		ref = *p.LastViolationAt
	}
	if p.LastDecayAppliedAt != nil && p.LastDecayAppliedAt.After(ref) {
		ref = *p.LastDecayAppliedAt
	}
	return now.Sub(ref) >= c.Policy.Interval
}

func (c ApplyDecay) applyTo(p *Profile, now time.Time) bool {
	if !c.due(p, now) {
		return false
	}
	p.ViolationCount = decrement(p.ViolationCount, c.Policy.Amount)
	p.SpamViolationCount = decrement(p.SpamViolationCount, c.Policy.Amount)
	p.SlurViolationCount = decrement(p.SlurViolationCount, c.Policy.Amount)
	t := now
	p.LastDecayAppliedAt = &t
	return true
}

func (c ApplyDecay) String() string {
	return fmt.Sprintf("decay(%d every %s)", c.Policy.Amount, c.Policy.Interval)
}

func decrement(v, by uint) uint {
	if by >= v {
		return 0
	}
	return v - by
}

// SetProbation opens or, with a nil Until, closes the probation window
type SetProbation struct {
	Until *time.Time
}

func (c SetProbation) applyTo(p *Profile, _ time.Time) bool {
	p.ProbationUntil = c.Until
	return true
}

func (c SetProbation) String() string {
	if c.Until == nil {
		return "clear-probation"
	}
	return "probation(" + c.Until.UTC().Format(time.RFC3339) + ")"
}

// SetRisk stores the externally computed risk score and its level
type SetRisk struct {
	Score uint
}

func (c SetRisk) applyTo(p *Profile, _ time.Time) bool {
	p.RiskScore = c.Score
	p.RiskLevel = RiskLevelForScore(c.Score)
	return true
}

func (c SetRisk) String() string { return fmt.Sprintf("risk(%d)", c.Score) }

// SetBehaviorScore stores the soft reputation, clamped to [0,100]
type SetBehaviorScore struct {
	Score uint
}

func (c SetBehaviorScore) applyTo(p *Profile, _ time.Time) bool {
	s := min(c.Score, 100)
	if p.BehaviorScore == s {
		return false
	}
	p.BehaviorScore = s
	return true
}

func (c SetBehaviorScore) String() string { return fmt.Sprintf("behavior-score(%d)", c.Score) }

// SetAutoMute toggles the per-account auto-mute opt-out
type SetAutoMute struct {
	Enabled bool
}

func (c SetAutoMute) applyTo(p *Profile, _ time.Time) bool {
	if p.AutoMuteEnabled == c.Enabled {
		return false
	}
	p.AutoMuteEnabled = c.Enabled
	return true
}

func (c SetAutoMute) String() string { return fmt.Sprintf("auto-mute(%t)", c.Enabled) }

// AccountUpdate is the working copy handed to a Store.Update callback.
// Changes become durable only if the callback returns nil.
type AccountUpdate struct {
	Account Account
	Now     time.Time

	events  []Event
	changed bool
}

func newAccountUpdate(acc Account, now time.Time) *AccountUpdate {
	return &AccountUpdate{Account: acc, Now: now}
}

// Apply runs commands in order against the profile and reports whether any
// of them changed it
func (u *AccountUpdate) Apply(cmds ...Command) bool {
	changed := false
	for _, c := range cmds {
		if c.applyTo(&u.Account.Profile, u.Now) {
			changed = true
		}
	}
	u.changed = u.changed || changed
	return changed
}

// Append queues an event. ID, account and timestamp are filled in when unset.
func (u *AccountUpdate) Append(ev Event) Event {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.AccountID = u.Account.ID
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = u.Now
	}
	if ev.ContentType == "" {
		ev.ContentType = ContentKindOther
	}
	if ev.DetectedViolations == nil {
		ev.DetectedViolations = []string{}
	}
	u.events = append(u.events, ev)
	return ev
}

// Events returns the events queued so far
func (u *AccountUpdate) Events() []Event {
	return u.events
}

// Changed reports whether the profile needs to be written back
func (u *AccountUpdate) Changed() bool {
	return u.changed
}
