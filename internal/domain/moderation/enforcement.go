package moderation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/pkg/countstore"
	"github.com/mwork/moderation-api/internal/pkg/logger"
	"github.com/mwork/moderation-api/internal/pkg/textsig"
)

// Gate rejection reasons returned to clients
const (
	GateReasonMuted          = "muted"
	GateReasonProbationLimit = "probation_post_limit"
	GateReasonProbationLink  = "probation_link_restriction"
	GateReasonDailyPostCap   = "daily_post_cap"
)

const postCounterName = "posts"

// GateRequest describes a submission about to be made
type GateRequest struct {
	AccountID uuid.UUID
	Kind      ContentKind
	Content   string
}

// GateResult is the outcome of the pre-submission check
type GateResult struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	Message          string `json:"message,omitempty"`
	ExpiresInMinutes *int   `json:"expiresInMinutes,omitempty"`
	Degraded         bool   `json:"degraded,omitempty"`

	// Reserved is set when an allowed post holds one of the day's post slots
	Reserved bool `json:"-"`
	// Err is the sentinel matching Reason
	Err error `json:"-"`
}

func rejected(reason string, err error, msg string) *GateResult {
	gateRejectCount.WithLabelValues(reason).Inc()
	return &GateResult{Allowed: false, Reason: reason, Message: msg, Err: err}
}

// Gate runs the mute and probation checks that precede content evaluation.
// Expired mutes are cleared on the way through. Infrastructure failures other
// than a missing account let the submission through.
func (s *Service) Gate(ctx context.Context, req GateRequest) (*GateResult, error) {
	now := s.nowFn()

	acc, err := s.store.Get(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, err
		}
		failOpenCount.Inc()
		logger.FromContext(ctx).Error().Err(err).Str("account_id", req.AccountID.String()).Msg("gate check failed, allowing submission")
		return &GateResult{Allowed: true, Degraded: true}, nil
	}

	muted, remaining, expired := muteRemaining(&acc.Profile, now)
	if expired {
		muted, remaining, err = s.clearExpiredMute(ctx, req.AccountID, now)
		if err != nil {
			failOpenCount.Inc()
			logger.FromContext(ctx).Error().Err(err).Str("account_id", req.AccountID.String()).Msg("failed to clear expired mute")
			return &GateResult{Allowed: true, Degraded: true}, nil
		}
	}
	if muted {
		res := rejected(GateReasonMuted, ErrMuted, "Your account is muted")
		if remaining > 0 {
			mins := int(math.Ceil(remaining.Minutes()))
			res.ExpiresInMinutes = &mins
			res.Message = fmt.Sprintf("Your account is muted for %d more minute(s)", mins)
		}
		return res, nil
	}

	if req.Kind != ContentKindPost {
		return &GateResult{Allowed: true}, nil
	}

	if acc.Profile.OnProbation(now) && textsig.ContainsURL(req.Content) {
		return rejected(GateReasonProbationLink, ErrProbationLinkRestriction,
			"Links are not allowed in posts while your account is on probation"), nil
	}

	// the slot is taken before the caps are checked so concurrent submissions
	// cannot all pass on the same count
	posted, err := s.counts.IncrementAndGet(ctx, postCounterName, req.AccountID.String(), countstore.PeriodDay)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("account_id", req.AccountID.String()).Msg("post counter unavailable, skipping post caps")
		return &GateResult{Allowed: true, Degraded: true}, nil
	}
	if acc.Profile.OnProbation(now) && posted > s.cfg.ProbationDailyPosts {
		s.ReleasePost(ctx, req.AccountID)
		return rejected(GateReasonProbationLimit, ErrProbationPostLimit,
			fmt.Sprintf("Accounts on probation can create %d posts per day", s.cfg.ProbationDailyPosts)), nil
	}
	if s.cfg.DailyPostCap > 0 && posted > s.cfg.DailyPostCap {
		s.ReleasePost(ctx, req.AccountID)
		return rejected(GateReasonDailyPostCap, ErrDailyPostCap,
			fmt.Sprintf("Daily limit of %d posts reached", s.cfg.DailyPostCap)), nil
	}

	return &GateResult{Allowed: true, Reserved: true}, nil
}

// clearExpiredMute re-checks the mute under the account lock so that a mute
// applied concurrently is not lifted by a stale read
func (s *Service) clearExpiredMute(ctx context.Context, accountID uuid.UUID, now time.Time) (bool, time.Duration, error) {
	var (
		muted     bool
		remaining time.Duration
	)
	err := s.store.Update(ctx, accountID, now, func(u *AccountUpdate) error {
		var expired bool
		muted, remaining, expired = muteRemaining(&u.Account.Profile, now)
		if !expired {
			return nil
		}
		u.Apply(ClearMute{})
		u.Append(Event{
			Action:    EventUnmute,
			Reason:    "mute expired",
			Automated: true,
		})
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if !muted {
		logger.LogInfo(ctx, "expired mute cleared", "account_id", accountID.String())
	}
	return muted, remaining, nil
}

// ReleasePost gives back the daily post slot a Gate reserved, for a post that
// was not published after all
func (s *Service) ReleasePost(ctx context.Context, accountID uuid.UUID) {
	if err := s.counts.Decrement(ctx, postCounterName, accountID.String()); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("account_id", accountID.String()).Msg("failed to release post slot")
	}
}

// Profile returns the normalized moderation state of an account
func (s *Service) Profile(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return s.store.Get(ctx, accountID)
}

// Events lists the audit log newest first
func (s *Service) Events(ctx context.Context, accountID uuid.UUID, limit int) ([]Event, error) {
	return s.store.ListEvents(ctx, accountID, limit)
}

func manualEvent(action EventAction, reason string, operatorID uuid.UUID) Event {
	return Event{
		Action:      action,
		Reason:      reason,
		ModeratorID: uuid.NullUUID{UUID: operatorID, Valid: true},
	}
}

func validateOperator(operatorID uuid.UUID, reason string) (string, error) {
	if operatorID == uuid.Nil {
		return "", ErrOperatorRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrReasonRequired
	}
	return reason, nil
}

// mutate runs one operator command and returns the event it recorded
func (s *Service) mutate(ctx context.Context, accountID uuid.UUID, fn func(u *AccountUpdate) Event) (*Event, error) {
	var ev Event
	err := s.store.Update(ctx, accountID, s.nowFn(), func(u *AccountUpdate) error {
		ev = fn(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// MuteAccount mutes an account by hand. A zero duration mutes indefinitely.
func (s *Service) MuteAccount(ctx context.Context, accountID, operatorID uuid.UUID, duration time.Duration, reason string) (*Event, error) {
	reason, err := validateOperator(operatorID, reason)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		u.Apply(Mute{Duration: duration, Reason: reason})
		return u.Append(manualEvent(EventMute, reason, operatorID))
	})
}

// UnmuteAccount lifts a mute by hand
func (s *Service) UnmuteAccount(ctx context.Context, accountID, operatorID uuid.UUID, reason string) (*Event, error) {
	reason, err := validateOperator(operatorID, reason)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		u.Apply(ClearMute{})
		return u.Append(manualEvent(EventUnmute, reason, operatorID))
	})
}

// SetProbation opens a probation window ending at until, or closes it when
// until is nil. Used by the external risk process.
func (s *Service) SetProbation(ctx context.Context, accountID, operatorID uuid.UUID, until *time.Time, reason string) (*Event, error) {
	reason, err := validateOperator(operatorID, reason)
	if err != nil {
		return nil, err
	}
	if until != nil && !until.After(s.nowFn()) {
		return nil, ErrProbationInThePast
	}
	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		cmd := SetProbation{Until: until}
		u.Apply(cmd)
		return u.Append(manualEvent(EventAdminNote, cmd.String()+": "+reason, operatorID))
	})
}

// SetRisk stores a risk score computed outside the pipeline
func (s *Service) SetRisk(ctx context.Context, accountID, operatorID uuid.UUID, score uint, reason string) (*Event, error) {
	reason, err := validateOperator(operatorID, reason)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		cmd := SetRisk{Score: score}
		u.Apply(cmd)
		return u.Append(manualEvent(EventAdminNote,
			fmt.Sprintf("%s level=%s: %s", cmd, u.Account.Profile.RiskLevel, reason), operatorID))
	})
}

// SetAutoMute toggles the account's auto-mute opt-out
func (s *Service) SetAutoMute(ctx context.Context, accountID, operatorID uuid.UUID, enabled bool, reason string) (*Event, error) {
	reason, err := validateOperator(operatorID, reason)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		cmd := SetAutoMute{Enabled: enabled}
		u.Apply(cmd)
		return u.Append(manualEvent(EventAdminNote, cmd.String()+": "+reason, operatorID))
	})
}

// ViolationReport is a violation detected outside the pipeline, e.g. by a
// spam or slur filter or by a moderator
type ViolationReport struct {
	Kind        ViolationKind
	Reason      string
	Content     string
	ContentType ContentKind
	ContentID   *uuid.UUID
	OperatorID  *uuid.UUID
}

// RecordViolation increments the matching counter and logs it
func (s *Service) RecordViolation(ctx context.Context, accountID uuid.UUID, rep ViolationReport) (*Event, error) {
	var action EventAction
	switch rep.Kind {
	case ViolationSpam:
		action = EventSpamDetected
	case ViolationSlur:
		action = EventSlurDetected
	case ViolationSpeech:
		action = EventWarning
	default:
		return nil, ErrInvalidViolation
	}
	reason := strings.TrimSpace(rep.Reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	ev := Event{
		Action:             action,
		Reason:             reason,
		ContentType:        rep.ContentType,
		ContentPreview:     textsig.Truncate(rep.Content, PreviewLimit),
		DetectedViolations: []string{"Violation: " + string(rep.Kind)},
		Automated:          rep.OperatorID == nil,
	}
	if rep.Content != "" {
		ev.ContentHash = textsig.Fingerprint(rep.Content)
	}
	if rep.ContentID != nil {
		ev.ContentID = uuid.NullUUID{UUID: *rep.ContentID, Valid: true}
	}
	if rep.OperatorID != nil {
		ev.ModeratorID = uuid.NullUUID{UUID: *rep.OperatorID, Valid: true}
	}

	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		u.Apply(IncrementViolation{Kind: rep.Kind})
		return u.Append(ev)
	})
}

// AddNote appends a free-form operator note
func (s *Service) AddNote(ctx context.Context, accountID, operatorID uuid.UUID, note string) (*Event, error) {
	note, err := validateOperator(operatorID, note)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		return u.Append(manualEvent(EventAdminNote, note, operatorID))
	})
}
