package moderation

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mwork/moderation-api/internal/pkg/logger"
)

var overrideActionPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidOverrideAction reports whether action can be used in an override tag
func ValidOverrideAction(action string) bool {
	return len(action) <= 64 && overrideActionPattern.MatchString(action)
}

// Override records an operator's reversal or annotation of an automated
// decision. Prior events and counters are left as they are; state changes go
// through the explicit mutators.
func (s *Service) Override(ctx context.Context, accountID uuid.UUID, action, reason string, operatorID uuid.UUID) (*Event, error) {
	if operatorID == uuid.Nil {
		return nil, ErrOperatorRequired
	}
	action = strings.TrimSpace(action)
	if !ValidOverrideAction(action) {
		return nil, ErrInvalidAction
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	ev, err := s.mutate(ctx, accountID, func(u *AccountUpdate) Event {
		return u.Append(Event{
			Action:      EventAction(overridePrefix + action),
			Reason:      reason,
			ModeratorID: uuid.NullUUID{UUID: operatorID, Valid: true},
			Automated:   false,
			Override:    true,
		})
	})
	if err != nil {
		return nil, err
	}

	overrideCount.WithLabelValues(action).Inc()
	logger.LogInfo(ctx, "moderation override recorded",
		"account_id", accountID.String(),
		"operator_id", operatorID.String(),
		"action", string(ev.Action),
	)
	return ev, nil
}
