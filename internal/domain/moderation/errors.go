package moderation

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")

	// Gate rejections
	ErrMuted                    = errors.New("account is muted")
	ErrProbationPostLimit       = errors.New("probation post limit reached")
	ErrProbationLinkRestriction = errors.New("links are not allowed during probation")
	ErrDailyPostCap             = errors.New("daily post cap reached")

	// Override / admin validation
	ErrOperatorRequired   = errors.New("operator id is required")
	ErrReasonRequired     = errors.New("reason is required")
	ErrInvalidAction      = errors.New("invalid override action")
	ErrInvalidViolation   = errors.New("invalid violation kind")
	ErrProbationInThePast = errors.New("probation end must be in the future")
)
