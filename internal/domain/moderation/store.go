package moderation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpdateFunc mutates an account inside the store's atomic unit. Returning an
// error discards every change made through the AccountUpdate.
type UpdateFunc func(u *AccountUpdate) error

// Store persists moderation profiles and the event log. Implementations
// serialize Update per account: read, decide and write happen as one unit.
type Store interface {
	Get(ctx context.Context, accountID uuid.UUID) (*Account, error)
	Update(ctx context.Context, accountID uuid.UUID, now time.Time, fn UpdateFunc) error
	ListEvents(ctx context.Context, accountID uuid.UUID, limit int) ([]Event, error)
}

const defaultEventLimit = 100

// trimEvents keeps the newest keep events, oldest dropped first
func trimEvents(events []Event, keep int) []Event {
	if keep <= 0 || len(events) <= keep {
		return events
	}
	return events[len(events)-keep:]
}
