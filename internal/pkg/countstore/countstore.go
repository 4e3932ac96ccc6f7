package countstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

// CountStore keeps rolling per-key counters bucketed by UTC hour and day.
type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	// IncrementAndGet increments every bucket and returns the new count of the
	// given period, so callers can reserve a slot against a cap atomically.
	IncrementAndGet(ctx context.Context, name, val, period string) (int, error)
	// Decrement gives back a slot taken by IncrementAndGet.
	Decrement(ctx context.Context, name, val string) error
}

var periods = []string{PeriodTotal, PeriodDay, PeriodHour}

func periodBucket(name, val, period string, now time.Time) string {
	now = now.UTC()
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.DateOnly))
	case PeriodHour:
		return fmt.Sprintf("%s/%s/%s", name, val, now.Format(time.RFC3339)[0:13])
	default:
		log.Warn().Str("period", period).Msg("unhandled counter period")
		return fmt.Sprintf("%s/%s", name, val)
	}
}
