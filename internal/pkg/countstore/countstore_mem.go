package countstore

import (
	"context"
	"sync"
	"time"
)

// MemCountStore is an in-process CountStore for development and tests.
// Old buckets are never evicted.
type MemCountStore struct {
	mu     sync.Mutex
	counts map[string]int
	nowFn  func() time.Time
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts: make(map[string]int),
		nowFn:  time.Now,
	}
}

// WithClock replaces the bucket clock; used by tests that cross day boundaries.
func (s *MemCountStore) WithClock(nowFn func() time.Time) *MemCountStore {
	s.nowFn = nowFn
	return s
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[periodBucket(name, val, period, s.nowFn())], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	_, err := s.IncrementAndGet(ctx, name, val, PeriodTotal)
	return err
}

func (s *MemCountStore) IncrementAndGet(ctx context.Context, name, val, period string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	for _, p := range periods {
		s.counts[periodBucket(name, val, p, now)]++
	}
	return s.counts[periodBucket(name, val, period, now)], nil
}

func (s *MemCountStore) Decrement(ctx context.Context, name, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	for _, p := range periods {
		if key := periodBucket(name, val, p, now); s.counts[key] > 0 {
			s.counts[key]--
		}
	}
	return nil
}
