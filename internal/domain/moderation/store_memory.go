package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// AccountLookup resolves the creation time of an account the store has not
// seen yet. ok=false means the account does not exist.
type AccountLookup func(ctx context.Context, id uuid.UUID) (createdAt time.Time, ok bool, err error)

type memAccount struct {
	mu        sync.Mutex
	createdAt time.Time
	profile   []byte
	events    []Event
}

// MemoryStore keeps accounts in process. Profiles are held in their encoded
// form so that reads go through the same normalization as Postgres rows.
type MemoryStore struct {
	accounts *xsync.MapOf[uuid.UUID, *memAccount]
	lookup   AccountLookup
	eventCap int
}

// NewMemoryStore creates an in-memory store. lookup may be nil, in which case
// only accounts added with Register exist.
func NewMemoryStore(eventCap int, lookup AccountLookup) *MemoryStore {
	return &MemoryStore{
		accounts: xsync.NewMapOf[uuid.UUID, *memAccount](),
		lookup:   lookup,
		eventCap: eventCap,
	}
}

// Register adds an account with no moderation profile, like a row created
// before the moderation columns existed
func (s *MemoryStore) Register(id uuid.UUID, createdAt time.Time) {
	s.accounts.LoadOrCompute(id, func() *memAccount {
		return &memAccount{createdAt: createdAt}
	})
}

// SetRawProfile overwrites the stored profile bytes
func (s *MemoryStore) SetRawProfile(id uuid.UUID, raw []byte) error {
	acc, ok := s.accounts.Load(id)
	if !ok {
		return ErrAccountNotFound
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	acc.profile = raw
	return nil
}

func (s *MemoryStore) load(ctx context.Context, id uuid.UUID) (*memAccount, error) {
	if acc, ok := s.accounts.Load(id); ok {
		return acc, nil
	}
	if s.lookup == nil {
		return nil, ErrAccountNotFound
	}
	createdAt, ok, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	acc, _ := s.accounts.LoadOrCompute(id, func() *memAccount {
		return &memAccount{createdAt: createdAt}
	})
	return acc, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	acc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	profile, err := decodeProfile(acc.profile)
	if err != nil {
		return nil, err
	}
	return &Account{ID: id, CreatedAt: acc.createdAt, Profile: profile}, nil
}

func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, now time.Time, fn UpdateFunc) error {
	acc, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	profile, err := decodeProfile(acc.profile)
	if err != nil {
		return err
	}
	u := newAccountUpdate(Account{ID: id, CreatedAt: acc.createdAt, Profile: profile}, now)
	if err := fn(u); err != nil {
		return err
	}

	if u.Changed() || acc.profile == nil {
		raw, err := encodeProfile(u.Account.Profile)
		if err != nil {
			return err
		}
		acc.profile = raw
	}
	if evs := u.Events(); len(evs) > 0 {
		acc.events = trimEvents(append(acc.events, evs...), s.eventCap)
	}
	return nil
}

// ListEvents returns events newest first
func (s *MemoryStore) ListEvents(ctx context.Context, id uuid.UUID, limit int) ([]Event, error) {
	acc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	out := make([]Event, 0, len(acc.events))
	for i := len(acc.events) - 1; i >= 0; i-- {
		out = append(out, acc.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
