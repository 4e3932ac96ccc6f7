package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryRepository keeps users in process, for running without Postgres
type MemoryRepository struct {
	byID    *xsync.MapOf[uuid.UUID, User]
	byEmail *xsync.MapOf[string, uuid.UUID]
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    xsync.NewMapOf[uuid.UUID, User](),
		byEmail: xsync.NewMapOf[string, uuid.UUID](),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, u *User) error {
	if _, loaded := r.byEmail.LoadOrStore(u.Email, u.ID); loaded {
		return ErrEmailAlreadyExists
	}
	r.byID.Store(u.ID, *u)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := r.byID.Load(id)
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	id, ok := r.byEmail.Load(email)
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}
