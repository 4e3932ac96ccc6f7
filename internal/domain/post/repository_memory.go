package post

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps posts in process
type MemoryRepository struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*Post
	byAuthor map[uuid.UUID][]*Post
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:     map[uuid.UUID]*Post{},
		byAuthor: map[uuid.UUID][]*Post{},
	}
}

func (r *MemoryRepository) Create(ctx context.Context, p *Post) error {
	cp := *p
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = &cp
	r.byAuthor[p.AuthorID] = append(r.byAuthor[p.AuthorID], &cp)
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) ListRecentByAuthor(ctx context.Context, authorID uuid.UUID, since time.Time, limit int) ([]*Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Post{}
	for _, p := range r.byAuthor[authorID] {
		if p.CreatedAt.Before(since) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
