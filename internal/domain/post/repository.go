package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines post data access
type Repository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*Post, error)
	// ListRecentByAuthor returns the author's newest submissions created at
	// or after since, newest first
	ListRecentByAuthor(ctx context.Context, authorID uuid.UUID, since time.Time, limit int) ([]*Post, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates post repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, p *Post) error {
	query := `
		INSERT INTO posts (id, author_id, parent_id, kind, content, status, moderation_action, intent_category, dampened_until, created_at)
		VALUES (:id, :author_id, :parent_id, :kind, :content, :status, :moderation_action, :intent_category, :dampened_until, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("post repository create: %w", err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	query := `
		SELECT id, author_id, parent_id, kind, content, status, moderation_action, intent_category, dampened_until, created_at
		FROM posts WHERE id = $1
	`
	var p Post
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("post repository get: %w", err)
	}
	return &p, nil
}

func (r *repository) ListRecentByAuthor(ctx context.Context, authorID uuid.UUID, since time.Time, limit int) ([]*Post, error) {
	query := `
		SELECT id, author_id, parent_id, kind, content, status, moderation_action, intent_category, dampened_until, created_at
		FROM posts
		WHERE author_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	posts := []*Post{}
	if err := r.db.SelectContext(ctx, &posts, query, authorID, since, limit); err != nil {
		return nil, fmt.Errorf("post repository list recent: %w", err)
	}
	return posts, nil
}
