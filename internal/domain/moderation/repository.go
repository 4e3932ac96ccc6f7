package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// PostgresStore keeps the profile in users.moderation_profile and the log in
// moderation_events. Update holds a row lock on the user for its duration.
type PostgresStore struct {
	db       *sqlx.DB
	eventCap int
}

// NewPostgresStore creates a Postgres-backed store
func NewPostgresStore(db *sqlx.DB, eventCap int) *PostgresStore {
	return &PostgresStore{db: db, eventCap: eventCap}
}

type accountRow struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Profile   []byte    `db:"moderation_profile"`
}

func (r accountRow) account() (*Account, error) {
	profile, err := decodeProfile(r.Profile)
	if err != nil {
		return nil, err
	}
	return &Account{ID: r.ID, CreatedAt: r.CreatedAt, Profile: profile}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var row accountRow
	err := s.db.GetContext(ctx2, &row,
		`SELECT id, created_at, moderation_profile FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("moderation store get: %w", err)
	}
	return row.account()
}

func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, now time.Time, fn UpdateFunc) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("moderation store begin tx: %w", err)
	}
	defer tx.Rollback()

	var row accountRow
	err = tx.GetContext(ctx2, &row,
		`SELECT id, created_at, moderation_profile FROM users WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("moderation store lock account: %w", err)
	}
	acc, err := row.account()
	if err != nil {
		return err
	}

	u := newAccountUpdate(*acc, now)
	if err := fn(u); err != nil {
		return err
	}

	// legacy rows get their materialized profile written on first touch
	if u.Changed() || row.Profile == nil {
		raw, err := encodeProfile(u.Account.Profile)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx2,
			`UPDATE users SET moderation_profile = $2::jsonb, updated_at = NOW() WHERE id = $1`,
			id, string(raw)); err != nil {
			return fmt.Errorf("moderation store save profile: %w", err)
		}
	}

	if evs := u.Events(); len(evs) > 0 {
		for i := range evs {
			if err := insertEvent(ctx2, tx, &evs[i]); err != nil {
				return err
			}
		}
		if err := s.trim(ctx2, tx, id); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("moderation store commit: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, ev *Event) error {
	layers := "{}"
	if len(ev.LayerOutputs) > 0 {
		layers = string(ev.LayerOutputs)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO moderation_events (
			id, user_id, action, reason, content_type, content_id, content_preview,
			content_hash, detected_violations, moderator_id, automated, override,
			skipped, evidence_key, layer_outputs, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::jsonb, $16)
	`,
		ev.ID, ev.AccountID, ev.Action, ev.Reason, ev.ContentType, ev.ContentID, ev.ContentPreview,
		ev.ContentHash, ev.DetectedViolations, ev.ModeratorID, ev.Automated, ev.Override,
		ev.Skipped, ev.EvidenceKey, layers, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("moderation store insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) trim(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	if s.eventCap <= 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		DELETE FROM moderation_events
		WHERE user_id = $1 AND seq NOT IN (
			SELECT seq FROM moderation_events
			WHERE user_id = $1
			ORDER BY seq DESC
			LIMIT $2
		)
	`, id, s.eventCap)
	if err != nil {
		return fmt.Errorf("moderation store trim events: %w", err)
	}
	return nil
}

// ListEvents returns events newest first
func (s *PostgresStore) ListEvents(ctx context.Context, id uuid.UUID, limit int) ([]Event, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = s.eventCap
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}

	events := []Event{}
	err := s.db.SelectContext(ctx2, &events, `
		SELECT id, user_id, action, reason, content_type, content_id, content_preview,
		       content_hash, detected_violations, moderator_id, automated, override,
		       skipped, evidence_key, layer_outputs, created_at
		FROM moderation_events
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("moderation store list events: %w", err)
	}
	return events, nil
}
