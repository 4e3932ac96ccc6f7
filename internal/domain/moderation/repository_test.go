package moderation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to MODERATION_TEST_DATABASE_URL and applies the schema.
// Tests using it are skipped when the variable is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("MODERATION_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("MODERATION_TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../../migrations/000001_moderation.up.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func insertTestUser(t *testing.T, db *sqlx.DB, createdAt time.Time, profile *string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO users (id, email, password_hash, created_at, moderation_profile) VALUES ($1, $2, 'x', $3, $4::jsonb)`,
		id, id.String()+"@test.local", createdAt, profile,
	)
	require.NoError(t, err)
	return id
}

func TestPostgresStoreUpdateAndList(t *testing.T) {
	db := openTestDB(t)
	store := NewPostgresStore(db, 3)
	ctx := context.Background()
	id := insertTestUser(t, db, testNow.Add(-48*time.Hour), nil)

	acc, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, NewProfile(), acc.Profile)

	for i := 0; i < 5; i++ {
		err := store.Update(ctx, id, testNow.Add(time.Duration(i)*time.Second), func(u *AccountUpdate) error {
			u.Apply(IncrementViolation{Kind: ViolationSpam})
			u.Append(Event{
				Action:             EventSpamDetected,
				Reason:             "burst",
				DetectedViolations: []string{"Violation: spam"},
				LayerOutputs:       []byte(`{"layer1":{}}`),
			})
			return nil
		})
		require.NoError(t, err)
	}

	acc, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint(5), acc.Profile.SpamViolationCount)

	evs, err := store.ListEvents(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.True(t, evs[0].CreatedAt.After(evs[2].CreatedAt))
	assert.Equal(t, EventSpamDetected, evs[0].Action)
	assert.Equal(t, []string{"Violation: spam"}, []string(evs[0].DetectedViolations))
}

func TestPostgresStoreLegacyProfile(t *testing.T) {
	db := openTestDB(t)
	store := NewPostgresStore(db, 100)
	legacy := `{"violation_count":2}`
	id := insertTestUser(t, db, testNow, &legacy)

	acc, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uint(2), acc.Profile.ViolationCount)
	assert.True(t, acc.Profile.AutoMuteEnabled)
	assert.Equal(t, DefaultBehaviorScore, acc.Profile.BehaviorScore)

	_, err = store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
