package moderation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwork/moderation-api/internal/pkg/countstore"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type memArchive struct {
	mu      sync.Mutex
	objects map[string]string
}

func (a *memArchive) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	b, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = string(b)
	return nil
}

type testEnv struct {
	svc     *Service
	store   *MemoryStore
	counts  *countstore.MemCountStore
	archive *memArchive
	now     time.Time
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   NewMemoryStore(cfg.EventCap, nil),
		counts:  countstore.NewMemCountStore(),
		archive: &memArchive{objects: map[string]string{}},
		now:     testNow,
	}
	env.svc = NewService(env.store, env.counts, env.archive, cfg).WithClock(func() time.Time { return env.now })
	return env
}

func (e *testEnv) account(age time.Duration) uuid.UUID {
	id := uuid.New()
	e.store.Register(id, e.now.Add(-age))
	return id
}

func (e *testEnv) profile(t *testing.T, id uuid.UUID) Profile {
	t.Helper()
	acc, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	return acc.Profile
}

func (e *testEnv) events(t *testing.T, id uuid.UUID) []Event {
	t.Helper()
	evs, err := e.store.ListEvents(context.Background(), id, 0)
	require.NoError(t, err)
	return evs
}

func freshActivity(now time.Time) []RecentContent {
	topics := []string{"good morning everyone", "anyone watching the game tonight", "lunch was great", "new photos are up", "see you all tomorrow"}
	out := make([]RecentContent, len(topics))
	for i, c := range topics {
		out[i] = RecentContent{Content: c, Timestamp: now.Add(-time.Duration(i+1) * 30 * time.Second)}
	}
	return out
}

func TestEvaluateThreatFromNewAccountDefaultWeights(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(48 * time.Hour)

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{
		AccountID:   id,
		Content:     "I will find you and hurt you",
		ContentType: ContentKindPost,
	})

	assert.Equal(t, IntentDangerous, res.LayerOutputs.Layer2.Category)
	assert.Equal(t, 90, res.LayerOutputs.Layer2.Score)
	assert.Equal(t, 30, res.LayerOutputs.Layer3.AccountAgeScore)
	assert.Equal(t, 6, res.LayerOutputs.Layer3.Score)
	assert.Equal(t, 56, res.LayerOutputs.Layer4.CombinedScore)
	assert.Equal(t, ActionQueueForReview, res.Action)
	assert.Equal(t, QueuePriorityHigh, res.QueuePriority)
	assert.False(t, res.Blocked)

	evs := env.events(t, id)
	require.Len(t, evs, 1)
	assert.Equal(t, EventPipelineDecided, evs[0].Action)
	assert.Contains(t, evs[0].DetectedViolations, "Intent: dangerous")
	assert.Equal(t, uint(0), env.profile(t, id).ViolationCount)
}

func TestEvaluateThreatHardBlockWithIntentHeavyWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Intent, cfg.Weights.Behavior = 0.9, 0.1
	env := newTestEnv(t, cfg)
	id := env.account(48 * time.Hour)
	contentID := uuid.New()

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{
		AccountID:   id,
		Content:     "I will find you and hurt you",
		ContentType: ContentKindPost,
		ContentID:   &contentID,
	})

	assert.Equal(t, ActionHardBlock, res.Action)
	assert.True(t, res.Blocked)
	assert.Equal(t, 95, res.Confidence)
	assert.GreaterOrEqual(t, res.LayerOutputs.Layer4.CombinedScore, 80)

	p := env.profile(t, id)
	assert.Equal(t, uint(1), p.ViolationCount)
	require.NotNil(t, p.LastViolationAt)
	assert.True(t, p.LastViolationAt.Equal(env.now))
	assert.False(t, p.IsMuted)

	evs := env.events(t, id)
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, EventHardBlock, ev.Action)
	assert.True(t, ev.Automated)
	assert.Equal(t, contentID, ev.ContentID.UUID)
	assert.Equal(t, "I will find you and hurt you", ev.ContentPreview)
	assert.NotEmpty(t, ev.ContentHash)
	assert.NotEmpty(t, ev.LayerOutputs)
	require.NotNil(t, res.EventID)
	assert.Equal(t, ev.ID, *res.EventID)

	require.NotEmpty(t, ev.EvidenceKey)
	assert.Equal(t, "I will find you and hurt you", env.archive.objects[ev.EvidenceKey])
}

func TestEvaluateExpressiveProfanityIsAllowed(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(90 * 24 * time.Hour)

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "this is so fucking good"})

	assert.Equal(t, IntentExpressive, res.LayerOutputs.Layer2.Category)
	assert.Equal(t, 20, res.LayerOutputs.Layer2.Score)
	assert.Equal(t, ActionAllow, res.Action)
	assert.False(t, res.Blocked)
	assert.Nil(t, res.EventID)
	assert.Empty(t, env.events(t, id))
}

func TestEvaluateTempMuteEnforced(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(2 * time.Hour)

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{
		AccountID:     id,
		Content:       "I will find you and hurt you",
		ContentType:   ContentKindComment,
		RecentContent: freshActivity(env.now),
	})

	// 0.30*40 + 0.20*50 = 22; 0.6*90 + 0.4*22 = 62.8
	require.Equal(t, 22, res.LayerOutputs.Layer3.Score)
	assert.Equal(t, ActionTempMute, res.Action)
	assert.True(t, res.Blocked)
	assert.Equal(t, 60, res.LayerOutputs.Layer4.MuteDurationMinutes)

	p := env.profile(t, id)
	assert.True(t, p.IsMuted)
	require.NotNil(t, p.MuteExpiresAt)
	assert.True(t, p.MuteExpiresAt.Equal(env.now.Add(time.Hour)))
	assert.Equal(t, uint(1), p.ViolationCount)

	evs := env.events(t, id)
	require.Len(t, evs, 1)
	assert.Equal(t, EventMute, evs[0].Action)

	gate, err := env.svc.Gate(context.Background(), GateRequest{AccountID: id, Kind: ContentKindComment, Content: "hello"})
	require.NoError(t, err)
	assert.False(t, gate.Allowed)
	assert.Equal(t, GateReasonMuted, gate.Reason)
	require.NotNil(t, gate.ExpiresInMinutes)
	assert.Equal(t, 60, *gate.ExpiresInMinutes)
}

func TestEvaluateTempMuteKeepsLongerMute(t *testing.T) {
	tests := []struct {
		name    string
		manual  time.Duration
		expires time.Duration
	}{
		{name: "indefinite", manual: 0},
		{name: "longer timed", manual: 3 * time.Hour, expires: 3 * time.Hour},
		{name: "shorter timed is extended", manual: 10 * time.Minute, expires: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, DefaultConfig())
			id := env.account(2 * time.Hour)
			ctx := context.Background()

			_, err := env.svc.MuteAccount(ctx, id, uuid.New(), tt.manual, "manual mute")
			require.NoError(t, err)

			res := env.svc.Evaluate(ctx, EvaluateRequest{
				AccountID:     id,
				Content:       "I will find you and hurt you",
				ContentType:   ContentKindComment,
				RecentContent: freshActivity(env.now),
			})
			require.Equal(t, ActionTempMute, res.Action)

			p := env.profile(t, id)
			assert.True(t, p.IsMuted)
			if tt.expires == 0 {
				assert.Nil(t, p.MuteExpiresAt)
			} else {
				require.NotNil(t, p.MuteExpiresAt)
				assert.True(t, p.MuteExpiresAt.Equal(env.now.Add(tt.expires)))
			}
			if tt.expires != time.Hour {
				assert.Equal(t, "manual mute", p.MuteReason)
			}
		})
	}
}

func TestDecisionMetricEnforcedLabel(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)

	allowEnforced := testutil.ToFloat64(decisionCount.WithLabelValues(string(ActionAllow), "true"))
	allowPlain := testutil.ToFloat64(decisionCount.WithLabelValues(string(ActionAllow), "false"))

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "lovely weather today", ContentType: ContentKindPost})
	require.Equal(t, ActionAllow, res.Action)
	assert.False(t, res.Enforced())

	assert.Equal(t, allowEnforced, testutil.ToFloat64(decisionCount.WithLabelValues(string(ActionAllow), "true")))
	assert.Equal(t, allowPlain+1, testutil.ToFloat64(decisionCount.WithLabelValues(string(ActionAllow), "false")))

	muteEnforced := testutil.ToFloat64(decisionCount.WithLabelValues(string(ActionTempMute), "true"))
	muted := env.account(2 * time.Hour)
	res = env.svc.Evaluate(context.Background(), EvaluateRequest{
		AccountID:     muted,
		Content:       "I will find you and hurt you",
		ContentType:   ContentKindComment,
		RecentContent: freshActivity(env.now),
	})
	require.Equal(t, ActionTempMute, res.Action)
	assert.True(t, res.Enforced())
	assert.Equal(t, muteEnforced+1, testutil.ToFloat64(decisionCount.WithLabelValues(string(ActionTempMute), "true")))
}

func TestEvaluateTempMuteRespectsAutoMuteOptOut(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(2 * time.Hour)
	ctx := context.Background()

	_, err := env.svc.SetAutoMute(ctx, id, uuid.New(), false, "support ticket 42")
	require.NoError(t, err)

	res := env.svc.Evaluate(ctx, EvaluateRequest{AccountID: id, Content: "I will find you and hurt you", RecentContent: freshActivity(env.now)})
	assert.Equal(t, ActionTempMute, res.Action)
	assert.True(t, res.Blocked)

	p := env.profile(t, id)
	assert.False(t, p.IsMuted)
	assert.Equal(t, uint(1), p.ViolationCount)
	assert.Equal(t, EventWarning, env.events(t, id)[0].Action)
}

func TestEvaluatePassiveGuardSkipsHardBlock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Intent, cfg.Weights.Behavior = 0.9, 0.1
	cfg.LegacyEnforcement = false
	env := newTestEnv(t, cfg)
	id := env.account(48 * time.Hour)

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "I will find you and hurt you"})

	assert.Equal(t, ActionAllow, res.Action)
	assert.False(t, res.Blocked)
	assert.Equal(t, ActionHardBlock, res.ShadowAction)
	assert.Equal(t, ActionHardBlock, res.LayerOutputs.Layer4.Action)
	assert.Contains(t, res.Reason, "would have applied HARD_BLOCK")

	p := env.profile(t, id)
	assert.Equal(t, uint(0), p.ViolationCount)
	assert.Nil(t, p.LastViolationAt)
	assert.False(t, p.IsMuted)

	evs := env.events(t, id)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Automated)
	assert.True(t, evs[0].Skipped)
	assert.Equal(t, EventPipelineDecided, evs[0].Action)
	assert.Empty(t, evs[0].EvidenceKey)
	assert.Empty(t, env.archive.objects)
}

func TestEvaluatePassiveGuardLeavesOtherActionsAlone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LegacyEnforcement = false
	env := newTestEnv(t, cfg)
	id := env.account(48 * time.Hour)

	res := env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "I will find you and hurt you"})
	assert.Equal(t, ActionQueueForReview, res.Action)
	assert.Empty(t, res.ShadowAction)
	assert.False(t, env.events(t, id)[0].Skipped)
}

func TestEvaluateDampenDoesNotTouchCounters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds.NeutralDampen = 0
	env := newTestEnv(t, cfg)
	id := env.account(48 * time.Hour)
	ctx := context.Background()

	_, err := env.svc.RecordViolation(ctx, id, ViolationReport{Kind: ViolationSpam, Reason: "link farm"})
	require.NoError(t, err)
	before := env.profile(t, id)

	for i := 0; i < 3; i++ {
		res := env.svc.Evaluate(ctx, EvaluateRequest{AccountID: id, Content: fmt.Sprintf("a nice day number %d", i)})
		require.Equal(t, ActionVisibilityDampen, res.Action)
		assert.Equal(t, 5, res.DampeningDurationMinutes)
		assert.False(t, res.Blocked)
	}

	after := env.profile(t, id)
	assert.Equal(t, before.ViolationCount, after.ViolationCount)
	assert.Equal(t, before.SpamViolationCount, after.SpamViolationCount)
	assert.Equal(t, before.SlurViolationCount, after.SlurViolationCount)
	assert.Equal(t, before.LastViolationAt, after.LastViolationAt)
	assert.False(t, after.IsMuted)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Update(ctx context.Context, id uuid.UUID, now time.Time, fn UpdateFunc) error {
	return errors.New("connection refused")
}

func TestEvaluateFailsOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Intent, cfg.Weights.Behavior = 0.9, 0.1
	store := failingStore{NewMemoryStore(cfg.EventCap, nil)}
	svc := NewService(store, countstore.NewMemCountStore(), nil, cfg)

	res := svc.Evaluate(context.Background(), EvaluateRequest{AccountID: uuid.New(), Content: "I will find you and hurt you"})

	assert.Equal(t, ActionAllow, res.Action)
	assert.False(t, res.Blocked)
	assert.Equal(t, 0, res.Confidence)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reason, "connection refused")
}

func TestEvaluateUnknownAccountFailsOpen(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	res := env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: uuid.New(), Content: "hello"})
	assert.Equal(t, ActionAllow, res.Action)
	assert.True(t, res.Degraded)
}

func TestEvaluateAppliesDecayOnce(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(365 * 24 * time.Hour)
	last := env.now.Add(-8 * 24 * time.Hour)
	raw := fmt.Sprintf(`{"violation_count":2,"spam_violation_count":1,"last_violation_at":%q}`, last.Format(time.RFC3339))
	require.NoError(t, env.store.SetRawProfile(id, []byte(raw)))

	ctx := context.Background()
	env.svc.Evaluate(ctx, EvaluateRequest{AccountID: id, Content: "hello there"})

	p := env.profile(t, id)
	assert.Equal(t, uint(1), p.ViolationCount)
	assert.Equal(t, uint(0), p.SpamViolationCount)
	require.NotNil(t, p.LastDecayAppliedAt)
	assert.True(t, p.LastDecayAppliedAt.Equal(env.now))

	env.now = env.now.Add(time.Hour)
	env.svc.Evaluate(ctx, EvaluateRequest{AccountID: id, Content: "hello again"})
	assert.Equal(t, uint(1), env.profile(t, id).ViolationCount)

	decays := 0
	for _, ev := range env.events(t, id) {
		if ev.Action == EventDecayApplied {
			decays++
		}
	}
	assert.Equal(t, 1, decays)
}

func TestEvaluateNoDecayAfterRecentViolation(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(365 * 24 * time.Hour)
	last := env.now.Add(-2 * 24 * time.Hour)
	raw := fmt.Sprintf(`{"violation_count":2,"last_violation_at":%q}`, last.Format(time.RFC3339))
	require.NoError(t, env.store.SetRawProfile(id, []byte(raw)))

	env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "hello there"})
	assert.Equal(t, uint(2), env.profile(t, id).ViolationCount)
}

func TestEvaluateUpdatesSoftReputation(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(48 * time.Hour)

	assert.Equal(t, DefaultBehaviorScore, env.profile(t, id).BehaviorScore)
	env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "hello there"})
	assert.Equal(t, uint(94), env.profile(t, id).BehaviorScore)
}

func TestPreviewDoesNotWrite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Intent, cfg.Weights.Behavior = 0.9, 0.1
	env := newTestEnv(t, cfg)
	id := env.account(48 * time.Hour)

	res, err := env.svc.Preview(context.Background(), EvaluateRequest{AccountID: id, Content: "I will find you and hurt you"})
	require.NoError(t, err)
	assert.Equal(t, ActionHardBlock, res.Action)
	assert.Empty(t, env.events(t, id))
	assert.Equal(t, uint(0), env.profile(t, id).ViolationCount)

	_, err = env.svc.Preview(context.Background(), EvaluateRequest{AccountID: uuid.New(), Content: "x"})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestEvaluateConcurrentSubmissionsCountEveryViolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Intent, cfg.Weights.Behavior = 0.9, 0.1
	env := newTestEnv(t, cfg)
	id := env.account(48 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env.svc.Evaluate(context.Background(), EvaluateRequest{AccountID: id, Content: "I will find you and hurt you"})
		}()
	}
	wg.Wait()

	assert.Equal(t, uint(20), env.profile(t, id).ViolationCount)
	assert.Len(t, env.events(t, id), 20)
}
