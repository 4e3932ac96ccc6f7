package moderation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwork/moderation-api/internal/pkg/countstore"
)

func TestGateClearsExpiredMute(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	_, err := env.svc.MuteAccount(ctx, id, uuid.New(), time.Minute, "cool off")
	require.NoError(t, err)

	env.now = env.now.Add(time.Minute + time.Millisecond)
	res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "back again"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	p := env.profile(t, id)
	assert.False(t, p.IsMuted)
	assert.Nil(t, p.MuteExpiresAt)

	evs := env.events(t, id)
	require.Len(t, evs, 2)
	assert.Equal(t, EventUnmute, evs[0].Action)
	assert.True(t, evs[0].Automated)
	assert.False(t, evs[0].ModeratorID.Valid)
}

func TestGateMuteExpiryReporting(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	ctx := context.Background()

	indefinite := env.account(30 * 24 * time.Hour)
	_, err := env.svc.MuteAccount(ctx, indefinite, uuid.New(), 0, "until review")
	require.NoError(t, err)

	res, err := env.svc.Gate(ctx, GateRequest{AccountID: indefinite, Kind: ContentKindMessage})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, GateReasonMuted, res.Reason)
	assert.ErrorIs(t, res.Err, ErrMuted)
	assert.Nil(t, res.ExpiresInMinutes)

	timed := env.account(30 * 24 * time.Hour)
	_, err = env.svc.MuteAccount(ctx, timed, uuid.New(), 90*time.Second, "short")
	require.NoError(t, err)

	res, err = env.svc.Gate(ctx, GateRequest{AccountID: timed, Kind: ContentKindComment})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	require.NotNil(t, res.ExpiresInMinutes)
	assert.Equal(t, 2, *res.ExpiresInMinutes)
}

func TestGateProbationLinkRestriction(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	until := env.now.Add(48 * time.Hour)
	_, err := env.svc.SetProbation(ctx, id, uuid.New(), &until, "new account from flagged range")
	require.NoError(t, err)

	res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "check https://example.com"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, GateReasonProbationLink, res.Reason)
	assert.ErrorIs(t, res.Err, ErrProbationLinkRestriction)

	res, err = env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindComment, Content: "check https://example.com"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	env.now = until.Add(time.Second)
	res, err = env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "check https://example.com"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestGateProbationPostLimit(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	until := env.now.Add(24 * time.Hour)
	_, err := env.svc.SetProbation(ctx, id, uuid.New(), &until, "manual review")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "hello"})
		require.NoError(t, err)
		require.True(t, res.Allowed, "post %d", i)
		assert.True(t, res.Reserved)
	}

	res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "hello"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, GateReasonProbationLimit, res.Reason)
	assert.ErrorIs(t, res.Err, ErrProbationPostLimit)

	res, err = env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindComment, Content: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestGateDailyPostCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DailyPostCap = 2
	env := newTestEnv(t, cfg)
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	require.NoError(t, env.counts.Increment(ctx, postCounterName, id.String()))
	require.NoError(t, env.counts.Increment(ctx, postCounterName, id.String()))

	res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "third"})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.False(t, res.Reserved)
	assert.Equal(t, GateReasonDailyPostCap, res.Reason)
	assert.ErrorIs(t, res.Err, ErrDailyPostCap)

	// a rejected gate does not hold on to a slot
	posted, err := env.counts.GetCount(ctx, postCounterName, id.String(), countstore.PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 2, posted)
}

func TestGateReleasedSlotCanBeReused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DailyPostCap = 1
	env := newTestEnv(t, cfg)
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "first"})
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.True(t, res.Reserved)

	res, err = env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "second"})
	require.NoError(t, err)
	assert.Equal(t, GateReasonDailyPostCap, res.Reason)

	env.svc.ReleasePost(ctx, id)

	res, err = env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "second"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestGateConcurrentProbationPosts(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	until := env.now.Add(24 * time.Hour)
	_, err := env.svc.SetProbation(ctx, id, uuid.New(), &until, "manual review")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.svc.Gate(ctx, GateRequest{AccountID: id, Kind: ContentKindPost, Content: "hello"})
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), allowed.Load())
}

func TestGateUnknownAccount(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	_, err := env.svc.Gate(context.Background(), GateRequest{AccountID: uuid.New(), Kind: ContentKindPost})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestOverrideValidation(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	op := uuid.New()
	ctx := context.Background()

	_, err := env.svc.Override(ctx, id, "reverse-mute", "looks fine", uuid.Nil)
	assert.ErrorIs(t, err, ErrOperatorRequired)

	_, err = env.svc.Override(ctx, id, "Reverse Mute", "looks fine", op)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = env.svc.Override(ctx, id, strings.Repeat("a", 65), "looks fine", op)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = env.svc.Override(ctx, id, "reverse-mute", "   ", op)
	assert.ErrorIs(t, err, ErrReasonRequired)

	_, err = env.svc.Override(ctx, uuid.New(), "reverse-mute", "looks fine", op)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	assert.Empty(t, env.events(t, id))
}

func TestOverrideLeavesStateAlone(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	op := uuid.New()
	ctx := context.Background()

	_, err := env.svc.RecordViolation(ctx, id, ViolationReport{Kind: ViolationSlur, Reason: "slur filter"})
	require.NoError(t, err)
	_, err = env.svc.MuteAccount(ctx, id, op, time.Hour, "slur")
	require.NoError(t, err)
	before := env.profile(t, id)

	ev, err := env.svc.Override(ctx, id, "reverse-mute", "false positive", op)
	require.NoError(t, err)
	assert.Equal(t, EventAction("admin-override-reverse-mute"), ev.Action)
	assert.True(t, ev.Override)
	assert.False(t, ev.Automated)
	assert.Equal(t, op, ev.ModeratorID.UUID)
	assert.Equal(t, "false positive", ev.Reason)

	assert.Equal(t, before, env.profile(t, id))
	assert.Len(t, env.events(t, id), 3)
}

func TestOperatorMutatorsRequireOperatorAndReason(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	ctx := context.Background()

	_, err := env.svc.MuteAccount(ctx, id, uuid.Nil, time.Hour, "reason")
	assert.ErrorIs(t, err, ErrOperatorRequired)

	_, err = env.svc.UnmuteAccount(ctx, id, uuid.New(), "")
	assert.ErrorIs(t, err, ErrReasonRequired)

	past := env.now.Add(-time.Hour)
	_, err = env.svc.SetProbation(ctx, id, uuid.New(), &past, "reason")
	assert.ErrorIs(t, err, ErrProbationInThePast)

	_, err = env.svc.RecordViolation(ctx, id, ViolationReport{Kind: "flood", Reason: "x"})
	assert.ErrorIs(t, err, ErrInvalidViolation)

	assert.Empty(t, env.events(t, id))
}

func TestSetRiskDerivesLevel(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)

	ev, err := env.svc.SetRisk(context.Background(), id, uuid.New(), 72, "risk model")
	require.NoError(t, err)
	assert.Equal(t, EventAdminNote, ev.Action)
	assert.Contains(t, ev.Reason, "level=high")

	p := env.profile(t, id)
	assert.Equal(t, uint(72), p.RiskScore)
	assert.Equal(t, RiskHigh, p.RiskLevel)
}

func TestRecordViolationCounters(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	id := env.account(30 * 24 * time.Hour)
	op := uuid.New()
	ctx := context.Background()

	ev, err := env.svc.RecordViolation(ctx, id, ViolationReport{Kind: ViolationSpam, Reason: "link farm", Content: "buy now"})
	require.NoError(t, err)
	assert.Equal(t, EventSpamDetected, ev.Action)
	assert.True(t, ev.Automated)
	assert.NotEmpty(t, ev.ContentHash)

	ev, err = env.svc.RecordViolation(ctx, id, ViolationReport{Kind: ViolationSlur, Reason: "reported", OperatorID: &op})
	require.NoError(t, err)
	assert.Equal(t, EventSlurDetected, ev.Action)
	assert.False(t, ev.Automated)
	assert.Equal(t, op, ev.ModeratorID.UUID)

	p := env.profile(t, id)
	assert.Equal(t, uint(1), p.SpamViolationCount)
	assert.Equal(t, uint(1), p.SlurViolationCount)
	assert.Equal(t, uint(0), p.ViolationCount)
	assert.Equal(t, uint(2), p.TotalViolations())
}

func TestEventLogIsCapped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventCap = 5
	env := newTestEnv(t, cfg)
	id := env.account(30 * 24 * time.Hour)
	op := uuid.New()
	ctx := context.Background()

	var last *Event
	for i := 0; i < 8; i++ {
		ev, err := env.svc.AddNote(ctx, id, op, "note")
		require.NoError(t, err)
		last = ev
	}

	evs := env.events(t, id)
	require.Len(t, evs, 5)
	assert.Equal(t, last.ID, evs[0].ID)
}
