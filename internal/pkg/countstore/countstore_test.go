package countstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	c, err := cs.GetCount(ctx, "posts", "u1", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, "posts", "u1"))
	assert.NoError(cs.Increment(ctx, "posts", "u1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, "posts", "u1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	c, err = cs.GetCount(ctx, "posts", "u2", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemCountStoreDayRollover(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	cs := NewMemCountStore().WithClock(func() time.Time { return now })

	require.NoError(t, cs.Increment(ctx, "posts", "u1"))
	now = now.Add(2 * time.Minute)

	day, err := cs.GetCount(ctx, "posts", "u1", PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 0, day)

	total, err := cs.GetCount(ctx, "posts", "u1", PeriodTotal)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	cs := NewMemCountStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = cs.Increment(ctx, "posts", "u1")
			}
		}()
	}
	wg.Wait()

	c, err := cs.GetCount(ctx, "posts", "u1", PeriodTotal)
	require.NoError(t, err)
	assert.Equal(t, 400, c)
}

func TestMemCountStoreReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	cs := NewMemCountStore()

	n, err := cs.IncrementAndGet(ctx, "posts", "u1", PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = cs.IncrementAndGet(ctx, "posts", "u1", PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, cs.Decrement(ctx, "posts", "u1"))
	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err := cs.GetCount(ctx, "posts", "u1", period)
		require.NoError(t, err)
		assert.Equal(t, 1, c, period)
	}

	// never below zero
	require.NoError(t, cs.Decrement(ctx, "posts", "u2"))
	c, err := cs.GetCount(ctx, "posts", "u2", PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 0, c)
}

func TestMemCountStoreConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	cs := NewMemCountStore()
	const limit = 3

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := cs.IncrementAndGet(ctx, "posts", "u1", PeriodDay)
			if err != nil {
				return
			}
			if n > limit {
				_ = cs.Decrement(ctx, "posts", "u1")
				return
			}
			mu.Lock()
			reserved++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, reserved)
	c, err := cs.GetCount(ctx, "posts", "u1", PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, limit, c)
}

func TestRedisCountStoreBasics(t *testing.T) {
	ctx := context.Background()
	opt, err := redis.ParseURL("redis://localhost:6379/0")
	require.NoError(t, err)
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	cs := NewRedisCountStore(client)
	val := "test-" + time.Now().Format(time.RFC3339Nano)

	c, err := cs.GetCount(ctx, "posts", val, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	require.NoError(t, cs.Increment(ctx, "posts", val))
	c, err = cs.GetCount(ctx, "posts", val, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = cs.IncrementAndGet(ctx, "posts", val, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 2, c)
	require.NoError(t, cs.Decrement(ctx, "posts", val))
	c, err = cs.GetCount(ctx, "posts", val, PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, 1, c)
}
