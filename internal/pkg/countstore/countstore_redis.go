package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCountPrefix = "modcount/"

type RedisCountStore struct {
	Client *redis.Client
}

func NewRedisCountStore(client *redis.Client) *RedisCountStore {
	return &RedisCountStore{Client: client}
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := redisCountPrefix + periodBucket(name, val, period, time.Now())
	c, err := s.Client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return c, nil
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	_, err := s.IncrementAndGet(ctx, name, val, PeriodTotal)
	return err
}

func (s *RedisCountStore) IncrementAndGet(ctx context.Context, name, val, period string) (int, error) {
	cmds, err := s.adjust(ctx, name, val, 1)
	if err != nil {
		return 0, err
	}
	cmd, ok := cmds[period]
	if !ok {
		cmd = cmds[PeriodTotal]
	}
	return int(cmd.Val()), nil
}

func (s *RedisCountStore) Decrement(ctx context.Context, name, val string) error {
	_, err := s.adjust(ctx, name, val, -1)
	return err
}

// adjust moves all three buckets by delta in a single round-trip
func (s *RedisCountStore) adjust(ctx context.Context, name, val string, delta int64) (map[string]*redis.IntCmd, error) {
	now := time.Now()
	multi := s.Client.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(periods))

	key := redisCountPrefix + periodBucket(name, val, PeriodHour, now)
	cmds[PeriodHour] = multi.IncrBy(ctx, key, delta)
	multi.Expire(ctx, key, 2*time.Hour)

	key = redisCountPrefix + periodBucket(name, val, PeriodDay, now)
	cmds[PeriodDay] = multi.IncrBy(ctx, key, delta)
	multi.Expire(ctx, key, 48*time.Hour)

	key = redisCountPrefix + periodBucket(name, val, PeriodTotal, now)
	cmds[PeriodTotal] = multi.IncrBy(ctx, key, delta)

	if _, err := multi.Exec(ctx); err != nil {
		return nil, err
	}
	return cmds, nil
}
