package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

// RedisTracker keeps last-seen timestamps in a redis ZSET so presence
// survives restarts and is shared across server instances.
type RedisTracker struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisTracker(rdb *redis.Client, window time.Duration) *RedisTracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisTracker{rdb: rdb, window: window}
}

func (t *RedisTracker) Touch(ctx context.Context, username string) error {
	err := t.rdb.ZAdd(ctx, onlineKey, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: username,
	}).Err()
	if err != nil {
		return err
	}
	// Expire the whole set so an idle server does not leak the key.
	return t.rdb.Expire(ctx, onlineKey, t.window*2).Err()
}

func (t *RedisTracker) trim(ctx context.Context) {
	threshold := time.Now().Add(-t.window).Unix()
	t.rdb.ZRemRangeByScore(ctx, onlineKey, "-inf", strconv.FormatInt(threshold, 10))
}

func (t *RedisTracker) Online(ctx context.Context) ([]string, error) {
	t.trim(ctx)
	return t.rdb.ZRange(ctx, onlineKey, 0, -1).Result()
}

func (t *RedisTracker) IsOnline(ctx context.Context, username string) (bool, error) {
	t.trim(ctx)
	_, err := t.rdb.ZScore(ctx, onlineKey, username).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
