package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKey = "presence:contractors"

// RedisPresenceStore mirrors online contractors into a single ZSet keyed by
// heartbeat timestamp. It backs the debug surface only; the in-process room
// registry stays authoritative for targeting.
type RedisPresenceStore struct {
	rdb    *redis.Client
	window time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, window time.Duration) *RedisPresenceStore {
	if window <= 0 {
		window = 45 * time.Second
	}
	return &RedisPresenceStore{rdb: rdb, window: window}
}

// MarkOnline adds/updates the contractor with the current timestamp.
func (p *RedisPresenceStore) MarkOnline(
	ctx context.Context,
	contractorID string,
	ttl time.Duration,
) error {
	now := time.Now().Unix()
	if err := p.rdb.ZAdd(ctx, presenceKey, redis.Z{
		Score:  float64(now),
		Member: contractorID,
	}).Err(); err != nil {
		return err
	}
	// Expire the whole ZSet so an idle deployment doesn't leak memory.
	return p.rdb.Expire(ctx, presenceKey, ttl*2).Err()
}

func (p *RedisPresenceStore) MarkOffline(ctx context.Context, contractorID string) error {
	return p.rdb.ZRem(ctx, presenceKey, contractorID).Err()
}

// OnlineContractors returns ids whose heartbeat falls within the window,
// trimming stale members first so the set is self-cleaning.
func (p *RedisPresenceStore) OnlineContractors(ctx context.Context) ([]string, error) {
	threshold := time.Now().Add(-p.window).Unix()
	if err := p.rdb.ZRemRangeByScore(ctx, presenceKey, "-inf", strconv.FormatInt(threshold, 10)).Err(); err != nil {
		return nil, err
	}
	return p.rdb.ZRange(ctx, presenceKey, 0, -1).Result()
}
