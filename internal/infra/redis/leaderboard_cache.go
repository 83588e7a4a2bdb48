package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const leaderboardVersionKey = "leaderboard:xp:version"

// LeaderboardCache memoizes leaderboard reads per limit. Invalidate bumps a version counter so
// every cached limit goes stale at once:
//
//	GET  leaderboard:xp:version
//	SET  leaderboard:xp:v{version}:{limit} {json} EX ttl
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Leaderboard(ctx context.Context, limit int, load func(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error) {
	version, err := c.version(ctx)
	if err != nil {
		// cache unavailable: serve straight from the store
		return load(ctx, limit)
	}
	key := "leaderboard:xp:v" + strconv.FormatInt(version, 10) + ":" + strconv.Itoa(limit)

	if entries, ok := c.cached(ctx, key); ok {
		return entries, nil
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if entries, ok := c.cached(ctx, key); ok {
			return entries, nil
		}
		entries, err := load(ctx, limit)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(entries); err == nil && c.ttl > 0 {
			_ = c.client.Set(ctx, key, payload, c.ttl).Err()
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

// Invalidate makes every cached leaderboard stale.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, leaderboardVersionKey).Err()
}

func (c *LeaderboardCache) version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, leaderboardVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *LeaderboardCache) cached(ctx context.Context, key string) ([]domain.LeaderboardEntry, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, false
	}
	return entries, true
}
