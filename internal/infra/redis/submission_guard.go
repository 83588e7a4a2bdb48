package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubmissionGuard marks submissions in flight across instances with SET NX:
//
//	SET quiz:submission:{user}:{quiz}:{lesson}:{course} 1 NX EX ttl
type SubmissionGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmissionGuard(client *redis.Client, ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{client: client, ttl: ttl}
}

func (g *SubmissionGuard) Acquire(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, submissionKey(key), "1", g.ttl).Result()
}

// Release is best effort; the TTL clears marks that could not be deleted.
func (g *SubmissionGuard) Release(ctx context.Context, key string) {
	_ = g.client.Del(ctx, submissionKey(key)).Err()
}

func submissionKey(key string) string {
	return "quiz:submission:" + key
}
