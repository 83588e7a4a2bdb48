package memory

import (
	"context"
	"sync"
	"time"
)

// SubmissionGuard marks submissions in flight inside this process. Marks expire after ttl
// so a crashed request cannot block a key forever.
type SubmissionGuard struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.Mutex
	inFlight map[string]time.Time
}

func NewSubmissionGuard(ttl time.Duration) *SubmissionGuard {
	return &SubmissionGuard{
		ttl:      ttl,
		clock:    time.Now,
		inFlight: make(map[string]time.Time),
	}
}

func (g *SubmissionGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock()
	if expiresAt, ok := g.inFlight[key]; ok && expiresAt.After(now) {
		return false, nil
	}
	g.inFlight[key] = now.Add(g.ttl)
	return true, nil
}

func (g *SubmissionGuard) Release(_ context.Context, key string) {
	g.mu.Lock()
	delete(g.inFlight, key)
	g.mu.Unlock()
}
