package app

import (
	"context"
	"sync"
	"time"

	"academy-ledger-service/internal/domain"
)

// LeaderboardHub fans XP leaderboard snapshots out to live subscribers.
type LeaderboardHub struct {
	ledger *Ledger
	size   int
	now    func() time.Time

	mu          sync.RWMutex
	last        domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub(ledger *Ledger, size int) *LeaderboardHub {
	return NewLeaderboardHubWithClock(ledger, size, time.Now)
}

// NewLeaderboardHubWithClock is test-only for deterministic timestamps.
func NewLeaderboardHubWithClock(ledger *Ledger, size int, now func() time.Time) *LeaderboardHub {
	if size <= 0 {
		size = defaultLeaderboardLimit
	}
	return &LeaderboardHub{
		ledger:      ledger,
		size:        size,
		now:         now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel that receives leaderboard updates, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *LeaderboardHub) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	entries, err := h.ledger.Leaderboard(ctx, h.size)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Leaderboard, 8)

	// the initial snapshot goes in before Publish can see the channel
	h.mu.Lock()
	ch <- domain.Leaderboard{Entries: entries, UpdatedAt: h.now().UTC()}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

// Publish refreshes the leaderboard after a balance change and broadcasts it.
func (h *LeaderboardHub) Publish(ctx context.Context) (domain.Leaderboard, error) {
	entries, err := h.ledger.RefreshLeaderboard(ctx, h.size)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = domain.Leaderboard{Entries: entries, UpdatedAt: h.now().UTC()}
	for ch := range h.subscribers {
		select {
		case ch <- h.last:
		default:
			// slow subscriber: drop its oldest pending snapshot, the newest one wins
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- h.last:
			default:
			}
		}
	}
	return h.last, nil
}

// Subscribers reports how many live subscriptions exist.
func (h *LeaderboardHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
