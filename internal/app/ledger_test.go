package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/internal/domain"
	"academy-ledger-service/internal/infra/memory"
)

func newLedger(t *testing.T, users ...string) *app.Ledger {
	t.Helper()
	ledger := app.NewLedger(memory.NewLedgerStore(), memory.NewTransactor(),
		app.WithLedgerClock(func() time.Time { return time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC) }))
	for _, u := range users {
		if _, err := ledger.OpenAccount(context.Background(), u, "name-"+u); err != nil {
			t.Fatalf("open %s: %v", u, err)
		}
	}
	return ledger
}

func TestLedgerApplyChainsConcurrentChanges(t *testing.T) {
	ledger := newLedger(t, "u1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := 25
			if i%4 == 0 {
				delta = -10
			}
			if _, err := ledger.Apply(ctx, domain.XPChange{UserID: "u1", Delta: delta, Activity: domain.ActivityBonus, Description: "bonus"}); err != nil {
				t.Errorf("apply: %v", err)
			}
		}(i)
	}
	wg.Wait()

	report, err := ledger.Verify(ctx, "u1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	want := 30*25 - 10*10
	if !report.Valid || report.Entries != 40 || report.FinalXP != want || report.BalanceXP != want {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestLedgerAllowsNegativeBalance(t *testing.T) {
	ledger := newLedger(t, "u1")
	entry, err := ledger.Adjust(context.Background(), "u1", 30, domain.ActivityPenalty, "cheating")
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if entry.XPChange != -30 || entry.PreviousXP != 0 || entry.NewXP != -30 {
		t.Fatalf("unexpected entry %+v", entry)
	}
	account, _ := ledger.Account(context.Background(), "u1")
	if account.XP != -30 {
		t.Fatalf("expected -30, got %d", account.XP)
	}
}

func TestLedgerApplyValidation(t *testing.T) {
	ledger := newLedger(t, "u1")
	ctx := context.Background()

	_, err := ledger.Apply(ctx, domain.XPChange{UserID: "ghost", Delta: 5, Activity: domain.ActivityBonus, Description: "x"})
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	_, err = ledger.Apply(ctx, domain.XPChange{UserID: "u1", Delta: 5, Activity: "made_up", Description: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation for activity, got %v", err)
	}
	_, err = ledger.Adjust(ctx, "u1", 10, domain.ActivityCertificateEarned, "free certificate")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected certificate XP to be non-adjustable, got %v", err)
	}
	_, err = ledger.Adjust(ctx, "u1", 0, domain.ActivityBonus, "nothing")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected zero amount rejected, got %v", err)
	}
}

func TestLedgerOpenAccountIsIdempotent(t *testing.T) {
	ledger := newLedger(t, "u1")
	ctx := context.Background()
	_, _ = ledger.Adjust(ctx, "u1", 10, domain.ActivitySignupBonus, "welcome")

	account, err := ledger.OpenAccount(ctx, "u1", "renamed")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if account.XP != 10 || account.DisplayName != "name-u1" {
		t.Fatalf("expected existing account unchanged, got %+v", account)
	}
}

func TestLedgerHistoryAndStats(t *testing.T) {
	ledger := newLedger(t, "u1", "u2")
	ctx := context.Background()
	for _, c := range []domain.XPChange{
		{UserID: "u1", Delta: 80, Activity: domain.ActivityQuizCompletion, Description: "quiz 1", Related: &domain.EntityRef{ID: "q1", Type: "quiz"}},
		{UserID: "u1", Delta: 10, Activity: domain.ActivityBlogPollAnswered, Description: "poll"},
		{UserID: "u1", Delta: 5, Activity: domain.ActivityQuizCompletion, Description: "quiz 2"},
		{UserID: "u2", Delta: 50, Activity: domain.ActivityQuizCompletion, Description: "quiz 1"},
	} {
		if _, err := ledger.Apply(ctx, c); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	history, err := ledger.History(ctx, domain.XPHistoryFilter{UserID: "u1", ActivityType: domain.ActivityQuizCompletion})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Description != "quiz 2" || history[1].RelatedEntityID != "q1" {
		t.Fatalf("unexpected history %+v", history)
	}

	recent, _ := ledger.RecentActivity(ctx, "u1", 1)
	if len(recent) != 1 || recent[0].Description != "quiz 2" {
		t.Fatalf("unexpected recent %+v", recent)
	}

	stats, _ := ledger.ActivityStats(ctx, "u1")
	if len(stats) != 2 || stats[0].ActivityType != domain.ActivityQuizCompletion || stats[0].TotalXP != 85 || stats[0].Count != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if _, err := ledger.History(ctx, domain.XPHistoryFilter{UserID: "u1", ActivityType: "bogus"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	now := time.Now()
	if _, err := ledger.History(ctx, domain.XPHistoryFilter{UserID: "u1", From: now, To: now.Add(-time.Hour)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for inverted range, got %v", err)
	}
	if _, err := ledger.History(ctx, domain.XPHistoryFilter{UserID: "ghost"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	board, _ := ledger.Leaderboard(ctx, 0)
	if len(board) != 2 || board[0].UserID != "u1" || board[0].Rank != 1 || board[1].Rank != 2 || board[1].XP != 50 {
		t.Fatalf("unexpected leaderboard %+v", board)
	}
}

type tamperedLedger struct {
	app.LedgerRepository
	chain []domain.XPLedgerEntry
}

func (r tamperedLedger) Chain(context.Context, string) ([]domain.XPLedgerEntry, error) {
	return r.chain, nil
}

func TestLedgerVerifyDetectsBrokenChain(t *testing.T) {
	store := memory.NewLedgerStore()
	ctx := context.Background()
	_, _ = store.OpenAccount(ctx, domain.Account{UserID: "u1"})
	_, _ = store.Append(ctx, domain.XPLedgerEntry{ID: "e1", UserID: "u1", XPChange: 10})
	_, _ = store.Append(ctx, domain.XPLedgerEntry{ID: "e2", UserID: "u1", XPChange: 20})

	chain, _ := store.Chain(ctx, "u1")
	chain[1].PreviousXP = 5
	chain[1].NewXP = 25

	ledger := app.NewLedger(tamperedLedger{LedgerRepository: store, chain: chain}, memory.NewTransactor())
	report, err := ledger.Verify(ctx, "u1")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Valid || report.BrokenAt != 1 {
		t.Fatalf("expected break at entry 1, got %+v", report)
	}
}

type countingCache struct {
	mu          sync.Mutex
	cached      map[int][]domain.LeaderboardEntry
	invalidated int
}

func (c *countingCache) Leaderboard(ctx context.Context, limit int, load func(context.Context, int) ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entries, ok := c.cached[limit]; ok {
		return entries, nil
	}
	entries, err := load(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.cached[limit] = entries
	return entries, nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = map[int][]domain.LeaderboardEntry{}
	c.invalidated++
	return nil
}

func TestLedgerLeaderboardUsesCache(t *testing.T) {
	cache := &countingCache{cached: map[int][]domain.LeaderboardEntry{}}
	ledger := app.NewLedger(memory.NewLedgerStore(), memory.NewTransactor(), app.WithLeaderboardCache(cache))
	ctx := context.Background()
	_, _ = ledger.OpenAccount(ctx, "u1", "Alice")

	_, _ = ledger.Leaderboard(ctx, 5)
	_, _ = ledger.Adjust(ctx, "u1", 40, domain.ActivityBonus, "bonus")

	stale, _ := ledger.Leaderboard(ctx, 5)
	if stale[0].XP != 0 {
		t.Fatalf("expected cached leaderboard, got %+v", stale)
	}
	fresh, err := ledger.RefreshLeaderboard(ctx, 5)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if fresh[0].XP != 40 || cache.invalidated != 1 {
		t.Fatalf("expected refreshed leaderboard, got %+v (invalidated %d)", fresh, cache.invalidated)
	}
}
