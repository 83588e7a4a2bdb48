package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultHistoryLimit     = 50
	defaultLeaderboardLimit = 10
	maxListLimit            = 500
)

// Ledger is the only writer of XP balances. Every change appends an immutable entry whose
// PreviousXP/NewXP come from the store's atomic increment.
type Ledger struct {
	repo  LedgerRepository
	tx    Transactor
	cache LeaderboardCache
	now   func() time.Time
}

// LedgerOption customizes a Ledger.
type LedgerOption func(*Ledger)

// WithLeaderboardCache puts cache in front of leaderboard reads.
func WithLeaderboardCache(cache LeaderboardCache) LedgerOption {
	return func(l *Ledger) { l.cache = cache }
}

// WithLedgerClock is for deterministic timestamps in tests.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(repo LedgerRepository, tx Transactor, opts ...LedgerOption) *Ledger {
	l := &Ledger{repo: repo, tx: tx, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Apply moves the user's balance by change.Delta and records why.
func (l *Ledger) Apply(ctx context.Context, change domain.XPChange) (domain.XPLedgerEntry, error) {
	if change.UserID == "" {
		return domain.XPLedgerEntry{}, domain.Validationf("user id is required")
	}
	if !change.Activity.Valid() {
		return domain.XPLedgerEntry{}, domain.Validationf("unknown activity type %q", change.Activity)
	}
	if strings.TrimSpace(change.Description) == "" {
		return domain.XPLedgerEntry{}, domain.Validationf("description is required")
	}

	entry := domain.XPLedgerEntry{
		ID:           uuid.NewString(),
		UserID:       change.UserID,
		XPChange:     change.Delta,
		ActivityType: change.Activity,
		Description:  change.Description,
		CreatedAt:    l.now().UTC(),
	}
	if change.Related != nil {
		entry.RelatedEntityID = change.Related.ID
		entry.RelatedEntityType = change.Related.Type
	}

	var stored domain.XPLedgerEntry
	err := l.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		stored, err = l.repo.Append(ctx, entry)
		return err
	})
	if err != nil {
		return domain.XPLedgerEntry{}, err
	}

	activity := string(stored.ActivityType)
	ledgerEntries.WithLabelValues(activity).Inc()
	if stored.XPChange >= 0 {
		xpApplied.WithLabelValues(activity).Add(float64(stored.XPChange))
	} else {
		xpDeducted.WithLabelValues(activity).Add(float64(-stored.XPChange))
	}
	return stored, nil
}

// adjustable are the activity types that may be applied out of band (admin tooling,
// other platform features). Quiz, course and certificate XP only flow from submissions.
var adjustable = map[domain.ActivityType]bool{
	domain.ActivityBonus:            true,
	domain.ActivityPenalty:          true,
	domain.ActivitySignupBonus:      true,
	domain.ActivityBlogPollAnswered: true,
}

// Adjust applies an out-of-band XP change. Penalties are always recorded as negative deltas.
func (l *Ledger) Adjust(ctx context.Context, userID string, amount int, activity domain.ActivityType, reason string) (domain.XPLedgerEntry, error) {
	if !adjustable[activity] {
		return domain.XPLedgerEntry{}, domain.Validationf("activity %q cannot be adjusted manually", activity)
	}
	if amount == 0 {
		return domain.XPLedgerEntry{}, domain.Validationf("amount must not be zero")
	}
	delta := amount
	if activity == domain.ActivityPenalty && delta > 0 {
		delta = -delta
	}
	return l.Apply(ctx, domain.XPChange{
		UserID:      userID,
		Delta:       delta,
		Activity:    activity,
		Description: reason,
	})
}

// OpenAccount creates a zero-balance account; opening an existing account returns it unchanged.
func (l *Ledger) OpenAccount(ctx context.Context, userID, displayName string) (domain.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Account{}, domain.Validationf("user id is required")
	}
	return l.repo.OpenAccount(ctx, domain.Account{
		UserID:      userID,
		DisplayName: displayName,
		CreatedAt:   l.now().UTC(),
	})
}

// Account returns the user's account or domain.ErrUserNotFound.
func (l *Ledger) Account(ctx context.Context, userID string) (domain.Account, error) {
	return l.repo.Account(ctx, userID)
}

// History lists ledger entries newest first.
func (l *Ledger) History(ctx context.Context, filter domain.XPHistoryFilter) ([]domain.XPLedgerEntry, error) {
	if filter.ActivityType != "" && !filter.ActivityType.Valid() {
		return nil, domain.Validationf("unknown activity type %q", filter.ActivityType)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, domain.Validationf("from must not be after to")
	}
	if filter.UserID != "" {
		if _, err := l.repo.Account(ctx, filter.UserID); err != nil {
			return nil, err
		}
	}
	filter.Limit = clampLimit(filter.Limit, defaultHistoryLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return l.repo.Entries(ctx, filter)
}

// RecentActivity lists the user's latest entries.
func (l *Ledger) RecentActivity(ctx context.Context, userID string, limit int) ([]domain.XPLedgerEntry, error) {
	return l.History(ctx, domain.XPHistoryFilter{UserID: userID, Limit: clampLimit(limit, defaultLeaderboardLimit)})
}

// ActivityStats summarizes the user's ledger per activity type, largest total first.
func (l *Ledger) ActivityStats(ctx context.Context, userID string) ([]domain.ActivityStat, error) {
	if _, err := l.repo.Account(ctx, userID); err != nil {
		return nil, err
	}
	return l.repo.ActivityStats(ctx, userID)
}

// Leaderboard returns ranked accounts by balance.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = clampLimit(limit, defaultLeaderboardLimit)
	var (
		entries []domain.LeaderboardEntry
		err     error
	)
	if l.cache != nil {
		entries, err = l.cache.Leaderboard(ctx, limit, l.loadLeaderboard)
	} else {
		entries, err = l.loadLeaderboard(ctx, limit)
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// RefreshLeaderboard drops any cached leaderboard and reads a fresh one.
func (l *Ledger) RefreshLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if l.cache != nil {
		if err := l.cache.Invalidate(ctx); err != nil {
			return nil, domain.Internal("invalidate leaderboard cache", err)
		}
	}
	return l.Leaderboard(ctx, limit)
}

func (l *Ledger) loadLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	entries, err := l.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Verify replays the user's ledger in creation order and checks that every entry chains onto
// the previous one and that the final balance matches the account.
func (l *Ledger) Verify(ctx context.Context, userID string) (domain.LedgerReport, error) {
	account, err := l.repo.Account(ctx, userID)
	if err != nil {
		return domain.LedgerReport{}, err
	}
	chain, err := l.repo.Chain(ctx, userID)
	if err != nil {
		return domain.LedgerReport{}, err
	}
	report := domain.LedgerReport{
		UserID:    userID,
		Entries:   len(chain),
		BalanceXP: account.XP,
		Valid:     true,
		BrokenAt:  -1,
	}
	prev := 0
	for i, e := range chain {
		if e.NewXP != e.PreviousXP+e.XPChange {
			report.Valid, report.BrokenAt = false, i
			report.Reason = fmt.Sprintf("entry %s: newXP %d != previousXP %d + change %d", e.ID, e.NewXP, e.PreviousXP, e.XPChange)
			break
		}
		// accounts open at zero, so the first entry must chain onto 0
		if e.PreviousXP != prev {
			report.Valid, report.BrokenAt = false, i
			report.Reason = fmt.Sprintf("entry %s: previousXP %d != prior newXP %d", e.ID, e.PreviousXP, prev)
			break
		}
		prev = e.NewXP
	}
	report.FinalXP = prev
	if report.Valid && report.FinalXP != account.XP {
		report.Valid = false
		report.Reason = fmt.Sprintf("balance %d != final ledger value %d", account.XP, report.FinalXP)
	}
	return report, nil
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
