package memory

import (
	"context"
	"sort"
	"sync"

	"academy-ledger-service/internal/domain"
)

// LedgerStore keeps accounts and their append-only XP ledger.
type LedgerStore struct {
	mu       sync.RWMutex
	seq      int64
	accounts map[string]*domain.Account
	entries  []domain.XPLedgerEntry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{accounts: make(map[string]*domain.Account)}
}

func (s *LedgerStore) OpenAccount(_ context.Context, account domain.Account) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[account.UserID]; ok {
		return *existing, nil
	}
	account.XP = 0
	s.accounts[account.UserID] = &account
	return account, nil
}

func (s *LedgerStore) Account(_ context.Context, userID string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[userID]
	if !ok {
		return domain.Account{}, domain.ErrUserNotFound
	}
	return *account, nil
}

// Append increments the balance and records the entry under one lock.
func (s *LedgerStore) Append(ctx context.Context, entry domain.XPLedgerEntry) (domain.XPLedgerEntry, error) {
	s.mu.Lock()
	account, ok := s.accounts[entry.UserID]
	if !ok {
		s.mu.Unlock()
		return domain.XPLedgerEntry{}, domain.ErrUserNotFound
	}
	account.XP += entry.XPChange
	s.seq++
	entry.Seq = s.seq
	entry.NewXP = account.XP
	entry.PreviousXP = entry.NewXP - entry.XPChange
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	onRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := len(s.entries) - 1; i >= 0; i-- {
			if s.entries[i].ID == entry.ID {
				s.entries = append(s.entries[:i], s.entries[i+1:]...)
				break
			}
		}
		if a, ok := s.accounts[entry.UserID]; ok {
			a.XP -= entry.XPChange
		}
	})
	return entry, nil
}

func (s *LedgerStore) Entries(_ context.Context, filter domain.XPHistoryFilter) ([]domain.XPLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.XPLedgerEntry, 0)
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.ActivityType != "" && e.ActivityType != filter.ActivityType {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *LedgerStore) Chain(_ context.Context, userID string) ([]domain.XPLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.XPLedgerEntry, 0)
	for _, e := range s.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *LedgerStore) ActivityStats(_ context.Context, userID string) ([]domain.ActivityStat, error) {
	s.mu.RLock()
	byType := make(map[domain.ActivityType]*domain.ActivityStat)
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		stat, ok := byType[e.ActivityType]
		if !ok {
			stat = &domain.ActivityStat{ActivityType: e.ActivityType}
			byType[e.ActivityType] = stat
		}
		stat.Count++
		stat.TotalXP += e.XPChange
	}
	s.mu.RUnlock()

	out := make([]domain.ActivityStat, 0, len(byType))
	for _, stat := range byType {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalXP == out[j].TotalXP {
			return out[i].ActivityType < out[j].ActivityType
		}
		return out[i].TotalXP > out[j].TotalXP
	})
	return out, nil
}

func (s *LedgerStore) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	out := make([]domain.LeaderboardEntry, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, domain.LeaderboardEntry{UserID: a.UserID, DisplayName: a.DisplayName, XP: a.XP})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].XP == out[j].XP {
			return out[i].UserID < out[j].UserID
		}
		return out[i].XP > out[j].XP
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
