package postgres

import (
	"context"
	"errors"
	"math"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

const entryColumns = `seq, id, user_id, xp_change, previous_xp, new_xp, activity_type, description,
	COALESCE(related_entity_id, ''), COALESCE(related_entity_type, ''), created_at`

// LedgerStore keeps user_accounts balances and the append-only xp_ledger.
type LedgerStore struct {
	store *Store
}

func NewLedgerStore(store *Store) *LedgerStore {
	return &LedgerStore{store: store}
}

func (s *LedgerStore) OpenAccount(ctx context.Context, account domain.Account) (domain.Account, error) {
	if _, err := s.store.q(ctx).Exec(ctx,
		`INSERT INTO user_accounts (user_id, display_name, xp, created_at) VALUES ($1, $2, 0, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		account.UserID, account.DisplayName, account.CreatedAt); err != nil {
		return domain.Account{}, domain.Internal("open account", err)
	}
	return s.Account(ctx, account.UserID)
}

func (s *LedgerStore) Account(ctx context.Context, userID string) (domain.Account, error) {
	var a domain.Account
	err := s.store.q(ctx).QueryRow(ctx,
		`SELECT user_id, display_name, xp, created_at FROM user_accounts WHERE user_id=$1`, userID).
		Scan(&a.UserID, &a.DisplayName, &a.XP, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Account{}, domain.Internal("load account", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

// Append increments the balance with a row-locking UPDATE and records the entry in the same
// transaction. The increment result is the source of PreviousXP and NewXP.
func (s *LedgerStore) Append(ctx context.Context, entry domain.XPLedgerEntry) (domain.XPLedgerEntry, error) {
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		q := s.store.q(ctx)
		err := q.QueryRow(ctx,
			`UPDATE user_accounts SET xp = xp + $2 WHERE user_id = $1 RETURNING xp`,
			entry.UserID, entry.XPChange).Scan(&entry.NewXP)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return domain.Internal("increment balance", err)
		}
		entry.PreviousXP = entry.NewXP - entry.XPChange

		err = q.QueryRow(ctx,
			`INSERT INTO xp_ledger (id, user_id, xp_change, previous_xp, new_xp, activity_type, description,
			                        related_entity_id, related_entity_type, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
			 RETURNING seq`,
			entry.ID, entry.UserID, entry.XPChange, entry.PreviousXP, entry.NewXP, string(entry.ActivityType),
			entry.Description, entry.RelatedEntityID, entry.RelatedEntityType, entry.CreatedAt).Scan(&entry.Seq)
		if err != nil {
			return domain.Internal("insert ledger entry", err)
		}
		return nil
	})
	if err != nil {
		return domain.XPLedgerEntry{}, err
	}
	return entry, nil
}

func (s *LedgerStore) Entries(ctx context.Context, filter domain.XPHistoryFilter) ([]domain.XPLedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := s.store.q(ctx).Query(ctx,
		`SELECT `+entryColumns+` FROM xp_ledger
		  WHERE ($1 = '' OR user_id=$1) AND ($2 = '' OR activity_type=$2)
		    AND ($5::timestamptz IS NULL OR created_at >= $5)
		    AND ($6::timestamptz IS NULL OR created_at <= $6)
		  ORDER BY seq DESC LIMIT $3 OFFSET $4`,
		filter.UserID, string(filter.ActivityType), limit, filter.Offset,
		timeBound(filter.From), timeBound(filter.To))
	if err != nil {
		return nil, domain.Internal("list ledger entries", err)
	}
	return collectEntries(rows)
}

// timeBound maps an unset bound to NULL.
func timeBound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

func (s *LedgerStore) Chain(ctx context.Context, userID string) ([]domain.XPLedgerEntry, error) {
	rows, err := s.store.q(ctx).Query(ctx,
		`SELECT `+entryColumns+` FROM xp_ledger WHERE user_id=$1 ORDER BY seq`, userID)
	if err != nil {
		return nil, domain.Internal("load ledger chain", err)
	}
	return collectEntries(rows)
}

func (s *LedgerStore) ActivityStats(ctx context.Context, userID string) ([]domain.ActivityStat, error) {
	rows, err := s.store.q(ctx).Query(ctx,
		`SELECT activity_type, COUNT(*), COALESCE(SUM(xp_change), 0) AS total
		   FROM xp_ledger WHERE user_id=$1
		  GROUP BY activity_type ORDER BY total DESC, activity_type`, userID)
	if err != nil {
		return nil, domain.Internal("ledger activity stats", err)
	}
	defer rows.Close()

	out := make([]domain.ActivityStat, 0)
	for rows.Next() {
		var (
			stat     domain.ActivityStat
			activity string
			count    int64
			total    int64
		)
		if err := rows.Scan(&activity, &count, &total); err != nil {
			return nil, domain.Internal("scan activity stat", err)
		}
		stat.ActivityType = domain.ActivityType(activity)
		stat.Count, stat.TotalXP = int(count), int(total)
		out = append(out, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("ledger activity stats", err)
	}
	return out, nil
}

func (s *LedgerStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := s.store.q(ctx).Query(ctx,
		`SELECT user_id, display_name, xp FROM user_accounts ORDER BY xp DESC, user_id LIMIT $1`, limit)
	if err != nil {
		return nil, domain.Internal("load leaderboard", err)
	}
	defer rows.Close()

	out := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.XP); err != nil {
			return nil, domain.Internal("scan leaderboard", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("load leaderboard", err)
	}
	return out, nil
}

func collectEntries(rows pgx.Rows) ([]domain.XPLedgerEntry, error) {
	defer rows.Close()
	out := make([]domain.XPLedgerEntry, 0)
	for rows.Next() {
		var (
			e        domain.XPLedgerEntry
			activity string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.UserID, &e.XPChange, &e.PreviousXP, &e.NewXP, &activity,
			&e.Description, &e.RelatedEntityID, &e.RelatedEntityType, &e.CreatedAt); err != nil {
			return nil, domain.Internal("scan ledger entry", err)
		}
		e.ActivityType = domain.ActivityType(activity)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("read ledger entries", err)
	}
	return out, nil
}
