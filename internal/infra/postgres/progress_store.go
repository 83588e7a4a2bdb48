package postgres

import (
	"context"

	"academy-ledger-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
)

const progressColumns = `id, user_id, course_id, lesson_id, is_completed, score, xp_earned, attempts,
	completed_at, updated_at`

// ProgressStore keeps one row per (user, course, lesson).
type ProgressStore struct {
	store *Store
}

func NewProgressStore(store *Store) *ProgressStore {
	return &ProgressStore{store: store}
}

// Update ensures the row exists, locks it with FOR UPDATE, applies fn and writes the result back.
func (s *ProgressStore) Update(ctx context.Context, key domain.ProgressKey, fn func(domain.UserProgress) domain.UserProgress) (domain.UserProgress, error) {
	var next domain.UserProgress
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		q := s.store.q(ctx)
		if _, err := q.Exec(ctx,
			`INSERT INTO user_progress (id, user_id, course_id, lesson_id, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (user_id, course_id, lesson_id) DO NOTHING`,
			uuid.NewString(), key.UserID, key.CourseID, key.LessonID); err != nil {
			return domain.Internal("ensure progress row", err)
		}

		current, err := scanProgress(q.QueryRow(ctx,
			`SELECT `+progressColumns+` FROM user_progress
			  WHERE user_id=$1 AND course_id=$2 AND lesson_id=$3 FOR UPDATE`,
			key.UserID, key.CourseID, key.LessonID))
		if err != nil {
			return domain.Internal("lock progress row", err)
		}

		next = fn(current)
		next.ID, next.UserID, next.CourseID, next.LessonID = current.ID, key.UserID, key.CourseID, key.LessonID
		if _, err := q.Exec(ctx,
			`UPDATE user_progress
			    SET is_completed=$2, score=$3, xp_earned=$4, attempts=$5, completed_at=$6, updated_at=$7
			  WHERE id=$1`,
			next.ID, next.IsCompleted, next.Score, next.XPEarned, next.Attempts, next.CompletedAt, next.UpdatedAt); err != nil {
			return domain.Internal("update progress", err)
		}
		return nil
	})
	if err != nil {
		return domain.UserProgress{}, err
	}
	return next, nil
}

func (s *ProgressStore) List(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.UserProgress, error) {
	rows, err := s.store.q(ctx).Query(ctx,
		`SELECT `+progressColumns+` FROM user_progress
		  WHERE user_id=$1 AND ($2 = '' OR course_id=$2) AND ($3 = '' OR lesson_id=$3)
		  ORDER BY updated_at DESC, id`,
		userID, filter.CourseID, filter.LessonID)
	if err != nil {
		return nil, domain.Internal("list progress", err)
	}
	defer rows.Close()

	out := make([]domain.UserProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, domain.Internal("scan progress", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list progress", err)
	}
	return out, nil
}

func scanProgress(row pgx.Row) (domain.UserProgress, error) {
	var p domain.UserProgress
	err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.LessonID, &p.IsCompleted, &p.Score,
		&p.XPEarned, &p.Attempts, &p.CompletedAt, &p.UpdatedAt)
	if err != nil {
		return domain.UserProgress{}, err
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.CompletedAt != nil {
		completed := p.CompletedAt.UTC()
		p.CompletedAt = &completed
	}
	return p, nil
}
