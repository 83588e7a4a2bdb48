package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"academy-ledger-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

const attemptKeyConstraint = "quiz_attempts_user_quiz_lesson_course_key"

const attemptColumns = `id, user_id, quiz_id, lesson_id, course_id, answers, score, total_questions,
	correct_answers, passed, xp_earned, passing_score, created_at`

// AttemptStore persists quiz attempts; the unique key on (user, quiz, lesson, course) rejects duplicates.
type AttemptStore struct {
	store *Store
}

func NewAttemptStore(store *Store) *AttemptStore {
	return &AttemptStore{store: store}
}

func (s *AttemptStore) Exists(ctx context.Context, key domain.AttemptKey) (bool, error) {
	var exists bool
	err := s.store.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM quiz_attempts
		  WHERE user_id=$1 AND quiz_id=$2 AND lesson_id=$3 AND course_id=$4)`,
		key.UserID, key.QuizID, key.LessonID, key.CourseID).Scan(&exists)
	if err != nil {
		return false, domain.Internal("check attempt", err)
	}
	return exists, nil
}

func (s *AttemptStore) Create(ctx context.Context, a domain.QuizAttempt) error {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return domain.Internal("marshal answers", err)
	}
	_, err = s.store.q(ctx).Exec(ctx,
		`INSERT INTO quiz_attempts (`+attemptColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.UserID, a.QuizID, a.LessonID, a.CourseID, answers, a.Score, a.TotalQuestions,
		a.CorrectAnswers, a.Passed, a.XPEarned, a.PassingScore, a.CreatedAt)
	if violatedConstraint(err) == attemptKeyConstraint {
		return domain.ErrDuplicateAttempt
	}
	if err != nil {
		return domain.Internal("insert attempt", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, id string) (domain.QuizAttempt, error) {
	row := s.store.q(ctx).QueryRow(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.QuizAttempt{}, domain.Internal("load attempt", err)
	}
	return a, nil
}

func (s *AttemptStore) ListByUser(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.QuizAttempt, error) {
	rows, err := s.store.q(ctx).Query(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		  WHERE user_id=$1 AND ($2 = '' OR course_id=$2) AND ($3 = '' OR lesson_id=$3)
		  ORDER BY created_at DESC, id DESC`,
		userID, filter.CourseID, filter.LessonID)
	if err != nil {
		return nil, domain.Internal("list attempts", err)
	}
	defer rows.Close()

	out := make([]domain.QuizAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, domain.Internal("scan attempt", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal("list attempts", err)
	}
	return out, nil
}

func scanAttempt(row pgx.Row) (domain.QuizAttempt, error) {
	var (
		a       domain.QuizAttempt
		answers []byte
	)
	err := row.Scan(&a.ID, &a.UserID, &a.QuizID, &a.LessonID, &a.CourseID, &answers, &a.Score,
		&a.TotalQuestions, &a.CorrectAnswers, &a.Passed, &a.XPEarned, &a.PassingScore, &a.CreatedAt)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if err := json.Unmarshal(answers, &a.Answers); err != nil {
		return domain.QuizAttempt{}, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
