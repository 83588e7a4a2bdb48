package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"academy-ledger-service/internal/domain"
	"github.com/jackc/pgx/v4"
)

// QuizLoader loads quiz definitions stored as JSONB.
type QuizLoader struct {
	store *Store
}

func NewQuizLoader(store *Store) *QuizLoader {
	return &QuizLoader{store: store}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.store.q(ctx).QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, domain.Internal("load quiz", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, domain.Internal("unmarshal quiz", err)
	}
	quiz.ID = quizID
	return quiz, nil
}

// SaveQuiz upserts a quiz definition.
func (l *QuizLoader) SaveQuiz(ctx context.Context, quiz domain.Quiz) error {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return domain.Internal("marshal quiz", err)
	}
	_, err = l.store.q(ctx).Exec(ctx,
		`INSERT INTO quizzes (id, data) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`, quiz.ID, raw)
	if err != nil {
		return domain.Internal("save quiz", err)
	}
	return nil
}
