package app

import (
	"context"
	"errors"
	"strings"

	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
)

var errQuizStoreMissing = errors.New("quiz store not configured")

// PublishQuiz stores a new or edited quiz definition and evicts the cached copy so the next
// submission is graded against it.
func (s *QuizService) PublishQuiz(ctx context.Context, quiz domain.Quiz) error {
	if s.quizStore == nil {
		return domain.Internal("publish quiz", errQuizStoreMissing)
	}
	quiz.ID = strings.TrimSpace(quiz.ID)
	if err := validateQuiz(quiz); err != nil {
		return err
	}
	if err := s.quizStore.SaveQuiz(ctx, quiz); err != nil {
		return err
	}
	if inv, ok := s.quizzes.(QuizInvalidator); ok {
		if err := inv.Invalidate(ctx, quiz.ID); err != nil {
			// the cached copy still expires with its TTL
			s.log.Warn("quiz cache invalidation failed", logger.Err(err), "quiz_id", quiz.ID)
		}
	}
	s.log.Info("quiz published", "quiz_id", quiz.ID, "questions", len(quiz.Questions))
	return nil
}

func validateQuiz(quiz domain.Quiz) error {
	if quiz.ID == "" {
		return domain.Validationf("quiz id is required")
	}
	if len(quiz.Questions) == 0 {
		return domain.Validationf("quiz %s has no questions", quiz.ID)
	}
	for i, q := range quiz.Questions {
		if len(q.Options) < 2 {
			return domain.Validationf("question %d needs at least two options", i)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return domain.Validationf("question %d: correct index %d out of range", i, q.CorrectIndex)
		}
	}
	return nil
}
