package memory

import (
	"context"
	"sort"
	"sync"

	"academy-ledger-service/internal/domain"
)

// AttemptStore keeps quiz attempts with a uniqueness index on the attempt key.
type AttemptStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.QuizAttempt
	byKey map[domain.AttemptKey]string
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		byID:  make(map[string]domain.QuizAttempt),
		byKey: make(map[domain.AttemptKey]string),
	}
}

func (s *AttemptStore) Exists(_ context.Context, key domain.AttemptKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byKey[key]
	return ok, nil
}

func (s *AttemptStore) Create(ctx context.Context, attempt domain.QuizAttempt) error {
	key := attempt.Key()

	s.mu.Lock()
	if _, ok := s.byKey[key]; ok {
		s.mu.Unlock()
		return domain.ErrDuplicateAttempt
	}
	attempt.Answers = append([]domain.GradedAnswer(nil), attempt.Answers...)
	s.byID[attempt.ID] = attempt
	s.byKey[key] = attempt.ID
	s.mu.Unlock()

	onRollback(ctx, func() {
		s.mu.Lock()
		delete(s.byID, attempt.ID)
		delete(s.byKey, key)
		s.mu.Unlock()
	})
	return nil
}

func (s *AttemptStore) Get(_ context.Context, id string) (domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.byID[id]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return attempt, nil
}

func (s *AttemptStore) ListByUser(_ context.Context, userID string, filter domain.AttemptFilter) ([]domain.QuizAttempt, error) {
	s.mu.RLock()
	out := make([]domain.QuizAttempt, 0)
	for _, a := range s.byID {
		if a.UserID != userID {
			continue
		}
		if filter.CourseID != "" && a.CourseID != filter.CourseID {
			continue
		}
		if filter.LessonID != "" && a.LessonID != filter.LessonID {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
