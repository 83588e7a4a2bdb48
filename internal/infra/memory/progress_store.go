package memory

import (
	"context"
	"sort"
	"sync"

	"academy-ledger-service/internal/domain"
)

// ProgressStore keeps one row per (user, course, lesson).
type ProgressStore struct {
	mu   sync.RWMutex
	rows map[domain.ProgressKey]domain.UserProgress
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{rows: make(map[domain.ProgressKey]domain.UserProgress)}
}

// Update holds the store lock while fn runs, so concurrent updates of a row never interleave.
func (s *ProgressStore) Update(ctx context.Context, key domain.ProgressKey, fn func(domain.UserProgress) domain.UserProgress) (domain.UserProgress, error) {
	s.mu.Lock()
	prev, existed := s.rows[key]
	current := prev
	if !existed {
		current = domain.UserProgress{UserID: key.UserID, CourseID: key.CourseID, LessonID: key.LessonID}
	}
	next := fn(current)
	next.UserID, next.CourseID, next.LessonID = key.UserID, key.CourseID, key.LessonID
	s.rows[key] = next
	s.mu.Unlock()

	onRollback(ctx, func() {
		s.mu.Lock()
		if existed {
			s.rows[key] = prev
		} else {
			delete(s.rows, key)
		}
		s.mu.Unlock()
	})
	return next, nil
}

func (s *ProgressStore) List(_ context.Context, userID string, filter domain.AttemptFilter) ([]domain.UserProgress, error) {
	s.mu.RLock()
	out := make([]domain.UserProgress, 0)
	for key, row := range s.rows {
		if key.UserID != userID {
			continue
		}
		if filter.CourseID != "" && key.CourseID != filter.CourseID {
			continue
		}
		if filter.LessonID != "" && key.LessonID != filter.LessonID {
			continue
		}
		out = append(out, row)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
