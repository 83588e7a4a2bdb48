package app

import (
	"context"
	"time"

	"academy-ledger-service/internal/domain"
	"github.com/google/uuid"
)

// ProgressTracker owns per-(user, course, lesson) progress and derives course completion.
type ProgressTracker struct {
	repo    ProgressRepository
	catalog CourseCatalog
	now     func() time.Time
}

func NewProgressTracker(repo ProgressRepository, catalog CourseCatalog) *ProgressTracker {
	return &ProgressTracker{repo: repo, catalog: catalog, now: time.Now}
}

// NewProgressTrackerWithClock is test-only for deterministic timestamps.
func NewProgressTrackerWithClock(repo ProgressRepository, catalog CourseCatalog, now func() time.Time) *ProgressTracker {
	return &ProgressTracker{repo: repo, catalog: catalog, now: now}
}

// RecordAttempt folds one graded attempt into the lesson's progress row, creating it on first use.
func (t *ProgressTracker) RecordAttempt(ctx context.Context, outcome domain.AttemptOutcome) (domain.UserProgress, error) {
	key := domain.ProgressKey{UserID: outcome.UserID, CourseID: outcome.CourseID, LessonID: outcome.LessonID}
	now := t.now().UTC()
	return t.repo.Update(ctx, key, func(p domain.UserProgress) domain.UserProgress {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		return applyOutcome(p, outcome, now)
	})
}

// applyOutcome keeps completion, best score and first completion time monotonic.
func applyOutcome(p domain.UserProgress, o domain.AttemptOutcome, now time.Time) domain.UserProgress {
	p.Attempts++
	p.XPEarned += o.XPEarned
	if o.Passed {
		if p.CompletedAt == nil {
			completed := now
			p.CompletedAt = &completed
		}
		p.IsCompleted = true
		if o.Score > p.Score {
			p.Score = o.Score
		}
	}
	p.UpdatedAt = now
	return p
}

// List returns the user's progress rows, most recently updated first.
func (t *ProgressTracker) List(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.UserProgress, error) {
	return t.repo.List(ctx, userID, filter)
}

// CourseProgress aggregates the user's rows for courseID. It is computed on every call.
// Only rows for lessons that currently belong to the course count toward completion.
func (t *ProgressTracker) CourseProgress(ctx context.Context, userID, courseID string) (domain.CourseProgress, error) {
	lessons, err := t.catalog.LessonsForCourse(ctx, courseID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	rows, err := t.repo.List(ctx, userID, domain.AttemptFilter{CourseID: courseID})
	if err != nil {
		return domain.CourseProgress{}, err
	}
	return summarize(courseID, lessons, rows), nil
}

func summarize(courseID string, lessons []string, rows []domain.UserProgress) domain.CourseProgress {
	inCourse := make(map[string]struct{}, len(lessons))
	for _, id := range lessons {
		inCourse[id] = struct{}{}
	}

	cp := domain.CourseProgress{CourseID: courseID, TotalLessons: len(inCourse)}
	scoreSum := 0
	for _, row := range rows {
		cp.TotalXP += row.XPEarned
		if _, ok := inCourse[row.LessonID]; !ok || !row.IsCompleted {
			continue
		}
		cp.CompletedLessons++
		scoreSum += row.Score
	}
	cp.AverageScore = roundAverage(scoreSum, cp.CompletedLessons)
	cp.IsCompleted = cp.TotalLessons > 0 && cp.CompletedLessons == cp.TotalLessons
	return cp
}
