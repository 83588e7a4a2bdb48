package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"academy-ledger-service/internal/domain"
	"academy-ledger-service/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	notifyTimeout        = 5 * time.Second
	courseProgressFanout = 4
)

// QuizService is the entry point for quiz submissions and the progression read paths.
type QuizService struct {
	quizzes      QuizRepository
	quizStore    QuizStore
	catalog      CourseCatalog
	attempts     AttemptRepository
	tx           Transactor
	ledger       *Ledger
	progress     *ProgressTracker
	certificates *CertificateIssuer
	guard        SubmissionGuard
	hub          *LeaderboardHub
	notifier     Notifier
	log          logger.Log
	now          func() time.Time

	notifications sync.WaitGroup
}

// Deps bundles what QuizService needs. QuizStore, Guard, Hub and Notifier are optional.
type Deps struct {
	Quizzes      QuizRepository
	QuizStore    QuizStore
	Catalog      CourseCatalog
	Attempts     AttemptRepository
	Tx           Transactor
	Ledger       *Ledger
	Progress     *ProgressTracker
	Certificates *CertificateIssuer
	Guard        SubmissionGuard
	Hub          *LeaderboardHub
	Notifier     Notifier
	Log          logger.Log
	Now          func() time.Time
}

func NewQuizService(d Deps) *QuizService {
	s := &QuizService{
		quizzes:      d.Quizzes,
		quizStore:    d.QuizStore,
		catalog:      d.Catalog,
		attempts:     d.Attempts,
		tx:           d.Tx,
		ledger:       d.Ledger,
		progress:     d.Progress,
		certificates: d.Certificates,
		guard:        d.Guard,
		hub:          d.Hub,
		notifier:     d.Notifier,
		log:          d.Log,
		now:          d.Now,
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SubmitQuiz validates, grades and records one submission, then applies its XP and progress
// as a single unit. Nothing is written when validation fails.
func (s *QuizService) SubmitQuiz(ctx context.Context, userID string, sub domain.QuizSubmission) (result domain.SubmissionResult, err error) {
	started := s.now()
	outcome := "error"
	defer func() {
		quizSubmissions.WithLabelValues(outcome).Inc()
		submissionDuration.WithLabelValues(outcome).Observe(s.now().Sub(started).Seconds())
	}()

	if err := validateSubmission(userID, sub); err != nil {
		outcome = "rejected"
		return domain.SubmissionResult{}, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, sub.QuizID)
	if err != nil {
		outcome = rejectedOr(err)
		return domain.SubmissionResult{}, err
	}
	account, err := s.ledger.Account(ctx, userID)
	if err != nil {
		outcome = rejectedOr(err)
		return domain.SubmissionResult{}, err
	}
	grade, err := GradeQuiz(quiz, sub.Answers)
	if err != nil {
		outcome = "rejected"
		return domain.SubmissionResult{}, err
	}

	key := domain.AttemptKey{UserID: userID, QuizID: sub.QuizID, LessonID: sub.LessonID, CourseID: sub.CourseID}
	exists, err := s.attempts.Exists(ctx, key)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	if exists {
		outcome = "rejected"
		return domain.SubmissionResult{}, domain.ErrDuplicateAttempt
	}
	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, key.String())
		switch {
		case err != nil:
			// the attempt store still rejects duplicates; carry on unguarded
			s.log.ErrorErr("submission guard unavailable", err, "key", key.String())
		case !acquired:
			outcome = "rejected"
			return domain.SubmissionResult{}, domain.ErrSubmissionInFlight
		default:
			defer s.guard.Release(context.WithoutCancel(ctx), key.String())
		}
	}

	xp := QuizXP(grade)
	attempt := domain.QuizAttempt{
		ID:             uuid.NewString(),
		UserID:         userID,
		QuizID:         sub.QuizID,
		LessonID:       sub.LessonID,
		CourseID:       sub.CourseID,
		Answers:        grade.Answers,
		Score:          grade.Score,
		TotalQuestions: grade.TotalQuestions,
		CorrectAnswers: grade.CorrectAnswers,
		Passed:         grade.Passed,
		XPEarned:       xp,
		PassingScore:   PassingScore,
		CreatedAt:      s.now().UTC(),
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.attempts.Create(ctx, attempt); err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, domain.XPChange{
			UserID:      userID,
			Delta:       xp,
			Activity:    domain.ActivityQuizCompletion,
			Description: fmt.Sprintf("Quiz completed with %d%% score", grade.Score),
			Related:     &domain.EntityRef{ID: sub.QuizID, Type: "quiz"},
		}); err != nil {
			return err
		}
		_, err := s.progress.RecordAttempt(ctx, domain.AttemptOutcome{
			UserID:   userID,
			CourseID: sub.CourseID,
			LessonID: sub.LessonID,
			Score:    grade.Score,
			XPEarned: xp,
			Passed:   grade.Passed,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAttempt) {
			outcome = "rejected"
		}
		return domain.SubmissionResult{}, err
	}

	outcome = "failed"
	if grade.Passed {
		outcome = "passed"
	}
	s.log.Info("quiz submitted",
		"attempt_id", attempt.ID, "user_id", userID, "quiz_id", sub.QuizID,
		"score", grade.Score, "passed", grade.Passed, "xp", xp)

	if grade.Passed {
		s.checkCompletion(ctx, userID, sub.CourseID)
	}
	s.publishLeaderboard(ctx)
	s.notifyAsync(ctx, "quiz_completed", func(ctx context.Context) error {
		return s.notifier.QuizCompleted(ctx, domain.QuizCompletedEvent{
			AttemptID:      attempt.ID,
			UserID:         userID,
			DisplayName:    account.DisplayName,
			QuizID:         sub.QuizID,
			LessonID:       sub.LessonID,
			CourseID:       sub.CourseID,
			Score:          grade.Score,
			TotalQuestions: grade.TotalQuestions,
			Passed:         grade.Passed,
			XPEarned:       xp,
			OccurredAt:     attempt.CreatedAt,
		})
	})

	return domain.SubmissionResult{
		ID:             attempt.ID,
		Score:          grade.Score,
		TotalQuestions: grade.TotalQuestions,
		CorrectAnswers: grade.CorrectAnswers,
		XPEarned:       xp,
		Passed:         grade.Passed,
		Message:        resultMessage(grade, xp),
	}, nil
}

// checkCompletion runs the course-progress read after a committed pass so a finished course is
// certified right away. The submission is already durable, so failures are only logged; the next
// progress read retries the award.
func (s *QuizService) checkCompletion(ctx context.Context, userID, courseID string) {
	_, err := s.GetCourseProgress(ctx, userID, courseID)
	if err != nil && !errors.Is(err, domain.ErrCourseNotFound) {
		s.log.ErrorErr("course completion check failed", err, "user_id", userID, "course_id", courseID)
	}
}

func validateSubmission(userID string, sub domain.QuizSubmission) error {
	var missing []string
	if strings.TrimSpace(userID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(sub.QuizID) == "" {
		missing = append(missing, "quizId")
	}
	if strings.TrimSpace(sub.LessonID) == "" {
		missing = append(missing, "lessonId")
	}
	if strings.TrimSpace(sub.CourseID) == "" {
		missing = append(missing, "courseId")
	}
	if len(missing) > 0 {
		return domain.Validationf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func rejectedOr(err error) string {
	if domain.KindOf(err) == domain.KindInternal {
		return "error"
	}
	return "rejected"
}

func resultMessage(g domain.Grade, xp int) string {
	if g.Passed {
		return fmt.Sprintf("Congratulations! You passed with %d%% and earned %d XP!", g.Score, xp)
	}
	return fmt.Sprintf("You scored %d%%. You need %d%% to pass. Keep trying!", g.Score, PassingScore)
}

// GetUserAttempts lists the user's attempts, most recent first.
func (s *QuizService) GetUserAttempts(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.QuizAttempt, error) {
	return s.attempts.ListByUser(ctx, userID, filter)
}

// GetAttempt returns one attempt or domain.ErrAttemptNotFound.
func (s *QuizService) GetAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	return s.attempts.Get(ctx, attemptID)
}

// GetUserProgress lists the user's progress rows.
func (s *QuizService) GetUserProgress(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.UserProgress, error) {
	return s.progress.List(ctx, userID, filter)
}

// GetCourseProgress computes the course aggregate. This read is where completion is detected:
// a completed course gets its certificate awarded here, idempotently.
func (s *QuizService) GetCourseProgress(ctx context.Context, userID, courseID string) (domain.CourseProgress, error) {
	cp, err := s.progress.CourseProgress(ctx, userID, courseID)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	if !cp.IsCompleted {
		return cp, nil
	}

	// the bonus tier follows the rounded average: lessons at 90 and 89 earn the 90+ tier
	cert, issued, err := s.certificates.MaybeAward(ctx, userID, courseID, cp.AverageScore)
	if err != nil {
		return domain.CourseProgress{}, err
	}
	if issued {
		s.log.Info("certificate issued",
			"user_id", userID, "course_id", courseID,
			"certificate_number", cert.CertificateNumber, "xp", cert.XPEarned)
		s.publishLeaderboard(ctx)
		s.notifyAsync(ctx, "certificate_issued", func(ctx context.Context) error {
			return s.notifier.CertificateIssued(ctx, domain.CertificateIssuedEvent{
				CertificateID:     cert.ID,
				CertificateNumber: cert.CertificateNumber,
				UserID:            userID,
				CourseID:          courseID,
				FinalScore:        cert.FinalScore,
				XPEarned:          cert.XPEarned,
				OccurredAt:        cert.IssuedAt,
			})
		})
	}
	return cp, nil
}

// GetAllCoursesProgress runs GetCourseProgress for every catalog course.
func (s *QuizService) GetAllCoursesProgress(ctx context.Context, userID string) ([]domain.CourseProgress, error) {
	courseIDs, err := s.catalog.CourseIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CourseProgress, len(courseIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(courseProgressFanout)
	for i, id := range courseIDs {
		i, id := i, id
		g.Go(func() error {
			cp, err := s.GetCourseProgress(gctx, userID, id)
			if err != nil {
				return err
			}
			out[i] = cp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserStats summarizes balance, ledger activity, certificates and completed courses.
func (s *QuizService) GetUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	account, err := s.ledger.Account(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	activity, err := s.ledger.ActivityStats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	certs, err := s.certificates.ForUser(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	completed, err := s.completedCourses(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}

	stats := domain.UserStats{
		UserID:             userID,
		CurrentXP:          account.XP,
		CertificatesEarned: len(certs),
		CoursesCompleted:   completed,
	}
	for _, a := range activity {
		stats.TotalXP += a.TotalXP
		stats.TotalActivities += a.Count
	}
	return stats, nil
}

// completedCourses counts courses the user has progress in whose derived completion holds.
// It reads progress only and never awards certificates.
func (s *QuizService) completedCourses(ctx context.Context, userID string) (int, error) {
	rows, err := s.progress.List(ctx, userID, domain.AttemptFilter{})
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{})
	completed := 0
	for _, row := range rows {
		if _, ok := seen[row.CourseID]; ok {
			continue
		}
		seen[row.CourseID] = struct{}{}
		cp, err := s.progress.CourseProgress(ctx, userID, row.CourseID)
		if errors.Is(err, domain.ErrCourseNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if cp.IsCompleted {
			completed++
		}
	}
	return completed, nil
}

// GetXPLeaderboard ranks users by XP balance.
func (s *QuizService) GetXPLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	return s.ledger.Leaderboard(ctx, limit)
}

// GetXPHistory lists the user's ledger entries, newest first.
func (s *QuizService) GetXPHistory(ctx context.Context, filter domain.XPHistoryFilter) ([]domain.XPLedgerEntry, error) {
	return s.ledger.History(ctx, filter)
}

func (s *QuizService) GetActivityStats(ctx context.Context, userID string) ([]domain.ActivityStat, error) {
	return s.ledger.ActivityStats(ctx, userID)
}

func (s *QuizService) GetRecentActivity(ctx context.Context, userID string, limit int) ([]domain.XPLedgerEntry, error) {
	return s.ledger.RecentActivity(ctx, userID, limit)
}

func (s *QuizService) GetUserCertificates(ctx context.Context, userID string) ([]domain.UserCertificate, error) {
	return s.certificates.ForUser(ctx, userID)
}

func (s *QuizService) GetRecentCertificates(ctx context.Context, limit int) ([]domain.UserCertificate, error) {
	return s.certificates.Recent(ctx, limit)
}

func (s *QuizService) GetCertificate(ctx context.Context, id string) (domain.UserCertificate, error) {
	return s.certificates.Get(ctx, id)
}

func (s *QuizService) VerifyCertificate(ctx context.Context, number string) (domain.UserCertificate, error) {
	return s.certificates.Verify(ctx, number)
}

func (s *QuizService) GetCertificateStats(ctx context.Context, userID string) (domain.CertificateStats, error) {
	return s.certificates.Stats(ctx, userID)
}

// SubscribeLeaderboard streams leaderboard snapshots, starting with the current one.
func (s *QuizService) SubscribeLeaderboard(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	if s.hub == nil {
		return nil, nil, domain.Internal("leaderboard stream is not configured", nil)
	}
	return s.hub.Subscribe(ctx)
}

// OpenAccount is the identity-layer hook that creates a learner's zero-balance account.
func (s *QuizService) OpenAccount(ctx context.Context, userID, displayName string) (domain.Account, error) {
	account, err := s.ledger.OpenAccount(ctx, userID, displayName)
	if err != nil {
		return domain.Account{}, err
	}
	s.publishLeaderboard(ctx)
	return account, nil
}

// AdjustXP applies an out-of-band XP change such as a bonus or penalty.
func (s *QuizService) AdjustXP(ctx context.Context, userID string, amount int, activity domain.ActivityType, reason string) (domain.XPLedgerEntry, error) {
	entry, err := s.ledger.Adjust(ctx, userID, amount, activity, reason)
	if err != nil {
		return domain.XPLedgerEntry{}, err
	}
	s.log.Info("xp adjusted", "user_id", userID, "activity", activity, "delta", entry.XPChange, "new_xp", entry.NewXP)
	s.publishLeaderboard(ctx)
	return entry, nil
}

// VerifyLedger replays the user's ledger and checks it against the balance.
func (s *QuizService) VerifyLedger(ctx context.Context, userID string) (domain.LedgerReport, error) {
	return s.ledger.Verify(ctx, userID)
}

// WaitNotifications blocks until in-flight notifications finish. Used on shutdown and in tests.
func (s *QuizService) WaitNotifications() {
	s.notifications.Wait()
}

func (s *QuizService) publishLeaderboard(ctx context.Context) {
	if s.hub == nil {
		return
	}
	if _, err := s.hub.Publish(ctx); err != nil {
		s.log.ErrorErr("leaderboard publish failed", err)
	}
}

// notifyAsync hands an event to the notifier without blocking the caller. Failures are logged.
func (s *QuizService) notifyAsync(ctx context.Context, event string, send func(ctx context.Context) error) {
	if s.notifier == nil {
		return
	}
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer func() {
			if r := recover(); r != nil {
				notificationFailures.WithLabelValues(event).Inc()
				s.log.Error("notification panicked", "event", event, "panic", r)
			}
		}()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := send(nctx); err != nil {
			notificationFailures.WithLabelValues(event).Inc()
			s.log.ErrorErr("notification failed", err, "event", event)
		}
	}()
}
