package app

import (
	"context"

	"academy-ledger-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizStore persists quiz definitions published by content authoring.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

// QuizInvalidator is implemented by quiz caches that must drop a definition once it changes.
type QuizInvalidator interface {
	Invalidate(ctx context.Context, quizID string) error
}

// CourseCatalog is the read-only view of course structure owned by content authoring.
type CourseCatalog interface {
	// LessonsForCourse returns the lesson ids of a course, or domain.ErrCourseNotFound.
	LessonsForCourse(ctx context.Context, courseID string) ([]string, error)
	// CertificateTemplateForCourse returns "" when the course awards no certificate.
	CertificateTemplateForCourse(ctx context.Context, courseID string) (string, error)
	CourseIDs(ctx context.Context) ([]string, error)
}

// Transactor runs fn as one atomic unit. Nested calls join the outer unit.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AttemptRepository stores immutable quiz attempts. Create must reject a second attempt
// for the same AttemptKey with domain.ErrDuplicateAttempt.
type AttemptRepository interface {
	Exists(ctx context.Context, key domain.AttemptKey) (bool, error)
	Create(ctx context.Context, attempt domain.QuizAttempt) error
	Get(ctx context.Context, id string) (domain.QuizAttempt, error)
	ListByUser(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.QuizAttempt, error)
}

// ProgressRepository stores progress rows. Update applies fn to the current row (a zero row
// with the key filled in when none exists) while holding the row exclusively.
type ProgressRepository interface {
	Update(ctx context.Context, key domain.ProgressKey, fn func(domain.UserProgress) domain.UserProgress) (domain.UserProgress, error)
	List(ctx context.Context, userID string, filter domain.AttemptFilter) ([]domain.UserProgress, error)
}

// LedgerRepository is the write side of XP balances. Append must increment the balance and
// persist the entry as one atomic step, filling PreviousXP and NewXP from the increment.
// Only the Ledger is given this interface.
type LedgerRepository interface {
	OpenAccount(ctx context.Context, account domain.Account) (domain.Account, error)
	Account(ctx context.Context, userID string) (domain.Account, error)
	Append(ctx context.Context, entry domain.XPLedgerEntry) (domain.XPLedgerEntry, error)
	// Entries lists newest first.
	Entries(ctx context.Context, filter domain.XPHistoryFilter) ([]domain.XPLedgerEntry, error)
	// Chain lists a user's entries in creation order.
	Chain(ctx context.Context, userID string) ([]domain.XPLedgerEntry, error)
	ActivityStats(ctx context.Context, userID string) ([]domain.ActivityStat, error)
	// Leaderboard returns accounts by balance descending; ranks are filled by the caller.
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// CertificateRepository stores issued certificates. Create must reject a second certificate
// for the same (user, course) with domain.ErrCertificateExists.
type CertificateRepository interface {
	Exists(ctx context.Context, userID, courseID string) (bool, error)
	Create(ctx context.Context, cert domain.UserCertificate) error
	Get(ctx context.Context, id string) (domain.UserCertificate, error)
	GetByNumber(ctx context.Context, number string) (domain.UserCertificate, error)
	// ListByUser lists newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.UserCertificate, error)
	// ListRecent lists certificates of all users, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.UserCertificate, error)
}

// SubmissionGuard marks submissions in flight so concurrent duplicates fail fast.
// It is an optimization; the attempt store remains the authority.
type SubmissionGuard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
}

// LeaderboardCache memoizes leaderboard reads.
type LeaderboardCache interface {
	Leaderboard(ctx context.Context, limit int, load func(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)) ([]domain.LeaderboardEntry, error)
	Invalidate(ctx context.Context) error
}

// Notifier is the fire-and-forget notification collaborator.
type Notifier interface {
	QuizCompleted(ctx context.Context, event domain.QuizCompletedEvent) error
	CertificateIssued(ctx context.Context, event domain.CertificateIssuedEvent) error
}
