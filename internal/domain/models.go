package domain

import (
	"fmt"
	"time"
)

// Question is a single multiple-choice question of a quiz.
type Question struct {
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Quiz is the read-only quiz definition owned by content authoring.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Course is the catalog view of a course: its lessons and the certificate it awards, if any.
type Course struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	LessonIDs             []string `json:"lessonIds"`
	CertificateTemplateID string   `json:"certificateTemplateId,omitempty"`
}

// Answer is one submitted (questionIndex, selectedAnswer) pair.
type Answer struct {
	QuestionIndex  int `json:"questionIndex"`
	SelectedAnswer int `json:"selectedAnswer"`
}

// GradedAnswer is a submitted answer annotated with its correctness.
type GradedAnswer struct {
	QuestionIndex  int  `json:"questionIndex"`
	SelectedAnswer int  `json:"selectedAnswer"`
	IsCorrect      bool `json:"isCorrect"`
}

// Grade is the outcome of scoring a submission against a quiz.
type Grade struct {
	Score          int
	CorrectAnswers int
	TotalQuestions int
	Passed         bool
	Answers        []GradedAnswer
}

// QuizSubmission is the payload a learner sends for one quiz.
type QuizSubmission struct {
	QuizID   string   `json:"quizId"`
	LessonID string   `json:"lessonId"`
	CourseID string   `json:"courseId"`
	Answers  []Answer `json:"answers"`
}

// AttemptKey is the natural key of a quiz attempt. At most one attempt exists per key.
type AttemptKey struct {
	UserID   string
	QuizID   string
	LessonID string
	CourseID string
}

func (k AttemptKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.UserID, k.QuizID, k.LessonID, k.CourseID)
}

// QuizAttempt is the immutable record of one submission.
type QuizAttempt struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	QuizID         string         `json:"quizId"`
	LessonID       string         `json:"lessonId"`
	CourseID       string         `json:"courseId"`
	Answers        []GradedAnswer `json:"answers"`
	Score          int            `json:"score"`
	TotalQuestions int            `json:"totalQuestions"`
	CorrectAnswers int            `json:"correctAnswers"`
	Passed         bool           `json:"passed"`
	XPEarned       int            `json:"xpEarned"`
	PassingScore   int            `json:"passingScore"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Key returns the natural key of the attempt.
func (a QuizAttempt) Key() AttemptKey {
	return AttemptKey{UserID: a.UserID, QuizID: a.QuizID, LessonID: a.LessonID, CourseID: a.CourseID}
}

// SubmissionResult is returned to the learner after a successful submission.
type SubmissionResult struct {
	ID             string `json:"id"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	CorrectAnswers int    `json:"correctAnswers"`
	XPEarned       int    `json:"xpEarned"`
	Passed         bool   `json:"passed"`
	Message        string `json:"message"`
}

// AttemptFilter narrows attempt and progress listings.
type AttemptFilter struct {
	CourseID string
	LessonID string
}

// ProgressKey identifies one progress row.
type ProgressKey struct {
	UserID   string
	CourseID string
	LessonID string
}

// UserProgress is the per-(user, course, lesson) completion state.
type UserProgress struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	CourseID    string     `json:"courseId"`
	LessonID    string     `json:"lessonId"`
	IsCompleted bool       `json:"isCompleted"`
	Score       int        `json:"score"`
	XPEarned    int        `json:"xpEarned"`
	Attempts    int        `json:"attempts"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Key returns the natural key of the row.
func (p UserProgress) Key() ProgressKey {
	return ProgressKey{UserID: p.UserID, CourseID: p.CourseID, LessonID: p.LessonID}
}

// AttemptOutcome is what the progress tracker learns from one graded submission.
type AttemptOutcome struct {
	UserID   string
	CourseID string
	LessonID string
	Score    int
	XPEarned int
	Passed   bool
}

// CourseProgress aggregates a user's progress rows for one course.
type CourseProgress struct {
	CourseID         string `json:"courseId"`
	TotalLessons     int    `json:"totalLessons"`
	CompletedLessons int    `json:"completedLessons"`
	TotalXP          int    `json:"totalXP"`
	AverageScore     int    `json:"averageScore"`
	IsCompleted      bool   `json:"isCompleted"`
}

// ActivityType classifies an XP ledger entry.
type ActivityType string

const (
	ActivityQuizCompletion    ActivityType = "quiz_completion"
	ActivityLessonCompletion  ActivityType = "lesson_completion"
	ActivityCourseCompletion  ActivityType = "course_completion"
	ActivityCertificateEarned ActivityType = "certificate_earned"
	ActivityBlogPollAnswered  ActivityType = "blog_poll_answered"
	ActivityBonus             ActivityType = "bonus"
	ActivityPenalty           ActivityType = "penalty"
	ActivitySignupBonus       ActivityType = "signup_bonus"
)

// Valid reports whether t is one of the known activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityQuizCompletion, ActivityLessonCompletion, ActivityCourseCompletion,
		ActivityCertificateEarned, ActivityBlogPollAnswered, ActivityBonus,
		ActivityPenalty, ActivitySignupBonus:
		return true
	}
	return false
}

// EntityRef points a ledger entry back at the thing that caused it.
type EntityRef struct {
	ID   string
	Type string
}

// XPChange is a request to move a user's balance.
type XPChange struct {
	UserID      string
	Delta       int
	Activity    ActivityType
	Description string
	Related     *EntityRef
}

// XPLedgerEntry is one immutable ledger row. NewXP is always PreviousXP + XPChange.
type XPLedgerEntry struct {
	ID                string       `json:"id"`
	Seq               int64        `json:"-"`
	UserID            string       `json:"userId"`
	XPChange          int          `json:"xpChange"`
	PreviousXP        int          `json:"previousXP"`
	NewXP             int          `json:"newXP"`
	ActivityType      ActivityType `json:"activityType"`
	Description       string       `json:"description"`
	RelatedEntityID   string       `json:"relatedEntityId,omitempty"`
	RelatedEntityType string       `json:"relatedEntityType,omitempty"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// XPHistoryFilter narrows ledger listings. Zero values mean "any".
type XPHistoryFilter struct {
	UserID       string
	ActivityType ActivityType
	// From and To bound created_at inclusively.
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// ActivityStat summarizes the ledger of one user per activity type.
type ActivityStat struct {
	ActivityType ActivityType `json:"activityType"`
	Count        int          `json:"count"`
	TotalXP      int          `json:"totalXP"`
}

// Account holds a user's materialized XP balance.
type Account struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	XP          int       `json:"xp"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LedgerReport is the result of replaying a user's ledger.
type LedgerReport struct {
	UserID    string `json:"userId"`
	Entries   int    `json:"entries"`
	FinalXP   int    `json:"finalXP"`
	BalanceXP int    `json:"balanceXP"`
	Valid     bool   `json:"valid"`
	// BrokenAt is the zero-based index of the first entry that breaks the chain, or -1.
	BrokenAt int    `json:"brokenAt"`
	Reason   string `json:"reason,omitempty"`
}

// LeaderboardEntry is a ranked view of an account.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	XP          int    `json:"xp"`
}

// Leaderboard is the ordered XP scoreboard.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// UserCertificate is issued at most once per (user, course).
type UserCertificate struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"userId"`
	CourseID              string    `json:"courseId"`
	CertificateTemplateID string    `json:"certificateId"`
	CertificateNumber     string    `json:"certificateNumber"`
	FinalScore            int       `json:"finalScore"`
	XPEarned              int       `json:"xpEarned"`
	IssuedAt              time.Time `json:"issuedAt"`
}

// CertificateStats summarizes a user's certificates.
type CertificateStats struct {
	TotalCertificates int               `json:"totalCertificates"`
	TotalXPEarned     int               `json:"totalXPEarned"`
	AverageScore      int               `json:"averageScore"`
	Certificates      []UserCertificate `json:"certificates"`
}

// UserStats is the gamification summary of one user.
type UserStats struct {
	UserID             string `json:"userId"`
	CurrentXP          int    `json:"currentXP"`
	TotalXP            int    `json:"totalXP"`
	TotalActivities    int    `json:"totalActivities"`
	CertificatesEarned int    `json:"certificatesEarned"`
	CoursesCompleted   int    `json:"coursesCompleted"`
}

// QuizCompletedEvent is handed to the notification collaborator after a submission.
type QuizCompletedEvent struct {
	AttemptID      string    `json:"attemptId"`
	UserID         string    `json:"userId"`
	DisplayName    string    `json:"displayName"`
	QuizID         string    `json:"quizId"`
	LessonID       string    `json:"lessonId"`
	CourseID       string    `json:"courseId"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Passed         bool      `json:"passed"`
	XPEarned       int       `json:"xpEarned"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// CertificateIssuedEvent is handed to the notification collaborator after issuance.
type CertificateIssuedEvent struct {
	CertificateID     string    `json:"certificateId"`
	CertificateNumber string    `json:"certificateNumber"`
	UserID            string    `json:"userId"`
	CourseID          string    `json:"courseId"`
	FinalScore        int       `json:"finalScore"`
	XPEarned          int       `json:"xpEarned"`
	OccurredAt        time.Time `json:"occurredAt"`
}
