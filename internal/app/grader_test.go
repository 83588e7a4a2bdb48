package app_test

import (
	"errors"
	"testing"

	"academy-ledger-service/internal/app"
	"academy-ledger-service/internal/domain"
)

func TestGradeQuizScores(t *testing.T) {
	quiz := threeQuestionQuiz()
	cases := []struct {
		correct int
		score   int
		passed  bool
		xp      int
	}{
		{0, 0, false, 5},
		{1, 33, false, 5},
		{2, 67, false, 5},
		{3, 100, true, 80},
	}
	for _, tc := range cases {
		g, err := app.GradeQuiz(quiz, answersFor(quiz, tc.correct))
		if err != nil {
			t.Fatalf("grade %d correct: %v", tc.correct, err)
		}
		if g.Score != tc.score || g.Passed != tc.passed || g.CorrectAnswers != tc.correct || g.TotalQuestions != 3 {
			t.Fatalf("%d correct: unexpected grade %+v", tc.correct, g)
		}
		if xp := app.QuizXP(g); xp != tc.xp {
			t.Fatalf("%d correct: expected %d XP, got %d", tc.correct, tc.xp, xp)
		}
	}
}

func TestGradeQuizRoundsHalfUp(t *testing.T) {
	questions := make([]domain.Question, 8)
	for i := range questions {
		questions[i] = domain.Question{Options: []string{"a", "b"}, CorrectIndex: 0}
	}
	quiz := domain.Quiz{ID: "q8", Questions: questions}

	// 7/8 = 87.5 rounds to 88
	g, err := app.GradeQuiz(quiz, answersFor(quiz, 7))
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if g.Score != 88 {
		t.Fatalf("expected 88, got %d", g.Score)
	}
}

func TestGradeQuizPassBoundary(t *testing.T) {
	quiz := tenQuestionQuiz()
	g, _ := app.GradeQuiz(quiz, answersFor(quiz, 7))
	if !g.Passed || g.Score != 70 {
		t.Fatalf("expected 70 to pass, got %+v", g)
	}
	g, _ = app.GradeQuiz(quiz, answersFor(quiz, 6))
	if g.Passed {
		t.Fatalf("expected 60 to fail, got %+v", g)
	}
}

func TestGradeQuizOutOfRangeIndexIsIncorrect(t *testing.T) {
	quiz := threeQuestionQuiz()
	answers := answersFor(quiz, 3)
	answers[0].QuestionIndex = -1
	answers[1].QuestionIndex = 7

	g, err := app.GradeQuiz(quiz, answers)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if g.CorrectAnswers != 1 || g.Answers[0].IsCorrect || g.Answers[1].IsCorrect || !g.Answers[2].IsCorrect {
		t.Fatalf("unexpected grade %+v", g)
	}
}

func TestGradeQuizRejectsWrongAnswerCount(t *testing.T) {
	quiz := threeQuestionQuiz()
	_, err := app.GradeQuiz(quiz, answersFor(quiz, 3)[:1])
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if domain.PublicMessage(err) != "invalid answers format: expected 3 answers but got 1" {
		t.Fatalf("unexpected message %q", domain.PublicMessage(err))
	}
}

func TestQuizXPBonuses(t *testing.T) {
	cases := []struct {
		score, total, xp int
	}{
		{70, 5, 50},
		{80, 5, 70},
		{89, 5, 70},
		{90, 5, 80},
		{100, 10, 90},
		{75, 12, 60},
	}
	for _, tc := range cases {
		g := domain.Grade{Score: tc.score, TotalQuestions: tc.total, Passed: tc.score >= app.PassingScore}
		if xp := app.QuizXP(g); xp != tc.xp {
			t.Fatalf("score %d total %d: expected %d XP, got %d", tc.score, tc.total, tc.xp, xp)
		}
	}
}

func TestCertificateXP(t *testing.T) {
	for score, want := range map[int]int{70: 200, 80: 250, 85: 250, 90: 300, 100: 300} {
		if got := app.CertificateXP(score); got != want {
			t.Fatalf("score %d: expected %d, got %d", score, want, got)
		}
	}
}
