package app

import "academy-ledger-service/internal/domain"

// PassingScore is the fixed pass threshold in percent.
const PassingScore = 70

const (
	failedAttemptXP  = 5
	passXP           = 50
	excellentBonusXP = 30
	highBonusXP      = 20
	longQuizBonusXP  = 10
	longQuizMinSize  = 10
)

// GradeQuiz scores answers against quiz. It fails with a validation error when the answer
// count does not match the question count; an out-of-range question index counts as wrong.
func GradeQuiz(quiz domain.Quiz, answers []domain.Answer) (domain.Grade, error) {
	total := len(quiz.Questions)
	if total == 0 {
		return domain.Grade{}, domain.Validationf("quiz %s has no questions", quiz.ID)
	}
	if len(answers) != total {
		return domain.Grade{}, domain.Validationf(
			"invalid answers format: expected %d answers but got %d", total, len(answers))
	}

	graded := make([]domain.GradedAnswer, 0, len(answers))
	correct := 0
	for _, a := range answers {
		ok := a.QuestionIndex >= 0 && a.QuestionIndex < total &&
			a.SelectedAnswer == quiz.Questions[a.QuestionIndex].CorrectIndex
		if ok {
			correct++
		}
		graded = append(graded, domain.GradedAnswer{
			QuestionIndex:  a.QuestionIndex,
			SelectedAnswer: a.SelectedAnswer,
			IsCorrect:      ok,
		})
	}

	score := roundPercent(correct, total)
	return domain.Grade{
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Passed:         score >= PassingScore,
		Answers:        graded,
	}, nil
}

// QuizXP is the XP awarded for a graded attempt.
func QuizXP(g domain.Grade) int {
	if !g.Passed {
		return failedAttemptXP
	}
	xp := passXP
	switch {
	case g.Score >= 90:
		xp += excellentBonusXP
	case g.Score >= 80:
		xp += highBonusXP
	}
	if g.TotalQuestions >= longQuizMinSize {
		xp += longQuizBonusXP
	}
	return xp
}

// roundPercent is round-half-up of part/whole*100 in integer arithmetic.
func roundPercent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}

// roundAverage is round-half-up of sum/n.
func roundAverage(sum, n int) int {
	if n <= 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}
