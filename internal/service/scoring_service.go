package service

import (
	"github.com/openlms/assessment-engine/internal/model"
)

// QuestionScore is the outcome of evaluating one answer. IsCorrect and
// PointsEarned stay nil for answers that await manual grading.
type QuestionScore struct {
	QuestionID   uint
	IsCorrect    *bool
	PointsEarned *float64
}

// ScoreSummary aggregates an evaluation run over a finalized answer set.
type ScoreSummary struct {
	Results map[uint]QuestionScore // keyed by question ID; only answered questions appear
	// AutoScore is the sum of points earned on automatically scored questions.
	AutoScore float64
	// PendingManual is true when at least one non-objective question was
	// answered and the validation type admits manual grading. Derived once at
	// submit time and stored on the submission. Unanswered manual questions
	// leave nothing to grade, so they never queue the submission.
	PendingManual bool
}

// ScoringService evaluates a finalized answer set against the test's question
// definitions. It is pure: no persistence, no clock.
type ScoringService interface {
	Score(test *model.Test, answers map[uint]model.AnswerValue) ScoreSummary
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

func (s *scoringService) Score(test *model.Test, answers map[uint]model.AnswerValue) ScoreSummary {
	summary := ScoreSummary{Results: make(map[uint]QuestionScore, len(answers))}

	manualAdmitted := test.ValidationType == model.ValidationManual || test.ValidationType == model.ValidationMixed

	for i := range test.Questions {
		q := &test.Questions[i]

		value, answered := answers[q.ID]
		if !answered || value.Empty() {
			continue
		}

		if !q.Type.Objective() {
			// Free-text and file answers are never automatically scorable.
			// Under automatic-only validation they contribute 0 and are never
			// queued for grading; otherwise they stay null pending the
			// instructor.
			if manualAdmitted {
				summary.PendingManual = true
			}
			summary.Results[q.ID] = QuestionScore{QuestionID: q.ID}
			continue
		}

		correct := objectiveCorrect(q, value)
		points := 0.0
		if correct {
			points = float64(q.Points)
		}
		summary.AutoScore += points
		summary.Results[q.ID] = QuestionScore{
			QuestionID:   q.ID,
			IsCorrect:    &correct,
			PointsEarned: &points,
		}
	}

	return summary
}

// objectiveCorrect applies the exact-match rule: single_choice and true_false
// require the one correct option; multiple_choice requires set equality with
// the correct option set. No partial credit.
func objectiveCorrect(q *model.Question, value model.AnswerValue) bool {
	correctIDs := q.CorrectOptionIDs()
	selected := value.SelectedOptionIDs

	switch q.Type {
	case model.SingleChoice, model.TrueFalse:
		return len(selected) == 1 && len(correctIDs) == 1 && selected[0] == correctIDs[0]
	case model.MultipleChoice:
		if len(selected) != len(correctIDs) {
			return false
		}
		want := make(map[uint]bool, len(correctIDs))
		for _, id := range correctIDs {
			want[id] = true
		}
		seen := make(map[uint]bool, len(selected))
		for _, id := range selected {
			if !want[id] || seen[id] {
				return false
			}
			seen[id] = true
		}
		return true
	}
	return false
}
