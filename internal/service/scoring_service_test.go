package service

import (
	"testing"

	"github.com/openlms/assessment-engine/internal/model"
)

func choiceQuestion(id uint, qt model.QuestionType, points int, correct []uint, wrong []uint) model.Question {
	q := model.Question{ID: id, Type: qt, Points: points, Prompt: "q"}
	order := 1
	for _, optID := range correct {
		q.Options = append(q.Options, model.QuestionOption{ID: optID, IsCorrect: true, OrderInQuestion: order})
		order++
	}
	for _, optID := range wrong {
		q.Options = append(q.Options, model.QuestionOption{ID: optID, OrderInQuestion: order})
		order++
	}
	return q
}

func TestScoreObjectiveExactMatch(t *testing.T) {
	test := &model.Test{
		ValidationType: model.ValidationAutomatic,
		Questions: []model.Question{
			choiceQuestion(1, model.SingleChoice, 2, []uint{11}, []uint{12, 13}),
			choiceQuestion(2, model.MultipleChoice, 3, []uint{21, 23}, []uint{22}),
			choiceQuestion(3, model.TrueFalse, 1, []uint{31}, []uint{32}),
		},
	}

	cases := []struct {
		name      string
		answers   map[uint]model.AnswerValue
		wantScore float64
		wantQ2    *bool
	}{
		{
			name: "all correct",
			answers: map[uint]model.AnswerValue{
				1: {SelectedOptionIDs: []uint{11}},
				2: {SelectedOptionIDs: []uint{21, 23}},
				3: {SelectedOptionIDs: []uint{31}},
			},
			wantScore: 6,
			wantQ2:    boolPtr(true),
		},
		{
			name: "multiple choice order does not matter",
			answers: map[uint]model.AnswerValue{
				2: {SelectedOptionIDs: []uint{23, 21}},
			},
			wantScore: 3,
			wantQ2:    boolPtr(true),
		},
		{
			name: "subset of correct options earns nothing",
			answers: map[uint]model.AnswerValue{
				2: {SelectedOptionIDs: []uint{21}},
			},
			wantScore: 0,
			wantQ2:    boolPtr(false),
		},
		{
			name: "superset earns nothing",
			answers: map[uint]model.AnswerValue{
				2: {SelectedOptionIDs: []uint{21, 22, 23}},
			},
			wantScore: 0,
			wantQ2:    boolPtr(false),
		},
		{
			name: "duplicate selection of a correct option earns nothing",
			answers: map[uint]model.AnswerValue{
				2: {SelectedOptionIDs: []uint{21, 21}},
			},
			wantScore: 0,
			wantQ2:    boolPtr(false),
		},
		{
			name: "wrong single choice",
			answers: map[uint]model.AnswerValue{
				1: {SelectedOptionIDs: []uint{12}},
			},
			wantScore: 0,
		},
	}

	scoring := NewScoringService()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			summary := scoring.Score(test, tc.answers)
			if summary.AutoScore != tc.wantScore {
				t.Errorf("AutoScore = %v, want %v", summary.AutoScore, tc.wantScore)
			}
			if summary.PendingManual {
				t.Error("PendingManual = true for a fully objective test")
			}
			if tc.wantQ2 != nil {
				result, ok := summary.Results[2]
				if !ok || result.IsCorrect == nil {
					t.Fatal("question 2 missing from results")
				}
				if *result.IsCorrect != *tc.wantQ2 {
					t.Errorf("question 2 IsCorrect = %v, want %v", *result.IsCorrect, *tc.wantQ2)
				}
			}
		})
	}
}

func TestScoreUnansweredQuestionsSkipped(t *testing.T) {
	test := &model.Test{
		ValidationType: model.ValidationAutomatic,
		Questions: []model.Question{
			choiceQuestion(1, model.SingleChoice, 2, []uint{11}, []uint{12}),
			choiceQuestion(2, model.SingleChoice, 2, []uint{21}, []uint{22}),
		},
	}
	summary := NewScoringService().Score(test, map[uint]model.AnswerValue{
		1: {SelectedOptionIDs: []uint{11}},
	})
	if summary.AutoScore != 2 {
		t.Errorf("AutoScore = %v, want 2", summary.AutoScore)
	}
	if _, ok := summary.Results[2]; ok {
		t.Error("unanswered question must not appear in results")
	}
}

func TestScorePendingManualDerivation(t *testing.T) {
	textQuestion := model.Question{ID: 4, Type: model.LongAnswer, Points: 5, Prompt: "essay"}

	cases := []struct {
		name        string
		validation  model.ValidationType
		wantPending bool
	}{
		{"mixed admits manual grading", model.ValidationMixed, true},
		{"manual admits manual grading", model.ValidationManual, true},
		{"automatic never queues for grading", model.ValidationAutomatic, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			test := &model.Test{
				ValidationType: tc.validation,
				Questions: []model.Question{
					choiceQuestion(1, model.SingleChoice, 2, []uint{11}, []uint{12}),
					textQuestion,
				},
			}
			summary := NewScoringService().Score(test, map[uint]model.AnswerValue{
				1: {SelectedOptionIDs: []uint{11}},
				4: {Text: strPtr("my essay")},
			})
			if summary.PendingManual != tc.wantPending {
				t.Errorf("PendingManual = %v, want %v", summary.PendingManual, tc.wantPending)
			}
			// Text answers are never auto-scored, whatever the validation type.
			result, ok := summary.Results[4]
			if !ok {
				t.Fatal("answered text question missing from results")
			}
			if result.IsCorrect != nil || result.PointsEarned != nil {
				t.Error("text answer must stay unscored pending the instructor")
			}
			if summary.AutoScore != 2 {
				t.Errorf("AutoScore = %v, want 2 (text contributes nothing)", summary.AutoScore)
			}
		})
	}
}

// An unanswered manual question leaves nothing to grade; the submission must
// not park in the instructor queue over it.
func TestScorePendingManualRequiresAnsweredManualQuestion(t *testing.T) {
	test := &model.Test{
		ValidationType: model.ValidationMixed,
		Questions: []model.Question{
			choiceQuestion(1, model.SingleChoice, 2, []uint{11}, []uint{12}),
			{ID: 2, Type: model.ShortAnswer, Points: 5, Prompt: "define"},
		},
	}

	onlyObjective := NewScoringService().Score(test, map[uint]model.AnswerValue{
		1: {SelectedOptionIDs: []uint{11}},
	})
	if onlyObjective.PendingManual {
		t.Error("PendingManual = true with the manual question unanswered, want false")
	}
	if onlyObjective.AutoScore != 2 {
		t.Errorf("AutoScore = %v, want 2", onlyObjective.AutoScore)
	}

	nothing := NewScoringService().Score(test, nil)
	if nothing.PendingManual {
		t.Error("PendingManual = true with no answers at all, want false")
	}

	answered := NewScoringService().Score(test, map[uint]model.AnswerValue{
		2: {Text: strPtr("a definition")},
	})
	if !answered.PendingManual {
		t.Error("PendingManual = false with the manual question answered, want true")
	}
}

func boolPtr(b bool) *bool { return &b }
