package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	LongAnswer     QuestionType = "long_answer"
	FileUpload     QuestionType = "file_upload"
)

// Objective reports whether the type is scorable without human judgment.
func (qt QuestionType) Objective() bool {
	switch qt {
	case SingleChoice, MultipleChoice, TrueFalse:
		return true
	}
	return false
}

// HasOptions reports whether the type carries an option list.
func (qt QuestionType) HasOptions() bool {
	return qt.Objective()
}

func (qt QuestionType) Valid() bool {
	switch qt {
	case SingleChoice, MultipleChoice, TrueFalse, ShortAnswer, LongAnswer, FileUpload:
		return true
	}
	return false
}

type Question struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	TestID      uint           `json:"test_id" gorm:"not null;index"`
	Prompt      string         `json:"prompt" gorm:"type:text;not null"`
	Type        QuestionType   `json:"type" gorm:"not null"`
	Points      int            `json:"points" gorm:"not null"`
	IsRequired  bool           `json:"is_required" gorm:"default:false"`
	OrderInTest int            `json:"order_in_test" gorm:"not null"`
	Options     []QuestionOption `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type QuestionOption struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	QuestionID      uint           `json:"question_id" gorm:"not null;index"`
	Text            string         `json:"text" gorm:"type:text;not null"`
	IsCorrect       bool           `json:"is_correct" gorm:"default:false"`
	OrderInQuestion int            `json:"order_in_question" gorm:"not null"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// CorrectOptionIDs returns the ids of all options flagged correct, in option order.
func (q *Question) CorrectOptionIDs() []uint {
	var ids []uint
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			ids = append(ids, q.Options[i].ID)
		}
	}
	return ids
}

// Validate checks the question invariants: choice types carry a well-formed
// option set (single_choice/true_false exactly one correct, multiple_choice at
// least one); text and file types carry none.
func (q *Question) Validate() error {
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if q.Points <= 0 {
		return fmt.Errorf("points must be positive, got %d", q.Points)
	}
	if !q.Type.HasOptions() {
		if len(q.Options) > 0 {
			return fmt.Errorf("%s question must not have options", q.Type)
		}
		return nil
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("%s question must have options", q.Type)
	}
	correct := 0
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			correct++
		}
	}
	switch q.Type {
	case SingleChoice, TrueFalse:
		if correct != 1 {
			return fmt.Errorf("%s question must have exactly one correct option, got %d", q.Type, correct)
		}
		if q.Type == TrueFalse && len(q.Options) != 2 {
			return fmt.Errorf("true_false question must have exactly 2 options, got %d", len(q.Options))
		}
	case MultipleChoice:
		if correct < 1 {
			return fmt.Errorf("multiple_choice question must have at least one correct option")
		}
	}
	return nil
}
