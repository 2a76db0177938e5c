package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ValidationType is the test-level policy governing whether non-objective
// questions can ever earn points.
type ValidationType string

const (
	ValidationAutomatic ValidationType = "automatic"
	ValidationManual    ValidationType = "manual"
	ValidationMixed     ValidationType = "mixed"
)

// Test is the immutable (during an attempt) configuration of an assessment.
// Authoring lives in an external system; this service only reads definitions
// and syncs them through the import boundary.
type Test struct {
	ID           uint   `gorm:"primarykey" json:"id"`
	Title        string `json:"title" gorm:"not null"`
	Description  string `json:"description,omitempty"`
	InstructorID uint   `json:"instructor_id" gorm:"not null;index"`
	CourseID     *uint  `json:"course_id,omitempty" gorm:"index"`

	DurationMinutes *int           `json:"duration_minutes,omitempty"` // nil = untimed
	MaxAttempts     *int           `json:"max_attempts,omitempty"`     // nil = unlimited
	PassingScore    float64        `json:"passing_score" gorm:"not null"`
	ValidationType  ValidationType `json:"validation_type" gorm:"not null;default:'automatic'"`

	ShowResultsImmediately bool `json:"show_results_immediately" gorm:"default:true"`
	ShowCorrectAnswers     bool `json:"show_correct_answers" gorm:"default:false"`
	RandomizeQuestions     bool `json:"randomize_questions" gorm:"default:false"`
	RandomizeOptions       bool `json:"randomize_options" gorm:"default:false"`
	OneQuestionPerPage     bool `json:"one_question_per_page" gorm:"default:false"`
	AllowBackNavigation    bool `json:"allow_back_navigation" gorm:"default:true"`
	AutoSaveDraft          bool `json:"auto_save_draft" gorm:"default:true"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Validate checks the test-level invariants.
func (t *Test) Validate() error {
	if t.PassingScore < 0 || t.PassingScore > 100 {
		return fmt.Errorf("passing_score must be within [0,100], got %.2f", t.PassingScore)
	}
	switch t.ValidationType {
	case ValidationAutomatic, ValidationManual, ValidationMixed:
	default:
		return fmt.Errorf("unknown validation_type %q", t.ValidationType)
	}
	if t.DurationMinutes != nil && *t.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive when set, got %d", *t.DurationMinutes)
	}
	if t.MaxAttempts != nil && *t.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive when set, got %d", *t.MaxAttempts)
	}
	for i := range t.Questions {
		if err := t.Questions[i].Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

// TotalPoints sums the points of all questions.
func (t *Test) TotalPoints() int {
	total := 0
	for i := range t.Questions {
		total += t.Questions[i].Points
	}
	return total
}

// Timed reports whether the test carries a wall-clock limit.
func (t *Test) Timed() bool {
	return t.DurationMinutes != nil
}
