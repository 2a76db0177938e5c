package model

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Answer is one user response within a submission, unique per
// (submission, question). Exactly one of the value fields is populated,
// matching the question type. is_correct and points_earned stay null until
// the authoritative scoring step (automatic or manual) fills them.
type Answer struct {
	ID           uint     `gorm:"primarykey" json:"id"`
	SubmissionID uint     `json:"submission_id" gorm:"not null;index;uniqueIndex:idx_submission_question"`
	QuestionID   uint     `json:"question_id" gorm:"not null;index;uniqueIndex:idx_submission_question"`
	Question     Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`

	SelectedOptionIDs []uint  `json:"selected_option_ids,omitempty" gorm:"serializer:json"`
	AnswerText        *string `json:"answer_text,omitempty" gorm:"type:text"`
	AnswerFileURL     *string `json:"answer_file_url,omitempty"`

	IsCorrect    *bool    `json:"is_correct,omitempty"`
	PointsEarned *float64 `json:"points_earned,omitempty"`
	Feedback     *string  `json:"feedback,omitempty" gorm:"type:text"`

	// Advisory Gemini output for the instructor on free-text answers.
	// Never authoritative: points_earned/is_correct only ever come from the
	// scoring engine or the grading workflow.
	AISuggestedPoints   *float64 `json:"ai_suggested_points,omitempty"`
	AISuggestedFeedback *string  `json:"ai_suggested_feedback,omitempty" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AnswerValue is the tagged union of the answer shapes a question type can
// take: option selections for choice types, text for short/long answer, a
// file reference for uploads.
type AnswerValue struct {
	SelectedOptionIDs []uint  `json:"selected_option_ids,omitempty"`
	Text              *string `json:"answer_text,omitempty"`
	FileURL           *string `json:"answer_file_url,omitempty"`
}

// ValidateFor checks that exactly the variant matching the question type is
// populated.
func (v AnswerValue) ValidateFor(qt QuestionType) error {
	populated := 0
	if len(v.SelectedOptionIDs) > 0 {
		populated++
	}
	if v.Text != nil && *v.Text != "" {
		populated++
	}
	if v.FileURL != nil && *v.FileURL != "" {
		populated++
	}
	if populated == 0 {
		return fmt.Errorf("answer value is empty")
	}
	if populated > 1 {
		return fmt.Errorf("answer value must populate exactly one of options, text, file")
	}
	switch qt {
	case SingleChoice, TrueFalse:
		if len(v.SelectedOptionIDs) != 1 {
			return fmt.Errorf("%s answer must select exactly one option", qt)
		}
	case MultipleChoice:
		if len(v.SelectedOptionIDs) == 0 {
			return fmt.Errorf("multiple_choice answer must select at least one option")
		}
	case ShortAnswer, LongAnswer:
		if v.Text == nil || *v.Text == "" {
			return fmt.Errorf("%s answer must carry text", qt)
		}
	case FileUpload:
		if v.FileURL == nil || *v.FileURL == "" {
			return fmt.Errorf("file_upload answer must carry a file reference")
		}
	default:
		return fmt.Errorf("unknown question type %q", qt)
	}
	return nil
}

// Empty reports whether no variant is populated.
func (v AnswerValue) Empty() bool {
	return len(v.SelectedOptionIDs) == 0 &&
		(v.Text == nil || *v.Text == "") &&
		(v.FileURL == nil || *v.FileURL == "")
}

// NewAnswer builds an Answer row from a value; the value must already be
// validated against the question type.
func NewAnswer(submissionID, questionID uint, v AnswerValue) Answer {
	return Answer{
		SubmissionID:      submissionID,
		QuestionID:        questionID,
		SelectedOptionIDs: v.SelectedOptionIDs,
		AnswerText:        v.Text,
		AnswerFileURL:     v.FileURL,
	}
}

// Value reconstructs the tagged union from a persisted row.
func (a *Answer) Value() AnswerValue {
	return AnswerValue{
		SelectedOptionIDs: a.SelectedOptionIDs,
		Text:              a.AnswerText,
		FileURL:           a.AnswerFileURL,
	}
}
