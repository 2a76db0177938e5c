package dto

// StartAttemptRequest opens or resumes a draft submission for a test.
// User identity comes from the request until the auth layer lands.
type StartAttemptRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// RecordAnswerRequest buffers one answer on the active draft. Exactly one of
// the value fields must be populated, matching the question's type.
type RecordAnswerRequest struct {
	UserID            uint    `json:"user_id" binding:"required"`
	QuestionID        uint    `json:"question_id" binding:"required"`
	SelectedOptionIDs []uint  `json:"selected_option_ids,omitempty"`
	AnswerText        *string `json:"answer_text,omitempty"`
	AnswerFileURL     *string `json:"answer_file_url,omitempty"`
}

// SubmitAttemptRequest finalizes the draft.
type SubmitAttemptRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}

// QuestionGrade is one instructor-supplied manual grade.
type QuestionGrade struct {
	QuestionID uint    `json:"question_id" binding:"required"`
	Points     float64 `json:"points" binding:"min=0"`
	Feedback   *string `json:"feedback,omitempty"`
}

// GradeSubmissionRequest carries the manual grades for every answer awaiting
// instructor review on one submission.
type GradeSubmissionRequest struct {
	GraderID uint            `json:"grader_id" binding:"required"`
	Comments *string         `json:"comments,omitempty"`
	Grades   []QuestionGrade `json:"grades" binding:"required,min=1,dive"`
}

// --- Definition import (boundary with the external authoring system) ---

type ImportOptionRequest struct {
	Text            string `json:"text" binding:"required"`
	IsCorrect       bool   `json:"is_correct"`
	OrderInQuestion int    `json:"order_in_question" binding:"required,min=1"`
}

type ImportQuestionRequest struct {
	Prompt      string                `json:"prompt" binding:"required"`
	Type        string                `json:"type" binding:"required,oneof=single_choice multiple_choice true_false short_answer long_answer file_upload"`
	Points      int                   `json:"points" binding:"required,gt=0"`
	IsRequired  bool                  `json:"is_required"`
	OrderInTest int                   `json:"order_in_test" binding:"required,min=1"`
	Options     []ImportOptionRequest `json:"options,omitempty" binding:"omitempty,dive"`
}

type ImportTestRequest struct {
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description,omitempty"`
	InstructorID uint    `json:"instructor_id" binding:"required"`
	CourseID     *uint   `json:"course_id,omitempty"`
	DurationMinutes *int `json:"duration_minutes,omitempty"`
	MaxAttempts     *int `json:"max_attempts,omitempty"`
	PassingScore    float64 `json:"passing_score" binding:"min=0,max=100"`
	ValidationType  string  `json:"validation_type" binding:"required,oneof=automatic manual mixed"`

	ShowResultsImmediately bool `json:"show_results_immediately"`
	ShowCorrectAnswers     bool `json:"show_correct_answers"`
	RandomizeQuestions     bool `json:"randomize_questions"`
	RandomizeOptions       bool `json:"randomize_options"`
	OneQuestionPerPage     bool `json:"one_question_per_page"`
	AllowBackNavigation    bool `json:"allow_back_navigation"`
	AutoSaveDraft          bool `json:"auto_save_draft"`

	Questions []ImportQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
