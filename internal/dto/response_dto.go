package dto

import "time"

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// OptionDTO is the student-facing option view. It never carries the correct
// flag; graded results reveal correct options through AnswerDTO when the test
// is configured to show them.
type OptionDTO struct {
	ID              uint   `json:"id"`
	Text            string `json:"text"`
	OrderInQuestion int    `json:"order_in_question"`
}

type QuestionDTO struct {
	ID          uint        `json:"id"`
	TestID      uint        `json:"test_id"`
	Prompt      string      `json:"prompt"`
	Type        string      `json:"type"`
	Points      int         `json:"points"`
	IsRequired  bool        `json:"is_required"`
	OrderInTest int         `json:"order_in_test"`
	Options     []OptionDTO `json:"options,omitempty"`
}

type TestSummaryDTO struct {
	ID            uint      `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	QuestionCount int       `json:"question_count"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	MaxAttempts     *int    `json:"max_attempts,omitempty"`
	PassingScore    float64 `json:"passing_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// TestDetailDTO is the view served when a student opens a test. Question and
// option order reflect the attempt's deterministic shuffle when the test
// randomizes; display flags are echoed for the UI layer to enforce.
type TestDetailDTO struct {
	ID              uint          `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	DurationMinutes *int          `json:"duration_minutes,omitempty"`
	MaxAttempts     *int          `json:"max_attempts,omitempty"`
	PassingScore    float64       `json:"passing_score"`
	ValidationType  string        `json:"validation_type"`

	ShowResultsImmediately bool `json:"show_results_immediately"`
	ShowCorrectAnswers     bool `json:"show_correct_answers"`
	OneQuestionPerPage     bool `json:"one_question_per_page"`
	AllowBackNavigation    bool `json:"allow_back_navigation"`
	AutoSaveDraft          bool `json:"auto_save_draft"`

	Questions []QuestionDTO `json:"questions,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AttemptStateDTO is returned by start/resume: where the attempt stands and
// what has been answered so far.
type AttemptStateDTO struct {
	ID               uint        `json:"id"`
	TestID           uint        `json:"test_id"`
	AttemptNumber    int         `json:"attempt_number"`
	Status           string      `json:"status"`
	StartedAt        time.Time   `json:"started_at"`
	RemainingSeconds *int        `json:"remaining_seconds,omitempty"`
	Resumed          bool        `json:"resumed"`
	Answers          []AnswerDTO `json:"answers,omitempty"`
}

// AnswerDTO is one answer in a submission result. CorrectOptionIDs is filled
// only on graded results of tests configured to show correct answers.
type AnswerDTO struct {
	QuestionID        uint     `json:"question_id"`
	SelectedOptionIDs []uint   `json:"selected_option_ids,omitempty"`
	AnswerText        *string  `json:"answer_text,omitempty"`
	AnswerFileURL     *string  `json:"answer_file_url,omitempty"`
	IsCorrect         *bool    `json:"is_correct,omitempty"`
	PointsEarned      *float64 `json:"points_earned,omitempty"`
	Feedback          *string  `json:"feedback,omitempty"`
	CorrectOptionIDs  []uint   `json:"correct_option_ids,omitempty"`
}

// PendingAnswerDTO is the instructor grading view of one answer awaiting
// manual review, with the advisory AI suggestion when available.
type PendingAnswerDTO struct {
	QuestionID          uint     `json:"question_id"`
	Prompt              string   `json:"prompt"`
	Type                string   `json:"type"`
	MaxPoints           int      `json:"max_points"`
	AnswerText          *string  `json:"answer_text,omitempty"`
	AnswerFileURL       *string  `json:"answer_file_url,omitempty"`
	AISuggestedPoints   *float64 `json:"ai_suggested_points,omitempty"`
	AISuggestedFeedback *string  `json:"ai_suggested_feedback,omitempty"`
}

type SubmissionSummaryDTO struct {
	ID            uint       `json:"id"`
	TestID        uint       `json:"test_id"`
	UserID        uint       `json:"user_id"`
	AttemptNumber int        `json:"attempt_number"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
	GradedAt      *time.Time `json:"graded_at,omitempty"`
	Score         *float64   `json:"score,omitempty"`
	Percentage    *float64   `json:"percentage,omitempty"`
	Grade         *string    `json:"grade,omitempty"`
	Passed        *bool      `json:"passed,omitempty"`
}

// SubmissionResultDTO is the full outcome view of one attempt. Score fields
// are withheld until grading completes or when the test hides immediate
// results.
type SubmissionResultDTO struct {
	ID                 uint        `json:"id"`
	TestID             uint        `json:"test_id"`
	TestTitle          string      `json:"test_title,omitempty"`
	UserID             uint        `json:"user_id"`
	AttemptNumber      int         `json:"attempt_number"`
	Status             string      `json:"status"`
	StartedAt          time.Time   `json:"started_at"`
	SubmittedAt        *time.Time  `json:"submitted_at,omitempty"`
	GradedAt           *time.Time  `json:"graded_at,omitempty"`
	ForcedSubmit       bool        `json:"forced_submit"`
	PendingManual      bool        `json:"pending_manual"`
	AutoScore          *float64    `json:"auto_score,omitempty"`
	Score              *float64    `json:"score,omitempty"`
	Percentage         *float64    `json:"percentage,omitempty"`
	Grade              *string     `json:"grade,omitempty"`
	Passed             *bool       `json:"passed,omitempty"`
	InstructorComments *string     `json:"instructor_comments,omitempty"`
	Answers            []AnswerDTO `json:"answers,omitempty"`
}

// PendingSubmissionDTO is one row of the instructor's grading queue.
type PendingSubmissionDTO struct {
	ID            uint               `json:"id"`
	TestID        uint               `json:"test_id"`
	TestTitle     string             `json:"test_title"`
	UserID        uint               `json:"user_id"`
	AttemptNumber int                `json:"attempt_number"`
	SubmittedAt   *time.Time         `json:"submitted_at,omitempty"`
	AutoScore     *float64           `json:"auto_score,omitempty"`
	Answers       []PendingAnswerDTO `json:"answers,omitempty"`
}

type TimeRemainingDTO struct {
	SubmissionID     uint `json:"submission_id"`
	Timed            bool `json:"timed"`
	RemainingSeconds int  `json:"remaining_seconds"`
}
