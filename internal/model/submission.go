package model

import (
	"time"

	"gorm.io/gorm"
)

// SubmissionStatus is the attempt lifecycle state. Transitions go strictly
// draft -> submitted -> graded; graded is terminal.
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionGraded    SubmissionStatus = "graded"
)

// Submission is one attempt of a user at a test. At most one draft may exist
// per (user, test); attempt_number is 1-based and unique per (user, test).
type Submission struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	TestID        uint             `json:"test_id" gorm:"not null;index;uniqueIndex:idx_user_test_attempt"`
	Test          Test             `json:"test,omitempty" gorm:"foreignKey:TestID"`
	UserID        uint             `json:"user_id" gorm:"not null;index;uniqueIndex:idx_user_test_attempt"`
	AttemptNumber int              `json:"attempt_number" gorm:"not null;uniqueIndex:idx_user_test_attempt"`
	Status        SubmissionStatus `json:"status" gorm:"not null;default:'draft';index"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	GradedAt    *time.Time `json:"graded_at,omitempty"`

	// DraftRevision is the monotonic autosave revision; a flush carrying a
	// revision at or below the stored one is stale and dropped.
	DraftRevision int64 `json:"draft_revision" gorm:"not null;default:0"`

	// ForcedSubmit marks a submission closed by timer expiry rather than the user.
	ForcedSubmit bool `json:"forced_submit" gorm:"default:false"`

	// AutoScore is the sum of points earned on automatically scored questions,
	// fixed at submit time. PendingManual is derived once at submit time and
	// stored so the grading queue is a plain filter.
	AutoScore     *float64 `json:"auto_score,omitempty"`
	PendingManual bool     `json:"pending_manual" gorm:"default:false;index"`

	Score              *float64 `json:"score,omitempty"`
	Percentage         *float64 `json:"percentage,omitempty"`
	Grade              *string  `json:"grade,omitempty"`
	Passed             *bool    `json:"passed,omitempty"`
	InstructorComments *string  `json:"instructor_comments,omitempty" gorm:"type:text"`
	GradedBy           *uint    `json:"graded_by,omitempty"`

	// CertificateNotifiedAt guards the certificate signal: stamped in the same
	// transaction as the graded transition so it fires at most once.
	CertificateNotifiedAt *time.Time `json:"-"`

	Answers []Answer `json:"answers,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Open reports whether answers are still mutable.
func (s *Submission) Open() bool {
	return s.Status == SubmissionDraft
}

// Closed reports whether the submission has left the draft state.
func (s *Submission) Closed() bool {
	return s.Status == SubmissionSubmitted || s.Status == SubmissionGraded
}
