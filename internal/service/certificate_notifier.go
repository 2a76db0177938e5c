package service

import (
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/rs/zerolog/log"
)

// CertificateNotifier is the boundary to the certificate-issuance process.
// It is invoked at most once per submission, on the first transition to
// graded with passed = true for a test bound to a course; the once-guard is
// the certificate_notified_at stamp written inside the grading transaction.
type CertificateNotifier interface {
	SubmissionGraded(submission *model.Submission, test *model.Test)
}

type logCertificateNotifier struct{}

// NewCertificateNotifier returns the default notifier, which emits the signal
// as a structured log event for the certificate service to consume.
func NewCertificateNotifier() CertificateNotifier {
	return &logCertificateNotifier{}
}

func (n *logCertificateNotifier) SubmissionGraded(submission *model.Submission, test *model.Test) {
	event := log.Info().
		Uint("submissionID", submission.ID).
		Uint("testID", test.ID).
		Uint("userID", submission.UserID)
	if test.CourseID != nil {
		event = event.Uint("courseID", *test.CourseID)
	}
	if submission.Percentage != nil {
		event = event.Float64("percentage", *submission.Percentage)
	}
	event.Msg("certificate_candidate")
}
