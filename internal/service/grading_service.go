package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/openlms/assessment-engine/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// GradingService aggregates automatic scores with instructor-supplied manual
// scores into the final graded result.
type GradingService interface {
	ListPending() ([]dto.PendingSubmissionDTO, error)
	GetPending(submissionID uint) (*dto.PendingSubmissionDTO, error)
	// GradeSubmission applies the instructor's per-question grades and
	// transitions submitted -> graded.
	GradeSubmission(submissionID uint, req dto.GradeSubmissionRequest) (*dto.SubmissionResultDTO, error)
	// FinalizeAutomatic grades a submission with no pending manual questions
	// from its automatic score alone; runs synchronously at submit time.
	FinalizeAutomatic(submissionID uint) (*model.Submission, error)
}

type gradingService struct {
	submissionRepo repository.SubmissionRepository
	notifier       CertificateNotifier
	db             *gorm.DB
}

func NewGradingService(submissionRepo repository.SubmissionRepository, notifier CertificateNotifier, db *gorm.DB) GradingService {
	return &gradingService{submissionRepo: submissionRepo, notifier: notifier, db: db}
}

func (s *gradingService) ListPending() ([]dto.PendingSubmissionDTO, error) {
	submissions, err := s.submissionRepo.FindPendingManual()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	queue := make([]dto.PendingSubmissionDTO, 0, len(submissions))
	for i := range submissions {
		sub := &submissions[i]
		queue = append(queue, dto.PendingSubmissionDTO{
			ID:            sub.ID,
			TestID:        sub.TestID,
			TestTitle:     sub.Test.Title,
			UserID:        sub.UserID,
			AttemptNumber: sub.AttemptNumber,
			SubmittedAt:   sub.SubmittedAt,
			AutoScore:     sub.AutoScore,
		})
	}
	return queue, nil
}

func (s *gradingService) GetPending(submissionID uint) (*dto.PendingSubmissionDTO, error) {
	submission, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.Status != model.SubmissionSubmitted || !submission.PendingManual {
		return nil, ErrNotPendingManual
	}

	resp := &dto.PendingSubmissionDTO{
		ID:            submission.ID,
		TestID:        submission.TestID,
		TestTitle:     submission.Test.Title,
		UserID:        submission.UserID,
		AttemptNumber: submission.AttemptNumber,
		SubmittedAt:   submission.SubmittedAt,
		AutoScore:     submission.AutoScore,
	}
	for i := range submission.Answers {
		a := &submission.Answers[i]
		if a.Question.Type.Objective() {
			continue
		}
		resp.Answers = append(resp.Answers, dto.PendingAnswerDTO{
			QuestionID:          a.QuestionID,
			Prompt:              a.Question.Prompt,
			Type:                string(a.Question.Type),
			MaxPoints:           a.Question.Points,
			AnswerText:          a.AnswerText,
			AnswerFileURL:       a.AnswerFileURL,
			AISuggestedPoints:   a.AISuggestedPoints,
			AISuggestedFeedback: a.AISuggestedFeedback,
		})
	}
	return resp, nil
}

func (s *gradingService) GradeSubmission(submissionID uint, req dto.GradeSubmissionRequest) (*dto.SubmissionResultDTO, error) {
	submission, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.Status != model.SubmissionSubmitted {
		return nil, fmt.Errorf("%w: submission %d is %s", ErrStaleTransition, submissionID, submission.Status)
	}
	if !submission.PendingManual {
		return nil, ErrNotPendingManual
	}

	questions := make(map[uint]*model.Question, len(submission.Test.Questions))
	for i := range submission.Test.Questions {
		questions[submission.Test.Questions[i].ID] = &submission.Test.Questions[i]
	}
	answers := make(map[uint]*model.Answer, len(submission.Answers))
	for i := range submission.Answers {
		answers[submission.Answers[i].QuestionID] = &submission.Answers[i]
	}

	// Validate everything before any write: each grade must target a
	// non-objective answered question and fit within its point budget.
	grades := make(map[uint]dto.QuestionGrade, len(req.Grades))
	for _, grade := range req.Grades {
		question, ok := questions[grade.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %d is not part of the test", ErrInvalidPoints, grade.QuestionID)
		}
		if question.Type.Objective() {
			return nil, fmt.Errorf("%w: question %d is automatically scored", ErrInvalidPoints, grade.QuestionID)
		}
		if grade.Points < 0 || grade.Points > float64(question.Points) {
			return nil, fmt.Errorf("%w: question %d accepts 0..%d, got %.2f", ErrInvalidPoints, grade.QuestionID, question.Points, grade.Points)
		}
		if _, answered := answers[grade.QuestionID]; !answered {
			return nil, fmt.Errorf("%w: question %d has no answer to grade", ErrInvalidPoints, grade.QuestionID)
		}
		grades[grade.QuestionID] = grade
	}
	for qid, answer := range answers {
		if answer.Question.Type.Objective() {
			continue
		}
		if _, graded := grades[qid]; !graded {
			return nil, fmt.Errorf("%w: question %d awaits a grade", ErrInvalidPoints, qid)
		}
	}

	manualTotal := 0.0
	for _, grade := range grades {
		manualTotal += grade.Points
	}
	autoScore := 0.0
	if submission.AutoScore != nil {
		autoScore = *submission.AutoScore
	}

	outcome := computeOutcome(autoScore+manualTotal, submission.Test.TotalPoints(), submission.Test.PassingScore)
	graderID := req.GraderID
	now := time.Now()

	notifyCertificate := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for qid, grade := range grades {
			answer := answers[qid]
			question := questions[qid]
			isCorrect := grade.Points == float64(question.Points) // full credit only
			updates := map[string]interface{}{
				"points_earned": grade.Points,
				"is_correct":    isCorrect,
			}
			if grade.Feedback != nil {
				updates["feedback"] = *grade.Feedback
			}
			if err := tx.Model(&model.Answer{}).Where("id = ?", answer.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"status":     model.SubmissionGraded,
			"graded_at":  now,
			"graded_by":  graderID,
			"score":      outcome.total,
			"percentage": outcome.percentage,
			"grade":      outcome.letter,
			"passed":     outcome.passed,
		}
		if req.Comments != nil {
			updates["instructor_comments"] = *req.Comments
		}
		if outcome.passed && submission.Test.CourseID != nil && submission.CertificateNotifiedAt == nil {
			updates["certificate_notified_at"] = now
			notifyCertificate = true
		}

		res := tx.Model(&model.Submission{}).
			Where("id = ? AND status = ?", submissionID, model.SubmissionSubmitted).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	log.Info().Uint("submissionID", submissionID).Uint("graderID", graderID).
		Float64("score", outcome.total).Float64("percentage", outcome.percentage).
		Str("grade", outcome.letter).Bool("passed", outcome.passed).
		Msg("Submission manually graded")

	if notifyCertificate {
		s.signalCertificate(submission, outcome, now)
	}

	graded, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return gradedResult(graded), nil
}

// signalCertificate announces a passing graded submission from the data the
// grading transaction just committed. The certificate signal must not depend
// on a follow-up read succeeding.
func (s *gradingService) signalCertificate(submission *model.Submission, outcome gradeOutcome, now time.Time) {
	graded := *submission
	graded.Status = model.SubmissionGraded
	graded.GradedAt = &now
	graded.Score = &outcome.total
	graded.Percentage = &outcome.percentage
	graded.Grade = &outcome.letter
	graded.Passed = &outcome.passed
	graded.CertificateNotifiedAt = &now
	s.notifier.SubmissionGraded(&graded, &graded.Test)
}

func (s *gradingService) FinalizeAutomatic(submissionID uint) (*model.Submission, error) {
	submission, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.Status != model.SubmissionSubmitted {
		return nil, fmt.Errorf("%w: submission %d is %s", ErrStaleTransition, submissionID, submission.Status)
	}
	if submission.PendingManual {
		return nil, fmt.Errorf("submission %d awaits manual grading", submissionID)
	}

	autoScore := 0.0
	if submission.AutoScore != nil {
		autoScore = *submission.AutoScore
	}
	outcome := computeOutcome(autoScore, submission.Test.TotalPoints(), submission.Test.PassingScore)
	now := time.Now()

	notifyCertificate := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":     model.SubmissionGraded,
			"graded_at":  now,
			"score":      outcome.total,
			"percentage": outcome.percentage,
			"grade":      outcome.letter,
			"passed":     outcome.passed,
		}
		if outcome.passed && submission.Test.CourseID != nil && submission.CertificateNotifiedAt == nil {
			updates["certificate_notified_at"] = now
			notifyCertificate = true
		}
		res := tx.Model(&model.Submission{}).
			Where("id = ? AND status = ?", submissionID, model.SubmissionSubmitted).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleTransition
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	log.Info().Uint("submissionID", submissionID).Float64("score", outcome.total).
		Str("grade", outcome.letter).Bool("passed", outcome.passed).
		Msg("Submission graded automatically at submit time")

	if notifyCertificate {
		s.signalCertificate(submission, outcome, now)
	}

	graded, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return graded, nil
}

type gradeOutcome struct {
	total      float64
	percentage float64
	letter     string
	passed     bool
}

func computeOutcome(total float64, totalPoints int, passingScore float64) gradeOutcome {
	percentage := 0.0
	if totalPoints > 0 {
		percentage = total / float64(totalPoints) * 100
	}
	percentage = math.Round(percentage*100) / 100
	return gradeOutcome{
		total:      total,
		percentage: percentage,
		letter:     LetterGrade(percentage),
		passed:     percentage >= passingScore,
	}
}

// gradedResult builds the instructor-facing view of a graded submission;
// visibility gates do not apply to the grader.
func gradedResult(submission *model.Submission) *dto.SubmissionResultDTO {
	resp := &dto.SubmissionResultDTO{
		ID:                 submission.ID,
		TestID:             submission.TestID,
		TestTitle:          submission.Test.Title,
		UserID:             submission.UserID,
		AttemptNumber:      submission.AttemptNumber,
		Status:             string(submission.Status),
		StartedAt:          submission.StartedAt,
		SubmittedAt:        submission.SubmittedAt,
		GradedAt:           submission.GradedAt,
		ForcedSubmit:       submission.ForcedSubmit,
		PendingManual:      submission.PendingManual,
		AutoScore:          submission.AutoScore,
		Score:              submission.Score,
		Percentage:         submission.Percentage,
		Grade:              submission.Grade,
		Passed:             submission.Passed,
		InstructorComments: submission.InstructorComments,
	}
	for i := range submission.Answers {
		a := &submission.Answers[i]
		resp.Answers = append(resp.Answers, dto.AnswerDTO{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: a.SelectedOptionIDs,
			AnswerText:        a.AnswerText,
			AnswerFileURL:     a.AnswerFileURL,
			IsCorrect:         a.IsCorrect,
			PointsEarned:      a.PointsEarned,
			Feedback:          a.Feedback,
		})
	}
	return resp
}
