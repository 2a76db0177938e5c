package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/openlms/assessment-engine/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AttemptService is the attempt state machine: it owns the lifecycle of one
// submission from start through draft answering to the submitted handoff.
type AttemptService interface {
	// Start opens a new draft or resumes the existing one (idempotent).
	Start(testID, userID uint) (*dto.AttemptStateDTO, error)
	// RecordAnswer buffers an answer on the active draft; persistence is left
	// to the autosave loop.
	RecordAnswer(submissionID uint, req dto.RecordAnswerRequest) error
	// Submit finalizes the draft and hands it to the scoring engine. A repeat
	// submit returns the existing result instead of failing.
	Submit(submissionID, userID uint) (*dto.SubmissionResultDTO, error)
	// ForceSubmitOnExpiry is the timer-driven submit; same path as Submit but
	// with whatever the draft holds.
	ForceSubmitOnExpiry(submissionID uint) error
	TimeRemaining(submissionID, userID uint) (*dto.TimeRemainingDTO, error)
	GetAttempt(submissionID, userID uint) (*dto.SubmissionResultDTO, error)
	ListAttempts(testID, userID uint) ([]dto.SubmissionSummaryDTO, error)
	// RearmDrafts re-arms expiry timers for drafts that survived a restart.
	RearmDrafts() error
}

type attemptService struct {
	testRepo       repository.TestRepository
	submissionRepo repository.SubmissionRepository
	answerRepo     repository.AnswerRepository
	scoring        ScoringService
	grading        GradingService
	aiReview       AIReviewService
	sessions       *SessionManager
	scheduler      *ExpiryScheduler
}

func NewAttemptService(
	testRepo repository.TestRepository,
	submissionRepo repository.SubmissionRepository,
	answerRepo repository.AnswerRepository,
	scoring ScoringService,
	grading GradingService,
	aiReview AIReviewService,
	sessions *SessionManager,
	scheduler *ExpiryScheduler,
) AttemptService {
	s := &attemptService{
		testRepo:       testRepo,
		submissionRepo: submissionRepo,
		answerRepo:     answerRepo,
		scoring:        scoring,
		grading:        grading,
		aiReview:       aiReview,
		sessions:       sessions,
		scheduler:      scheduler,
	}
	scheduler.Bind(s.ForceSubmitOnExpiry)
	return s
}

func (s *attemptService) Start(testID, userID uint) (*dto.AttemptStateDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTestNotFound, testID)
		}
		return nil, fmt.Errorf("fetching test %d: %w", testID, err)
	}

	// An existing draft is resumed unchanged; a second Start while a draft
	// exists must never open another attempt.
	draft, err := s.submissionRepo.FindDraft(userID, testID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if err == nil {
		return s.resume(test, draft)
	}

	closed, err := s.submissionRepo.CountClosed(userID, testID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if test.MaxAttempts != nil && closed >= int64(*test.MaxAttempts) {
		return nil, fmt.Errorf("%w: %d of %d attempts used", ErrAttemptLimitExceeded, closed, *test.MaxAttempts)
	}

	submission := &model.Submission{
		TestID:        testID,
		UserID:        userID,
		AttemptNumber: int(closed) + 1,
		Status:        model.SubmissionDraft,
		StartedAt:     time.Now(),
	}
	if err := s.submissionRepo.Create(submission); err != nil {
		// A concurrent Start may have created the draft first; the unique
		// (user, test, attempt_number) index rejects the second insert.
		if draft, findErr := s.submissionRepo.FindDraft(userID, testID); findErr == nil {
			return s.resume(test, draft)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}

	log.Info().Uint("testID", testID).Uint("userID", userID).Int("attempt", submission.AttemptNumber).Msg("Attempt started")

	s.sessions.Open(submission.ID, userID, 0, nil, test.AutoSaveDraft)
	s.scheduler.Arm(submission.ID, submission.StartedAt, test.DurationMinutes)

	return s.attemptState(test, submission, nil, false), nil
}

func (s *attemptService) resume(test *model.Test, draft *model.Submission) (*dto.AttemptStateDTO, error) {
	answers, err := s.answerRepo.FindBySubmissionID(draft.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	s.sessions.Open(draft.ID, draft.UserID, draft.DraftRevision, answers, test.AutoSaveDraft)
	s.scheduler.Arm(draft.ID, draft.StartedAt, test.DurationMinutes)

	log.Info().Uint("submissionID", draft.ID).Uint("userID", draft.UserID).Msg("Draft attempt resumed")
	return s.attemptState(test, draft, answers, true), nil
}

func (s *attemptService) attemptState(test *model.Test, submission *model.Submission, answers []model.Answer, resumed bool) *dto.AttemptStateDTO {
	state := &dto.AttemptStateDTO{
		ID:            submission.ID,
		TestID:        submission.TestID,
		AttemptNumber: submission.AttemptNumber,
		Status:        string(submission.Status),
		StartedAt:     submission.StartedAt,
		Resumed:       resumed,
	}
	if remaining, timed := RemainingSeconds(submission.StartedAt, test.DurationMinutes, time.Now()); timed {
		state.RemainingSeconds = &remaining
	}
	for i := range answers {
		state.Answers = append(state.Answers, dto.AnswerDTO{
			QuestionID:        answers[i].QuestionID,
			SelectedOptionIDs: answers[i].SelectedOptionIDs,
			AnswerText:        answers[i].AnswerText,
			AnswerFileURL:     answers[i].AnswerFileURL,
		})
	}
	return state
}

func (s *attemptService) RecordAnswer(submissionID uint, req dto.RecordAnswerRequest) error {
	submission, err := s.submissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.UserID != req.UserID {
		return ErrAttemptNotOwned
	}
	if !submission.Open() {
		return ErrAttemptClosed
	}

	question, err := s.questionOf(submission.TestID, req.QuestionID)
	if err != nil {
		return err
	}

	value := model.AnswerValue{
		SelectedOptionIDs: req.SelectedOptionIDs,
		Text:              req.AnswerText,
		FileURL:           req.AnswerFileURL,
	}
	if !value.Empty() {
		if err := value.ValidateFor(question.Type); err != nil {
			return fmt.Errorf("invalid answer for question %d: %w", question.ID, err)
		}
	}

	sess, ok := s.sessions.Get(submissionID)
	if !ok {
		// Draft owned by this user but opened before a restart; rebuild the
		// session from the persisted answers.
		test, err := s.testRepo.FindByID(submission.TestID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		answers, err := s.answerRepo.FindBySubmissionID(submissionID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		sess = s.sessions.Open(submissionID, submission.UserID, submission.DraftRevision, answers, test.AutoSaveDraft)
	}
	sess.set(req.QuestionID, value)
	return nil
}

func (s *attemptService) questionOf(testID, questionID uint) (*model.Question, error) {
	test, err := s.testRepo.FindByIDWithQuestions(testID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	for i := range test.Questions {
		if test.Questions[i].ID == questionID {
			return &test.Questions[i], nil
		}
	}
	return nil, fmt.Errorf("question %d is not part of test %d", questionID, testID)
}

func (s *attemptService) Submit(submissionID, userID uint) (*dto.SubmissionResultDTO, error) {
	submission, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.UserID != userID {
		return nil, ErrAttemptNotOwned
	}
	if submission.Closed() {
		// Duplicate submit under network retry: idempotent success with the
		// existing state, never a second scoring run. A submission stuck in
		// submitted with nothing pending means an earlier finalize failed
		// after the draft closed; this is the retry that completes it.
		if submission.Status == model.SubmissionSubmitted && !submission.PendingManual {
			return s.finalizeAndResult(submissionID)
		}
		log.Info().Uint("submissionID", submissionID).Msg("Duplicate submit treated as no-op")
		return s.result(submission), nil
	}

	if err := s.closeDraft(submission, false); err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			fresh, ferr := s.submissionRepo.FindByIDWithDetails(submissionID)
			if ferr != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, ferr)
			}
			return s.result(fresh), nil
		}
		return nil, err
	}

	fresh, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return s.result(fresh), nil
}

// finalizeAndResult completes the automatic grade for a submission that
// closed without finalizing, then returns the fresh outcome. A concurrent
// finalize winning the status guard is fine; the result is read back either
// way.
func (s *attemptService) finalizeAndResult(submissionID uint) (*dto.SubmissionResultDTO, error) {
	if _, err := s.grading.FinalizeAutomatic(submissionID); err != nil && !errors.Is(err, ErrStaleTransition) {
		return nil, fmt.Errorf("finalizing automatic grade: %w", err)
	}
	fresh, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return s.result(fresh), nil
}

func (s *attemptService) ForceSubmitOnExpiry(submissionID uint) error {
	submission, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.Closed() {
		return ErrAlreadySubmitted
	}
	log.Info().Uint("submissionID", submissionID).Msg("Timer expiry forcing submission")
	return s.closeDraft(submission, true)
}

// closeDraft runs the shared submit path: gather the latest answer set, score
// it, and transition draft -> submitted behind the optimistic state guard.
func (s *attemptService) closeDraft(submission *model.Submission, forced bool) error {
	test := &submission.Test
	if len(test.Questions) == 0 {
		loaded, err := s.testRepo.FindByIDWithQuestions(submission.TestID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
		}
		test = loaded
	}

	// The session buffer is the freshest answer set; fall back to whatever
	// the last autosave persisted when no session survives (e.g. expiry after
	// a restart).
	var values map[uint]model.AnswerValue
	if sess, ok := s.sessions.Get(submission.ID); ok {
		values = sess.values()
	} else {
		values = make(map[uint]model.AnswerValue, len(submission.Answers))
		for i := range submission.Answers {
			values[submission.Answers[i].QuestionID] = submission.Answers[i].Value()
		}
	}

	summary := s.scoring.Score(test, values)

	final := make([]model.Answer, 0, len(values))
	for qid, v := range values {
		answer := model.NewAnswer(submission.ID, qid, v)
		if result, ok := summary.Results[qid]; ok {
			answer.IsCorrect = result.IsCorrect
			answer.PointsEarned = result.PointsEarned
		}
		final = append(final, answer)
	}

	closed, err := s.submissionRepo.CloseDraft(submission.ID, time.Now(), forced, summary.AutoScore, summary.PendingManual, final)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if !closed {
		// Lost the race against a concurrent submit; the winner already
		// cancelled the timer and closed the session.
		return ErrAlreadySubmitted
	}

	s.scheduler.Cancel(submission.ID)
	s.sessions.Close(submission.ID)

	if !summary.PendingManual {
		// Nothing awaits an instructor: grade synchronously at submit time,
		// bypassing the grading queue.
		if _, err := s.grading.FinalizeAutomatic(submission.ID); err != nil {
			return fmt.Errorf("finalizing automatic grade: %w", err)
		}
	} else if s.aiReview.Enabled() {
		go s.suggestGrades(submission.ID)
	}
	return nil
}

// suggestGrades asks the AI reviewer for advisory feedback on each free-text
// answer awaiting manual grading. Best effort; failures only cost the
// instructor the suggestion.
func (s *attemptService) suggestGrades(submissionID uint) {
	answers, err := s.answerRepo.FindBySubmissionID(submissionID)
	if err != nil {
		log.Warn().Err(err).Uint("submissionID", submissionID).Msg("AI review: could not load answers")
		return
	}
	for i := range answers {
		a := &answers[i]
		if a.Question.Type.Objective() || a.AnswerText == nil || *a.AnswerText == "" {
			continue
		}
		feedback, points, err := s.aiReview.SuggestGrade(context.Background(), &a.Question, *a.AnswerText)
		if err != nil {
			log.Warn().Err(err).Uint("answerID", a.ID).Msg("AI review failed for answer")
			continue
		}
		if err := s.answerRepo.SaveAISuggestion(a.ID, points, feedback); err != nil {
			log.Warn().Err(err).Uint("answerID", a.ID).Msg("Failed to store AI suggestion")
		}
	}
}

func (s *attemptService) TimeRemaining(submissionID, userID uint) (*dto.TimeRemainingDTO, error) {
	submission, err := s.submissionRepo.FindByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.UserID != userID {
		return nil, ErrAttemptNotOwned
	}
	test, err := s.testRepo.FindByID(submission.TestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	remaining, timed := RemainingSeconds(submission.StartedAt, test.DurationMinutes, time.Now())
	return &dto.TimeRemainingDTO{
		SubmissionID:     submissionID,
		Timed:            timed,
		RemainingSeconds: remaining,
	}, nil
}

func (s *attemptService) GetAttempt(submissionID, userID uint) (*dto.SubmissionResultDTO, error) {
	submission, err := s.submissionRepo.FindByIDWithDetails(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	if submission.UserID != userID {
		return nil, ErrAttemptNotOwned
	}
	return s.result(submission), nil
}

func (s *attemptService) ListAttempts(testID, userID uint) ([]dto.SubmissionSummaryDTO, error) {
	submissions, err := s.submissionRepo.FindAllByTestAndUser(testID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	summaries := make([]dto.SubmissionSummaryDTO, 0, len(submissions))
	for i := range submissions {
		sub := &submissions[i]
		summaries = append(summaries, dto.SubmissionSummaryDTO{
			ID:            sub.ID,
			TestID:        sub.TestID,
			UserID:        sub.UserID,
			AttemptNumber: sub.AttemptNumber,
			Status:        string(sub.Status),
			StartedAt:     sub.StartedAt,
			SubmittedAt:   sub.SubmittedAt,
			GradedAt:      sub.GradedAt,
			Score:         sub.Score,
			Percentage:    sub.Percentage,
			Grade:         sub.Grade,
			Passed:        sub.Passed,
		})
	}
	return summaries, nil
}

func (s *attemptService) RearmDrafts() error {
	drafts, err := s.submissionRepo.FindAllDrafts()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	for i := range drafts {
		draft := &drafts[i]
		if draft.Test.Timed() {
			s.scheduler.Arm(draft.ID, draft.StartedAt, draft.Test.DurationMinutes)
		}
	}
	if len(drafts) > 0 {
		log.Info().Int("count", len(drafts)).Msg("Re-armed expiry timers for surviving drafts")
	}
	return nil
}

// result maps a submission to its student-facing outcome, honoring the
// test's result-visibility configuration.
func (s *attemptService) result(submission *model.Submission) *dto.SubmissionResultDTO {
	test := &submission.Test
	resp := &dto.SubmissionResultDTO{
		ID:            submission.ID,
		TestID:        submission.TestID,
		TestTitle:     test.Title,
		UserID:        submission.UserID,
		AttemptNumber: submission.AttemptNumber,
		Status:        string(submission.Status),
		StartedAt:     submission.StartedAt,
		SubmittedAt:   submission.SubmittedAt,
		GradedAt:      submission.GradedAt,
		ForcedSubmit:  submission.ForcedSubmit,
		PendingManual: submission.PendingManual,
	}

	showScores := test.ShowResultsImmediately || submission.Status == model.SubmissionGraded

	// Correct answers are revealed only once the attempt is graded, and only
	// on tests configured to show them.
	var correctOptions map[uint][]uint
	if test.ShowCorrectAnswers && submission.Status == model.SubmissionGraded {
		correctOptions = make(map[uint][]uint, len(test.Questions))
		for i := range test.Questions {
			q := &test.Questions[i]
			if ids := q.CorrectOptionIDs(); len(ids) > 0 {
				correctOptions[q.ID] = ids
			}
		}
	}

	if showScores {
		resp.AutoScore = submission.AutoScore
		resp.Score = submission.Score
		resp.Percentage = submission.Percentage
		resp.Grade = submission.Grade
		resp.Passed = submission.Passed
		resp.InstructorComments = submission.InstructorComments
	}

	for i := range submission.Answers {
		a := &submission.Answers[i]
		answerDTO := dto.AnswerDTO{
			QuestionID:        a.QuestionID,
			SelectedOptionIDs: a.SelectedOptionIDs,
			AnswerText:        a.AnswerText,
			AnswerFileURL:     a.AnswerFileURL,
		}
		if showScores {
			answerDTO.IsCorrect = a.IsCorrect
			answerDTO.PointsEarned = a.PointsEarned
			answerDTO.Feedback = a.Feedback
		}
		if correctOptions != nil {
			answerDTO.CorrectOptionIDs = correctOptions[a.QuestionID]
		}
		resp.Answers = append(resp.Answers, answerDTO)
	}
	return resp
}
