package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openlms/assessment-engine/config"
	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/model"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func engineConfig() *config.Config {
	return &config.Config{
		Engine: config.Engine{
			AutosaveIntervalSeconds:   3600, // ticks never fire during a test run
			ForcedSubmitRetries:       0,
			ForcedSubmitBackoffMillis: 1,
		},
	}
}

// memStore backs the fake repositories with plain maps so service tests run
// without a database. Reads hand out copies the way a real query would.
type memStore struct {
	mu          sync.Mutex
	tests       map[uint]*model.Test
	submissions map[uint]*model.Submission
	answers     map[uint][]model.Answer
	nextSubID   uint
}

func newMemStore() *memStore {
	return &memStore{
		tests:       make(map[uint]*model.Test),
		submissions: make(map[uint]*model.Submission),
		answers:     make(map[uint][]model.Answer),
		nextSubID:   1,
	}
}

func (s *memStore) addTest(t *model.Test) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tests[t.ID] = t
}

func (s *memStore) addSubmission(sub *model.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = s.nextSubID
	}
	if sub.ID >= s.nextSubID {
		s.nextSubID = sub.ID + 1
	}
	s.submissions[sub.ID] = sub
}

func (s *memStore) submission(id uint) *model.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[id]
}

func (s *memStore) submissionAnswers(id uint) []model.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Answer(nil), s.answers[id]...)
}

type fakeTestRepo struct {
	store *memStore
}

func (r *fakeTestRepo) Create(test *model.Test) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if test.ID == 0 {
		test.ID = uint(len(r.store.tests) + 1)
	}
	r.store.tests[test.ID] = test
	return nil
}

func (r *fakeTestRepo) FindByID(id uint) (*model.Test, error) {
	return r.FindByIDWithQuestions(id)
}

func (r *fakeTestRepo) FindByIDWithQuestions(id uint) (*model.Test, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	test, ok := r.store.tests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *test
	return &cp, nil
}

func (r *fakeTestRepo) FindAllWithQuestionCount() ([]struct {
	model.Test
	QuestionCount int
}, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []struct {
		model.Test
		QuestionCount int
	}
	for _, test := range r.store.tests {
		out = append(out, struct {
			model.Test
			QuestionCount int
		}{Test: *test, QuestionCount: len(test.Questions)})
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	store      *memStore
	failCreate bool
}

func (r *fakeSubmissionRepo) Create(sub *model.Submission) error {
	if r.failCreate {
		return gorm.ErrDuplicatedKey
	}
	r.store.addSubmission(sub)
	return nil
}

func (r *fakeSubmissionRepo) FindByID(id uint) (*model.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sub, ok := r.store.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubmissionRepo) FindByIDWithDetails(id uint) (*model.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sub, ok := r.store.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sub
	if test, ok := r.store.tests[sub.TestID]; ok {
		cp.Test = *test
	}
	cp.Answers = append([]model.Answer(nil), r.store.answers[id]...)
	for i := range cp.Answers {
		for j := range cp.Test.Questions {
			if cp.Test.Questions[j].ID == cp.Answers[i].QuestionID {
				cp.Answers[i].Question = cp.Test.Questions[j]
			}
		}
	}
	return &cp, nil
}

func (r *fakeSubmissionRepo) FindDraft(userID, testID uint) (*model.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, sub := range r.store.submissions {
		if sub.UserID == userID && sub.TestID == testID && sub.Status == model.SubmissionDraft {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSubmissionRepo) FindAllDrafts() ([]model.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.store.submissions {
		if sub.Status == model.SubmissionDraft {
			cp := *sub
			if test, ok := r.store.tests[sub.TestID]; ok {
				cp.Test = *test
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) CountClosed(userID, testID uint) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, sub := range r.store.submissions {
		if sub.UserID == userID && sub.TestID == testID && sub.Status != model.SubmissionDraft {
			count++
		}
	}
	return count, nil
}

func (r *fakeSubmissionRepo) FindAllByTestAndUser(testID, userID uint) ([]model.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.store.submissions {
		if sub.TestID == testID && sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) FindPendingManual() ([]model.Submission, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.store.submissions {
		if sub.Status == model.SubmissionSubmitted && sub.PendingManual {
			cp := *sub
			if test, ok := r.store.tests[sub.TestID]; ok {
				cp.Test = *test
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) SaveDraftAnswers(submissionID uint, revision int64, answers []model.Answer) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sub, ok := r.store.submissions[submissionID]
	if !ok || sub.Status != model.SubmissionDraft || sub.DraftRevision >= revision {
		return false, nil
	}
	sub.DraftRevision = revision
	r.store.answers[submissionID] = append([]model.Answer(nil), answers...)
	return true, nil
}

func (r *fakeSubmissionRepo) CloseDraft(submissionID uint, submittedAt time.Time, forced bool, autoScore float64, pendingManual bool, answers []model.Answer) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	sub, ok := r.store.submissions[submissionID]
	if !ok || sub.Status != model.SubmissionDraft {
		return false, nil
	}
	sub.Status = model.SubmissionSubmitted
	sub.SubmittedAt = &submittedAt
	sub.ForcedSubmit = forced
	sub.AutoScore = &autoScore
	sub.PendingManual = pendingManual
	r.store.answers[submissionID] = append([]model.Answer(nil), answers...)
	return true, nil
}

type fakeAnswerRepo struct {
	store       *memStore
	suggestions map[uint]float64
}

func (r *fakeAnswerRepo) Update(answer *model.Answer) error { return nil }

func (r *fakeAnswerRepo) FindBySubmissionID(submissionID uint) ([]model.Answer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := append([]model.Answer(nil), r.store.answers[submissionID]...)
	sub, ok := r.store.submissions[submissionID]
	if ok {
		if test, found := r.store.tests[sub.TestID]; found {
			for i := range out {
				for j := range test.Questions {
					if test.Questions[j].ID == out[i].QuestionID {
						out[i].Question = test.Questions[j]
					}
				}
			}
		}
	}
	return out, nil
}

func (r *fakeAnswerRepo) SaveAISuggestion(answerID uint, points float64, feedback string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.suggestions == nil {
		r.suggestions = make(map[uint]float64)
	}
	r.suggestions[answerID] = points
	return nil
}

// fakeGradingService finalizes directly against the store, standing in for
// the transactional grading path. failuresLeft injects transient errors.
type fakeGradingService struct {
	store        *memStore
	finalized    []uint
	failuresLeft int
}

func (g *fakeGradingService) ListPending() ([]dto.PendingSubmissionDTO, error) { return nil, nil }

func (g *fakeGradingService) GetPending(submissionID uint) (*dto.PendingSubmissionDTO, error) {
	return nil, ErrNotPendingManual
}

func (g *fakeGradingService) GradeSubmission(submissionID uint, req dto.GradeSubmissionRequest) (*dto.SubmissionResultDTO, error) {
	return nil, ErrNotPendingManual
}

func (g *fakeGradingService) FinalizeAutomatic(submissionID uint) (*model.Submission, error) {
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	if g.failuresLeft > 0 {
		g.failuresLeft--
		return nil, errors.New("connection refused")
	}
	sub, ok := g.store.submissions[submissionID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	test := g.store.tests[sub.TestID]
	auto := 0.0
	if sub.AutoScore != nil {
		auto = *sub.AutoScore
	}
	outcome := computeOutcome(auto, test.TotalPoints(), test.PassingScore)
	now := time.Now()
	sub.Status = model.SubmissionGraded
	sub.GradedAt = &now
	sub.Score = &outcome.total
	sub.Percentage = &outcome.percentage
	sub.Grade = &outcome.letter
	sub.Passed = &outcome.passed
	g.finalized = append(g.finalized, submissionID)
	cp := *sub
	return &cp, nil
}

type disabledAIReview struct{}

func (disabledAIReview) Enabled() bool { return false }

func (disabledAIReview) SuggestGrade(ctx context.Context, question *model.Question, answerText string) (string, float64, error) {
	return "", 0, nil
}
