package service

import (
	"errors"
	"testing"
	"time"

	"github.com/openlms/assessment-engine/internal/dto"
	"github.com/openlms/assessment-engine/internal/model"
)

func TestLetterGrade(t *testing.T) {
	cases := []struct {
		percentage float64
		want       string
	}{
		{100, "A+"},
		{90, "A+"},
		{89.99, "A"},
		{80, "A"},
		{75, "B"},
		{70, "B"},
		{60, "C"},
		{59.99, "D"},
		{50, "D"},
		{49.99, "F"},
		{0, "F"},
	}
	for _, tc := range cases {
		if got := LetterGrade(tc.percentage); got != tc.want {
			t.Errorf("LetterGrade(%v) = %q, want %q", tc.percentage, got, tc.want)
		}
	}
}

func TestComputeOutcome(t *testing.T) {
	cases := []struct {
		name           string
		total          float64
		totalPoints    int
		passingScore   float64
		wantPercentage float64
		wantLetter     string
		wantPassed     bool
	}{
		// Automatic 50 plus a manual 25 out of 100 total.
		{"combined manual and automatic", 75, 100, 70, 75, "B", true},
		{"exactly at passing score", 42, 60, 70, 70, "B", true},
		{"just below passing score", 41, 60, 70, 68.33, "C", false},
		{"rounded to two decimals", 2, 3, 50, 66.67, "C", true},
		{"empty test yields zero", 0, 0, 60, 0, "F", false},
		{"perfect score", 60, 60, 70, 100, "A+", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := computeOutcome(tc.total, tc.totalPoints, tc.passingScore)
			if outcome.percentage != tc.wantPercentage {
				t.Errorf("percentage = %v, want %v", outcome.percentage, tc.wantPercentage)
			}
			if outcome.letter != tc.wantLetter {
				t.Errorf("letter = %q, want %q", outcome.letter, tc.wantLetter)
			}
			if outcome.passed != tc.wantPassed {
				t.Errorf("passed = %v, want %v", outcome.passed, tc.wantPassed)
			}
		})
	}
}

func mixedTestFixture() (*memStore, *model.Test, *model.Submission) {
	store := newMemStore()
	test := &model.Test{
		ID:             1,
		Title:          "Mixed exam",
		PassingScore:   70,
		ValidationType: model.ValidationMixed,
		Questions: []model.Question{
			choiceQuestion(1, model.SingleChoice, 40, []uint{11}, []uint{12}),
			{ID: 2, Type: model.LongAnswer, Points: 60, Prompt: "essay"},
		},
	}
	store.addTest(test)

	now := time.Now()
	auto := 40.0
	sub := &model.Submission{
		ID:            10,
		TestID:        1,
		UserID:        5,
		AttemptNumber: 1,
		Status:        model.SubmissionSubmitted,
		StartedAt:     now.Add(-time.Hour),
		SubmittedAt:   &now,
		AutoScore:     &auto,
		PendingManual: true,
	}
	store.addSubmission(sub)
	store.answers[10] = []model.Answer{
		{ID: 100, SubmissionID: 10, QuestionID: 1, SelectedOptionIDs: []uint{11}},
		{ID: 101, SubmissionID: 10, QuestionID: 2, AnswerText: strPtr("a long essay")},
	}
	return store, test, sub
}

func TestGradeSubmissionValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(store *memStore, sub *model.Submission)
		grades  []dto.QuestionGrade
		wantErr error
	}{
		{
			name:    "draft submission cannot be graded",
			mutate:  func(store *memStore, sub *model.Submission) { sub.Status = model.SubmissionDraft },
			grades:  []dto.QuestionGrade{{QuestionID: 2, Points: 30}},
			wantErr: ErrStaleTransition,
		},
		{
			name:    "already graded submission cannot be regraded",
			mutate:  func(store *memStore, sub *model.Submission) { sub.Status = model.SubmissionGraded },
			grades:  []dto.QuestionGrade{{QuestionID: 2, Points: 30}},
			wantErr: ErrStaleTransition,
		},
		{
			name:    "nothing pending manual",
			mutate:  func(store *memStore, sub *model.Submission) { sub.PendingManual = false },
			grades:  []dto.QuestionGrade{{QuestionID: 2, Points: 30}},
			wantErr: ErrNotPendingManual,
		},
		{
			name:    "points above the question budget",
			grades:  []dto.QuestionGrade{{QuestionID: 2, Points: 61}},
			wantErr: ErrInvalidPoints,
		},
		{
			name:    "negative points",
			grades:  []dto.QuestionGrade{{QuestionID: 2, Points: -1}},
			wantErr: ErrInvalidPoints,
		},
		{
			name:    "grade for an objective question",
			grades:  []dto.QuestionGrade{{QuestionID: 1, Points: 10}, {QuestionID: 2, Points: 30}},
			wantErr: ErrInvalidPoints,
		},
		{
			name:    "grade for a foreign question",
			grades:  []dto.QuestionGrade{{QuestionID: 99, Points: 10}},
			wantErr: ErrInvalidPoints,
		},
		{
			name:    "answered manual question left ungraded",
			grades:  []dto.QuestionGrade{},
			wantErr: ErrInvalidPoints,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, _, sub := mixedTestFixture()
			if tc.mutate != nil {
				tc.mutate(store, sub)
			}
			svc := &gradingService{
				submissionRepo: &fakeSubmissionRepo{store: store},
				notifier:       NewCertificateNotifier(),
			}
			_, err := svc.GradeSubmission(sub.ID, dto.GradeSubmissionRequest{GraderID: 2, Grades: tc.grades})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("GradeSubmission error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestListPendingOnlySubmittedManual(t *testing.T) {
	store, _, sub := mixedTestFixture()

	// A second, fully automatic submission must stay out of the queue.
	auto := 40.0
	store.addSubmission(&model.Submission{
		ID: 11, TestID: 1, UserID: 6, AttemptNumber: 1,
		Status: model.SubmissionSubmitted, AutoScore: &auto,
	})

	svc := &gradingService{
		submissionRepo: &fakeSubmissionRepo{store: store},
		notifier:       NewCertificateNotifier(),
	}
	queue, err := svc.ListPending()
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != sub.ID {
		t.Fatalf("pending queue = %+v, want only submission %d", queue, sub.ID)
	}
	if queue[0].AutoScore == nil || *queue[0].AutoScore != 40 {
		t.Errorf("pending entry carries auto score %v, want 40", queue[0].AutoScore)
	}
}

func TestGetPendingExposesOnlyManualAnswers(t *testing.T) {
	store, _, sub := mixedTestFixture()
	svc := &gradingService{
		submissionRepo: &fakeSubmissionRepo{store: store},
		notifier:       NewCertificateNotifier(),
	}
	pending, err := svc.GetPending(sub.ID)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending.Answers) != 1 {
		t.Fatalf("pending answers = %d, want 1 (objective answers excluded)", len(pending.Answers))
	}
	if pending.Answers[0].QuestionID != 2 {
		t.Errorf("pending answer question = %d, want 2", pending.Answers[0].QuestionID)
	}
	if pending.Answers[0].MaxPoints != 60 {
		t.Errorf("pending answer max points = %d, want 60", pending.Answers[0].MaxPoints)
	}
}

type capturingNotifier struct {
	submissions []*model.Submission
}

func (n *capturingNotifier) SubmissionGraded(submission *model.Submission, test *model.Test) {
	n.submissions = append(n.submissions, submission)
}

func TestSignalCertificateUsesCommittedData(t *testing.T) {
	_, test, sub := mixedTestFixture()
	courseID := uint(3)
	test.CourseID = &courseID
	sub.Test = *test

	notifier := &capturingNotifier{}
	svc := &gradingService{notifier: notifier}

	now := time.Now()
	outcome := computeOutcome(85, 100, 70)
	svc.signalCertificate(sub, outcome, now)

	if len(notifier.submissions) != 1 {
		t.Fatalf("notifier received %d signals, want 1", len(notifier.submissions))
	}
	got := notifier.submissions[0]
	if got.Status != model.SubmissionGraded {
		t.Errorf("signalled status = %s, want graded", got.Status)
	}
	if got.Score == nil || *got.Score != 85 {
		t.Errorf("signalled score = %v, want 85", got.Score)
	}
	if got.Passed == nil || !*got.Passed {
		t.Errorf("signalled passed = %v, want true", got.Passed)
	}
	if got.CertificateNotifiedAt == nil || !got.CertificateNotifiedAt.Equal(now) {
		t.Errorf("signalled certificate stamp = %v, want %v", got.CertificateNotifiedAt, now)
	}
	// The caller's submission stays untouched; the signal is built from a copy.
	if sub.Status != model.SubmissionSubmitted {
		t.Errorf("source submission mutated to %s", sub.Status)
	}
}
