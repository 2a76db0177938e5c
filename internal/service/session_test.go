package service

import (
	"testing"
	"time"

	"github.com/openlms/assessment-engine/internal/model"
)

func draftFixture() (*memStore, *fakeSubmissionRepo, *SessionManager) {
	store := newMemStore()
	store.addSubmission(&model.Submission{
		ID: 1, TestID: 1, UserID: 5, AttemptNumber: 1,
		Status: model.SubmissionDraft, StartedAt: time.Now(),
	})
	repo := &fakeSubmissionRepo{store: store}
	return store, repo, NewSessionManager(engineConfig(), repo)
}

func TestSessionFlushPersistsBufferedAnswers(t *testing.T) {
	store, _, manager := draftFixture()
	defer manager.CloseAll()

	sess := manager.Open(1, 5, 0, nil, false)
	sess.set(10, model.AnswerValue{SelectedOptionIDs: []uint{100}})
	sess.set(11, model.AnswerValue{Text: strPtr("draft text")})

	manager.flush(sess)

	answers := store.submissionAnswers(1)
	if len(answers) != 2 {
		t.Fatalf("persisted %d answers, want 2", len(answers))
	}
	if store.submission(1).DraftRevision != 1 {
		t.Errorf("draft revision = %d, want 1", store.submission(1).DraftRevision)
	}

	// Nothing changed since the flush; the next tick writes nothing.
	manager.flush(sess)
	if store.submission(1).DraftRevision != 1 {
		t.Error("clean session flushed again")
	}
}

func TestSessionClearingAnAnswerRemovesIt(t *testing.T) {
	store, _, manager := draftFixture()
	defer manager.CloseAll()

	sess := manager.Open(1, 5, 0, nil, false)
	sess.set(10, model.AnswerValue{SelectedOptionIDs: []uint{100}})
	sess.set(11, model.AnswerValue{Text: strPtr("keep")})
	manager.flush(sess)

	sess.set(10, model.AnswerValue{})
	manager.flush(sess)

	answers := store.submissionAnswers(1)
	if len(answers) != 1 || answers[0].QuestionID != 11 {
		t.Fatalf("answers after clearing = %+v, want only question 11", answers)
	}
}

func TestSessionFlushDroppedAfterDraftCloses(t *testing.T) {
	store, repo, manager := draftFixture()
	defer manager.CloseAll()

	sess := manager.Open(1, 5, 0, nil, false)
	sess.set(10, model.AnswerValue{SelectedOptionIDs: []uint{100}})
	manager.flush(sess)

	closed, err := repo.CloseDraft(1, time.Now(), false, 5, false, []model.Answer{
		model.NewAnswer(1, 10, model.AnswerValue{SelectedOptionIDs: []uint{100}}),
	})
	if err != nil || !closed {
		t.Fatalf("CloseDraft = (%v, %v), want (true, nil)", closed, err)
	}

	// A late autosave from a stale tab must not touch the submitted state.
	sess.set(10, model.AnswerValue{SelectedOptionIDs: []uint{999}})
	manager.flush(sess)

	if store.submission(1).Status != model.SubmissionSubmitted {
		t.Errorf("status = %s, want submitted", store.submission(1).Status)
	}
	answers := store.submissionAnswers(1)
	if len(answers) != 1 || answers[0].SelectedOptionIDs[0] != 100 {
		t.Errorf("final answers = %+v, want the submitted set untouched", answers)
	}
}

func TestSessionStaleRevisionDropped(t *testing.T) {
	store, repo, manager := draftFixture()
	defer manager.CloseAll()

	sess := manager.Open(1, 5, 0, nil, false)
	sess.set(10, model.AnswerValue{SelectedOptionIDs: []uint{100}})

	// Another writer (a newer session for the same draft) already advanced
	// the stored revision past anything this session will produce.
	saved, err := repo.SaveDraftAnswers(1, 7, []model.Answer{
		model.NewAnswer(1, 10, model.AnswerValue{SelectedOptionIDs: []uint{777}}),
	})
	if err != nil || !saved {
		t.Fatalf("SaveDraftAnswers = (%v, %v), want (true, nil)", saved, err)
	}

	manager.flush(sess) // revision 1 < stored 7
	answers := store.submissionAnswers(1)
	if len(answers) != 1 || answers[0].SelectedOptionIDs[0] != 777 {
		t.Errorf("stale flush overwrote newer answers: %+v", answers)
	}
}

func TestSessionResumeStartsFromStoredRevision(t *testing.T) {
	store, _, manager := draftFixture()
	defer manager.CloseAll()
	store.submission(1).DraftRevision = 7

	seed := []model.Answer{model.NewAnswer(1, 10, model.AnswerValue{SelectedOptionIDs: []uint{100}})}
	sess := manager.Open(1, 5, 7, seed, false)

	got := sess.values()
	if len(got) != 1 || got[10].SelectedOptionIDs[0] != 100 {
		t.Fatalf("seeded values = %+v, want question 10 from the store", got)
	}

	// Flushes after a resume must land above the stored revision.
	sess.set(10, model.AnswerValue{SelectedOptionIDs: []uint{101}})
	manager.flush(sess)
	if store.submission(1).DraftRevision != 8 {
		t.Errorf("draft revision = %d, want 8", store.submission(1).DraftRevision)
	}
}

func TestSessionOpenIsIdempotent(t *testing.T) {
	_, _, manager := draftFixture()
	defer manager.CloseAll()

	first := manager.Open(1, 5, 0, nil, false)
	first.set(10, model.AnswerValue{Text: strPtr("typed")})

	second := manager.Open(1, 5, 0, nil, false)
	if first != second {
		t.Fatal("second Open returned a different session")
	}
	if got := second.values(); len(got) != 1 {
		t.Errorf("reopened session lost the buffer: %+v", got)
	}
}
