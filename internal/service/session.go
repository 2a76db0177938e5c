package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/openlms/assessment-engine/config"
	"github.com/openlms/assessment-engine/internal/model"
	"github.com/openlms/assessment-engine/internal/repository"
	"github.com/rs/zerolog/log"
)

// attemptSession is the in-memory side of one open draft: the mutable answer
// buffer plus the autosave loop flushing it. Recording an answer only touches
// the buffer; persistence happens on the autosave tick and at submit.
type attemptSession struct {
	submissionID uint
	userID       uint

	mu      sync.Mutex
	answers map[uint]model.AnswerValue
	dirty   bool

	// revision is monotonic per draft; the store drops any flush whose
	// revision is not strictly newer than what it already holds, so a delayed
	// flush can never regress the persisted answer set.
	revision atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

func (s *attemptSession) set(questionID uint, value model.AnswerValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value.Empty() {
		delete(s.answers, questionID)
	} else {
		s.answers[questionID] = value
	}
	s.dirty = true
}

// values returns a copy of the buffered answer set.
func (s *attemptSession) values() map[uint]model.AnswerValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]model.AnswerValue, len(s.answers))
	for qid, v := range s.answers {
		out[qid] = v
	}
	return out
}

// snapshot captures the buffer for a flush and clears the dirty flag; restore
// re-marks dirty when the flush fails so the next tick retries.
func (s *attemptSession) snapshot() (map[uint]model.AnswerValue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || len(s.answers) == 0 {
		return nil, false
	}
	s.dirty = false
	out := make(map[uint]model.AnswerValue, len(s.answers))
	for qid, v := range s.answers {
		out[qid] = v
	}
	return out, true
}

func (s *attemptSession) markDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

func (s *attemptSession) close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// SessionManager tracks the open draft sessions of this process and runs
// their autosave loops.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[uint]*attemptSession

	interval       time.Duration
	submissionRepo repository.SubmissionRepository
}

func NewSessionManager(cfg *config.Config, submissionRepo repository.SubmissionRepository) *SessionManager {
	return &SessionManager{
		sessions:       make(map[uint]*attemptSession),
		interval:       time.Duration(cfg.Engine.AutosaveIntervalSeconds) * time.Second,
		submissionRepo: submissionRepo,
	}
}

// Open returns the session for a draft, creating it (seeded with the
// persisted answers) when absent. startRevision must be the submission's
// stored draft_revision so flushes after a process restart are not dropped as
// stale. autosave starts the periodic flush loop; disabled when the test
// turns auto_save_draft off.
func (m *SessionManager) Open(submissionID, userID uint, startRevision int64, seed []model.Answer, autosave bool) *attemptSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[submissionID]; ok {
		return sess
	}

	sess := &attemptSession{
		submissionID: submissionID,
		userID:       userID,
		answers:      make(map[uint]model.AnswerValue, len(seed)),
		stop:         make(chan struct{}),
	}
	sess.revision.Store(startRevision)
	for i := range seed {
		sess.answers[seed[i].QuestionID] = seed[i].Value()
	}
	m.sessions[submissionID] = sess

	if autosave {
		go m.autosaveLoop(sess)
	}
	return sess
}

func (m *SessionManager) Get(submissionID uint) (*attemptSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[submissionID]
	return sess, ok
}

// Close stops the autosave loop and drops the session; called on any exit
// from draft.
func (m *SessionManager) Close(submissionID uint) {
	m.mu.Lock()
	sess, ok := m.sessions[submissionID]
	delete(m.sessions, submissionID)
	m.mu.Unlock()
	if ok {
		sess.close()
	}
}

// CloseAll is the shutdown hook.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*attemptSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[uint]*attemptSession)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
}

// autosaveLoop flushes the full current answer set on a fixed interval while
// the draft has unsaved changes. Failures are logged and retried on the next
// tick; a flush landing after the draft closed is dropped by the store.
func (m *SessionManager) autosaveLoop(sess *attemptSession) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sess.stop:
			return
		case <-ticker.C:
			m.flush(sess)
		}
	}
}

func (m *SessionManager) flush(sess *attemptSession) {
	answers, ok := sess.snapshot()
	if !ok {
		return
	}
	revision := sess.revision.Add(1)

	rows := make([]model.Answer, 0, len(answers))
	for qid, v := range answers {
		rows = append(rows, model.NewAnswer(sess.submissionID, qid, v))
	}

	saved, err := m.submissionRepo.SaveDraftAnswers(sess.submissionID, revision, rows)
	if err != nil {
		// Autosave fails silently from the student's perspective; the buffer
		// re-sends the full state on the next tick.
		log.Warn().Err(err).Uint("submissionID", sess.submissionID).Msg("Autosave flush failed, retrying next tick")
		sess.markDirty()
		return
	}
	if !saved {
		log.Debug().Uint("submissionID", sess.submissionID).Int64("revision", revision).Msg("Autosave dropped (stale revision or draft closed)")
		return
	}
	log.Debug().Uint("submissionID", sess.submissionID).Int64("revision", revision).Int("answers", len(rows)).Msg("Draft autosaved")
}
