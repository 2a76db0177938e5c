package service

import (
	"errors"
	"sync"
	"time"

	"github.com/openlms/assessment-engine/config"
	"github.com/rs/zerolog/log"
)

// RemainingSeconds is the pure countdown function: seconds left on the
// attempt clock, floored at zero. ok is false for untimed tests.
func RemainingSeconds(startedAt time.Time, durationMinutes *int, now time.Time) (int, bool) {
	if durationMinutes == nil {
		return 0, false
	}
	remaining := *durationMinutes*60 - int(now.Sub(startedAt).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// ForceSubmitFunc closes an expired draft. It must be idempotent: returning
// ErrAlreadySubmitted (or ErrStaleTransition) means someone else already
// closed the attempt and the scheduler is done with it.
type ForceSubmitFunc func(submissionID uint) error

// ExpiryScheduler owns one one-shot timer per timed draft. Timers are armed
// on Start (and re-armed for surviving drafts at process startup) and
// cancelled on any exit from draft. The fired map only tracks callbacks in
// flight; entries are removed as soon as the callback settles, so state does
// not accumulate per attempt. A stray late firing is harmless: the forced
// submit settles on the submission store's state guard.
type ExpiryScheduler struct {
	mu      sync.Mutex
	timers  map[uint]*time.Timer
	fired   map[uint]bool
	stopped bool

	force   ForceSubmitFunc
	retries int
	backoff time.Duration
}

func NewExpiryScheduler(cfg *config.Config) *ExpiryScheduler {
	return &ExpiryScheduler{
		timers:  make(map[uint]*time.Timer),
		fired:   make(map[uint]bool),
		retries: cfg.Engine.ForcedSubmitRetries,
		backoff: time.Duration(cfg.Engine.ForcedSubmitBackoffMillis) * time.Millisecond,
	}
}

// Bind wires the forced-submit callback. Set once at startup; kept out of the
// constructor to avoid a cycle with the attempt service.
func (s *ExpiryScheduler) Bind(force ForceSubmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.force = force
}

// Arm schedules the forced submit for a timed draft. Untimed tests are inert.
// Arming an already-armed or already-fired submission is a no-op, so a resume
// cannot double-schedule. A draft found already past its deadline fires
// immediately.
func (s *ExpiryScheduler) Arm(submissionID uint, startedAt time.Time, durationMinutes *int) {
	remaining, timed := RemainingSeconds(startedAt, durationMinutes, time.Now())
	if !timed {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.fired[submissionID] {
		return
	}
	if _, armed := s.timers[submissionID]; armed {
		return
	}
	delay := time.Duration(remaining) * time.Second
	s.timers[submissionID] = time.AfterFunc(delay, func() {
		s.fire(submissionID)
	})
	log.Debug().Uint("submissionID", submissionID).Int("remainingSeconds", remaining).Msg("Attempt expiry timer armed")
}

// Cancel stops the timer on a manual submit so a late firing cannot race a
// just-completed submission.
func (s *ExpiryScheduler) Cancel(submissionID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[submissionID]; ok {
		if !t.Stop() {
			// The callback already left the timer; leave a marker it consumes
			// on entry so the forced submit does not run.
			s.fired[submissionID] = true
		}
		delete(s.timers, submissionID)
	}
}

// Stop cancels everything; used on process shutdown so no timer outlives the
// scheduler.
func (s *ExpiryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// fire performs the one-shot forced submit. Losing a forced submission is the
// one failure mode with no safe default (the student cannot resubmit after
// expiry), so persistence failures are retried on a short backoff before the
// attempt is flagged as possibly unrecorded.
func (s *ExpiryScheduler) fire(submissionID uint) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.fired[submissionID] {
		// Cancelled after the callback dispatched; consume the marker.
		delete(s.fired, submissionID)
		s.mu.Unlock()
		return
	}
	s.fired[submissionID] = true
	delete(s.timers, submissionID)
	force := s.force
	s.mu.Unlock()

	// Release the in-flight entry once the forced submit settles, whatever
	// the outcome; by then the attempt is closed (or unrecoverable) and the
	// entry must not outlive it.
	defer func() {
		s.mu.Lock()
		delete(s.fired, submissionID)
		s.mu.Unlock()
	}()

	if force == nil {
		log.Error().Uint("submissionID", submissionID).Msg("Expiry fired with no forced-submit callback bound")
		return
	}

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.backoff)
		}
		err = force(submissionID)
		if err == nil {
			log.Info().Uint("submissionID", submissionID).Msg("Attempt force-submitted on expiry")
			return
		}
		if errors.Is(err, ErrAlreadySubmitted) || errors.Is(err, ErrStaleTransition) {
			// Manual submit won the race; nothing left to do.
			return
		}
		log.Warn().Err(err).Uint("submissionID", submissionID).Int("attempt", attempt+1).Msg("Forced submit failed, will retry")
	}
	log.Error().Err(err).Uint("submissionID", submissionID).Msg("Forced submit exhausted retries; attempt may not have been recorded")
}
