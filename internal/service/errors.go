package service

import "errors"

var (
	// ErrAttemptLimitExceeded blocks Start once a user's closed attempts
	// reach the test's max_attempts. Fatal to the attempt flow, no retry.
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")

	// ErrAlreadySubmitted marks a duplicate submit. Callers treat it as
	// idempotent success, never as a user-facing failure.
	ErrAlreadySubmitted = errors.New("submission already submitted")

	// ErrInvalidPoints rejects grading input exceeding a question's maximum,
	// before anything is persisted.
	ErrInvalidPoints = errors.New("invalid points for question")

	// ErrStaleTransition is returned to the loser of a state-transition race;
	// the caller should re-fetch the submission rather than retry the write.
	ErrStaleTransition = errors.New("stale submission state")

	// ErrPersistenceUnavailable wraps storage failures on the attempt path.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")

	ErrTestNotFound       = errors.New("test not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAttemptNotOwned    = errors.New("attempt does not belong to user")
	ErrAttemptClosed      = errors.New("attempt is no longer in draft")
	ErrNotPendingManual   = errors.New("submission has no pending manual grading")
)
