// Package retry implements the Retry Manager (spec §4.8): it drives up to
// MaxAttempts calls to a caller-supplied attempt function, resetting its
// counter at the start of every session and honoring cooperative
// cancellation between attempts.
package retry

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultMaxAttempts bounds how many times a session will call attemptFn
// before giving up, when the caller doesn't configure one (spec §4.8).
const DefaultMaxAttempts = 3

// ErrSessionActive is returned by ExecuteWithRetry when a session is
// already running; the spec requires this to be a hard failure rather
// than queuing or restarting the in-flight session.
var ErrSessionActive = errors.New("retry: a session is already active")

// ErrCancelled marks a session that ended because Cancel was called.
var ErrCancelled = errors.New("retry: generation cancelled")

// ErrRetriesExhausted marks a session where every attempt returned
// success=false.
var ErrRetriesExhausted = errors.New("retry: exhausted all attempts")

// AttemptOutcome is what attemptFn reports for a single attempt.
type AttemptOutcome struct {
	Success   bool
	Cancelled bool
}

// AttemptFunc performs one attempt within a session. current and max let
// the function tailor its own behavior (e.g. logging) to its position in
// the session without needing to ask the Manager.
type AttemptFunc func(current, max int) AttemptOutcome

// OnAttemptFunc is notified before each attempt runs.
type OnAttemptFunc func(current, max int)

// SessionResult is the outcome of a full ExecuteWithRetry call.
type SessionResult struct {
	Success   bool
	Cancelled bool
	Attempts  int
	Err       error
}

// Manager tracks the state of a single retry session: the current attempt
// counter, whether a session is active, and whether it has been
// cancelled. A Manager is reused across sessions; the counter resets to
// zero at the start of every one.
type Manager struct {
	mu             sync.Mutex
	currentAttempt int
	maxAttempts    int
	active         bool
	cancelled      bool
}

// New returns a Manager ready for its first session, bounded to
// maxAttempts attempts per session. A non-positive maxAttempts falls
// back to DefaultMaxAttempts, so the zero value of config.RetryConfig
// is always safe to pass through.
func New(maxAttempts int) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Manager{maxAttempts: maxAttempts}
}

// ExecuteWithRetry starts a session and calls attemptFn up to the
// Manager's maxAttempts times, in order: check for cancellation,
// increment the counter, notify onAttempt, then call attemptFn, checking
// for cancellation again once it returns. The loop stops early on success
// or cancellation; on exhaustion it reports ErrRetriesExhausted.
func (m *Manager) ExecuteWithRetry(attemptFn AttemptFunc, onAttempt OnAttemptFunc) (SessionResult, error) {
	preCancelled, err := m.startSession()
	if err != nil {
		return SessionResult{}, err
	}
	defer m.endSession()

	// A Cancel received before this session started (e.g. while the
	// caller was still loading the model) must not be silently dropped
	// just because startSession clears the flag for the new session.
	if preCancelled {
		return SessionResult{Cancelled: true, Err: ErrCancelled}, nil
	}

	max := m.maxAttempts

	for {
		current, cancelled := m.beginAttempt()
		if cancelled {
			return SessionResult{Cancelled: true, Attempts: current, Err: ErrCancelled}, nil
		}

		if onAttempt != nil {
			onAttempt(current, max)
		}

		outcome := attemptFn(current, max)

		if outcome.Cancelled || m.isCancelled() {
			return SessionResult{Cancelled: true, Attempts: current, Err: ErrCancelled}, nil
		}
		if outcome.Success {
			return SessionResult{Success: true, Attempts: current}, nil
		}
		if current >= max {
			return SessionResult{Success: false, Attempts: current, Err: ErrRetriesExhausted}, nil
		}
	}
}

// Cancel sets the cancellation flag. The in-flight attempt is not
// interrupted directly — the Manager checks the flag at the next
// checkpoint, matching the pipeline's cooperative cancellation model.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
}

// startSession marks a new session active and reports whether a
// cancellation was already pending when it started, so the caller can
// honor it instead of having it silently cleared.
func (m *Manager) startSession() (preCancelled bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return false, fmt.Errorf("%w", ErrSessionActive)
	}
	preCancelled = m.cancelled
	m.active = true
	m.currentAttempt = 0
	m.cancelled = false
	return preCancelled, nil
}

func (m *Manager) endSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
}

func (m *Manager) beginAttempt() (current int, cancelled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelled {
		return m.currentAttempt, true
	}
	m.currentAttempt++
	return m.currentAttempt, false
}

func (m *Manager) isCancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}
