package retry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteWithRetrySucceedsOnFirstAttempt(t *testing.T) {
	m := New(DefaultMaxAttempts)
	var attempts []int
	result, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		attempts = append(attempts, current)
		return AttemptOutcome{Success: true}
	}, nil)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, []int{1}, attempts)
}

func TestExecuteWithRetryExhaustsAfterMaxAttempts(t *testing.T) {
	m := New(DefaultMaxAttempts)
	calls := 0
	result, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		calls++
		return AttemptOutcome{Success: false}
	}, nil)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, DefaultMaxAttempts, result.Attempts)
	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.ErrorIs(t, result.Err, ErrRetriesExhausted)
}

func TestExecuteWithRetryCounterResetsEverySession(t *testing.T) {
	m := New(DefaultMaxAttempts)
	alwaysFail := func(current, max int) AttemptOutcome { return AttemptOutcome{Success: false} }

	first, err := m.ExecuteWithRetry(alwaysFail, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, first.Attempts)

	var firstAttemptOfSecondSession int
	second, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		if firstAttemptOfSecondSession == 0 {
			firstAttemptOfSecondSession = current
		}
		return AttemptOutcome{Success: false}
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, firstAttemptOfSecondSession)
	assert.Equal(t, DefaultMaxAttempts, second.Attempts)
}

func TestExecuteWithRetryRejectsConcurrentSession(t *testing.T) {
	m := New(DefaultMaxAttempts)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
			close(started)
			<-release
			return AttemptOutcome{Success: true}
		}, nil)
		close(done)
	}()

	<-started
	_, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		return AttemptOutcome{Success: true}
	}, nil)
	assert.ErrorIs(t, err, ErrSessionActive)

	close(release)
	<-done
}

func TestExecuteWithRetryStopsOnCancelBeforeNextAttempt(t *testing.T) {
	m := New(DefaultMaxAttempts)
	attempts := 0
	result, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		attempts++
		if current == 2 {
			m.Cancel()
		}
		return AttemptOutcome{Success: false}
	}, nil)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 2, attempts)
	assert.ErrorIs(t, result.Err, ErrCancelled)
}

func TestExecuteWithRetryStopsOnAttemptReportingCancelled(t *testing.T) {
	m := New(DefaultMaxAttempts)
	result, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		return AttemptOutcome{Cancelled: true}
	}, nil)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 1, result.Attempts)
}

func TestExecuteWithRetryHonorsCancellationPendingBeforeSessionStart(t *testing.T) {
	m := New(DefaultMaxAttempts)
	m.Cancel() // e.g. the caller cancelled while still loading the model

	calls := 0
	result, err := m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		calls++
		return AttemptOutcome{Success: true}
	}, nil)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 0, calls)
	assert.ErrorIs(t, result.Err, ErrCancelled)
}

func TestNewWithNonPositiveMaxAttemptsFallsBackToDefault(t *testing.T) {
	m := New(0)
	assert.Equal(t, DefaultMaxAttempts, m.maxAttempts)

	m = New(-5)
	assert.Equal(t, DefaultMaxAttempts, m.maxAttempts)
}

func TestOnAttemptCalledBeforeEachAttempt(t *testing.T) {
	m := New(DefaultMaxAttempts)
	var seen []int
	m.ExecuteWithRetry(func(current, max int) AttemptOutcome {
		return AttemptOutcome{Success: false}
	}, func(current, max int) {
		seen = append(seen, current)
	})
	assert.Equal(t, []int{1, 2, 3}, seen)
}
