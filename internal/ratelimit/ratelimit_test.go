package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newLimiterAt(cooldown, updateInterval time.Duration, start time.Time) (*Limiter, *time.Time) {
	l := New(cooldown, updateInterval)
	clock := start
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestNewFallsBackToDefaults(t *testing.T) {
	l := New(0, 0)
	assert.Equal(t, DefaultCooldown.Milliseconds(), l.CooldownMs())
	assert.Equal(t, DefaultUpdateInterval.Milliseconds(), l.UpdateIntervalMs())
}

func TestCanRequestBeforeAnyRequest(t *testing.T) {
	l, _ := newLimiterAt(5*time.Second, 100*time.Millisecond, time.Now())
	assert.True(t, l.CanRequest())
	assert.False(t, l.IsLimited())
	assert.Equal(t, time.Duration(0), l.RemainingCooldown())
}

func TestRecordRequestStartsCooldown(t *testing.T) {
	start := time.Now()
	l, clock := newLimiterAt(5*time.Second, 100*time.Millisecond, start)
	l.RecordRequest()

	assert.False(t, l.CanRequest())
	assert.True(t, l.IsLimited())

	*clock = start.Add(2 * time.Second)
	assert.Equal(t, 3*time.Second, l.RemainingCooldown())

	*clock = start.Add(5 * time.Second)
	assert.True(t, l.CanRequest())
}

func TestRemainingCooldownSecondsRoundsUp(t *testing.T) {
	start := time.Now()
	l, clock := newLimiterAt(5*time.Second, 100*time.Millisecond, start)
	l.RecordRequest()

	*clock = start.Add(2100 * time.Millisecond)
	assert.Equal(t, 3, l.RemainingCooldownSeconds())

	*clock = start.Add(3 * time.Second)
	assert.Equal(t, 2, l.RemainingCooldownSeconds())
}

func TestRemainingCooldownSecondsZeroWhenNotLimited(t *testing.T) {
	l, _ := newLimiterAt(5*time.Second, 100*time.Millisecond, time.Now())
	assert.Equal(t, 0, l.RemainingCooldownSeconds())
}

func TestResetClearsCooldown(t *testing.T) {
	start := time.Now()
	l, _ := newLimiterAt(5*time.Second, 100*time.Millisecond, start)
	l.RecordRequest()
	assert.True(t, l.IsLimited())

	l.Reset()
	assert.True(t, l.CanRequest())
}

func TestRemainingCooldownNeverExceedsConfigured(t *testing.T) {
	start := time.Now()
	l, clock := newLimiterAt(5*time.Second, 100*time.Millisecond, start)
	l.RecordRequest()

	*clock = start.Add(-10 * time.Second) // clock moved backwards
	assert.Equal(t, 5*time.Second, l.RemainingCooldown())
}

func TestSetCooldownAppliesToInProgressWindow(t *testing.T) {
	start := time.Now()
	l, clock := newLimiterAt(5*time.Second, 100*time.Millisecond, start)
	l.RecordRequest()

	*clock = start.Add(1 * time.Second)
	assert.Equal(t, 4*time.Second, l.RemainingCooldown())

	l.SetCooldown(2 * time.Second)
	assert.Equal(t, 1*time.Second, l.RemainingCooldown())
}

func TestSetCooldownNonPositiveFallsBackToDefault(t *testing.T) {
	l := New(5*time.Second, 100*time.Millisecond)
	l.SetCooldown(0)
	assert.Equal(t, DefaultCooldown.Milliseconds(), l.CooldownMs())
}
