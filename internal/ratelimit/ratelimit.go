// Package ratelimit implements the submission cooldown gate (spec §4.10):
// a minimum interval between two accepted user requests, with a
// countdown a UI can poll (RemainingCooldown, RemainingCooldownSeconds).
// The Limiter runs no timer of its own and pushes no updates; the
// configured update interval is only reported back by UpdateIntervalMs.
//
// This is deliberately not golang.org/x/time/rate: that package paces a
// continuous stream of requests against a token bucket, while this gate
// has exactly one piece of state (the last accepted request's timestamp)
// and a single countdown derived from it. internal/engine uses
// golang.org/x/time/rate for its own, unrelated per-call pacing; wiring
// the same bucket here would conflate two different rate concepts the
// spec keeps separate (§4.7 vs §4.10).
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultCooldown is the minimum interval between accepted requests.
	DefaultCooldown = 5000 * time.Millisecond

	// DefaultUpdateInterval is the tick rate for a countdown display.
	DefaultUpdateInterval = 100 * time.Millisecond
)

// Limiter tracks the last accepted request and reports whether a new one
// may proceed.
type Limiter struct {
	mu              sync.Mutex
	cooldown        time.Duration
	updateInterval  time.Duration
	lastRequestTime time.Time
	hasRequested    bool
	now             func() time.Time
}

// New returns a Limiter with the given cooldown and countdown update
// interval. A zero cooldown or updateInterval falls back to the spec's
// defaults.
func New(cooldown, updateInterval time.Duration) *Limiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if updateInterval <= 0 {
		updateInterval = DefaultUpdateInterval
	}
	return &Limiter{
		cooldown:       cooldown,
		updateInterval: updateInterval,
		now:            time.Now,
	}
}

// CanRequest reports whether a new request may be accepted right now.
func (l *Limiter) CanRequest() bool {
	return l.RemainingCooldown() <= 0
}

// IsLimited is the strict inverse of CanRequest.
func (l *Limiter) IsLimited() bool {
	return !l.CanRequest()
}

// RemainingCooldown returns how much longer the caller must wait, never
// negative and never exceeding the configured cooldown.
func (l *Limiter) RemainingCooldown() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasRequested {
		return 0
	}
	elapsed := l.now().Sub(l.lastRequestTime)
	remaining := l.cooldown - elapsed
	if remaining <= 0 {
		return 0
	}
	if remaining > l.cooldown {
		return l.cooldown
	}
	return remaining
}

// RemainingCooldownSeconds is the ceiling of RemainingCooldown in whole
// seconds, the unit a UI countdown displays.
func (l *Limiter) RemainingCooldownSeconds() int {
	remaining := l.RemainingCooldown()
	if remaining <= 0 {
		return 0
	}
	seconds := remaining / time.Second
	if remaining%time.Second != 0 {
		seconds++
	}
	return int(seconds)
}

// RecordRequest marks a request as accepted, starting a fresh cooldown
// window.
func (l *Limiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRequestTime = l.now()
	l.hasRequested = true
}

// Reset clears the cooldown window entirely, as if no request had ever
// been made.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasRequested = false
}

// SetCooldown changes the cooldown applied to future RemainingCooldown
// checks. It does not retroactively affect a window already in
// progress beyond shortening or lengthening how much of it remains, the
// same way changing DefaultCooldown before a request would. Used to
// apply a config hot-reload to an already-constructed Limiter.
func (l *Limiter) SetCooldown(d time.Duration) {
	if d <= 0 {
		d = DefaultCooldown
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldown = d
}

// CooldownMs returns the configured cooldown in whole milliseconds.
func (l *Limiter) CooldownMs() int64 {
	return l.cooldown.Milliseconds()
}

// UpdateIntervalMs returns the configured countdown tick interval in
// whole milliseconds.
func (l *Limiter) UpdateIntervalMs() int64 {
	return l.updateInterval.Milliseconds()
}
