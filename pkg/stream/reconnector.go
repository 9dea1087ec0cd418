package stream

import (
	"sync"
	"time"
)

// Reconnector tracks the retry budget for one consumer and owns its single
// pending retry timer. It observes connection failures from the outside: the
// consumer reports each failure through Schedule, and the Reconnector either
// arms a timer for the next attempt or reports exhaustion.
type Reconnector struct {
	policy Policy

	mu      sync.Mutex
	attempt int
	lastErr error
	timer   *time.Timer
}

// NewReconnector returns a Reconnector following the given policy.
func NewReconnector(policy Policy) *Reconnector {
	return &Reconnector{policy: policy}
}

// Schedule records a failure and arms the retry timer. The attempt counter
// increments per call; fn runs after the policy's delay for that attempt.
// At most one timer is pending: scheduling again cancels the predecessor.
// When the budget is spent, Schedule returns an *ExhaustedError and arms
// nothing.
func (r *Reconnector) Schedule(cause error, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastErr = cause
	if r.attempt >= r.policy.MaxAttempts {
		return &ExhaustedError{Attempts: r.attempt, LastErr: r.lastErr}
	}

	delay := r.policy.Delay(r.attempt)
	r.attempt++

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(delay, fn)
	return nil
}

// Reset clears the attempt counter. Called after every successful open so
// the full budget applies to the next outage.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = 0
	r.lastErr = nil
}

// Stop cancels any pending retry timer without touching the attempt
// counter. Used by explicit disconnects, which must never be followed by an
// automatic retry.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Attempt returns the number of retries consumed so far.
func (r *Reconnector) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}
