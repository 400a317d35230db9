package audit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Circuit breaker defaults: open after 5 failures, self-heal after 30s.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerRecovery  = 30 * time.Second
)

// CircuitBreaker fails fast once the upstream shows a failure pattern, then
// self-heals after the recovery window without operator intervention. Shared
// by all sessions: the portal is a single upstream.
type CircuitBreaker struct {
	failureCount atomic.Uint32
	mu           sync.Mutex
	lastFailure  time.Time
	threshold    uint32
	recovery     time.Duration
}

// NewCircuitBreaker creates a breaker that opens after threshold failures and
// allows requests again once recovery has elapsed since the last failure.
func NewCircuitBreaker(threshold int, recovery time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if recovery <= 0 {
		recovery = DefaultBreakerRecovery
	}
	return &CircuitBreaker{
		threshold: uint32(threshold),
		recovery:  recovery,
	}
}

// IsOpen reports whether requests should be rejected. Crossing the recovery
// window resets the breaker as a side effect: checking aliveness also heals.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb.failureCount.Load() < cb.threshold {
		return false
	}

	cb.mu.Lock()
	last := cb.lastFailure
	cb.mu.Unlock()

	if !last.IsZero() && time.Since(last) > cb.recovery {
		cb.Reset()
		return false
	}

	return true
}

// RecordSuccess zeroes the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.failureCount.Store(0)
}

// RecordFailure increments the failure count and stamps the clock.
func (cb *CircuitBreaker) RecordFailure() {
	cb.failureCount.Add(1)
	cb.mu.Lock()
	cb.lastFailure = time.Now()
	cb.mu.Unlock()
}

// Reset clears the failure count and timestamp.
func (cb *CircuitBreaker) Reset() {
	cb.failureCount.Store(0)
	cb.mu.Lock()
	cb.lastFailure = time.Time{}
	cb.mu.Unlock()
}

// FailureCount returns the current consecutive failure count.
func (cb *CircuitBreaker) FailureCount() int {
	return int(cb.failureCount.Load())
}
