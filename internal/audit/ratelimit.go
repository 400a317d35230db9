package audit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// UpstreamLimiter applies two-tier rate limiting on portal requests: a global
// cap protecting the upstream as a whole and per-session limits for fairness.
type UpstreamLimiter struct {
	global          *rate.Limiter
	sessionLimiters sync.Map // hash -> *rate.Limiter
	perSessionRate  float64
}

// NewUpstreamLimiter creates a limiter with the given requests-per-second
// budgets. Burst is twice the global rate so short poll loops don't stall.
func NewUpstreamLimiter(globalRate, perSessionRate float64) *UpstreamLimiter {
	if globalRate <= 0 {
		globalRate = 10.0
	}
	if perSessionRate <= 0 {
		perSessionRate = 2.0
	}
	return &UpstreamLimiter{
		global:         rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
		perSessionRate: perSessionRate,
	}
}

// Wait applies both tiers, blocking until tokens are available or ctx is done.
func (l *UpstreamLimiter) Wait(ctx context.Context, key SessionKey) error {
	if err := l.global.Wait(ctx); err != nil {
		return err
	}
	return l.sessionLimiter(key).Wait(ctx)
}

func (l *UpstreamLimiter) sessionLimiter(key SessionKey) *rate.Limiter {
	if limiter, ok := l.sessionLimiters.Load(key.Hash()); ok {
		return limiter.(*rate.Limiter)
	}

	newLimiter := rate.NewLimiter(rate.Limit(l.perSessionRate), int(l.perSessionRate*2)+1)

	// Use the existing limiter if another goroutine created it first.
	actual, _ := l.sessionLimiters.LoadOrStore(key.Hash(), newLimiter)
	return actual.(*rate.Limiter)
}
