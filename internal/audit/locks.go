package audit

import (
	"context"
	"sync"
)

// SessionLocks hands out one exclusive lock per session key so concurrent
// requests for the same session serialize instead of submitting duplicate
// upstream jobs. Locks are created lazily and retained for the process
// lifetime; cardinality is bounded by distinct sessions seen.
type SessionLocks struct {
	locks sync.Map // hash -> chan struct{} (buffered 1)
}

// NewSessionLocks creates an empty registry.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{}
}

// Acquire blocks until the session's lock is held or ctx is done. On success
// the returned release function must be called exactly once.
func (r *SessionLocks) Acquire(ctx context.Context, key SessionKey) (func(), error) {
	v, _ := r.locks.LoadOrStore(key.Hash(), make(chan struct{}, 1))
	ch := v.(chan struct{})

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of distinct sessions with a registered lock.
func (r *SessionLocks) Len() int {
	n := 0
	r.locks.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
