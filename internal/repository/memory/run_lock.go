package memory

import (
	"context"
	"sync"
	"time"
)

// RunLock is a process-local lock with expiry.
type RunLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewRunLock returns an empty lock table.
func NewRunLock() *RunLock {
	return &RunLock{held: map[string]time.Time{}, clock: time.Now}
}

// Acquire takes key for ttl unless another holder owns an unexpired lease.
func (l *RunLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, false, nil
	}
	until := now.Add(ttl)
	l.held[key] = until
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(until) {
			delete(l.held, key)
		}
		return nil
	}
	return release, true, nil
}
