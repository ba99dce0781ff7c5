package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLock is an in-process Locker. Expired holds are treated as free.
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocalLock() *LocalLock {
	return &LocalLock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *LocalLock) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *LocalLock) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}
