// Package lock provides keyed mutual exclusion for plan generation, either
// within one process or across replicas through Redis.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a key stays held for longer than the wait.
var ErrLockTimeout = errors.New("lock: timed out waiting for key")

// Locker serialises work per key. The returned release func must be called
// exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Idle keys are dropped.
type LocalLocker struct {
	wait time.Duration

	mu   sync.Mutex
	keys map[string]*localEntry
}

// NewLocalLocker returns a locker that gives up after wait (0 waits until ctx ends).
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, keys: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				l.done(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.done(key, e)
		return nil, ctx.Err()
	case <-timeout:
		l.done(key, e)
		return nil, ErrLockTimeout
	}
}

func (l *LocalLocker) done(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
