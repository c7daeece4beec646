package smartedit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// PathLocks serializes work on a single absolute path across requests.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	sem  *semaphore.Weighted
	refs int
}

func NewPathLocks() *PathLocks {
	return &PathLocks{locks: make(map[string]*pathLock)}
}

// Lock blocks until path is free or ctx is done. The returned func releases it.
func (l *PathLocks) Lock(ctx context.Context, path string) (func(), error) {
	l.mu.Lock()
	pl, ok := l.locks[path]
	if !ok {
		pl = &pathLock{sem: semaphore.NewWeighted(1)}
		l.locks[path] = pl
	}
	pl.refs++
	l.mu.Unlock()

	if err := pl.sem.Acquire(ctx, 1); err != nil {
		l.release(path, pl, false)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(path, pl, true) })
	}, nil
}

func (l *PathLocks) release(path string, pl *pathLock, held bool) {
	if held {
		pl.sem.Release(1)
	}
	l.mu.Lock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.locks, path)
	}
	l.mu.Unlock()
}

func (l *PathLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
