package lock

import (
	"context"
	"sync"
)

// LocalLocker serializes work per hash inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // holds one token while the hash is locked
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*entry)}
}

func (l *LocalLocker) Lock(ctx context.Context, hash string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[hash]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[hash] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(hash, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(hash, e, true) })
	}, nil
}

func (l *LocalLocker) release(hash string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, hash)
	}
	l.mu.Unlock()
}
