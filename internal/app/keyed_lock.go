package app

import (
	"sync"

	"github.com/dkeye/Chat/internal/domain"
)

type refMutex struct {
	sync.Mutex
	refs int
}

// roomLocks serializes work per room while letting rooms run in parallel.
type roomLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomName]*refMutex
}

func (l *roomLocks) Lock(name domain.RoomName) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[domain.RoomName]*refMutex)
	}
	m, ok := l.locks[name]
	if !ok {
		m = &refMutex{}
		l.locks[name] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, name)
		}
		l.mu.Unlock()
	}
}
