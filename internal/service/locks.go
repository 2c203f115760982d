package service

import (
	"sync"

	"github.com/google/uuid"
)

// wizardLocks serialises work on a single wizard. Entries are dropped once
// no caller holds or waits for them.
type wizardLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*wizardLock
}

type wizardLock struct {
	sync.Mutex
	refs int
}

func newWizardLocks() *wizardLocks {
	return &wizardLocks{locks: make(map[uuid.UUID]*wizardLock)}
}

// lock blocks until the caller owns id and returns the matching unlock.
func (l *wizardLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	wl, ok := l.locks[id]
	if !ok {
		wl = &wizardLock{}
		l.locks[id] = wl
	}
	wl.refs++
	l.mu.Unlock()

	wl.Lock()
	return func() {
		wl.Unlock()
		l.mu.Lock()
		wl.refs--
		if wl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// size reports how many wizards currently have a lock entry.
func (l *wizardLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
