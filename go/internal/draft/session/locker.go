package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// Locker serializes reconciliation per session inside one process. Saves are
// still version-checked for writers in other processes.
type Locker struct {
	locks *xsync.Map[uuid.UUID, *sync.Mutex]
}

func NewLocker() *Locker {
	return &Locker{locks: xsync.NewMap[uuid.UUID, *sync.Mutex]()}
}

func (l *Locker) mutex(id uuid.UUID) *sync.Mutex {
	mu, _ := l.locks.LoadOrStore(id, &sync.Mutex{})
	return mu
}

// Lock blocks until the session is free and returns the unlock func.
func (l *Locker) Lock(id uuid.UUID) func() {
	mu := l.mutex(id)
	mu.Lock()
	return mu.Unlock
}

// TryLock acquires the session lock only if nobody holds it.
func (l *Locker) TryLock(id uuid.UUID) (func(), bool) {
	mu := l.mutex(id)
	if !mu.TryLock() {
		return nil, false
	}
	return mu.Unlock, true
}
