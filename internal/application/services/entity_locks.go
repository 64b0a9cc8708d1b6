package services

import (
	"sync"
)

// EntityLocks serializes same-entity writers inside one process. Each
// distinct key gets its own mutex, so documents naming unrelated entities
// never contend. The DB unique constraints remain the backstop across
// processes.
type EntityLocks struct {
	mu    sync.Mutex
	locks map[string]*entityLock
}

type entityLock struct {
	mu   sync.Mutex
	refs int
}

// NewEntityLocks creates an empty lock registry.
func NewEntityLocks() *EntityLocks {
	return &EntityLocks{locks: map[string]*entityLock{}}
}

// Lock acquires the mutex for the key and returns its unlock function.
// Entries are reference-counted and removed when the last holder releases,
// so the registry does not grow with every name ever seen.
func (l *EntityLocks) Lock(key string) func() {
	l.mu.Lock()
	lock := l.locks[key]
	if lock == nil {
		lock = &entityLock{}
		l.locks[key] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
