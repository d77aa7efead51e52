package booking

import (
	"fmt"
	"sync"
)

// keyedLocks provides a mutex per string key so that all mutations on one
// booking id (and, for approvals, on one tool id) are mutually exclusive
// without a single global lock. Entries are reference-counted and removed
// when the last holder releases.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*lockEntry)}
}

// lock acquires the mutex for key and returns the matching release func.
func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Lock keys. Whenever both are held, the booking key is always acquired
// before the tool key, so holders cannot deadlock against each other.
func bookingKey(id int64) string { return fmt.Sprintf("booking/%d", id) }
func toolKey(id int64) string    { return fmt.Sprintf("tool/%d", id) }
