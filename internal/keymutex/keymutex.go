// Package keymutex provides per-key mutual exclusion. The sync engine and the
// token service share one KeyMutex so that refresh and sync for the same
// client id never interleave, while different clients never block each other.
package keymutex

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex is a set of lazily created mutexes keyed by string. Entries are
// reference counted and removed once the last holder unlocks, so the map does
// not grow with the number of distinct keys ever seen.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key, blocking while another goroutine holds it.
func (k *KeyMutex) Lock(key string) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for key. It panics if the key is not locked.
func (k *KeyMutex) Unlock(key string) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("keymutex: unlock of unlocked key " + key)
	}
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	entry.mu.Unlock()
}
