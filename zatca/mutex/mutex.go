// Package mutex provides read/write locks keyed by an arbitrary comparable value.
package mutex

import "sync"

type rwentry struct {
	mu   sync.RWMutex
	refs int
}

// KeyedRWMutex hands out one RWMutex per key. Entries live only while held
// or waited for. The zero value is ready to use.
type KeyedRWMutex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*rwentry
}

func (m *KeyedRWMutex[K]) acquire(key K) *rwentry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[K]*rwentry)
	}
	e, ok := m.entries[key]
	if !ok {
		e = &rwentry{}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *KeyedRWMutex[K]) lookup(key K) *rwentry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		panic("mutex: unlock of unlocked key")
	}
	return e
}

func (m *KeyedRWMutex[K]) release(key K, e *rwentry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

func (m *KeyedRWMutex[K]) Lock(key K) { m.acquire(key).mu.Lock() }

func (m *KeyedRWMutex[K]) Unlock(key K) {
	e := m.lookup(key)
	e.mu.Unlock()
	m.release(key, e)
}

func (m *KeyedRWMutex[K]) RLock(key K) { m.acquire(key).mu.RLock() }

func (m *KeyedRWMutex[K]) RUnlock(key K) {
	e := m.lookup(key)
	e.mu.RUnlock()
	m.release(key, e)
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedRWMutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
