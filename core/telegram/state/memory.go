package state

import "sync"

type entry[S any] struct {
	mu    sync.Mutex
	value S
}

// MemoryStore is an in-process Store. Sessions are created lazily by factory
// and are lost on restart.
type MemoryStore[S any] struct {
	mu      sync.Mutex
	entries map[int64]*entry[S]
	factory func() S
}

// NewMemoryStore constructs a MemoryStore that builds new sessions with factory.
func NewMemoryStore[S any](factory func() S) *MemoryStore[S] {
	return &MemoryStore[S]{
		entries: make(map[int64]*entry[S]),
		factory: factory,
	}
}

// Do runs fn with the session for key while holding that session's lock.
// Calls for different keys do not block each other.
func (m *MemoryStore[S]) Do(key int64, fn func(S)) {
	e := m.get(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.value)
}

// Clear drops the session for key; the next Do starts a fresh one.
func (m *MemoryStore[S]) Clear(key int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len reports the number of live sessions.
func (m *MemoryStore[S]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore[S]) get(key int64) *entry[S] {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry[S]{value: m.factory()}
		m.entries[key] = e
	}
	return e
}
