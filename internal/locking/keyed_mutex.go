package locking

import (
	"context"
	"sync"
)

// KeyedMutex serializes callers per key inside one process. Distinct keys
// never contend. The zero value is ready to use.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	token chan struct{}
	refs  int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the lock and may be called more than once.
func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := m.acquireEntry(key)
	select {
	case entry.token <- struct{}{}:
	case <-ctx.Done():
		m.releaseEntry(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.token
			m.releaseEntry(key, entry)
		})
	}, nil
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *KeyedMutex) acquireEntry(key string) *keyedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.locks == nil {
		m.locks = make(map[string]*keyedEntry)
	}
	entry, ok := m.locks[key]
	if !ok {
		entry = &keyedEntry{token: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (m *KeyedMutex) releaseEntry(key string, entry *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, key)
	}
}
