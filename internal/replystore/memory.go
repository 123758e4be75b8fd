package replystore

import (
	"context"
	"sync"
)

// maxSessions bounds how many distinct sessions the in-memory store tracks
// before the least recently touched one is dropped wholesale.
const maxSessions = 256

// MemoryStore is a mutex-protected, bounded in-memory [Store]. Each session
// keeps a FIFO ring of up to capacity normalized lines; sessions themselves
// are evicted least-recently-used once maxSessions is reached.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	sessions map[string][]string
	touched  []string // session keys, least recently used first
}

// Compile-time interface assertion.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a MemoryStore with the given per-session line
// capacity. capacity <= 0 uses [DefaultCapacity].
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		sessions: make(map[string][]string),
	}
}

// Seen implements Store.
func (m *MemoryStore) Seen(_ context.Context, session, line string) (bool, error) {
	key := Normalize(line)
	if key == "" {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, prev := range m.sessions[session] {
		if Equivalent(prev, key) {
			return true, nil
		}
	}
	return false, nil
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, session, line string) error {
	key := Normalize(line)
	if key == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lines, ok := m.sessions[session]
	if !ok {
		m.evictIfFull()
	}
	lines = append(lines, key)
	if len(lines) > m.capacity {
		lines = lines[len(lines)-m.capacity:]
	}
	m.sessions[session] = lines
	m.touch(session)
	return nil
}

// Len reports the number of lines recorded for a session. Test helper.
func (m *MemoryStore) Len(session string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions[session])
}

// touch moves session to the most-recently-used end. Must hold m.mu.
func (m *MemoryStore) touch(session string) {
	for i, s := range m.touched {
		if s == session {
			m.touched = append(m.touched[:i], m.touched[i+1:]...)
			break
		}
	}
	m.touched = append(m.touched, session)
}

// evictIfFull drops the least recently used session when the session table
// is at capacity. Must hold m.mu.
func (m *MemoryStore) evictIfFull() {
	if len(m.sessions) < maxSessions || len(m.touched) == 0 {
		return
	}
	oldest := m.touched[0]
	m.touched = m.touched[1:]
	delete(m.sessions, oldest)
}
