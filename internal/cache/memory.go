package cache

import "sync"

// MemoryBackend keeps the record in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
	writes  int
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

func (m *MemoryBackend) ReadAll() (map[string]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyEntries(m.entries), nil
}

func (m *MemoryBackend) WriteAll(entries map[string]Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = copyEntries(entries)
	m.writes++
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Writes returns how many times the record was written.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func copyEntries(src map[string]Entry) map[string]Entry {
	out := make(map[string]Entry, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
