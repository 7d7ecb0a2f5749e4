package resource

import (
	"sort"
	"sync"
)

// Memory is an in-memory Loader.
type Memory struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory creates a Memory loader seeded with files keyed by resource path.
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string][]byte, len(files))}
	for p, content := range files {
		m.Set(p, []byte(content))
	}
	return m
}

// Set stores content under p, replacing any previous value.
func (m *Memory) Set(p string, content []byte) {
	key, ok := Clean(p)
	if !ok {
		return
	}
	m.mu.Lock()
	m.files[key] = content
	m.mu.Unlock()
}

// Delete removes p.
func (m *Memory) Delete(p string) {
	key, _ := Clean(p)
	m.mu.Lock()
	delete(m.files, key)
	m.mu.Unlock()
}

func (m *Memory) SyncLoad(p string) ([]byte, error) {
	key, ok := Clean(p)
	if !ok {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	data, exists := m.files[key]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrNotFound
	}
	return data, nil
}

// Paths returns all stored paths in sorted order.
func (m *Memory) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
