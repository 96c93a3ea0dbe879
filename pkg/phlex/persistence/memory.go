package persistence

import (
	"sync"
)

// MemoryStore is an in-memory Persistence for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu         sync.Mutex
	containers map[string]map[string]string // creator -> label -> type
	pending    map[string]map[string]record // creator -> label -> buffered write
	committed  map[recordKey]record
	selected   map[OutputItem]bool
	closed     bool
}

type recordKey struct {
	creator, label, id string
}

type record struct {
	data     []byte
	typeName string
}

// NewMemoryStore creates a new in-memory persistence backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]map[string]string),
		pending:    make(map[string]map[string]record),
		committed:  make(map[recordKey]record),
	}
}

// ConfigureTechSettings implements Persistence. The memory backend has
// no options.
func (m *MemoryStore) ConfigureTechSettings(TechSettings) error {
	return nil
}

// ConfigureOutputItems implements Persistence.
func (m *MemoryStore) ConfigureOutputItems(items []OutputItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(items) == 0 {
		m.selected = nil
		return nil
	}
	m.selected = make(map[OutputItem]bool, len(items))
	for _, it := range items {
		m.selected[it] = true
	}
	return nil
}

// CreateContainers implements Persistence.
func (m *MemoryStore) CreateContainers(creator string, products map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	layout := make(map[string]string, len(products))
	for label, typeName := range products {
		layout[label] = typeName
	}
	m.containers[creator] = layout
	return nil
}

// RegisterWrite implements Persistence.
func (m *MemoryStore) RegisterWrite(creator, label string, data []byte, typeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.containers[creator]; !ok {
		return ErrNoContainer
	}
	if m.selected != nil && !m.selected[OutputItem{Creator: creator, Label: label}] {
		return nil
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	if m.pending[creator] == nil {
		m.pending[creator] = make(map[string]record)
	}
	m.pending[creator][label] = record{data: buf, typeName: typeName}
	return nil
}

// CommitOutput implements Persistence.
func (m *MemoryStore) CommitOutput(creator, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for label, rec := range m.pending[creator] {
		m.committed[recordKey{creator: creator, label: label, id: id}] = rec
	}
	delete(m.pending, creator)
	return nil
}

// Read implements Persistence.
func (m *MemoryStore) Read(creator, label, id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, "", ErrClosed
	}
	rec, ok := m.committed[recordKey{creator: creator, label: label, id: id}]
	if !ok {
		return nil, "", ErrNotFound
	}
	out := make([]byte, len(rec.data))
	copy(out, rec.data)
	return out, rec.typeName, nil
}

// Close implements Persistence.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
