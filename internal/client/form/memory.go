package form

import (
	"maps"
	"sort"
	"sync"
)

// MemoryAdapter is an in-process draft form plus location, used by the shell
// and by tests. It implements both Adapter and Navigator.
type MemoryAdapter struct {
	mu       sync.Mutex
	fields   map[string]any
	location string
	history  []string
}

// NewMemoryAdapter returns an empty form positioned at location.
func NewMemoryAdapter(location string) *MemoryAdapter {
	return &MemoryAdapter{fields: make(map[string]any), location: location}
}

// Set assigns a single field; an empty string clears it.
func (m *MemoryAdapter) Set(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := value.(string); ok && s == "" {
		delete(m.fields, name)
		return
	}
	m.fields[name] = value
}

// Fields returns a copy of the current field values.
func (m *MemoryAdapter) Fields() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.fields)
}

// Names returns field names in sorted order.
func (m *MemoryAdapter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.fields))
	for k := range m.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Reset empties the form.
func (m *MemoryAdapter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.fields)
}

func (m *MemoryAdapter) CaptureVisibleFields() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.fields))
	for k, v := range m.fields {
		if k == "" || v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

func (m *MemoryAdapter) ApplyFields(fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range fields {
		if k == "" {
			continue
		}
		m.fields[k] = v
	}
}

func (m *MemoryAdapter) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.location
}

func (m *MemoryAdapter) Navigate(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if url == m.location {
		return
	}
	m.history = append(m.history, m.location)
	m.location = url
}

// History lists previously visited locations, oldest first.
func (m *MemoryAdapter) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.history...)
}
