package storage

import (
	"context"
	"sync"
)

// MemoryKV is an in-process KV, used by the CLI's dry runs and by tests.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string

	// FailReads and FailWrites make every call return ErrRead / ErrWrite.
	FailReads  bool
	FailWrites bool
}

// NewMemoryKV creates an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailReads {
		return "", false, ErrRead
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return ErrWrite
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return ErrWrite
	}
	delete(m.data, key)
	return nil
}

// SetMany writes all values or none.
func (m *MemoryKV) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailWrites {
		return ErrWrite
	}
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}
