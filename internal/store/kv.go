package store

import (
	"fmt"
	"io"
	"sync"

	"github.com/soyeahso/agentstudio/internal/logging"
)

// KV is a minimal durable key-value store. Put replaces the whole value
// atomically; readers never observe a partial write.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

// OpenBackend opens the KV backend named by backend ("sqlite", "file" or
// "memory") at path. The returned closer releases backend resources.
func OpenBackend(backend, path string, log *logging.Logger) (KV, io.Closer, error) {
	switch backend {
	case "", "sqlite":
		db, err := Open(path, log)
		if err != nil {
			return nil, nil, err
		}
		return db.KV(), db, nil
	case "file":
		kv, err := NewFileKV(path)
		if err != nil {
			return nil, nil, err
		}
		return kv, nopCloser{}, nil
	case "memory":
		return NewMemoryKV(), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MemoryKV is an in-memory KV implementation.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
