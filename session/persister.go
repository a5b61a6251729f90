package session

import (
	"context"
	"errors"
	"sync"
)

// Keys used in persisted storage. They match the browser storage keys of the
// web portal so an exported profile stays readable.
const (
	KeyToken  = "jwt_token"
	KeyUser   = "user"
	KeyViewer = "viewer"
)

// ErrStorageUnavailable wraps backend failures of a [Persister].
var ErrStorageUnavailable = errors.New("persisted storage unavailable")

// Persister is the narrow key-value surface the portal mirrors session fields
// into. Get reports ok=false for a missing key. Writes are last-writer-wins.
type Persister interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryPersister keeps values in a map. It is the default for tests and for
// one-shot processes that do not need to survive a restart.
type MemoryPersister struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{values: make(map[string]string)}
}

func (m *MemoryPersister) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPersister) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryPersister) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryPersister) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
