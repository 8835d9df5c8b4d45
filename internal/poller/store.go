package poller

import (
	"context"
	"sync"
)

// IdentityStore holds "the current job id" so a consumer that comes back
// (a page reload, a new CLI invocation) can rejoin an outstanding job.
// Only the Poller writes to it.
type IdentityStore interface {
	CurrentJobID(ctx context.Context) (string, error)
	SetCurrentJobID(ctx context.Context, id string) error
}

// MemoryStore is a process-local IdentityStore.
type MemoryStore struct {
	mu sync.RWMutex
	id string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) CurrentJobID(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, nil
}

func (s *MemoryStore) SetCurrentJobID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}
