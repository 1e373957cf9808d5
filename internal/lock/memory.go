package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryManager implements Manager with an in-process lease table. It keeps
// the same TTL discipline as PostgresManager so single-instance deployments
// and tests behave identically to the shared-store setup.
type MemoryManager struct {
	mu     sync.Mutex
	leases map[string]time.Time
}

// NewMemoryManager returns an empty in-process lease table.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{leases: make(map[string]time.Time)}
}

// TryAcquire takes the lease iff the key is absent or its lease has expired.
func (m *MemoryManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) bool {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.leases[key]; ok && exp.After(now) {
		return false
	}
	m.leases[key] = now.Add(ttl)
	return true
}

// Release frees the lease. Releasing an absent key is a no-op.
func (m *MemoryManager) Release(ctx context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, key)
}
