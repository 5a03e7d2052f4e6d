// Package store provides the deployment registry: the single source of
// truth mapping a user to their personalized branch deployment. Two
// backends implement types.DeploymentRegistry; the in-memory one serves
// single-process runs and tests, SQLite survives restarts.
package store

import (
	"sync"
	"time"

	"tailor/internal/types"
)

// Memory is an in-process registry. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	deps map[string]*types.BranchDeployment
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{deps: make(map[string]*types.BranchDeployment)}
}

// Get returns the record for userID, or types.ErrNotFound.
func (m *Memory) Get(userID string) (*types.BranchDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dep, ok := m.deps[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	cp := *dep
	return &cp, nil
}

// Put upserts the record for dep.UserID and stamps UpdatedAt.
func (m *Memory) Put(dep *types.BranchDeployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *dep
	cp.UpdatedAt = time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		if prev, ok := m.deps[cp.UserID]; ok {
			cp.CreatedAt = prev.CreatedAt
		} else {
			cp.CreatedAt = cp.UpdatedAt
		}
	}
	m.deps[cp.UserID] = &cp
	return nil
}

// Delete removes the record for userID. Deleting a missing record is a no-op.
func (m *Memory) Delete(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deps, userID)
	return nil
}

// List returns all records in unspecified order.
func (m *Memory) List() ([]*types.BranchDeployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.BranchDeployment, 0, len(m.deps))
	for _, dep := range m.deps {
		cp := *dep
		out = append(out, &cp)
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (m *Memory) Close() error {
	return nil
}
