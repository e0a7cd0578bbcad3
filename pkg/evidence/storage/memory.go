package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"custodia-hq/custodia/pkg/evidence"
)

// Memory is an in-memory Backend for tests.
type Memory struct {
	mu        sync.Mutex
	packs     map[string]struct{}
	metadata  map[string]Metadata
	immutable map[string]time.Time
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		packs:     make(map[string]struct{}),
		metadata:  make(map[string]Metadata),
		immutable: make(map[string]time.Time),
	}
}

// Put registers a pack id so retention operations can target it.
func (m *Memory) Put(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packs[id] = struct{}{}
}

// Exists reports whether the pack id is registered.
func (m *Memory) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.packs[id]
	return ok, nil
}

// GetMetadata returns the pack's retention metadata.
func (m *Memory) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.metadata[id]
	if !ok {
		return nil, evidence.NewNotFoundError("retention", id)
	}
	out := make(Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out, nil
}

// SetMetadata replaces the pack's retention metadata.
func (m *Memory) SetMetadata(ctx context.Context, id string, md Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[id]; !ok {
		return evidence.NewNotFoundError("pack", id)
	}
	cp := make(Metadata, len(md))
	for k, v := range md {
		cp[k] = v
	}
	m.metadata[id] = cp
	return nil
}

// SetImmutableUntil extends the pack's immutability window.
func (m *Memory) SetImmutableUntil(ctx context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[id]; !ok {
		return evidence.NewNotFoundError("pack", id)
	}
	if cur, ok := m.immutable[id]; ok && until.Before(cur) {
		return evidence.NewStorageError("memory", "set_immutable",
			fmt.Errorf("immutability window can only be extended"))
	}
	m.immutable[id] = until
	return nil
}

// RestoreImmutableUntil resets the pack's immutability window,
// shrinking it if needed. A zero until clears the lock.
func (m *Memory) RestoreImmutableUntil(ctx context.Context, id string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[id]; !ok {
		return evidence.NewNotFoundError("pack", id)
	}
	if until.IsZero() {
		delete(m.immutable, id)
		return nil
	}
	m.immutable[id] = until
	return nil
}

// CheckImmutable reports the pack's immutability state.
func (m *Memory) CheckImmutable(ctx context.Context, id string) (bool, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.immutable[id]
	if !ok || time.Now().After(until) {
		return false, until, nil
	}
	return true, until, nil
}

// Delete removes the pack unless it is immutable.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.packs[id]; !ok {
		return evidence.NewNotFoundError("pack", id)
	}
	if until, ok := m.immutable[id]; ok && time.Now().Before(until) {
		return evidence.NewStorageError("memory", "delete",
			fmt.Errorf("pack is immutable until %s", until.Format(time.RFC3339)))
	}
	delete(m.packs, id)
	delete(m.metadata, id)
	delete(m.immutable, id)
	return nil
}
