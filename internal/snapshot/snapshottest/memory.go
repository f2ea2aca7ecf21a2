// Package snapshottest provides test doubles for the snapshot package.
package snapshottest

import (
	"context"
	"sort"
	"sync"

	"github.com/flemzord/pulse/internal/snapshot"
)

// Memory is an in-process snapshot.Store. SaveErr, when set, is returned by
// every Save and leaves the stored content untouched.
type Memory struct {
	SaveErr error

	mu    sync.Mutex
	data  map[string]snapshot.Set
	saves int
}

// Compile-time interface checks.
var (
	_ snapshot.Store  = (*Memory)(nil)
	_ snapshot.Lister = (*Memory)(nil)
)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]snapshot.Set)}
}

// Seed replaces key's content without counting as a Save.
func (m *Memory) Seed(key string, items ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = snapshot.NewSet(items...)
}

// Load implements snapshot.Store. It returns a copy.
func (m *Memory) Load(_ context.Context, key string) snapshot.Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot.NewSet(m.data[key].Sorted()...)
}

// Save implements snapshot.Store.
func (m *Memory) Save(_ context.Context, key string, s snapshot.Set) error {
	if err := snapshot.ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data[key] = snapshot.NewSet(s.Sorted()...)
	return nil
}

// Keys implements snapshot.Lister.
func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Saves returns how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
