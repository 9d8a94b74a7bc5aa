// SPDX-License-Identifier: MIT
//
// Package store is the key-value contract that couples the analyzer and
// the synthesizer. Values are scalars; every key is read and written
// independently, so a reader may see a mix of old and new bins within one
// cycle. No cross-key snapshot is offered.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by Get for a key that was never written.
	ErrNotFound = errors.New("store: key not found")
	// ErrStale is returned by Get for a key whose last write is older than
	// the store's TTL.
	ErrStale = errors.New("store: value is stale")
)

// Getter reads one scalar by key. Implementations must return an error,
// never a silent zero, when no usable value exists.
type Getter interface {
	Get(key string) (float64, error)
}

// Setter writes one scalar by key, last writer wins.
type Setter interface {
	Set(key string, value float64) error
}

// Store combines both directions.
type Store interface {
	Getter
	Setter
}

type entry struct {
	value   float64
	written time.Time
}

// Memory is an in-process Store with per-key atomic reads and writes.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Memory store.
type Option func(*Memory)

// WithTTL makes values older than ttl read as ErrStale. Zero disables
// staleness.
func WithTTL(ttl time.Duration) Option {
	return func(m *Memory) { m.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// NewMemory returns an empty store.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get implements Getter.
func (m *Memory) Get(key string) (float64, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return 0, ErrNotFound
	}
	if m.ttl > 0 && m.now().Sub(e.written) > m.ttl {
		return 0, ErrStale
	}
	return e.value, nil
}

// Set implements Setter. It never fails.
func (m *Memory) Set(key string, value float64) error {
	now := m.now()
	m.mu.Lock()
	m.entries[key] = entry{value: value, written: now}
	m.mu.Unlock()
	return nil
}

// Delete removes key; subsequent reads return ErrNotFound.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

var _ Store = (*Memory)(nil)
