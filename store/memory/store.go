// Package memory provides an in-memory dlq.Store for unit testing and
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courierhq/courier"
	"github.com/courierhq/courier/dlq"
	"github.com/courierhq/courier/id"
)

// Compile-time interface check.
var _ dlq.Store = (*Store)(nil)

// Store is a fully in-memory dead-letter archive. Safe for concurrent
// access.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*dlq.Entry)}
}

// Push adds an entry to the archive.
func (m *Store) Push(_ context.Context, entry *dlq.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.ID.String()] = &cp
	return nil
}

// List returns entries matching opts, oldest failure first.
func (m *Store) List(_ context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*dlq.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FailedAt.Before(out[j].FailedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Get retrieves an entry by ID.
func (m *Store) Get(_ context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[entryID.String()]
	if !ok {
		return nil, courier.ErrDLQEntryNotFound
	}
	cp := *e
	return &cp, nil
}

// MarkReplayed stamps ReplayedAt on an entry.
func (m *Store) MarkReplayed(_ context.Context, entryID id.DLQID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID.String()]
	if !ok {
		return courier.ErrDLQEntryNotFound
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now
	return nil
}

// Purge removes entries that failed before the given time.
func (m *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key, e := range m.entries {
		if e.FailedAt.Before(before) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of archived entries.
func (m *Store) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}
