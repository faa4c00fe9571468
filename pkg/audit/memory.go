package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage keeps decisions in memory. Intended for tests and
// embedded use where durability is not required.
type MemoryStorage struct {
	mu        sync.RWMutex
	decisions []*Decision
}

// NewMemoryStorage creates an in-memory decision store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends a decision.
func (m *MemoryStorage) Store(ctx context.Context, d *Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *d
	m.decisions = append(m.decisions, &copied)
	return nil
}

// List returns decisions matching the query, newest first.
func (m *MemoryStorage) List(ctx context.Context, q Query) ([]*Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Decision
	for i := len(m.decisions) - 1; i >= 0; i-- {
		d := m.decisions[i]
		if q.Mint != "" && d.Mint != q.Mint {
			continue
		}
		if q.Result != "" && d.Result != q.Result {
			continue
		}
		if !q.Since.IsZero() && d.RecordedAt.Before(q.Since) {
			continue
		}
		copied := *d
		out = append(out, &copied)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of stored decisions.
func (m *MemoryStorage) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.decisions)), nil
}

// DeleteBefore removes decisions recorded before the cutoff.
func (m *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.decisions[:0]
	var deleted int64
	for _, d := range m.decisions {
		if d.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, d)
	}
	m.decisions = kept
	return deleted, nil
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
