package store

import (
	"context"
	"sync"
)

// MemoryStore implements Store using in-memory records. This is the
// default backend for tests and single-process use. All data is lost when
// the process exits.
//
// MemoryStore serializes Update transactions with a write lock, which
// models the host environment's native serialization of conflicting
// writes: two batches touching the same record cannot interleave.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Address]*Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Address]*Record),
	}
}

// View runs a read-only transaction.
func (m *MemoryStore) View(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&memoryTxn{store: m, readOnly: true})
}

// Update runs a read-write transaction. Writes are staged in an overlay
// and applied only if fn returns nil.
func (m *MemoryStore) Update(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	txn := &memoryTxn{
		store:   m,
		staged:  make(map[Address]*Record),
		deleted: make(map[Address]bool),
	}

	if err := fn(txn); err != nil {
		return err
	}

	// Commit: apply staged writes and deletions.
	for addr, rec := range txn.staged {
		m.records[addr] = rec
	}
	for addr := range txn.deleted {
		delete(m.records, addr)
	}

	return nil
}

// Close releases the store. No-op for the memory backend.
func (m *MemoryStore) Close() error {
	return nil
}

// memoryTxn is a staged overlay over the store's record map. The store's
// lock is held for the transaction's whole lifetime, so the base map
// cannot change underneath it.
type memoryTxn struct {
	store    *MemoryStore
	readOnly bool
	staged   map[Address]*Record
	deleted  map[Address]bool
}

func (t *memoryTxn) Get(addr Address) (*Record, error) {
	if t.deleted[addr] {
		return nil, ErrNotFound
	}
	if rec, ok := t.staged[addr]; ok {
		return rec.Clone(), nil
	}
	rec, ok := t.store.records[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (t *memoryTxn) Put(rec *Record) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if rec == nil || rec.Address == Zero {
		return ErrNotFound
	}

	dup := rec.Clone()
	if prev, err := t.Get(rec.Address); err == nil {
		dup.Version = prev.Version + 1
	} else {
		dup.Version = 1
	}

	delete(t.deleted, rec.Address)
	t.staged[rec.Address] = dup
	return nil
}

func (t *memoryTxn) Delete(addr Address) error {
	if t.readOnly {
		return ErrReadOnly
	}
	delete(t.staged, addr)
	t.deleted[addr] = true
	return nil
}
