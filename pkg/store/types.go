package store

import (
	"context"
	"errors"
)

// Address is an opaque account key in the host account store.
// The engine never interprets addresses beyond equality.
type Address string

// Zero is the absent address.
const Zero Address = ""

// Record is a single account record mutated in place by the host store.
// The engine keeps component payloads (policies, rulesets, mint state,
// token accounts) in Data and uses Balance for native-unit accounting.
type Record struct {
	// Address is the record key.
	Address Address

	// Owner identifies the component that owns the record layout
	// ("policy", "ruleset", "mint-manager", "mint-state", "token", "system").
	Owner string

	// Balance is the record's native balance in base units.
	Balance uint64

	// Data is the serialized component payload.
	Data []byte

	// Version is bumped on every committed write. Two concurrent
	// transactions writing the same record cannot both commit.
	Version uint64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	dup := *r
	dup.Data = append([]byte(nil), r.Data...)
	return &dup
}

// Txn is the handle passed to transactional functions. All reads observe
// the transaction's own writes; nothing is visible outside the transaction
// until commit.
type Txn interface {
	// Get retrieves a record by address. Returns ErrNotFound if absent.
	Get(addr Address) (*Record, error)

	// Put stages a record write. The record's Version is managed by the
	// store and must not be set by callers.
	Put(rec *Record) error

	// Delete stages a record removal. No-op if the record is absent.
	Delete(addr Address) error
}

// Store is the host account-store abstraction: address-keyed records with
// an atomic multi-key write transaction primitive. Implementations must
// guarantee that an Update either applies all staged writes or none, and
// must reject conflicting concurrent writes to the same record.
type Store interface {
	// View runs a read-only transaction.
	View(ctx context.Context, fn func(txn Txn) error) error

	// Update runs a read-write transaction. If fn returns an error the
	// transaction is discarded with no observable effect.
	Update(ctx context.Context, fn func(txn Txn) error) error

	// Close releases any resources held by the store.
	Close() error
}

// Sentinel errors.
var (
	// ErrNotFound indicates no record exists at the requested address.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a concurrent transaction committed a write
	// to a record this transaction also wrote.
	ErrConflict = errors.New("conflicting concurrent write")

	// ErrReadOnly indicates a write was attempted inside View.
	ErrReadOnly = errors.New("write attempted in read-only transaction")
)
