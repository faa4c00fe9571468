// Package mintstate tracks per-mint lock state and the active delegate.
//
// The lock is a domain-level suspension of transferability, not a
// concurrency-control mechanism: approve records the only delegate
// permitted to lock, lock suspends transfers out of the holder's account,
// and unlock is restricted to the locking delegate or the mint's
// administrative authority so a token can never be stranded.
package mintstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/store"
)

// RecordOwner tags mint state records in the account store.
const RecordOwner = "mint-state"

var mintStateNamespace = uuid.MustParse("8c7a1f52-3db1-45f2-9f80-1f62c9c7a004")

// MintState is the persisted per-mint state record. It is created
// implicitly on first wrap and deleted on burn.
type MintState struct {
	Version uint8         `json:"version"`
	Mint    store.Address `json:"mint"`

	// Policy is the governing policy for the rich rule-tree variant;
	// zero for mints governed by a ruleset via the mint manager.
	Policy store.Address `json:"policy,omitempty"`

	// Delegate is the address recorded at approve time, the only address
	// permitted to lock.
	Delegate store.Address `json:"delegate,omitempty"`

	// LockedBy is the delegate holding the lock; zero when unlocked.
	LockedBy store.Address `json:"locked_by,omitempty"`

	LastApprovedAt    int64  `json:"last_approved_at"`
	LastTransferredAt int64  `json:"last_transferred_at"`
	TransferredCount  uint32 `json:"transferred_count"`
}

// Locked reports whether the mint is currently locked.
func (ms *MintState) Locked() bool {
	return ms.LockedBy != store.Zero
}

// Sentinel errors for lock transitions.
var (
	ErrAlreadyLocked     = errors.New("mint is already locked")
	ErrNotLocked         = errors.New("mint is not locked")
	ErrNotDelegate       = errors.New("caller is not the approved delegate")
	ErrNotLockHolder     = errors.New("caller is neither the locking delegate nor the authority")
	ErrRevokeWhileLocked = errors.New("cannot revoke the delegate while the mint is locked")
	ErrStateExists       = errors.New("mint state already exists")
)

// DeriveID derives the mint state identifier from the mint.
func DeriveID(mint store.Address) store.Address {
	return store.Address("mint-state/" + uuid.NewSHA1(mintStateNamespace, []byte(mint)).String())
}

// Manager provides the lock/approve/revoke state machine over mint state
// records.
type Manager struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a mint state manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With("component", "mintstate.manager"),
		now:    time.Now,
	}
}

// Init creates the mint state record on first wrap.
func (m *Manager) Init(txn store.Txn, mint store.Address, policyID store.Address) (*MintState, error) {
	id := DeriveID(mint)
	if _, err := txn.Get(id); err == nil {
		return nil, ErrStateExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	ms := &MintState{Version: 1, Mint: mint, Policy: policyID}
	if err := m.put(txn, ms); err != nil {
		return nil, err
	}

	m.logger.Info("mint state created", "mint", string(mint))
	return ms, nil
}

// Approve records delegate as the only address permitted to lock. Lock
// status itself does not change.
func (m *Manager) Approve(txn store.Txn, mint store.Address, delegate store.Address) error {
	ms, err := m.Get(txn, mint)
	if err != nil {
		return err
	}
	if ms.Locked() {
		return ErrAlreadyLocked
	}

	ms.Delegate = delegate
	ms.LastApprovedAt = m.now().Unix()
	return m.put(txn, ms)
}

// Revoke clears the recorded delegate. Rejected while the mint is locked
// by that delegate: the lock must be released first so it can never be
// stranded with no one able to release it.
func (m *Manager) Revoke(txn store.Txn, mint store.Address) error {
	ms, err := m.Get(txn, mint)
	if err != nil {
		return err
	}
	if ms.Locked() {
		return ErrRevokeWhileLocked
	}

	ms.Delegate = store.Zero
	return m.put(txn, ms)
}

// Lock transitions Unlocked -> Locked(caller). Only the delegate recorded
// at approve time may lock.
func (m *Manager) Lock(txn store.Txn, mint store.Address, caller store.Address) error {
	ms, err := m.Get(txn, mint)
	if err != nil {
		return err
	}
	if ms.Locked() {
		return ErrAlreadyLocked
	}
	if caller == store.Zero || caller != ms.Delegate {
		return ErrNotDelegate
	}

	ms.LockedBy = caller
	if err := m.put(txn, ms); err != nil {
		return err
	}

	m.logger.Info("mint locked", "mint", string(mint), "locked_by", string(caller))
	return nil
}

// Unlock transitions Locked -> Unlocked. Only the delegate holding the
// lock or the mint's administrative authority may unlock.
func (m *Manager) Unlock(txn store.Txn, mint store.Address, caller store.Address, authority store.Address) error {
	ms, err := m.Get(txn, mint)
	if err != nil {
		return err
	}
	if !ms.Locked() {
		return ErrNotLocked
	}
	if caller != ms.LockedBy && (authority == store.Zero || caller != authority) {
		return ErrNotLockHolder
	}

	ms.LockedBy = store.Zero
	if err := m.put(txn, ms); err != nil {
		return err
	}

	m.logger.Info("mint unlocked", "mint", string(mint), "by", string(caller))
	return nil
}

// RecordTransfer updates the transfer bookkeeping after a successful
// guarded transfer.
func (m *Manager) RecordTransfer(txn store.Txn, mint store.Address) error {
	ms, err := m.Get(txn, mint)
	if err != nil {
		return err
	}

	ms.LastTransferredAt = m.now().Unix()
	if ms.TransferredCount < ^uint32(0) {
		ms.TransferredCount++
	}
	return m.put(txn, ms)
}

// Burn removes the mint state record. After burn the mint is no longer
// readable as an active MintState.
func (m *Manager) Burn(txn store.Txn, mint store.Address) error {
	if _, err := m.Get(txn, mint); err != nil {
		return err
	}
	return txn.Delete(DeriveID(mint))
}

// Get loads the mint state for a mint.
func (m *Manager) Get(txn store.Txn, mint store.Address) (*MintState, error) {
	rec, err := txn.Get(DeriveID(mint))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errcode.Wrap(errcode.InvalidMint, "get_mint_state", string(mint))
	}
	if err != nil {
		return nil, err
	}
	return Decode(rec)
}

func (m *Manager) put(txn store.Txn, ms *MintState) error {
	data, err := json.Marshal(ms)
	if err != nil {
		return fmt.Errorf("failed to encode mint state record: %w", err)
	}

	id := DeriveID(ms.Mint)
	rec, err := txn.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: id, Owner: RecordOwner}
	} else if err != nil {
		return err
	}
	rec.Owner = RecordOwner
	rec.Data = data
	return txn.Put(rec)
}

// Decode parses a mint state record payload.
func Decode(rec *store.Record) (*MintState, error) {
	if rec == nil || rec.Owner != RecordOwner {
		return nil, fmt.Errorf("record is not a mint state")
	}
	var ms MintState
	if err := json.Unmarshal(rec.Data, &ms); err != nil {
		return nil, fmt.Errorf("failed to decode mint state record: %w", err)
	}
	return &ms, nil
}
