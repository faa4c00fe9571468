// Package token defines the contract the engine requires from the
// underlying fungible/non-fungible token ledger, and a store-backed
// reference implementation of it.
//
// The engine treats the ledger as an external collaborator: it never
// derives associated accounts or manages supply itself, it only invokes
// the operations below inside the enclosing atomic batch. The reference
// implementation keeps mints and accounts as records in the account
// store, which is all the engine's tests and the CLI simulator need.
package token

import (
	"errors"
	"fmt"

	"mercator-hq/ganymede/pkg/store"
)

// Ledger is the operation surface the engine calls into. Every method
// operates within the caller's transaction so the host's atomicity
// guarantee covers ledger effects together with engine effects.
type Ledger interface {
	InitMint(txn store.Txn, mint, mintAuthority, freezeAuthority store.Address, decimals uint8) error
	InitAccount(txn store.Txn, account, mint, owner store.Address) error
	MintTo(txn store.Txn, mint, account store.Address, amount uint64) error
	Burn(txn store.Txn, mint, account store.Address, amount uint64) error
	Transfer(txn store.Txn, mint, from, to store.Address, amount uint64) error
	Approve(txn store.Txn, mint, account, delegate store.Address, amount uint64) error
	Revoke(txn store.Txn, mint, account store.Address) error
	Freeze(txn store.Txn, mint, account store.Address) error
	Thaw(txn store.Txn, mint, account store.Address) error
	Close(txn store.Txn, mint, account, destination store.Address) error

	Mint(txn store.Txn, mint store.Address) (*Mint, error)
	Account(txn store.Txn, account store.Address) (*Account, error)
}

// StoreLedger implements Ledger over the account store.
type StoreLedger struct{}

// NewStoreLedger creates the store-backed reference ledger.
func NewStoreLedger() *StoreLedger {
	return &StoreLedger{}
}

// InitMint creates a mint record.
func (l *StoreLedger) InitMint(txn store.Txn, mint, mintAuthority, freezeAuthority store.Address, decimals uint8) error {
	if _, err := txn.Get(mint); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return l.putMint(txn, &Mint{
		Address:         mint,
		Decimals:        decimals,
		MintAuthority:   mintAuthority,
		FreezeAuthority: freezeAuthority,
		Initialized:     true,
	})
}

// InitAccount creates an empty token account for a mint.
func (l *StoreLedger) InitAccount(txn store.Txn, account, mint, owner store.Address) error {
	if _, err := txn.Get(account); err == nil {
		return ErrAlreadyInitialized
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := l.Mint(txn, mint); err != nil {
		return err
	}

	return l.putAccount(txn, &Account{
		Address: account,
		Mint:    mint,
		Owner:   owner,
	})
}

// MintTo mints amount into a token account and bumps supply.
func (l *StoreLedger) MintTo(txn store.Txn, mint, account store.Address, amount uint64) error {
	m, err := l.Mint(txn, mint)
	if err != nil {
		return err
	}
	acct, err := l.mintAccount(txn, mint, account)
	if err != nil {
		return err
	}

	m.Supply += amount
	acct.Amount += amount

	if err := l.putMint(txn, m); err != nil {
		return err
	}
	return l.putAccount(txn, acct)
}

// Burn removes amount from a token account and reduces supply.
func (l *StoreLedger) Burn(txn store.Txn, mint, account store.Address, amount uint64) error {
	m, err := l.Mint(txn, mint)
	if err != nil {
		return err
	}
	acct, err := l.mintAccount(txn, mint, account)
	if err != nil {
		return err
	}
	if acct.Amount < amount {
		return ErrInsufficientBalance
	}

	m.Supply -= amount
	acct.Amount -= amount

	if err := l.putMint(txn, m); err != nil {
		return err
	}
	return l.putAccount(txn, acct)
}

// Transfer moves amount between two accounts of the same mint. Frozen
// source or destination accounts reject the transfer.
func (l *StoreLedger) Transfer(txn store.Txn, mint, from, to store.Address, amount uint64) error {
	src, err := l.mintAccount(txn, mint, from)
	if err != nil {
		return err
	}
	dst, err := l.mintAccount(txn, mint, to)
	if err != nil {
		return err
	}
	if src.Frozen || dst.Frozen {
		return ErrAccountFrozen
	}
	if src.Amount < amount {
		return ErrInsufficientBalance
	}

	src.Amount -= amount
	dst.Amount += amount

	if err := l.putAccount(txn, src); err != nil {
		return err
	}
	return l.putAccount(txn, dst)
}

// Approve records a delegate allowed to move up to amount from the
// account.
func (l *StoreLedger) Approve(txn store.Txn, mint, account, delegate store.Address, amount uint64) error {
	acct, err := l.mintAccount(txn, mint, account)
	if err != nil {
		return err
	}

	acct.Delegate = delegate
	acct.DelegatedAmount = amount
	return l.putAccount(txn, acct)
}

// Revoke clears the account's delegate.
func (l *StoreLedger) Revoke(txn store.Txn, mint, account store.Address) error {
	acct, err := l.mintAccount(txn, mint, account)
	if err != nil {
		return err
	}

	acct.Delegate = store.Zero
	acct.DelegatedAmount = 0
	return l.putAccount(txn, acct)
}

// Freeze suspends the account.
func (l *StoreLedger) Freeze(txn store.Txn, mint, account store.Address) error {
	return l.setFrozen(txn, mint, account, true)
}

// Thaw lifts a freeze.
func (l *StoreLedger) Thaw(txn store.Txn, mint, account store.Address) error {
	return l.setFrozen(txn, mint, account, false)
}

// Close removes an empty token account, sending its native balance to the
// destination.
func (l *StoreLedger) Close(txn store.Txn, mint, account, destination store.Address) error {
	acct, err := l.mintAccount(txn, mint, account)
	if err != nil {
		return err
	}
	if acct.Amount != 0 {
		return ErrNonZeroBalance
	}

	rec, err := txn.Get(account)
	if err != nil {
		return err
	}
	if rec.Balance > 0 {
		dest, err := txn.Get(destination)
		if errors.Is(err, store.ErrNotFound) {
			dest = &store.Record{Address: destination, Owner: "system"}
		} else if err != nil {
			return err
		}
		dest.Balance += rec.Balance
		if err := txn.Put(dest); err != nil {
			return err
		}
	}

	return txn.Delete(account)
}

// Mint loads a mint record.
func (l *StoreLedger) Mint(txn store.Txn, mint store.Address) (*Mint, error) {
	rec, err := txn.Get(mint)
	if err != nil {
		return nil, err
	}
	return DecodeMint(rec)
}

// Account loads a token account record.
func (l *StoreLedger) Account(txn store.Txn, account store.Address) (*Account, error) {
	rec, err := txn.Get(account)
	if err != nil {
		return nil, err
	}
	return DecodeAccount(rec)
}

func (l *StoreLedger) mintAccount(txn store.Txn, mint, account store.Address) (*Account, error) {
	acct, err := l.Account(txn, account)
	if err != nil {
		return nil, err
	}
	if acct.Mint != mint {
		return nil, ErrMintMismatch
	}
	return acct, nil
}

func (l *StoreLedger) setFrozen(txn store.Txn, mint, account store.Address, frozen bool) error {
	acct, err := l.mintAccount(txn, mint, account)
	if err != nil {
		return err
	}
	acct.Frozen = frozen
	return l.putAccount(txn, acct)
}

func (l *StoreLedger) putMint(txn store.Txn, m *Mint) error {
	data, err := encodeMint(m)
	if err != nil {
		return fmt.Errorf("failed to encode mint record: %w", err)
	}

	rec, err := txn.Get(m.Address)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: m.Address, Owner: RecordOwnerMint}
	} else if err != nil {
		return err
	}
	rec.Owner = RecordOwnerMint
	rec.Data = data
	return txn.Put(rec)
}

func (l *StoreLedger) putAccount(txn store.Txn, a *Account) error {
	data, err := encodeAccount(a)
	if err != nil {
		return fmt.Errorf("failed to encode token account record: %w", err)
	}

	rec, err := txn.Get(a.Address)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: a.Address, Owner: RecordOwnerAccount}
	} else if err != nil {
		return err
	}
	rec.Owner = RecordOwnerAccount
	rec.Data = data
	return txn.Put(rec)
}
