package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"mercator-hq/ganymede/pkg/store"
)

// Record owners used by the token ledger in the account store.
const (
	RecordOwnerMint    = "token-mint"
	RecordOwnerAccount = "token"
)

// Mint is the bookkeeping record for one token mint.
type Mint struct {
	Address         store.Address `json:"address"`
	Supply          uint64        `json:"supply"`
	Decimals        uint8         `json:"decimals"`
	MintAuthority   store.Address `json:"mint_authority,omitempty"`
	FreezeAuthority store.Address `json:"freeze_authority,omitempty"`
	Initialized     bool          `json:"initialized"`
}

// Account is a holder's balance record for one mint.
type Account struct {
	Address         store.Address `json:"address"`
	Mint            store.Address `json:"mint"`
	Owner           store.Address `json:"owner"`
	Amount          uint64        `json:"amount"`
	Delegate        store.Address `json:"delegate,omitempty"`
	DelegatedAmount uint64        `json:"delegated_amount"`
	Frozen          bool          `json:"frozen"`
}

// Sentinel errors for ledger operations.
var (
	ErrAccountFrozen       = errors.New("token account is frozen")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrNotDelegate         = errors.New("signer is not the account delegate")
	ErrMintMismatch        = errors.New("token account mint mismatch")
	ErrAlreadyInitialized  = errors.New("record already initialized")
	ErrNonZeroBalance      = errors.New("cannot close account with a balance")
)

func encodeMint(m *Mint) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMint parses a mint record payload.
func DecodeMint(rec *store.Record) (*Mint, error) {
	if rec == nil || rec.Owner != RecordOwnerMint {
		return nil, fmt.Errorf("record is not a token mint")
	}
	var m Mint
	if err := json.Unmarshal(rec.Data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mint record: %w", err)
	}
	return &m, nil
}

func encodeAccount(a *Account) ([]byte, error) {
	return json.Marshal(a)
}

// DecodeAccount parses a token account record payload.
func DecodeAccount(rec *store.Record) (*Account, error) {
	if rec == nil || rec.Owner != RecordOwnerAccount {
		return nil, fmt.Errorf("record is not a token account")
	}
	var a Account
	if err := json.Unmarshal(rec.Data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode token account record: %w", err)
	}
	return &a, nil
}
