// Package ruleset implements the simpler allow/deny-list policy variant
// and the mint manager record binding each wrapped mint to exactly one
// ruleset.
//
// A ruleset's identifier is derived from its human-readable name, so two
// rulesets cannot share a name; that collision is the intended uniqueness
// mechanism.
package ruleset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/store"
)

// Record owners in the account store.
const (
	RecordOwner            = "ruleset"
	MintManagerRecordOwner = "mint-manager"
)

var (
	rulesetNamespace     = uuid.MustParse("8c7a1f52-3db1-45f2-9f80-1f62c9c7a002")
	mintManagerNamespace = uuid.MustParse("8c7a1f52-3db1-45f2-9f80-1f62c9c7a003")
)

// Ruleset is the persisted allow/deny-list record.
//
// DisallowedAddresses is a blacklist over every participant and invoked
// program; AllowedPrograms, when non-empty, is a whitelist over invoked
// programs. Both may be active at once and a transfer failing either
// check is rejected.
type Ruleset struct {
	Version                   uint8           `json:"version"`
	ID                        store.Address   `json:"id"`
	Name                      string          `json:"name"`
	Authority                 store.Address   `json:"authority"`
	Collector                 store.Address   `json:"collector"`
	CheckSellerFeeBasisPoints bool            `json:"check_seller_fee_basis_points"`
	DisallowedAddresses       []store.Address `json:"disallowed_addresses"`
	AllowedPrograms           []store.Address `json:"allowed_programs"`

	// CheckTransferAddressNotDerived rejects transfers whose destination
	// is a derived (program-controlled) address.
	CheckTransferAddressNotDerived bool `json:"check_transfer_address_not_derived"`
}

// MintManager binds exactly one mint to exactly one ruleset.
type MintManager struct {
	Version   uint8         `json:"version"`
	ID        store.Address `json:"id"`
	Mint      store.Address `json:"mint"`
	Authority store.Address `json:"authority"`
	Ruleset   store.Address `json:"ruleset"`
}

// UpdateParams is the wholesale replacement for a ruleset's mutable
// fields. Name and ID are immutable.
type UpdateParams struct {
	Authority                      store.Address
	Collector                      store.Address
	CheckSellerFeeBasisPoints      bool
	DisallowedAddresses            []store.Address
	AllowedPrograms                []store.Address
	CheckTransferAddressNotDerived bool
}

// Sentinel errors.
var (
	ErrRulesetExists     = errors.New("ruleset already exists")
	ErrMintManagerExists = errors.New("mint manager already exists")
)

// DeriveID derives the ruleset identifier from its name.
func DeriveID(name string) store.Address {
	return store.Address("ruleset/" + uuid.NewSHA1(rulesetNamespace, []byte(name)).String())
}

// DeriveMintManagerID derives the mint manager identifier from the mint.
func DeriveMintManagerID(mint store.Address) store.Address {
	return store.Address("mint-manager/" + uuid.NewSHA1(mintManagerNamespace, []byte(mint)).String())
}

// CheckPrograms verifies the batch's invoked programs and participant
// addresses against the ruleset's lists. Order matters for error
// precedence: the allow-list is consulted per program before the
// disallow-list is consulted per participant, matching the persisted
// taxonomy clients depend on.
func (r *Ruleset) CheckPrograms(programs []store.Address, participants []store.Address) error {
	allowed := make(map[store.Address]bool, len(r.AllowedPrograms))
	for _, p := range r.AllowedPrograms {
		allowed[p] = true
	}
	disallowed := make(map[store.Address]bool, len(r.DisallowedAddresses))
	for _, d := range r.DisallowedAddresses {
		disallowed[d] = true
	}

	for _, prog := range programs {
		if len(allowed) > 0 && !allowed[prog] {
			return errcode.Wrap(errcode.ProgramNotAllowed, "check_programs", string(prog))
		}
		if disallowed[prog] {
			return errcode.Wrap(errcode.ProgramDisallowed, "check_programs", string(prog))
		}
	}
	for _, addr := range participants {
		if disallowed[addr] {
			return errcode.Wrap(errcode.ProgramDisallowed, "check_programs", string(addr))
		}
	}

	return nil
}

// Manager provides init/update/get over ruleset and mint manager records.
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a ruleset manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger.With("component", "ruleset.manager")}
}

// InitRuleset creates a new ruleset at the name-derived identifier.
// Empty list fields are stored as zero-length lists, not absent.
func (m *Manager) InitRuleset(txn store.Txn, name string, authority, collector store.Address, checkSellerFeeBp bool, disallowed, allowed []store.Address) (*Ruleset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errcode.Wrap(errcode.InvalidRuleset, "init_ruleset", "name cannot be empty")
	}
	if authority == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "init_ruleset", "authority cannot be empty")
	}
	if collector == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidCollector, "init_ruleset", "collector cannot be empty")
	}

	id := DeriveID(name)
	if _, err := txn.Get(id); err == nil {
		return nil, ErrRulesetExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if disallowed == nil {
		disallowed = []store.Address{}
	}
	if allowed == nil {
		allowed = []store.Address{}
	}

	rs := &Ruleset{
		Version:                   1,
		ID:                        id,
		Name:                      name,
		Authority:                 authority,
		Collector:                 collector,
		CheckSellerFeeBasisPoints: checkSellerFeeBp,
		DisallowedAddresses:       disallowed,
		AllowedPrograms:           allowed,
	}
	if err := m.putRuleset(txn, rs); err != nil {
		return nil, err
	}

	m.logger.Info("ruleset created", "ruleset_id", string(id), "name", name)
	return rs, nil
}

// UpdateRuleset replaces a ruleset's mutable fields wholesale. Requires
// the current authority's signature.
func (m *Manager) UpdateRuleset(txn store.Txn, id store.Address, signer store.Address, params UpdateParams) (*Ruleset, error) {
	rs, err := m.GetRuleset(txn, id)
	if err != nil {
		return nil, err
	}
	if signer != rs.Authority {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "update_ruleset", "signer is not the ruleset authority")
	}
	if params.Authority == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "update_ruleset", "authority cannot be empty")
	}
	if params.Collector == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidCollector, "update_ruleset", "collector cannot be empty")
	}

	rs.Authority = params.Authority
	rs.Collector = params.Collector
	rs.CheckSellerFeeBasisPoints = params.CheckSellerFeeBasisPoints
	rs.CheckTransferAddressNotDerived = params.CheckTransferAddressNotDerived
	rs.DisallowedAddresses = params.DisallowedAddresses
	if rs.DisallowedAddresses == nil {
		rs.DisallowedAddresses = []store.Address{}
	}
	rs.AllowedPrograms = params.AllowedPrograms
	if rs.AllowedPrograms == nil {
		rs.AllowedPrograms = []store.Address{}
	}

	if err := m.putRuleset(txn, rs); err != nil {
		return nil, err
	}

	m.logger.Info("ruleset updated", "ruleset_id", string(id), "authority", string(rs.Authority))
	return rs, nil
}

// GetRuleset loads a ruleset by identifier.
func (m *Manager) GetRuleset(txn store.Txn, id store.Address) (*Ruleset, error) {
	rec, err := txn.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errcode.Wrap(errcode.InvalidRuleset, "get_ruleset", string(id))
	}
	if err != nil {
		return nil, err
	}
	return DecodeRuleset(rec)
}

// InitMintManager binds a mint to a ruleset. The supplied collector must
// match the ruleset's collector.
func (m *Manager) InitMintManager(txn store.Txn, mint store.Address, rulesetID store.Address, authority, collector store.Address) (*MintManager, error) {
	rs, err := m.GetRuleset(txn, rulesetID)
	if err != nil {
		return nil, err
	}
	if collector != rs.Collector {
		return nil, errcode.Wrap(errcode.InvalidCollector, "init_mint_manager", "collector does not match ruleset collector")
	}
	if authority == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "init_mint_manager", "authority cannot be empty")
	}

	id := DeriveMintManagerID(mint)
	if _, err := txn.Get(id); err == nil {
		return nil, ErrMintManagerExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	mm := &MintManager{
		Version:   1,
		ID:        id,
		Mint:      mint,
		Authority: authority,
		Ruleset:   rulesetID,
	}
	if err := m.putMintManager(txn, mm); err != nil {
		return nil, err
	}

	m.logger.Info("mint manager created", "mint", string(mint), "ruleset_id", string(rulesetID))
	return mm, nil
}

// UpdateMintManager rotates the mint manager's authority and/or rebinds
// its ruleset. Requires the current authority's signature.
func (m *Manager) UpdateMintManager(txn store.Txn, mint store.Address, signer store.Address, newAuthority store.Address, newRulesetID store.Address) (*MintManager, error) {
	mm, err := m.GetMintManager(txn, mint)
	if err != nil {
		return nil, err
	}
	if signer != mm.Authority {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "update_mint_manager", "signer is not the mint manager authority")
	}
	if newAuthority == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "update_mint_manager", "authority cannot be empty")
	}
	if newRulesetID != store.Zero {
		if _, err := m.GetRuleset(txn, newRulesetID); err != nil {
			return nil, err
		}
		mm.Ruleset = newRulesetID
	}

	mm.Authority = newAuthority

	if err := m.putMintManager(txn, mm); err != nil {
		return nil, err
	}

	m.logger.Info("mint manager updated", "mint", string(mint), "authority", string(newAuthority))
	return mm, nil
}

// GetMintManager loads the mint manager for a mint.
func (m *Manager) GetMintManager(txn store.Txn, mint store.Address) (*MintManager, error) {
	rec, err := txn.Get(DeriveMintManagerID(mint))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errcode.Wrap(errcode.InvalidMintManager, "get_mint_manager", string(mint))
	}
	if err != nil {
		return nil, err
	}
	return DecodeMintManager(rec)
}

func (m *Manager) putRuleset(txn store.Txn, rs *Ruleset) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to encode ruleset record: %w", err)
	}

	rec, err := txn.Get(rs.ID)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: rs.ID, Owner: RecordOwner}
	} else if err != nil {
		return err
	}
	rec.Owner = RecordOwner
	rec.Data = data
	return txn.Put(rec)
}

func (m *Manager) putMintManager(txn store.Txn, mm *MintManager) error {
	data, err := json.Marshal(mm)
	if err != nil {
		return fmt.Errorf("failed to encode mint manager record: %w", err)
	}

	rec, err := txn.Get(mm.ID)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: mm.ID, Owner: MintManagerRecordOwner}
	} else if err != nil {
		return err
	}
	rec.Owner = MintManagerRecordOwner
	rec.Data = data
	return txn.Put(rec)
}

// DecodeRuleset parses a ruleset record payload.
func DecodeRuleset(rec *store.Record) (*Ruleset, error) {
	if rec == nil || rec.Owner != RecordOwner {
		return nil, fmt.Errorf("record is not a ruleset")
	}
	var rs Ruleset
	if err := json.Unmarshal(rec.Data, &rs); err != nil {
		return nil, fmt.Errorf("failed to decode ruleset record: %w", err)
	}
	return &rs, nil
}

// DecodeMintManager parses a mint manager record payload.
func DecodeMintManager(rec *store.Record) (*MintManager, error) {
	if rec == nil || rec.Owner != MintManagerRecordOwner {
		return nil, fmt.Errorf("record is not a mint manager")
	}
	var mm MintManager
	if err := json.Unmarshal(rec.Data, &mm); err != nil {
		return nil, fmt.Errorf("failed to decode mint manager record: %w", err)
	}
	return &mm, nil
}
