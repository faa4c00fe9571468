// Package policy implements the rich rule-tree policy record: a durable
// mapping from a policy identifier to its rule tree, optional dynamic
// royalty schedule, authority, and fee collector.
//
// Policies are conceptually permanent. There is no delete operation;
// deactivation is modeled by updating the rule tree to an always-failing
// rule (an empty OR).
package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/royalty"
	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/store"
)

// RecordOwner tags policy records in the account store.
const RecordOwner = "policy"

// namespace for deterministic policy identifier derivation.
var policyNamespace = uuid.MustParse("8c7a1f52-3db1-45f2-9f80-1f62c9c7a001")

// Policy is the persisted policy record.
type Policy struct {
	Version        uint8             `json:"version"`
	ID             store.Address     `json:"id"`
	Seed           string            `json:"seed"`
	Authority      store.Address     `json:"authority"`
	Collector      store.Address     `json:"collector"`
	RuleTree       *rules.Node       `json:"rule_tree,omitempty"`
	DynamicRoyalty *royalty.Schedule `json:"dynamic_royalty,omitempty"`
}

// UpdateParams carries the wholesale replacement for a policy's mutable
// fields. There is no partial-field patch: RuleTree and DynamicRoyalty
// replace the stored values even when nil. A zero NewAuthority keeps the
// current authority.
type UpdateParams struct {
	RuleTree       *rules.Node
	DynamicRoyalty *royalty.Schedule
	NewAuthority   store.Address
}

// ErrPolicyExists indicates an init at an already-occupied identifier.
var ErrPolicyExists = errors.New("policy already exists")

// DeriveID deterministically derives the policy identifier from a
// caller-supplied unique seed. The same seed always yields the same
// identifier, which is how the host models init-once semantics.
func DeriveID(seed string) store.Address {
	return store.Address("policy/" + uuid.NewSHA1(policyNamespace, []byte(seed)).String())
}

// Store provides init/update/get over policy records with access control.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a policy store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger.With("component", "policy.store")}
}

// Init creates a new policy at the identifier derived from seed. The rule
// tree and royalty schedule are validated before anything is written.
func (s *Store) Init(txn store.Txn, seed string, authority, collector store.Address, tree *rules.Node, schedule *royalty.Schedule) (*Policy, error) {
	if authority == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "init_policy", "authority cannot be empty")
	}
	if collector == store.Zero {
		return nil, errcode.Wrap(errcode.InvalidCollector, "init_policy", "collector cannot be empty")
	}
	if err := rules.Validate(tree); err != nil {
		return nil, err
	}
	if schedule != nil {
		if err := schedule.Validate(); err != nil {
			return nil, err
		}
	}

	id := DeriveID(seed)
	if _, err := txn.Get(id); err == nil {
		return nil, ErrPolicyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	p := &Policy{
		Version:        1,
		ID:             id,
		Seed:           seed,
		Authority:      authority,
		Collector:      collector,
		RuleTree:       tree,
		DynamicRoyalty: schedule,
	}
	if err := s.put(txn, p); err != nil {
		return nil, err
	}

	s.logger.Info("policy created", "policy_id", string(id), "authority", string(authority))
	return p, nil
}

// Update replaces a policy's mutable fields. The transaction must be
// signed by the record's current authority; a stale update replayed after
// authority rotation fails with InvalidAuthority.
func (s *Store) Update(txn store.Txn, id store.Address, signer store.Address, params UpdateParams) (*Policy, error) {
	p, err := s.Get(txn, id)
	if err != nil {
		return nil, err
	}
	if signer != p.Authority {
		return nil, errcode.Wrap(errcode.InvalidAuthority, "update_policy", "signer is not the policy authority")
	}

	if err := rules.Validate(params.RuleTree); err != nil {
		return nil, err
	}
	if params.DynamicRoyalty != nil {
		if err := params.DynamicRoyalty.Validate(); err != nil {
			return nil, err
		}
	}

	p.RuleTree = params.RuleTree
	p.DynamicRoyalty = params.DynamicRoyalty
	if params.NewAuthority != store.Zero {
		p.Authority = params.NewAuthority
	}

	if err := s.put(txn, p); err != nil {
		return nil, err
	}

	s.logger.Info("policy updated", "policy_id", string(id), "authority", string(p.Authority))
	return p, nil
}

// Get loads a policy by identifier.
func (s *Store) Get(txn store.Txn, id store.Address) (*Policy, error) {
	rec, err := txn.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errcode.Wrap(errcode.AccountNotFound, "get_policy", string(id))
	}
	if err != nil {
		return nil, err
	}
	return Decode(rec)
}

func (s *Store) put(txn store.Txn, p *Policy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode policy record: %w", err)
	}

	rec, err := txn.Get(p.ID)
	if errors.Is(err, store.ErrNotFound) {
		rec = &store.Record{Address: p.ID, Owner: RecordOwner}
	} else if err != nil {
		return err
	}
	rec.Owner = RecordOwner
	rec.Data = data
	return txn.Put(rec)
}

// Decode parses a policy record payload.
func Decode(rec *store.Record) (*Policy, error) {
	if rec == nil || rec.Owner != RecordOwner {
		return nil, fmt.Errorf("record is not a policy")
	}
	var p Policy
	if err := json.Unmarshal(rec.Data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode policy record: %w", err)
	}
	return &p, nil
}
