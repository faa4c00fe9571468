// Package engine exposes the operation surface of the policy enforcement
// engine: policy and ruleset administration, wrapping, delegation and
// locking, and the guarded transfer path.
//
// Signer parameters are addresses the host has already authenticated;
// the engine performs authorization (is this address allowed to do
// this), not authentication.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"mercator-hq/ganymede/pkg/audit"
	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/guard"
	"mercator-hq/ganymede/pkg/mintstate"
	"mercator-hq/ganymede/pkg/policy"
	"mercator-hq/ganymede/pkg/royalty"
	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/ruleset"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/token"
)

// Options configures optional engine collaborators.
type Options struct {
	// Logger for all engine components. Defaults to slog.Default().
	Logger *slog.Logger

	// Ledger is the token ledger the engine calls into. Defaults to the
	// store-backed reference ledger.
	Ledger token.Ledger

	// Audit receives guard decisions. Nil disables recording.
	Audit audit.Storage

	// Metrics for the transfer guard. Nil disables collection.
	Metrics *guard.Metrics
}

// Engine wires the persistent managers and the transfer guard over one
// account store.
type Engine struct {
	st       store.Store
	logger   *slog.Logger
	ledger   token.Ledger
	policies *policy.Store
	rulesets *ruleset.Manager
	states   *mintstate.Manager
	guard    *guard.Guard
	audit    audit.Storage
}

// New creates an engine over the given account store.
func New(st store.Store, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = token.NewStoreLedger()
	}

	policies := policy.NewStore(logger)
	rulesets := ruleset.NewManager(logger)
	states := mintstate.NewManager(logger)

	return &Engine{
		st:       st,
		logger:   logger.With("component", "engine"),
		ledger:   ledger,
		policies: policies,
		rulesets: rulesets,
		states:   states,
		guard:    guard.New(logger, ledger, policies, rulesets, states, opts.Metrics),
		audit:    opts.Audit,
	}
}

// Guard exposes the transfer guard for callers composing custom batches.
func (e *Engine) Guard() *guard.Guard { return e.guard }

// States exposes the mint state manager for in-batch lock transitions.
func (e *Engine) States() *mintstate.Manager { return e.states }

// Ledger exposes the token ledger.
func (e *Engine) Ledger() token.Ledger { return e.ledger }

// InitPolicy creates a policy and returns its derived identifier.
func (e *Engine) InitPolicy(ctx context.Context, seed string, authority, collector store.Address, tree *rules.Node, schedule *royalty.Schedule) (store.Address, error) {
	var id store.Address
	err := e.st.Update(ctx, func(txn store.Txn) error {
		pol, err := e.policies.Init(txn, seed, authority, collector, tree, schedule)
		if err != nil {
			return err
		}
		id = pol.ID
		return nil
	})
	return id, err
}

// UpdatePolicy replaces a policy's mutable fields. signer must be the
// current authority.
func (e *Engine) UpdatePolicy(ctx context.Context, id store.Address, signer store.Address, params policy.UpdateParams) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		_, err := e.policies.Update(txn, id, signer, params)
		return err
	})
}

// GetPolicy loads a policy.
func (e *Engine) GetPolicy(ctx context.Context, id store.Address) (*policy.Policy, error) {
	var pol *policy.Policy
	err := e.st.View(ctx, func(txn store.Txn) error {
		var err error
		pol, err = e.policies.Get(txn, id)
		return err
	})
	return pol, err
}

// InitRuleset creates a named ruleset and returns its derived
// identifier.
func (e *Engine) InitRuleset(ctx context.Context, name string, authority, collector store.Address, checkSellerFeeBp bool, disallowed, allowed []store.Address) (store.Address, error) {
	var id store.Address
	err := e.st.Update(ctx, func(txn store.Txn) error {
		rs, err := e.rulesets.InitRuleset(txn, name, authority, collector, checkSellerFeeBp, disallowed, allowed)
		if err != nil {
			return err
		}
		id = rs.ID
		return nil
	})
	return id, err
}

// UpdateRuleset replaces a ruleset's mutable fields. signer must be the
// current authority.
func (e *Engine) UpdateRuleset(ctx context.Context, id store.Address, signer store.Address, params ruleset.UpdateParams) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		_, err := e.rulesets.UpdateRuleset(txn, id, signer, params)
		return err
	})
}

// InitMintManager binds a mint to a ruleset.
func (e *Engine) InitMintManager(ctx context.Context, mint, rulesetID store.Address, authority, collector store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		_, err := e.rulesets.InitMintManager(txn, mint, rulesetID, authority, collector)
		return err
	})
}

// UpdateMintManager rotates a mint manager's authority and ruleset
// binding. signer must be the current authority.
func (e *Engine) UpdateMintManager(ctx context.Context, mint store.Address, signer store.Address, newAuthority, newRulesetID store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		_, err := e.rulesets.UpdateMintManager(txn, mint, signer, newAuthority, newRulesetID)
		return err
	})
}

// WrapWithRuleset mints a wrapped token governed by a ruleset: the mint
// and holder account are created, one unit is minted to the holder, and
// the mint manager and mint state records are initialized.
func (e *Engine) WrapWithRuleset(ctx context.Context, mint, rulesetID store.Address, authority, holder, holderAccount store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		rs, err := e.rulesets.GetRuleset(txn, rulesetID)
		if err != nil {
			return err
		}
		if err := e.initWrapped(txn, mint, authority, holder, holderAccount); err != nil {
			return err
		}
		if _, err := e.rulesets.InitMintManager(txn, mint, rulesetID, authority, rs.Collector); err != nil {
			return err
		}
		_, err = e.states.Init(txn, mint, store.Zero)
		return err
	})
}

// WrapWithPolicy mints a wrapped token governed by a rule-tree policy.
func (e *Engine) WrapWithPolicy(ctx context.Context, mint, policyID store.Address, authority, holder, holderAccount store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		if _, err := e.policies.Get(txn, policyID); err != nil {
			return err
		}
		if err := e.initWrapped(txn, mint, authority, holder, holderAccount); err != nil {
			return err
		}
		_, err := e.states.Init(txn, mint, policyID)
		return err
	})
}

func (e *Engine) initWrapped(txn store.Txn, mint, authority, holder, holderAccount store.Address) error {
	if err := e.ledger.InitMint(txn, mint, authority, authority, 0); err != nil {
		return err
	}
	if err := e.ledger.InitAccount(txn, holderAccount, mint, holder); err != nil {
		return err
	}
	return e.ledger.MintTo(txn, mint, holderAccount, 1)
}

// Approve records delegate as the address permitted to lock the mint and
// mirrors the delegation into the token ledger. signer must own the
// holder account.
func (e *Engine) Approve(ctx context.Context, mint, holderAccount store.Address, signer, delegate store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		if err := e.checkHolder(txn, mint, holderAccount, signer); err != nil {
			return err
		}
		if err := e.states.Approve(txn, mint, delegate); err != nil {
			return err
		}
		return e.ledger.Approve(txn, mint, holderAccount, delegate, 1)
	})
}

// Revoke clears the delegate. Rejected while the mint is locked.
func (e *Engine) Revoke(ctx context.Context, mint, holderAccount store.Address, signer store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		if err := e.checkHolder(txn, mint, holderAccount, signer); err != nil {
			return err
		}
		if err := e.states.Revoke(txn, mint); err != nil {
			return err
		}
		return e.ledger.Revoke(txn, mint, holderAccount)
	})
}

// Lock suspends transferability. signer must be the approved delegate.
func (e *Engine) Lock(ctx context.Context, mint store.Address, signer store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		return e.states.Lock(txn, mint, signer)
	})
}

// Unlock lifts the lock. signer must be the locking delegate or the
// mint's administrative authority.
func (e *Engine) Unlock(ctx context.Context, mint store.Address, signer store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		return e.states.Unlock(txn, mint, signer, e.adminAuthority(txn, mint))
	})
}

// adminAuthority resolves the administrative authority for a mint: the
// mint manager's authority for ruleset-governed mints, the policy's for
// policy-governed ones.
func (e *Engine) adminAuthority(txn store.Txn, mint store.Address) store.Address {
	if mm, err := e.rulesets.GetMintManager(txn, mint); err == nil {
		return mm.Authority
	}
	ms, err := e.states.Get(txn, mint)
	if err != nil || ms.Policy == store.Zero {
		return store.Zero
	}
	if pol, err := e.policies.Get(txn, ms.Policy); err == nil {
		return pol.Authority
	}
	return store.Zero
}

// Transfer runs the full guarded transfer path as one atomic batch:
// capture, ledger transfer, reconcile, fee collection. The decision is
// recorded to the audit store on both outcomes.
func (e *Engine) Transfer(ctx context.Context, b *guard.Batch, req *guard.TransferRequest) error {
	return e.transfer(ctx, b, req, store.Zero)
}

// TransferUnlocking is Transfer with an unlock by signer interleaved in
// the same atomic batch, between capture and the ledger transfer. This
// is the supported way to move a locked token: the unlock and the
// transfer commit or roll back together, so no third party can act in
// between.
func (e *Engine) TransferUnlocking(ctx context.Context, b *guard.Batch, req *guard.TransferRequest, signer store.Address) error {
	return e.transfer(ctx, b, req, signer)
}

func (e *Engine) transfer(ctx context.Context, b *guard.Batch, req *guard.TransferRequest, unlockBy store.Address) error {
	err := e.st.Update(ctx, func(txn store.Txn) error {
		if err := e.guard.PreTransfer(txn, b, req); err != nil {
			return err
		}
		if unlockBy != store.Zero {
			if err := e.states.Unlock(txn, req.Mint, unlockBy, e.adminAuthority(txn, req.Mint)); err != nil {
				return err
			}
		}
		if err := e.guard.ExecuteTransfer(txn, b); err != nil {
			return err
		}
		if err := e.guard.PostTransfer(txn, b); err != nil {
			return err
		}
		return b.Finish()
	})

	e.recordDecision(ctx, b, req, err)
	return err
}

// Burn destroys the holder's wrapped token and retires the mint state.
// Rejected while the mint is locked.
func (e *Engine) Burn(ctx context.Context, mint, holderAccount store.Address, signer store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		if err := e.checkHolder(txn, mint, holderAccount, signer); err != nil {
			return err
		}
		ms, err := e.states.Get(txn, mint)
		if err != nil {
			return err
		}
		if ms.Locked() {
			return guard.ErrMintLocked
		}

		acct, err := e.ledger.Account(txn, holderAccount)
		if err != nil {
			return err
		}
		if err := e.ledger.Burn(txn, mint, holderAccount, acct.Amount); err != nil {
			return err
		}
		return e.states.Burn(txn, mint)
	})
}

// Close removes an empty token account, returning its native balance to
// the destination. signer must own the account.
func (e *Engine) Close(ctx context.Context, mint, tokenAccount store.Address, signer, destination store.Address) error {
	return e.st.Update(ctx, func(txn store.Txn) error {
		acct, err := e.ledger.Account(txn, tokenAccount)
		if err != nil {
			return err
		}
		if acct.Owner != signer {
			return errcode.Wrap(errcode.InvalidCloseTokenAccount, "close", string(tokenAccount))
		}
		return e.ledger.Close(txn, mint, tokenAccount, destination)
	})
}

func (e *Engine) checkHolder(txn store.Txn, mint, holderAccount store.Address, signer store.Address) error {
	acct, err := e.ledger.Account(txn, holderAccount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errcode.Wrap(errcode.InvalidHolderTokenAccount, "check_holder", string(holderAccount))
		}
		return err
	}
	if acct.Mint != mint || acct.Owner != signer || acct.Amount == 0 {
		return errcode.Wrap(errcode.InvalidHolderTokenAccount, "check_holder", string(holderAccount))
	}
	return nil
}

// recordDecision writes the transfer outcome to the audit store.
// Best-effort: failures are logged, never surfaced.
func (e *Engine) recordDecision(ctx context.Context, b *guard.Batch, req *guard.TransferRequest, outcome error) {
	if e.audit == nil {
		return
	}

	d := audit.NewDecision()
	d.Action = "transfer"
	d.Mint = string(req.Mint)
	d.From = string(req.From)
	d.To = string(req.To)
	d.Amount = req.Amount
	d.Price = req.Price
	for _, p := range b.Programs() {
		d.Programs = append(d.Programs, string(p))
	}

	d.Variant = "none"
	e.st.View(ctx, func(txn store.Txn) error {
		if _, err := e.rulesets.GetMintManager(txn, req.Mint); err == nil {
			d.Variant = "ruleset"
			return nil
		}
		if ms, err := e.states.Get(txn, req.Mint); err == nil && ms.Policy != store.Zero {
			d.Variant = "policy"
		}
		return nil
	})

	if outcome == nil {
		d.Result = audit.ResultAllowed
	} else {
		d.Result = audit.ResultRejected
		d.Reason = outcome.Error()
	}

	if err := e.audit.Store(ctx, d); err != nil {
		e.logger.Error("failed to record decision", "error", err, "mint", d.Mint)
	}
}
