// Package guard orchestrates the guarded transfer path: pre-transfer
// balance capture, the token-ledger transfer, and post-transfer
// reconciliation with rule evaluation and royalty collection.
//
// The guard never performs compensating transfers. Every failure is
// returned to the caller, and the enclosing store transaction's
// atomicity discards all partial effects.
package guard

import (
	"errors"
	"log/slog"
	"time"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/mintstate"
	"mercator-hq/ganymede/pkg/policy"
	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/ruleset"
	"mercator-hq/ganymede/pkg/store"
	"mercator-hq/ganymede/pkg/token"
)

// Sentinel errors for guard outcomes that have no numeric code in the
// client taxonomy.
var (
	ErrTransferDenied  = errors.New("transfer denied by policy rule")
	ErrMintLocked      = errors.New("mint is locked")
	ErrBalanceMismatch = errors.New("post-transfer balance does not match the authorized movement")
)

// Guard wires the transfer path together. All methods operate within the
// caller's transaction.
type Guard struct {
	logger   *slog.Logger
	ledger   token.Ledger
	policies *policy.Store
	rulesets *ruleset.Manager
	states   *mintstate.Manager
	metrics  *Metrics
}

// New creates a transfer guard. metrics may be nil.
func New(logger *slog.Logger, ledger token.Ledger, policies *policy.Store, rulesets *ruleset.Manager, states *mintstate.Manager, metrics *Metrics) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		logger:   logger.With("component", "guard"),
		ledger:   ledger,
		policies: policies,
		rulesets: rulesets,
		states:   states,
		metrics:  metrics,
	}
}

// PreTransfer captures a balance snapshot for every account the batch
// references. It must be the first guard call on a batch.
//
// The transfer's participants must appear in the batch's account lists,
// and every referenced account must resolve in the store.
func (g *Guard) PreTransfer(txn store.Txn, b *Batch, req *TransferRequest) error {
	if b.state != stateIdle {
		return errcode.Wrap(errcode.InvalidPreTransferInstruction, "pre_transfer", b.state.String())
	}

	for _, participant := range []store.Address{req.From, req.To} {
		if !b.References(participant) {
			return errcode.Wrap(errcode.AccountNotFound, "pre_transfer", string(participant))
		}
	}
	if req.Payer != store.Zero && !b.References(req.Payer) {
		return errcode.Wrap(errcode.AccountNotFound, "pre_transfer", string(req.Payer))
	}

	snapshots := make(map[store.Address]*Snapshot)
	for _, addr := range b.Accounts() {
		rec, err := txn.Get(addr)
		if errors.Is(err, store.ErrNotFound) {
			return errcode.Wrap(errcode.UnknownAccount, "pre_transfer", string(addr))
		}
		if err != nil {
			return err
		}

		snap := &Snapshot{Address: addr, Size: len(rec.Data), Balance: rec.Balance}
		if rec.Owner == token.RecordOwnerAccount {
			acct, err := token.DecodeAccount(rec)
			if err != nil {
				return err
			}
			snap.Mint = acct.Mint
			snap.Balance = acct.Amount
		}
		snapshots[addr] = snap
	}

	if err := g.checkParticipant(snapshots, req.From, req.Mint, errcode.InvalidHolderTokenAccount); err != nil {
		return err
	}
	if err := g.checkParticipant(snapshots, req.To, req.Mint, errcode.InvalidTargetTokenAccount); err != nil {
		return err
	}

	b.req = req
	b.snapshots = snapshots
	b.state = stateCaptured
	return nil
}

func (g *Guard) checkParticipant(snapshots map[store.Address]*Snapshot, addr, mint store.Address, code errcode.Code) error {
	snap, ok := snapshots[addr]
	if !ok || snap.Mint != mint {
		return errcode.Wrap(code, "pre_transfer", string(addr))
	}
	return nil
}

// ExecuteTransfer runs the token-ledger transfer between the captured
// and reconciled ends of the batch. A locked mint rejects the transfer
// unless an unlock already ran earlier in the same batch.
func (g *Guard) ExecuteTransfer(txn store.Txn, b *Batch) error {
	if b.state != stateCaptured {
		return errcode.Wrap(errcode.InvalidPreTransferInstruction, "transfer", b.state.String())
	}
	req := b.req

	ms, err := g.states.Get(txn, req.Mint)
	if err != nil {
		return err
	}
	if ms.Locked() {
		g.metrics.RecordDenial("mint_locked")
		return ErrMintLocked
	}

	if err := g.ledger.Transfer(txn, req.Mint, req.From, req.To, req.Amount); err != nil {
		return err
	}

	b.state = stateTransferred
	return nil
}

// PostTransfer reconciles the captured snapshots against post-transfer
// balances, evaluates the mint's governing policy or ruleset, and
// collects any computed royalty fee into the collector account. On
// success the batch is terminal and its scratch state is discarded.
func (g *Guard) PostTransfer(txn store.Txn, b *Batch) error {
	start := time.Now()
	defer func() {
		g.metrics.RecordReconcileDuration(time.Since(start).Seconds())
	}()

	if b.state != stateTransferred {
		return errcode.Wrap(errcode.InvalidPostTransferInstruction, "post_transfer", b.state.String())
	}
	req := b.req

	if err := g.reconcileBalances(txn, b); err != nil {
		g.metrics.RecordDenial("balance_mismatch")
		return err
	}

	facts, err := g.buildFacts(txn, b)
	if err != nil {
		return err
	}

	mm, err := g.rulesets.GetMintManager(txn, req.Mint)
	switch {
	case err == nil:
		err = g.reconcileRuleset(txn, b, mm, facts)
	case errors.Is(err, errcode.InvalidMintManager):
		err = g.reconcilePolicy(txn, b, facts)
	default:
		return err
	}
	if err != nil {
		g.metrics.RecordTransfer(governanceVariant(mm), false)
		return err
	}

	if err := g.states.RecordTransfer(txn, req.Mint); err != nil {
		return err
	}

	g.metrics.RecordTransfer(governanceVariant(mm), true)
	g.logger.Info("transfer reconciled",
		"mint", string(req.Mint),
		"from", string(req.From),
		"to", string(req.To),
		"amount", req.Amount,
		"price", req.Price)

	b.req = nil
	b.snapshots = nil
	b.state = stateReconciled
	return nil
}

func governanceVariant(mm *ruleset.MintManager) string {
	if mm != nil {
		return "ruleset"
	}
	return "policy"
}

// reconcileBalances re-reads every captured account and asserts the only
// token movement is the authorized amount from source to destination.
func (g *Guard) reconcileBalances(txn store.Txn, b *Batch) error {
	req := b.req
	for addr, snap := range b.snapshots {
		rec, err := txn.Get(addr)
		if errors.Is(err, store.ErrNotFound) {
			// Closed during the batch; only non-participants may vanish.
			if addr == req.From || addr == req.To {
				return errcode.Wrap(errcode.UnknownAccount, "post_transfer", string(addr))
			}
			continue
		}
		if err != nil {
			return err
		}

		balance := rec.Balance
		if rec.Owner == token.RecordOwnerAccount {
			acct, err := token.DecodeAccount(rec)
			if err != nil {
				return err
			}
			balance = acct.Amount
		}

		switch addr {
		case req.From:
			if balance != snap.Balance-req.Amount {
				return errcode.Wrap(errcode.InvalidHolderTokenAccount, "post_transfer", string(addr))
			}
		case req.To:
			if balance != snap.Balance+req.Amount {
				return errcode.Wrap(errcode.InvalidTargetTokenAccount, "post_transfer", string(addr))
			}
		default:
			// Token balances of bystander accounts of the same mint must
			// not move. Native balances may (fees, rent).
			if snap.Mint == req.Mint && balance != snap.Balance {
				return ErrBalanceMismatch
			}
		}
	}
	return nil
}

func (g *Guard) buildFacts(txn store.Txn, b *Batch) (*rules.Facts, error) {
	req := b.req

	programs := make([]string, 0, len(b.ops))
	for _, p := range b.Programs() {
		programs = append(programs, string(p))
	}
	signer, memo := b.lastMemo()

	facts := &rules.Facts{
		Action:         "transfer",
		ProgramIDs:     programs,
		Mint:           string(req.Mint),
		Payer:          string(req.Payer),
		From:           string(req.From),
		To:             string(req.To),
		LastMemoSigner: signer,
		LastMemoData:   memo,
		Price:          req.Price,
	}

	md, err := GetMetadata(txn, req.Mint)
	if err != nil {
		return nil, err
	}
	facts.Metadata = md

	ms, err := g.states.Get(txn, req.Mint)
	if err != nil {
		return nil, err
	}
	facts.MintState = &rules.MintStateFacts{
		LockedBy:          string(ms.LockedBy),
		TransferredCount:  uint64(ms.TransferredCount),
		LastTransferredAt: ms.LastTransferredAt,
		LastApprovedAt:    ms.LastApprovedAt,
	}

	return facts, nil
}

// reconcileRuleset enforces the allow/deny-list variant.
func (g *Guard) reconcileRuleset(txn store.Txn, b *Batch, mm *ruleset.MintManager, facts *rules.Facts) error {
	req := b.req

	rs, err := g.rulesets.GetRuleset(txn, mm.Ruleset)
	if err != nil {
		return err
	}

	if err := rs.CheckPrograms(b.Programs(), b.Accounts()); err != nil {
		g.metrics.RecordDenial(denialReason(err))
		return err
	}

	if rs.CheckTransferAddressNotDerived {
		for _, p := range b.Programs() {
			if p == req.To {
				g.metrics.RecordDenial("derived_destination")
				return errcode.Wrap(errcode.InvalidTargetTokenAccount, "post_transfer", string(req.To))
			}
		}
	}

	if rs.CheckSellerFeeBasisPoints && facts.Metadata != nil && req.Price > 0 {
		feeBp := facts.Metadata.SellerFeeBasisPoints
		facts.RoyaltyFeeBp = feeBp
		return g.collectFee(txn, b, rs.Collector, feeAmount(req.Price, feeBp))
	}
	return nil
}

// reconcilePolicy enforces the rich rule-tree variant. A mint with no
// bound policy passes.
func (g *Guard) reconcilePolicy(txn store.Txn, b *Batch, facts *rules.Facts) error {
	req := b.req

	ms, err := g.states.Get(txn, req.Mint)
	if err != nil {
		return err
	}
	if ms.Policy == store.Zero {
		return nil
	}

	pol, err := g.policies.Get(txn, ms.Policy)
	if err != nil {
		return err
	}

	var fee uint64
	if pol.DynamicRoyalty != nil {
		feeBp := pol.DynamicRoyalty.ComputeFeeBp(req.Price)
		facts.RoyaltyFeeBp = uint64(feeBp)
		fee = feeAmount(req.Price, uint64(feeBp))
	}

	if !rules.Evaluate(pol.RuleTree, facts) {
		g.metrics.RecordDenial("rule_denied")
		return ErrTransferDenied
	}

	if fee > 0 {
		return g.collectFee(txn, b, pol.Collector, fee)
	}
	return nil
}

func denialReason(err error) string {
	switch {
	case errors.Is(err, errcode.ProgramDisallowed):
		return "program_disallowed"
	case errors.Is(err, errcode.ProgramNotAllowed):
		return "program_not_allowed"
	}
	return "rejected"
}

// feeAmount computes price * feeBp / 10000 without overflowing on large
// prices.
func feeAmount(price, feeBp uint64) uint64 {
	return price/10000*feeBp + price%10000*feeBp/10000
}

// collectFee moves the fee from the payer's native balance to the
// collector. The payer must be named in the request and captured in the
// batch when a fee is due.
func (g *Guard) collectFee(txn store.Txn, b *Batch, collector store.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	req := b.req
	if req.Payer == store.Zero {
		return errcode.Wrap(errcode.AccountNotFound, "collect_fee", "payer")
	}

	payer, err := txn.Get(req.Payer)
	if err != nil {
		return err
	}
	if payer.Balance < amount {
		return token.ErrInsufficientBalance
	}

	dest, err := txn.Get(collector)
	if errors.Is(err, store.ErrNotFound) {
		dest = &store.Record{Address: collector, Owner: "system"}
	} else if err != nil {
		return err
	}

	payer.Balance -= amount
	dest.Balance += amount
	if err := txn.Put(payer); err != nil {
		return err
	}
	if err := txn.Put(dest); err != nil {
		return err
	}

	g.metrics.RecordFee(amount)
	g.logger.Info("fee collected",
		"collector", string(collector),
		"amount", amount,
		"payer", string(req.Payer))
	return nil
}
