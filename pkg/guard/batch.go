package guard

import (
	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/store"
)

// MemoProgram is the well-known program address callers use to attach a
// memo operation to a batch. The last memo in the batch is surfaced to
// rule evaluation as last_memo.signer / last_memo.data.
const MemoProgram store.Address = "memo-program"

// Op is one operation descriptor inside an atomic batch: the invoked
// program and the accounts it references. Data carries the operation's
// opaque payload and is only inspected for memo operations.
type Op struct {
	Program  store.Address
	Accounts []store.Address
	Data     []byte
}

type batchState int

const (
	stateIdle batchState = iota
	stateCaptured
	stateTransferred
	stateReconciled
	stateAborted
)

func (s batchState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCaptured:
		return "captured"
	case stateTransferred:
		return "transferred"
	case stateReconciled:
		return "reconciled"
	case stateAborted:
		return "aborted"
	}
	return "unknown"
}

// Snapshot is a per-account balance captured at pre-transfer time. It is
// scratch state scoped to one batch, never persisted.
type Snapshot struct {
	Address store.Address
	Mint    store.Address
	Size    int
	Balance uint64
}

// TransferRequest describes the guarded transfer inside a batch.
type TransferRequest struct {
	Mint   store.Address
	From   store.Address
	To     store.Address
	Payer  store.Address
	Amount uint64

	// Price is the observed sale price in native base units. Zero for
	// transfers with no sale attached.
	Price uint64
}

// Batch is the stack-scoped context threaded through the pre-transfer,
// transfer, and post-transfer calls of one atomic unit. It enforces the
// capture -> transfer -> reconcile ordering and holds the captured
// balance snapshots between the two ends.
//
// A Batch is single-use: once reconciled or aborted it cannot be reused.
type Batch struct {
	ops       []Op
	state     batchState
	req       *TransferRequest
	snapshots map[store.Address]*Snapshot
}

// NewBatch builds a batch from its operation descriptors.
func NewBatch(ops ...Op) *Batch {
	return &Batch{ops: ops, state: stateIdle}
}

// Programs returns the invoked program list in batch order.
func (b *Batch) Programs() []store.Address {
	progs := make([]store.Address, 0, len(b.ops))
	for _, op := range b.ops {
		progs = append(progs, op.Program)
	}
	return progs
}

// Accounts returns the deduplicated set of accounts referenced anywhere
// in the batch.
func (b *Batch) Accounts() []store.Address {
	seen := make(map[store.Address]bool)
	var out []store.Address
	for _, op := range b.ops {
		for _, a := range op.Accounts {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

// References reports whether addr appears in any operation's account
// list.
func (b *Batch) References(addr store.Address) bool {
	for _, op := range b.ops {
		for _, a := range op.Accounts {
			if a == addr {
				return true
			}
		}
	}
	return false
}

// lastMemo returns the signer and payload of the batch's last memo
// operation, or empty strings when there is none.
func (b *Batch) lastMemo() (signer, data string) {
	for _, op := range b.ops {
		if op.Program != MemoProgram || len(op.Data) == 0 {
			continue
		}
		data = string(op.Data)
		if len(op.Accounts) > 0 {
			signer = string(op.Accounts[0])
		}
	}
	return signer, data
}

// Abort marks the batch as discarded. Aborting an already-reconciled
// batch is a no-op.
func (b *Batch) Abort() {
	if b.state != stateReconciled {
		b.state = stateAborted
	}
}

// Finish asserts the batch reached a terminal state. A batch that
// captured balances but never reconciled is a protocol violation: the
// caller promised a matching post-transfer call and did not deliver it.
func (b *Batch) Finish() error {
	switch b.state {
	case stateIdle, stateReconciled, stateAborted:
		return nil
	default:
		return errcode.Wrap(errcode.InvalidPostTransferInstruction, "finish_batch", b.state.String())
	}
}
