package mintstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/store"
)

func withTxn(t *testing.T, st store.Store, fn func(txn store.Txn) error) {
	t.Helper()
	if err := st.Update(context.Background(), fn); err != nil {
		t.Fatalf("update failed: %v", err)
	}
}

func setup(t *testing.T) (store.Store, *Manager) {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })

	mgr := NewManager(nil)
	mgr.now = func() time.Time { return time.Unix(1700000000, 0) }

	withTxn(t, st, func(txn store.Txn) error {
		_, err := mgr.Init(txn, "mint-1", "policy/abc")
		return err
	})
	return st, mgr
}

func TestDeriveIDDeterministic(t *testing.T) {
	a := DeriveID("mint-1")
	b := DeriveID("mint-1")
	if a != b {
		t.Fatalf("got %q and %q, want identical derivations", a, b)
	}
	if a == DeriveID("mint-2") {
		t.Fatal("distinct mints derived the same state id")
	}
}

func TestInitTwice(t *testing.T) {
	st, mgr := setup(t)
	err := st.Update(context.Background(), func(txn store.Txn) error {
		_, err := mgr.Init(txn, "mint-1", "policy/abc")
		return err
	})
	if !errors.Is(err, ErrStateExists) {
		t.Fatalf("got %v, want ErrStateExists", err)
	}
}

func TestApproveRecordsDelegate(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		return mgr.Approve(txn, "mint-1", "delegate-1")
	})

	withTxn(t, st, func(txn store.Txn) error {
		ms, err := mgr.Get(txn, "mint-1")
		if err != nil {
			return err
		}
		if ms.Delegate != "delegate-1" {
			t.Errorf("got delegate %q, want %q", ms.Delegate, "delegate-1")
		}
		if ms.LastApprovedAt != 1700000000 {
			t.Errorf("got last_approved_at %d, want 1700000000", ms.LastApprovedAt)
		}
		if ms.Locked() {
			t.Error("mint unexpectedly locked after approve")
		}
		return nil
	})
}

func TestLockRequiresDelegate(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		return mgr.Approve(txn, "mint-1", "delegate-1")
	})

	err := st.Update(context.Background(), func(txn store.Txn) error {
		return mgr.Lock(txn, "mint-1", "stranger")
	})
	if !errors.Is(err, ErrNotDelegate) {
		t.Fatalf("got %v, want ErrNotDelegate", err)
	}

	// No delegate approved at all.
	err = st.Update(context.Background(), func(txn store.Txn) error {
		if err := mgr.Revoke(txn, "mint-1"); err != nil {
			return err
		}
		return mgr.Lock(txn, "mint-1", store.Zero)
	})
	if !errors.Is(err, ErrNotDelegate) {
		t.Fatalf("got %v, want ErrNotDelegate for zero caller", err)
	}
}

func TestLockUnlockLifecycle(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		if err := mgr.Approve(txn, "mint-1", "delegate-1"); err != nil {
			return err
		}
		return mgr.Lock(txn, "mint-1", "delegate-1")
	})

	withTxn(t, st, func(txn store.Txn) error {
		ms, err := mgr.Get(txn, "mint-1")
		if err != nil {
			return err
		}
		if !ms.Locked() || ms.LockedBy != "delegate-1" {
			t.Errorf("got locked_by %q, want %q", ms.LockedBy, "delegate-1")
		}
		return nil
	})

	// Double lock is rejected.
	err := st.Update(context.Background(), func(txn store.Txn) error {
		return mgr.Lock(txn, "mint-1", "delegate-1")
	})
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("got %v, want ErrAlreadyLocked", err)
	}

	// A stranger cannot unlock.
	err = st.Update(context.Background(), func(txn store.Txn) error {
		return mgr.Unlock(txn, "mint-1", "stranger", "authority-1")
	})
	if !errors.Is(err, ErrNotLockHolder) {
		t.Fatalf("got %v, want ErrNotLockHolder", err)
	}

	// The locking delegate can unlock.
	withTxn(t, st, func(txn store.Txn) error {
		return mgr.Unlock(txn, "mint-1", "delegate-1", "authority-1")
	})

	err = st.Update(context.Background(), func(txn store.Txn) error {
		return mgr.Unlock(txn, "mint-1", "delegate-1", "authority-1")
	})
	if !errors.Is(err, ErrNotLocked) {
		t.Fatalf("got %v, want ErrNotLocked after unlock", err)
	}
}

func TestAuthorityCanUnlock(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		if err := mgr.Approve(txn, "mint-1", "delegate-1"); err != nil {
			return err
		}
		return mgr.Lock(txn, "mint-1", "delegate-1")
	})

	withTxn(t, st, func(txn store.Txn) error {
		return mgr.Unlock(txn, "mint-1", "authority-1", "authority-1")
	})

	withTxn(t, st, func(txn store.Txn) error {
		ms, err := mgr.Get(txn, "mint-1")
		if err != nil {
			return err
		}
		if ms.Locked() {
			t.Error("mint still locked after authority unlock")
		}
		// The delegate approval survives the unlock.
		if ms.Delegate != "delegate-1" {
			t.Errorf("got delegate %q, want %q", ms.Delegate, "delegate-1")
		}
		return nil
	})
}

func TestRevokeBlockedWhileLocked(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		if err := mgr.Approve(txn, "mint-1", "delegate-1"); err != nil {
			return err
		}
		return mgr.Lock(txn, "mint-1", "delegate-1")
	})

	err := st.Update(context.Background(), func(txn store.Txn) error {
		return mgr.Revoke(txn, "mint-1")
	})
	if !errors.Is(err, ErrRevokeWhileLocked) {
		t.Fatalf("got %v, want ErrRevokeWhileLocked", err)
	}

	// Approve while locked is also rejected.
	err = st.Update(context.Background(), func(txn store.Txn) error {
		return mgr.Approve(txn, "mint-1", "delegate-2")
	})
	if !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("got %v, want ErrAlreadyLocked", err)
	}

	// After unlock the revoke succeeds and clears the delegate.
	withTxn(t, st, func(txn store.Txn) error {
		if err := mgr.Unlock(txn, "mint-1", "delegate-1", store.Zero); err != nil {
			return err
		}
		return mgr.Revoke(txn, "mint-1")
	})

	withTxn(t, st, func(txn store.Txn) error {
		ms, err := mgr.Get(txn, "mint-1")
		if err != nil {
			return err
		}
		if ms.Delegate != store.Zero {
			t.Errorf("got delegate %q, want none after revoke", ms.Delegate)
		}
		return nil
	})
}

func TestRecordTransferBookkeeping(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		if err := mgr.RecordTransfer(txn, "mint-1"); err != nil {
			return err
		}
		return mgr.RecordTransfer(txn, "mint-1")
	})

	withTxn(t, st, func(txn store.Txn) error {
		ms, err := mgr.Get(txn, "mint-1")
		if err != nil {
			return err
		}
		if ms.TransferredCount != 2 {
			t.Errorf("got transferred_count %d, want 2", ms.TransferredCount)
		}
		if ms.LastTransferredAt != 1700000000 {
			t.Errorf("got last_transferred_at %d, want 1700000000", ms.LastTransferredAt)
		}
		return nil
	})
}

func TestBurnRemovesState(t *testing.T) {
	st, mgr := setup(t)
	withTxn(t, st, func(txn store.Txn) error {
		return mgr.Burn(txn, "mint-1")
	})

	err := st.Update(context.Background(), func(txn store.Txn) error {
		_, err := mgr.Get(txn, "mint-1")
		return err
	})
	var wrapped *errcode.Wrapped
	if !errors.As(err, &wrapped) || wrapped.Code != errcode.InvalidMint {
		t.Fatalf("got %v, want InvalidMint after burn", err)
	}
}

func TestGetMissingMint(t *testing.T) {
	st, mgr := setup(t)
	err := st.Update(context.Background(), func(txn store.Txn) error {
		_, err := mgr.Get(txn, "never-wrapped")
		return err
	})
	if !errors.Is(err, errcode.InvalidMint) {
		t.Fatalf("got %v, want InvalidMint", err)
	}
}
