package policy

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/royalty"
	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/store"
)

func withTxn(t *testing.T, fn func(txn store.Txn) error) {
	t.Helper()
	s := store.NewMemoryStore()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func TestDeriveID_Deterministic(t *testing.T) {
	a := DeriveID("seed-1")
	b := DeriveID("seed-1")
	c := DeriveID("seed-2")

	if a != b {
		t.Errorf("DeriveID(seed-1) = %q and %q, want equal", a, b)
	}
	if a == c {
		t.Errorf("DeriveID(seed-1) == DeriveID(seed-2) = %q, want distinct", a)
	}
}

func TestStore_InitRoundTrip(t *testing.T) {
	ps := NewStore(nil)
	tree := rules.And(rules.Leaf("action", rules.OpEquals, "transfer"))
	schedule := &royalty.Schedule{
		Kind: royalty.KindPriceLinear,
		PriceLinear: &royalty.PriceLinear{
			StartPrice: 1, EndPrice: 2, StartMultiplierBp: 10000, EndMultiplierBp: 5000,
		},
	}

	withTxn(t, func(txn store.Txn) error {
		created, err := ps.Init(txn, "seed-1", "auth-a", "collector-1", tree, schedule)
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ps.Get(txn, created.ID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}

		if got.Authority != "auth-a" {
			t.Errorf("got.Authority = %q, want %q", got.Authority, "auth-a")
		}
		if got.Collector != "collector-1" {
			t.Errorf("got.Collector = %q, want %q", got.Collector, "collector-1")
		}
		if got.RuleTree == nil || len(got.RuleTree.Children) != 1 {
			t.Errorf("got.RuleTree = %+v, want the supplied tree", got.RuleTree)
		}
		if got.DynamicRoyalty == nil || got.DynamicRoyalty.PriceLinear.EndMultiplierBp != 5000 {
			t.Errorf("got.DynamicRoyalty = %+v, want the supplied schedule", got.DynamicRoyalty)
		}
		return nil
	})
}

func TestStore_InitTwiceFails(t *testing.T) {
	ps := NewStore(nil)

	withTxn(t, func(txn store.Txn) error {
		if _, err := ps.Init(txn, "seed-1", "auth-a", "collector-1", nil, nil); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		_, err := ps.Init(txn, "seed-1", "auth-b", "collector-2", nil, nil)
		if !errors.Is(err, ErrPolicyExists) {
			t.Errorf("Init(same seed) error = %v, want ErrPolicyExists", err)
		}
		return nil
	})
}

func TestStore_InitRejectsInvalidInputs(t *testing.T) {
	ps := NewStore(nil)

	withTxn(t, func(txn store.Txn) error {
		if _, err := ps.Init(txn, "s", store.Zero, "collector-1", nil, nil); !errors.Is(err, errcode.InvalidAuthority) {
			t.Errorf("Init(no authority) error = %v, want InvalidAuthority", err)
		}
		if _, err := ps.Init(txn, "s", "auth-a", store.Zero, nil, nil); !errors.Is(err, errcode.InvalidCollector) {
			t.Errorf("Init(no collector) error = %v, want InvalidCollector", err)
		}

		badTree := &rules.Node{Kind: "nand"}
		if _, err := ps.Init(txn, "s", "auth-a", "collector-1", badTree, nil); err == nil {
			t.Error("Init(bad tree) error = nil, want validation error")
		}

		badSchedule := &royalty.Schedule{Kind: 99}
		if _, err := ps.Init(txn, "s", "auth-a", "collector-1", nil, badSchedule); !errors.Is(err, royalty.ErrInvalidSchedule) {
			t.Errorf("Init(bad schedule) error = %v, want ErrInvalidSchedule", err)
		}
		return nil
	})
}

func TestStore_AuthorityRotation(t *testing.T) {
	ps := NewStore(nil)

	withTxn(t, func(txn store.Txn) error {
		created, err := ps.Init(txn, "seed-1", "auth-a", "collector-1", nil, nil)
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		// A rotates authority to B.
		if _, err := ps.Update(txn, created.ID, "auth-a", UpdateParams{NewAuthority: "auth-b"}); err != nil {
			t.Fatalf("Update(rotate) error = %v", err)
		}

		// A stale update signed by A must fail, and fail identically on
		// replay.
		for i := 0; i < 2; i++ {
			_, err := ps.Update(txn, created.ID, "auth-a", UpdateParams{})
			if !errors.Is(err, errcode.InvalidAuthority) {
				t.Errorf("Update(stale, attempt %d) error = %v, want InvalidAuthority", i+1, err)
			}
		}

		// B can update.
		tree := rules.Or()
		if _, err := ps.Update(txn, created.ID, "auth-b", UpdateParams{RuleTree: tree}); err != nil {
			t.Errorf("Update(by B) error = %v, want nil", err)
		}
		return nil
	})
}

func TestStore_UpdateReplacesWholesale(t *testing.T) {
	ps := NewStore(nil)
	tree := rules.And(rules.Leaf("action", rules.OpEquals, "transfer"))
	schedule := &royalty.Schedule{
		Kind:        royalty.KindPriceLinear,
		PriceLinear: &royalty.PriceLinear{StartPrice: 1, EndPrice: 2},
	}

	withTxn(t, func(txn store.Txn) error {
		created, err := ps.Init(txn, "seed-1", "auth-a", "collector-1", tree, schedule)
		if err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		// Update with nil payloads clears both; there is no partial patch.
		if _, err := ps.Update(txn, created.ID, "auth-a", UpdateParams{}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		got, err := ps.Get(txn, created.ID)
		if err != nil {
			return err
		}
		if got.RuleTree != nil {
			t.Errorf("got.RuleTree = %+v, want nil after wholesale replace", got.RuleTree)
		}
		if got.DynamicRoyalty != nil {
			t.Errorf("got.DynamicRoyalty = %+v, want nil after wholesale replace", got.DynamicRoyalty)
		}
		return nil
	})
}

func TestStore_GetMissing(t *testing.T) {
	ps := NewStore(nil)

	withTxn(t, func(txn store.Txn) error {
		_, err := ps.Get(txn, "policy/none")
		if !errors.Is(err, errcode.AccountNotFound) {
			t.Errorf("Get(missing) error = %v, want AccountNotFound", err)
		}
		return nil
	})
}
