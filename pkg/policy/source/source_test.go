package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/ganymede/pkg/engine"
	"mercator-hq/ganymede/pkg/policy"
	"mercator-hq/ganymede/pkg/store"
)

const validDoc = `
seed: marketplace-policy
authority: admin
collector: collector-wallet
rule_tree:
  kind: and
  children:
    - kind: leaf
      field: program_ids
      operator: is_subset_of
      value: ["transfer-program"]
dynamic_royalty:
  version: 1
  kind: 0
  price_linear:
    start_price: 1000000
    end_price: 2000000
    start_multiplier_bp: 10000
    end_multiplier_bp: 5000
`

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}
	return path
}

func newApplier(t *testing.T) *engine.Engine {
	t.Helper()
	st := store.NewMemoryStore()
	t.Cleanup(func() { st.Close() })
	return engine.New(st, engine.Options{})
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.Seed != "marketplace-policy" {
		t.Errorf("got seed %q, want marketplace-policy", doc.Seed)
	}
	if doc.RuleTree == nil || len(doc.RuleTree.Children) != 1 {
		t.Errorf("got tree %+v, want one leaf under and", doc.RuleTree)
	}
	if doc.DynamicRoyalty.ComputeFeeBp(1_500_000) != 7500 {
		t.Errorf("got fee %d, want 7500", doc.DynamicRoyalty.ComputeFeeBp(1_500_000))
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing seed", "authority: a\ncollector: c\n", "no seed"},
		{"missing authority", "seed: s\ncollector: c\n", "no authority"},
		{"missing collector", "seed: s\nauthority: a\n", "no collector"},
		{
			"bad royalty bounds",
			"seed: s\nauthority: a\ncollector: c\ndynamic_royalty:\n  kind: 0\n  price_linear:\n    start_price: 10\n    end_price: 1\n",
			"start_price",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one.yaml", validDoc)
	writeDoc(t, dir, "two.yml", strings.Replace(validDoc, "marketplace-policy", "second-policy", 1))
	writeDoc(t, dir, "ignored.txt", "not yaml")
	writeDoc(t, dir, ".hidden.yaml", "seed: [")

	docs, err := NewFileSource(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
}

func TestLoadRejectsDuplicateSeeds(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one.yaml", validDoc)
	writeDoc(t, dir, "two.yaml", validDoc)

	_, err := NewFileSource(dir).Load()
	if err == nil || !strings.Contains(err.Error(), "duplicate seed") {
		t.Fatalf("Load() error = %v, want duplicate seed", err)
	}
}

func TestRegistrySync(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "one.yaml", validDoc)

	e := newApplier(t)
	reg := NewRegistry(NewFileSource(dir), e, nil)

	applied, err := reg.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if applied != 1 {
		t.Fatalf("got %d applied, want 1", applied)
	}

	id := policy.DeriveID("marketplace-policy")
	pol, err := e.GetPolicy(ctx, id)
	if err != nil {
		t.Fatalf("policy not created: %v", err)
	}
	if pol.Authority != "admin" {
		t.Errorf("got authority %q, want admin", pol.Authority)
	}

	// A second sync with an edited document updates in place.
	edited := strings.Replace(validDoc, `value: ["transfer-program"]`, `value: ["transfer-program", "escrow-program"]`, 1)
	writeDoc(t, dir, "one.yaml", edited)
	if _, err := reg.Sync(ctx); err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}

	pol, err = e.GetPolicy(ctx, id)
	if err != nil {
		t.Fatalf("GetPolicy() error = %v", err)
	}
	leaf := pol.RuleTree.Children[0]
	if vals, ok := leaf.Value.([]interface{}); !ok || len(vals) != 2 {
		t.Errorf("got leaf value %v, want two programs after update", leaf.Value)
	}

	if _, ok := reg.Document("marketplace-policy"); !ok {
		t.Error("registry lost track of the applied document")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	writeDoc(t, dir, "one.yaml", validDoc)

	e := newApplier(t)
	reg := NewRegistry(NewFileSource(dir), e, nil)
	if _, err := reg.Sync(ctx); err != nil {
		t.Fatalf("initial Sync() error = %v", err)
	}

	w, err := NewWatcher(reg, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	go w.Watch(ctx)
	defer w.Stop()

	// Give the watch loop time to register the directory.
	time.Sleep(50 * time.Millisecond)

	writeDoc(t, dir, "two.yaml", strings.Replace(validDoc, "marketplace-policy", "second-policy", 1))

	id := policy.DeriveID("second-policy")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := e.GetPolicy(ctx, id); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher never applied the new document")
}
