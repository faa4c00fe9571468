package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/ganymede/pkg/errcode"
	"mercator-hq/ganymede/pkg/policy"
	"mercator-hq/ganymede/pkg/royalty"
	"mercator-hq/ganymede/pkg/rules"
	"mercator-hq/ganymede/pkg/store"
)

// Applier is the slice of the engine surface the registry needs to
// apply documents. Updates go through the normal authority-checked
// path: the document's authority is the update signer, so a document
// that lost its authority fails to apply, exactly like any other stale
// update.
type Applier interface {
	InitPolicy(ctx context.Context, seed string, authority, collector store.Address, tree *rules.Node, schedule *royalty.Schedule) (store.Address, error)
	UpdatePolicy(ctx context.Context, id store.Address, signer store.Address, params policy.UpdateParams) error
	GetPolicy(ctx context.Context, id store.Address) (*policy.Policy, error)
}

// Registry tracks the last applied document set and syncs file changes
// into the engine.
type Registry struct {
	source  *FileSource
	applier Applier
	logger  *slog.Logger

	mu   sync.RWMutex
	docs map[string]*Document
}

// NewRegistry creates a registry over a file source.
func NewRegistry(source *FileSource, applier Applier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		source:  source,
		applier: applier,
		logger:  logger.With("component", "policy.registry"),
		docs:    make(map[string]*Document),
	}
}

// Sync loads the directory and applies every document: new seeds are
// initialized, existing ones updated. Returns the number of documents
// applied. A load failure applies nothing.
func (r *Registry) Sync(ctx context.Context) (int, error) {
	docs, err := r.source.Load()
	if err != nil {
		return 0, fmt.Errorf("failed to load policy documents: %w", err)
	}

	applied := 0
	for _, doc := range docs {
		if err := r.apply(ctx, doc); err != nil {
			return applied, err
		}
		applied++
	}

	r.mu.Lock()
	r.docs = make(map[string]*Document, len(docs))
	for _, doc := range docs {
		r.docs[doc.Seed] = doc
	}
	r.mu.Unlock()

	r.logger.Info("policy documents synced", "count", applied)
	return applied, nil
}

func (r *Registry) apply(ctx context.Context, doc *Document) error {
	id := policy.DeriveID(doc.Seed)

	_, err := r.applier.GetPolicy(ctx, id)
	switch {
	case errors.Is(err, errcode.AccountNotFound):
		_, err = r.applier.InitPolicy(ctx, doc.Seed, doc.Authority, doc.Collector, doc.RuleTree, doc.DynamicRoyalty)
		if err != nil {
			return fmt.Errorf("failed to init policy %q: %w", doc.Seed, err)
		}
		r.logger.Info("policy initialized from document", "seed", doc.Seed, "id", string(id))
		return nil
	case err != nil:
		return err
	}

	err = r.applier.UpdatePolicy(ctx, id, doc.Authority, policy.UpdateParams{
		RuleTree:       doc.RuleTree,
		DynamicRoyalty: doc.DynamicRoyalty,
	})
	if err != nil {
		return fmt.Errorf("failed to update policy %q: %w", doc.Seed, err)
	}
	r.logger.Info("policy updated from document", "seed", doc.Seed, "id", string(id))
	return nil
}

// Document returns the last applied document for a seed.
func (r *Registry) Document(seed string) (*Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[seed]
	return doc, ok
}

// Seeds returns the seeds of the last applied document set.
func (r *Registry) Seeds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seeds := make([]string, 0, len(r.docs))
	for seed := range r.docs {
		seeds = append(seeds, seed)
	}
	return seeds
}
