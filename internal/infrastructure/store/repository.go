package store

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/draft"
	"github.com/example/pricelist/internal/domain/order"
)

// Repository maps the engine's persisted state onto a StateStore.
type Repository struct {
	store StateStore
	seed  func() []catalog.Product
}

func NewRepository(s StateStore) *Repository {
	return &Repository{store: s, seed: catalog.Seed}
}

// WithSeed replaces the fallback catalog used when no products blob exists.
func (r *Repository) WithSeed(seed func() []catalog.Product) *Repository {
	r.seed = seed
	return r
}

// LoadProducts falls back to the seed catalog when the blob is absent or
// unparsable. Only store failures are returned.
func (r *Repository) LoadProducts(ctx context.Context) ([]catalog.Product, error) {
	b, found, err := r.store.Get(ctx, KeyProducts)
	if err != nil {
		return nil, err
	}
	if !found {
		return r.seed(), nil
	}
	var products []catalog.Product
	if err := json.Unmarshal(b, &products); err != nil {
		log.Printf("[Store] Unparsable %s blob, using seed catalog: %v", KeyProducts, err)
		return r.seed(), nil
	}
	return products, nil
}

// LoadOrders falls back to an empty ledger when the blob is absent or
// unparsable.
func (r *Repository) LoadOrders(ctx context.Context) ([]order.Order, error) {
	return loadSlice[order.Order](ctx, r.store, KeyOrders)
}

// LoadDraft falls back to an empty draft when the blob is absent or
// unparsable.
func (r *Repository) LoadDraft(ctx context.Context) ([]draft.Entry, error) {
	return loadSlice[draft.Entry](ctx, r.store, KeyDraft)
}

// loadSlice decodes into a fresh slice so a blob that fails halfway never
// leaks its partially decoded prefix.
func loadSlice[T any](ctx context.Context, s StateStore, key string) ([]T, error) {
	b, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(b, &out); err != nil {
		log.Printf("[Store] Unparsable %s blob, starting empty: %v", key, err)
		return nil, nil
	}
	return out, nil
}

func (r *Repository) SaveProducts(ctx context.Context, products []catalog.Product) error {
	return r.save(ctx, KeyProducts, products)
}

func (r *Repository) SaveOrders(ctx context.Context, orders []order.Order) error {
	return r.save(ctx, KeyOrders, orders)
}

func (r *Repository) SaveDraft(ctx context.Context, entries []draft.Entry) error {
	return r.save(ctx, KeyDraft, entries)
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.store.Put(ctx, key, b)
}
