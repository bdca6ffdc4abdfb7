// Package engine composes the catalog, the draft order, the order ledger
// and the query pipeline behind one serialized command surface.
package engine

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/draft"
	"github.com/example/pricelist/internal/domain/order"
	"github.com/example/pricelist/internal/query"
)

// StateRepository loads and saves the persisted blobs.
type StateRepository interface {
	LoadProducts(ctx context.Context) ([]catalog.Product, error)
	LoadOrders(ctx context.Context) ([]order.Order, error)
	LoadDraft(ctx context.Context) ([]draft.Entry, error)
	SaveProducts(ctx context.Context, products []catalog.Product) error
	SaveOrders(ctx context.Context, orders []order.Order) error
	SaveDraft(ctx context.Context, entries []draft.Entry) error
}

// EventPublisher receives ledger events keyed by order id.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Summarizer turns a priced draft into advisory text.
type Summarizer interface {
	Summarize(ctx context.Context, d draft.Derivation) (string, error)
}

type Options struct {
	Locale       language.Tag
	PersistDraft bool
	Publisher    EventPublisher
	Summarizer   Summarizer
	// OnPersistError observes failed saves and publishes. Defaults to logging.
	OnPersistError func(error)
	Clock          func() time.Time
}

// Engine serializes every operation behind one mutex so callers on
// different goroutines observe the same ordering a single actor would.
type Engine struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	draft    *draft.Draft
	ledger   *order.Ledger
	pipeline *query.Pipeline
	view     query.Params

	repo         StateRepository
	persistDraft bool
	publisher    EventPublisher
	summarizer   Summarizer
	onError      func(error)

	savedProducts uint64
	savedOrders   uint64
	savedDraft    uint64
}

// New loads persisted state through repo and returns a ready engine.
func New(ctx context.Context, repo StateRepository, opts Options) (*Engine, error) {
	products, err := repo.LoadProducts(ctx)
	if err != nil {
		return nil, domain.NewExternalServiceError("state store", err)
	}
	orders, err := repo.LoadOrders(ctx)
	if err != nil {
		return nil, domain.NewExternalServiceError("state store", err)
	}
	d := draft.New()
	if opts.PersistDraft {
		entries, err := repo.LoadDraft(ctx)
		if err != nil {
			return nil, domain.NewExternalServiceError("state store", err)
		}
		d = draft.FromEntries(entries)
	}

	if opts.Locale == language.Und {
		opts.Locale = language.Russian
	}
	e := &Engine{
		catalog:      catalog.New(products),
		draft:        d,
		ledger:       order.NewLedger(orders),
		pipeline:     query.NewPipeline(opts.Locale),
		repo:         repo,
		persistDraft: opts.PersistDraft,
		publisher:    opts.Publisher,
		summarizer:   opts.Summarizer,
		onError:      opts.OnPersistError,
	}
	if e.onError == nil {
		e.onError = func(err error) { log.Printf("[Engine] %v", err) }
	}
	if opts.Clock != nil {
		e.ledger.SetClock(opts.Clock)
	}
	log.Printf("[Engine] Loaded %d products, %d orders", e.catalog.Len(), e.ledger.Len())
	return e, nil
}

// persist writes every blob whose version moved since the last successful
// save. Failures are reported and retried on the next change; in-memory
// state is never rolled back.
func (e *Engine) persist(ctx context.Context) {
	if v := e.catalog.Version(); v != e.savedProducts {
		if err := e.repo.SaveProducts(ctx, e.catalog.List()); err != nil {
			e.onError(domain.NewExternalServiceError("state store", err))
		} else {
			e.savedProducts = v
		}
	}
	if v := e.ledger.Version(); v != e.savedOrders {
		if err := e.repo.SaveOrders(ctx, e.ledger.List()); err != nil {
			e.onError(domain.NewExternalServiceError("state store", err))
		} else {
			e.savedOrders = v
		}
	}
	if e.persistDraft {
		if v := e.draft.Version(); v != e.savedDraft {
			if err := e.repo.SaveDraft(ctx, e.draft.Entries()); err != nil {
				e.onError(domain.NewExternalServiceError("state store", err))
			} else {
				e.savedDraft = v
			}
		}
	}
}

func (e *Engine) publish(ctx context.Context, orderID, eventType string, data any) {
	if e.publisher == nil {
		return
	}
	ev, err := order.NewEvent(orderID, eventType, data)
	if err != nil {
		e.onError(err)
		return
	}
	if err := e.publisher.Publish(ctx, orderID, ev); err != nil {
		e.onError(domain.NewExternalServiceError("event stream", err))
	}
}

func requireEdit(capability Capability) error {
	if !capability.CanEditCatalog {
		return domain.ErrForbidden
	}
	return nil
}

// ============================================
// Catalog view
// ============================================

// SearchAndSort runs the query pipeline over the live catalog.
func (e *Engine) SearchAndSort(params query.Params) []catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.Run(e.catalog.List(), params)
}

// View returns the current view parameters.
func (e *Engine) View() query.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Search sets the view's search term and returns the resulting view.
func (e *Engine) Search(term string) []catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Term = term
	return e.pipeline.Run(e.catalog.List(), e.view)
}

// FilterCategory sets the view's category and returns the resulting view.
func (e *Engine) FilterCategory(category string) []catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Category = category
	return e.pipeline.Run(e.catalog.List(), e.view)
}

// Sort toggles the view's sort on key and returns the resulting view.
func (e *Engine) Sort(key query.SortKey) []catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view.Sort = e.view.Sort.Toggle(key)
	return e.pipeline.Run(e.catalog.List(), e.view)
}

// ExportView returns the current filtered and sorted product sequence.
func (e *Engine) ExportView() []catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.Run(e.catalog.List(), e.view)
}

// Product returns a copy of the product with id.
func (e *Engine) Product(id string) (catalog.Product, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.catalog.Get(id)
	if !ok {
		return catalog.Product{}, domain.NewNotFoundError("product", id)
	}
	return p, nil
}

func (e *Engine) Categories() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Categories()
}

func (e *Engine) LowStock(threshold int) []catalog.Product {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.LowStock(threshold)
}

func (e *Engine) CategoryCounts() []catalog.CategoryCount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.CategoryCounts()
}

// ============================================
// Catalog edits
// ============================================

// EditProduct inserts or wholesale-replaces a product. Historical order
// snapshots are untouched.
func (e *Engine) EditProduct(ctx context.Context, capability Capability, cmd EditProduct) (catalog.Product, error) {
	if err := requireEdit(capability); err != nil {
		return catalog.Product{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.catalog.Upsert(cmd.Product)
	if err != nil {
		return catalog.Product{}, err
	}
	e.persist(ctx)
	return p, nil
}

// DeleteProduct removes a product. Removing an unknown id succeeds.
func (e *Engine) DeleteProduct(ctx context.Context, capability Capability, id string) error {
	if err := requireEdit(capability); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.catalog.Remove(id) {
		e.persist(ctx)
	}
	return nil
}

// InlineEdit parses a raw price or stock value and applies it.
func (e *Engine) InlineEdit(ctx context.Context, capability Capability, cmd InlineEdit) (catalog.Product, error) {
	if err := requireEdit(capability); err != nil {
		return catalog.Product{}, err
	}
	field, err := catalog.ParseField(cmd.Field)
	if err != nil {
		return catalog.Product{}, err
	}
	value, err := decimal.NewFromString(strings.TrimSpace(cmd.Value))
	if err != nil {
		return catalog.Product{}, &domain.ValidationError{Field: string(field), Reason: "not a number", Value: cmd.Value}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalog.AdjustField(cmd.ProductID, field, value); err != nil {
		return catalog.Product{}, err
	}
	e.persist(ctx)
	p, _ := e.catalog.Get(cmd.ProductID)
	return p, nil
}

func (e *Engine) AddImage(ctx context.Context, capability Capability, cmd AddImage) (catalog.Product, error) {
	if err := requireEdit(capability); err != nil {
		return catalog.Product{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalog.AddImage(cmd.ProductID, strings.TrimSpace(cmd.URL)); err != nil {
		return catalog.Product{}, err
	}
	e.persist(ctx)
	p, _ := e.catalog.Get(cmd.ProductID)
	return p, nil
}

func (e *Engine) RemoveImage(ctx context.Context, capability Capability, cmd RemoveImage) (catalog.Product, error) {
	if err := requireEdit(capability); err != nil {
		return catalog.Product{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catalog.RemoveImage(cmd.ProductID, cmd.Index); err != nil {
		return catalog.Product{}, err
	}
	e.persist(ctx)
	p, _ := e.catalog.Get(cmd.ProductID)
	return p, nil
}

// ============================================
// Draft
// ============================================

// SetDraftQuantity records a requested quantity and returns the re-derived
// draft. Requests above stock are kept as typed.
func (e *Engine) SetDraftQuantity(ctx context.Context, cmd SetDraftQuantity) (draft.Derivation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.draft.SetQuantity(cmd.Model, cmd.Quantity); err != nil {
		return draft.Derivation{}, err
	}
	e.persist(ctx)
	return e.draft.Derive(e.catalog), nil
}

// Draft derives the current draft against live stock.
func (e *Engine) Draft() draft.Derivation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Derive(e.catalog)
}

// DraftEntries returns the raw requests.
func (e *Engine) DraftEntries() []draft.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft.Entries()
}

func (e *Engine) ClearDraft(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft.Clear()
	e.persist(ctx)
}

// ============================================
// Orders
// ============================================

// PlaceOrder commits the draft as derived right now. The draft is cleared
// only when the commit succeeds.
func (e *Engine) PlaceOrder(ctx context.Context, cmd PlaceOrder) (order.Order, error) {
	e.mu.Lock()
	d := e.draft.Derive(e.catalog)
	if d.Empty() {
		e.mu.Unlock()
		return order.Order{}, domain.ErrEmptyDraft
	}
	o, err := e.ledger.Commit(d.Items, d.GrandTotal, cmd.CustomerInfo, e.catalog)
	if err != nil {
		e.mu.Unlock()
		return order.Order{}, err
	}
	e.draft.Clear()
	e.persist(ctx)
	e.mu.Unlock()

	log.Printf("[Ledger] Order %s committed: %d items, total %s", o.ID, o.TotalItems(), o.GrandTotal)
	e.publish(ctx, o.ID, order.EventOrderCommitted, order.OrderCommitted{Order: o})
	return o, nil
}

// Orders lists the ledger, most recent first.
func (e *Engine) Orders(capability Capability) ([]order.Order, error) {
	if err := requireEdit(capability); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.List(), nil
}

func (e *Engine) Order(capability Capability, id string) (order.Order, error) {
	if err := requireEdit(capability); err != nil {
		return order.Order{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.ledger.Get(id)
	if !ok {
		return order.Order{}, domain.NewNotFoundError("order", id)
	}
	return o, nil
}

func (e *Engine) MarkProcessed(ctx context.Context, capability Capability, id string) (order.Order, error) {
	if err := requireEdit(capability); err != nil {
		return order.Order{}, err
	}
	e.mu.Lock()
	before := e.ledger.Version()
	o, err := e.ledger.MarkProcessed(id)
	if err != nil {
		e.mu.Unlock()
		return order.Order{}, err
	}
	changed := e.ledger.Version() != before
	e.persist(ctx)
	e.mu.Unlock()

	if changed {
		e.publish(ctx, o.ID, order.EventOrderProcessed, order.OrderProcessed{OrderID: o.ID, ProcessedAt: time.Now()})
	}
	return o, nil
}

func (e *Engine) SetPaymentStatus(ctx context.Context, capability Capability, cmd SetPayment) (order.Order, error) {
	if err := requireEdit(capability); err != nil {
		return order.Order{}, err
	}
	status, err := order.ParsePaymentStatus(cmd.Status)
	if err != nil {
		return order.Order{}, err
	}
	e.mu.Lock()
	before := e.ledger.Version()
	o, err := e.ledger.SetPaymentStatus(cmd.OrderID, status)
	if err != nil {
		e.mu.Unlock()
		return order.Order{}, err
	}
	changed := e.ledger.Version() != before
	e.persist(ctx)
	e.mu.Unlock()

	if changed {
		e.publish(ctx, o.ID, order.EventOrderPaymentChanged, order.OrderPaymentChanged{OrderID: o.ID, PaymentStatus: status, ChangedAt: time.Now()})
	}
	return o, nil
}

// DeleteOrder removes an order and restores its stock.
func (e *Engine) DeleteOrder(ctx context.Context, capability Capability, id string) error {
	if err := requireEdit(capability); err != nil {
		return err
	}
	e.mu.Lock()
	o, err := e.ledger.Delete(id, e.catalog)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.persist(ctx)
	e.mu.Unlock()

	log.Printf("[Ledger] Order %s deleted, stock restored", o.ID)
	e.publish(ctx, o.ID, order.EventOrderDeleted, order.OrderDeleted{
		OrderID:    o.ID,
		ShopName:   o.CustomerInfo.ShopName,
		GrandTotal: o.GrandTotal,
		Restored:   o.RestoredQuantities(),
		DeletedAt:  time.Now(),
	})
	return nil
}
