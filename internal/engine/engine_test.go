package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/draft"
	"github.com/example/pricelist/internal/domain/order"
	"github.com/example/pricelist/internal/infrastructure/store"
	"github.com/example/pricelist/internal/infrastructure/store/mocks"
	"github.com/example/pricelist/internal/query"
)

func testSeed() []catalog.Product {
	return []catalog.Product{
		{ID: "P1", Model: "P1", Category: "Cable", Price: decimal.NewFromInt(100), StockQuantity: 10, Parameters: []string{"Type-C"}},
		{ID: "P2", Model: "P2", Category: "Charger", Price: decimal.NewFromInt(40), StockQuantity: 3},
		{ID: "P3", Model: "P3", Category: "Cable", Price: decimal.NewFromInt(70), StockQuantity: 0},
	}
}

type testEnv struct {
	engine    *Engine
	state     *mocks.MockStateStore
	publisher *mocks.MockPublisher
	errs      []error
}

func newTestEngine(t *testing.T, opts Options) *testEnv {
	t.Helper()
	env := &testEnv{state: mocks.NewMockStateStore(), publisher: mocks.NewMockPublisher()}
	repo := store.NewRepository(env.state).WithSeed(testSeed)
	if opts.Publisher == nil {
		opts.Publisher = env.publisher
	}
	opts.OnPersistError = func(err error) { env.errs = append(env.errs, err) }
	opts.Locale = language.English
	opts.Clock = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	e, err := New(context.Background(), repo, opts)
	require.NoError(t, err)
	env.engine = e
	return env
}

func customer() order.CustomerInfo {
	return order.CustomerInfo{ShopName: "Travel World", CustomerName: "Anna", Phone: "+7 900", Address: "Moscow"}
}

func stock(t *testing.T, e *Engine, id string) int {
	t.Helper()
	p, err := e.Product(id)
	require.NoError(t, err)
	return p.StockQuantity
}

// ============================================
// Construction Tests
// ============================================

func TestNew_LoadFailure(t *testing.T) {
	state := mocks.NewMockStateStore()
	state.SetErrors(errors.New("dial tcp: refused"), nil)

	_, err := New(context.Background(), store.NewRepository(state), Options{})

	assert.True(t, domain.IsExternalServiceError(err))
}

func TestNew_RestoresPersistedDraft(t *testing.T) {
	state := mocks.NewMockStateStore()
	state.Set(store.KeyDraft, []byte(`[{"model":"P1","requested":4}]`))

	e, err := New(context.Background(), store.NewRepository(state).WithSeed(testSeed), Options{PersistDraft: true})

	require.NoError(t, err)
	assert.Equal(t, 4, e.Draft().TotalItems)
}

// ============================================
// View Tests
// ============================================

func TestEngine_SearchAndSort(t *testing.T) {
	env := newTestEngine(t, Options{})

	got := env.engine.SearchAndSort(query.Params{Category: "Cable", Sort: query.SortConfig{Key: query.SortPrice, Direction: query.Desc}})

	require.Len(t, got, 2)
	assert.Equal(t, "P1", got[0].ID)
	assert.Equal(t, "P3", got[1].ID)
}

func TestEngine_ViewCommandsAndExport(t *testing.T) {
	env := newTestEngine(t, Options{})
	e := env.engine

	assert.Len(t, e.FilterCategory("Cable"), 2)
	assert.Len(t, e.Search("type-c"), 1)
	e.Search("")
	asc := e.Sort(query.SortStock)
	desc := e.Sort(query.SortStock)

	assert.Equal(t, "P3", asc[0].ID)
	assert.Equal(t, "P1", desc[0].ID)
	assert.Equal(t, desc, e.ExportView())
	assert.Equal(t, query.SortConfig{Key: query.SortStock, Direction: query.Desc}, e.View().Sort)
	assert.Empty(t, env.state.PutCalls, "view changes are not persisted")
}

// ============================================
// Catalog Edit Tests
// ============================================

func TestEngine_Edits_RequireCapability(t *testing.T) {
	env := newTestEngine(t, Options{})
	e := env.engine
	ctx := context.Background()
	guest := Capability{}

	_, err := e.EditProduct(ctx, guest, EditProduct{Product: catalog.Product{ID: "NEW"}})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, e.DeleteProduct(ctx, guest, "P1"), domain.ErrForbidden)
	_, err = e.InlineEdit(ctx, guest, InlineEdit{ProductID: "P1", Field: "price", Value: "1"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.AddImage(ctx, guest, AddImage{ProductID: "P1", URL: "https://example.com/a.png"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.Orders(guest)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.MarkProcessed(ctx, guest, "x")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = e.SetPaymentStatus(ctx, guest, SetPayment{OrderID: "x", Status: "paid"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, e.DeleteOrder(ctx, guest, "x"), domain.ErrForbidden)

	assert.Empty(t, env.state.PutCalls)
}

func TestEngine_EditProduct_Persists(t *testing.T) {
	env := newTestEngine(t, Options{})

	p, err := env.engine.EditProduct(context.Background(), Admin, EditProduct{Product: catalog.Product{Model: "NEW", Price: decimal.NewFromInt(5), StockQuantity: -2}})

	require.NoError(t, err)
	assert.Equal(t, "NEW", p.ID)
	assert.Equal(t, 0, p.StockQuantity)
	assert.Equal(t, []string{store.KeyProducts}, env.state.PutKeys())
}

func TestEngine_InlineEdit(t *testing.T) {
	env := newTestEngine(t, Options{})
	ctx := context.Background()

	p, err := env.engine.InlineEdit(ctx, Admin, InlineEdit{ProductID: "P1", Field: "price", Value: " 150.50 "})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("150.5").Equal(p.Price))

	_, err = env.engine.InlineEdit(ctx, Admin, InlineEdit{ProductID: "P1", Field: "price", Value: "-5"})
	assert.True(t, domain.IsValidationError(err))

	_, err = env.engine.InlineEdit(ctx, Admin, InlineEdit{ProductID: "P1", Field: "stockQuantity", Value: "abc"})
	assert.True(t, domain.IsValidationError(err))

	_, err = env.engine.InlineEdit(ctx, Admin, InlineEdit{ProductID: "P1", Field: "color", Value: "1"})
	assert.True(t, domain.IsValidationError(err))

	_, err = env.engine.InlineEdit(ctx, Admin, InlineEdit{ProductID: "NOPE", Field: "price", Value: "1"})
	assert.True(t, domain.IsNotFoundError(err))

	got, _ := env.engine.Product("P1")
	assert.True(t, decimal.RequireFromString("150.5").Equal(got.Price))
	assert.Len(t, env.state.PutCalls, 1)
}

func TestEngine_DeleteProduct_Idempotent(t *testing.T) {
	env := newTestEngine(t, Options{})
	ctx := context.Background()

	require.NoError(t, env.engine.DeleteProduct(ctx, Admin, "P2"))
	require.NoError(t, env.engine.DeleteProduct(ctx, Admin, "P2"))

	_, err := env.engine.Product("P2")
	assert.True(t, domain.IsNotFoundError(err))
	assert.Len(t, env.state.PutCalls, 1)
}

func TestEngine_Images(t *testing.T) {
	env := newTestEngine(t, Options{})
	ctx := context.Background()

	p, err := env.engine.AddImage(ctx, Admin, AddImage{ProductID: "P1", URL: "https://example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", p.Thumbnail())

	_, err = env.engine.AddImage(ctx, Admin, AddImage{ProductID: "P1", URL: "example.com/a.png"})
	assert.True(t, domain.IsValidationError(err))

	p, err = env.engine.RemoveImage(ctx, Admin, RemoveImage{ProductID: "P1", Index: 0})
	require.NoError(t, err)
	assert.Empty(t, p.Images)
}

// ============================================
// Draft & Order Tests
// ============================================

func TestEngine_PlaceOrder_ClampCommitDeleteScenario(t *testing.T) {
	env := newTestEngine(t, Options{})
	e := env.engine
	ctx := context.Background()

	d, err := e.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 15})
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 10, d.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(1000).Equal(d.Items[0].LineTotal))

	o, err := e.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})
	require.NoError(t, err)
	assert.Equal(t, 0, stock(t, e, "P1"))
	assert.True(t, e.Draft().Empty())
	assert.Empty(t, e.DraftEntries())

	require.NoError(t, e.DeleteOrder(ctx, Admin, o.ID))
	assert.Equal(t, 10, stock(t, e, "P1"))

	orders, err := e.Orders(Admin)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestEngine_PlaceOrder_EmptyDraft(t *testing.T) {
	env := newTestEngine(t, Options{})
	ctx := context.Background()
	_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P3", Quantity: 2})

	_, err := env.engine.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})

	assert.ErrorIs(t, err, domain.ErrEmptyDraft)
	assert.Equal(t, 2, env.engine.DraftEntries()[0].Requested)
}

func TestEngine_PlaceOrder_InvalidCustomerKeepsDraft(t *testing.T) {
	env := newTestEngine(t, Options{})
	ctx := context.Background()
	_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 2})
	info := customer()
	info.Phone = ""

	_, err := env.engine.PlaceOrder(ctx, PlaceOrder{CustomerInfo: info})

	assert.True(t, domain.IsValidationError(err))
	assert.Equal(t, 2, env.engine.Draft().TotalItems)
	assert.Equal(t, 10, stock(t, env.engine, "P1"))
	assert.Empty(t, env.publisher.Calls())
}

func TestEngine_PlaceOrder_PublishesAndPersists(t *testing.T) {
	env := newTestEngine(t, Options{})
	ctx := context.Background()
	_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P2", Quantity: 1})

	o, err := env.engine.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})

	require.NoError(t, err)
	calls := env.publisher.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, o.ID, calls[0].Key)
	ev := calls[0].Event.(order.Event)
	assert.Equal(t, order.EventOrderCommitted, ev.EventType)

	assert.Contains(t, env.state.PutKeys(), store.KeyProducts)
	assert.Contains(t, env.state.PutKeys(), store.KeyOrders)
}

func TestEngine_DeleteProduct_KeepsOrderSnapshot(t *testing.T) {
	env := newTestEngine(t, Options{})
	e := env.engine
	ctx := context.Background()
	_, _ = e.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 2})
	o, err := e.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})
	require.NoError(t, err)

	_, err = e.InlineEdit(ctx, Admin, InlineEdit{ProductID: "P1", Field: "price", Value: "999"})
	require.NoError(t, err)
	require.NoError(t, e.DeleteProduct(ctx, Admin, "P1"))

	stored, err := e.Order(Admin, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(stored.GrandTotal))
	assert.True(t, decimal.NewFromInt(100).Equal(stored.Items[0].Product.Price))
}

func TestEngine_OrderStatusCommands(t *testing.T) {
	env := newTestEngine(t, Options{})
	e := env.engine
	ctx := context.Background()
	_, _ = e.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 1})
	o, _ := e.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})

	got, err := e.MarkProcessed(ctx, Admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessed, got.Status)

	got, err = e.SetPaymentStatus(ctx, Admin, SetPayment{OrderID: o.ID, Status: "paid"})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)

	_, err = e.SetPaymentStatus(ctx, Admin, SetPayment{OrderID: o.ID, Status: "refunded"})
	assert.True(t, domain.IsValidationError(err))

	_, err = e.MarkProcessed(ctx, Admin, "missing")
	assert.True(t, domain.IsNotFoundError(err))

	types := []string{}
	for _, c := range env.publisher.Calls() {
		types = append(types, c.Event.(order.Event).EventType)
	}
	assert.Equal(t, []string{order.EventOrderCommitted, order.EventOrderProcessed, order.EventOrderPaymentChanged}, types)
}

// ============================================
// Failure Tolerance Tests
// ============================================

func TestEngine_PersistFailureDoesNotRollBack(t *testing.T) {
	env := newTestEngine(t, Options{})
	env.state.SetErrors(nil, errors.New("disk full"))

	p, err := env.engine.InlineEdit(context.Background(), Admin, InlineEdit{ProductID: "P1", Field: "stockQuantity", Value: "42"})

	require.NoError(t, err)
	assert.Equal(t, 42, p.StockQuantity)
	require.Len(t, env.errs, 1)
	assert.True(t, domain.IsExternalServiceError(env.errs[0]))

	env.state.SetErrors(nil, nil)
	_, err = env.engine.SetDraftQuantity(context.Background(), SetDraftQuantity{Model: "P1", Quantity: 1})
	require.NoError(t, err)

	raw, ok := env.state.Blob(store.KeyProducts)
	require.True(t, ok, "failed save retried on next change")
	assert.Contains(t, string(raw), `"stockQuantity":42`)
}

func TestEngine_PublishFailureIsReported(t *testing.T) {
	env := newTestEngine(t, Options{})
	env.publisher.PublishErr = errors.New("broker down")
	ctx := context.Background()
	_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 1})

	_, err := env.engine.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})

	require.NoError(t, err)
	require.Len(t, env.errs, 1)
	assert.True(t, domain.IsExternalServiceError(env.errs[0]))
}

func TestEngine_PersistsDraftWhenEnabled(t *testing.T) {
	env := newTestEngine(t, Options{PersistDraft: true})

	_, err := env.engine.SetDraftQuantity(context.Background(), SetDraftQuantity{Model: "P1", Quantity: 3})

	require.NoError(t, err)
	assert.Equal(t, []string{store.KeyDraft}, env.state.PutKeys())
}

func TestEngine_ConcurrentDraftAndOrders(t *testing.T) {
	env := newTestEngine(t, Options{})
	e := env.engine
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 1})
			_, _ = e.PlaceOrder(ctx, PlaceOrder{CustomerInfo: customer()})
		}()
	}
	wg.Wait()

	orders, err := e.Orders(Admin)
	require.NoError(t, err)
	assert.Equal(t, 10-len(orders), stock(t, e, "P1"))
	assert.GreaterOrEqual(t, stock(t, e, "P1"), 0)
}

// ============================================
// Summary Tests
// ============================================

type stubSummarizer struct {
	text   string
	err    error
	during func()
	got    draft.Derivation
}

func (s *stubSummarizer) Summarize(ctx context.Context, d draft.Derivation) (string, error) {
	s.got = d
	if s.during != nil {
		s.during()
	}
	return s.text, s.err
}

func TestEngine_SummarizeDraft(t *testing.T) {
	sum := &stubSummarizer{text: "Two cables."}
	env := newTestEngine(t, Options{Summarizer: sum})
	_, _ = env.engine.SetDraftQuantity(context.Background(), SetDraftQuantity{Model: "P1", Quantity: 2})

	got, err := env.engine.SummarizeDraft(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Summary{Text: "Two cables."}, got)
	assert.Equal(t, 2, sum.got.TotalItems)
}

func TestEngine_SummarizeDraft_StaleWhenDraftChanges(t *testing.T) {
	sum := &stubSummarizer{text: "Two cables."}
	env := newTestEngine(t, Options{Summarizer: sum})
	ctx := context.Background()
	_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 2})
	sum.during = func() {
		_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P2", Quantity: 1})
	}

	got, err := env.engine.SummarizeDraft(ctx)

	require.NoError(t, err)
	assert.True(t, got.Stale)
	assert.Equal(t, 2, sum.got.TotalItems, "summarizer saw the snapshot")
}

func TestEngine_SummarizeDraft_Failures(t *testing.T) {
	sum := &stubSummarizer{err: errors.New("401 unauthorized")}
	env := newTestEngine(t, Options{Summarizer: sum})
	ctx := context.Background()

	_, err := env.engine.SummarizeDraft(ctx)
	assert.ErrorIs(t, err, domain.ErrEmptyDraft)

	_, _ = env.engine.SetDraftQuantity(ctx, SetDraftQuantity{Model: "P1", Quantity: 1})
	_, err = env.engine.SummarizeDraft(ctx)
	assert.True(t, domain.IsExternalServiceError(err))

	noSummarizer := newTestEngine(t, Options{})
	_, err = noSummarizer.engine.SummarizeDraft(ctx)
	assert.True(t, domain.IsExternalServiceError(err))
}
