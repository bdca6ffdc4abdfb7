package order

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/draft"
)

// StockKeeper is the slice of the catalog the ledger moves stock through.
type StockKeeper interface {
	Has(id string) bool
	DecrementStock(id string, amount int) error
	RestoreStock(id string, amount int) error
}

// Ledger is the committed order history, most recent first. It is not safe
// for concurrent use.
type Ledger struct {
	orders  []Order
	version uint64
	now     func() time.Time
}

// NewLedger loads history as persisted, filling default statuses.
func NewLedger(orders []Order) *Ledger {
	l := &Ledger{now: time.Now}
	for _, o := range orders {
		l.orders = append(l.orders, o.Clone().withDefaults())
	}
	return l
}

// SetClock replaces the commit timestamp source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Version increases on every change to the history.
func (l *Ledger) Version() uint64 {
	return l.version
}

// Len returns the number of orders.
func (l *Ledger) Len() int {
	return len(l.orders)
}

// List returns copies of all orders, most recent first.
func (l *Ledger) List() []Order {
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o.Clone())
	}
	return out
}

// Get returns a copy of the order with id.
func (l *Ledger) Get(id string) (Order, bool) {
	i := l.index(id)
	if i < 0 {
		return Order{}, false
	}
	return l.orders[i].Clone(), true
}

func (l *Ledger) index(id string) int {
	return slices.IndexFunc(l.orders, func(o Order) bool { return o.ID == id })
}

// Commit records a new order and decrements stock for every line by its
// quantity. All inputs are checked before anything changes, so a rejected
// commit leaves both the ledger and the stock untouched.
func (l *Ledger) Commit(items []draft.LineItem, grandTotal decimal.Decimal, info CustomerInfo, stock StockKeeper) (Order, error) {
	info, err := info.Normalize()
	if err != nil {
		return Order{}, err
	}
	if len(items) == 0 {
		return Order{}, domain.NewRuleError("items", ErrEmptyOrder, 0)
	}
	for i, li := range items {
		if li.Quantity <= 0 {
			return Order{}, domain.NewRuleError(fmt.Sprintf("items[%d].quantity", i), ErrEmptyOrder, li.Quantity)
		}
		if !stock.Has(li.Product.ID) {
			return Order{}, domain.NewNotFoundError("product", li.Product.ID)
		}
	}
	if sum := sumLines(items); !sum.Equal(grandTotal) {
		return Order{}, domain.NewRuleError("grandTotal", ErrTotalMismatch, grandTotal.String())
	}

	now := l.now()
	o := Order{
		ID:            l.uniqueID(newID(now, info.ShopName)),
		Date:          now,
		CustomerInfo:  info,
		Items:         make([]draft.LineItem, len(items)),
		GrandTotal:    grandTotal,
		Status:        StatusNew,
		PaymentStatus: PaymentUnpaid,
	}
	for i, li := range items {
		o.Items[i] = li.Clone()
	}

	for _, li := range o.Items {
		// Existence was checked above; the floor makes over-decrement lossy
		// rather than failing.
		_ = stock.DecrementStock(li.Product.ID, li.Quantity)
	}
	l.orders = append([]Order{o}, l.orders...)
	l.version++
	return o.Clone(), nil
}

func (l *Ledger) uniqueID(base string) string {
	id := base
	for n := 2; l.index(id) >= 0; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	return id
}

// MarkProcessed moves an order from new to processed. Marking an already
// processed order is a no-op.
func (l *Ledger) MarkProcessed(id string) (Order, error) {
	return l.UpdateStatus(id, StatusProcessed)
}

// UpdateStatus applies a processing transition.
func (l *Ledger) UpdateStatus(id string, status Status) (Order, error) {
	i := l.index(id)
	if i < 0 {
		return Order{}, domain.NewNotFoundError("order", id)
	}
	o := &l.orders[i]
	if o.Status == status {
		return o.Clone(), nil
	}
	if !o.CanTransitionTo(status) {
		return Order{}, &domain.ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("%s: cannot transition from %s to %s", ErrInvalidStatus, o.Status, status),
			Value:  string(status),
			Err:    ErrInvalidStatus,
		}
	}
	o.Status = status
	l.version++
	return o.Clone(), nil
}

// SetPaymentStatus replaces the payment status. Both directions are allowed.
func (l *Ledger) SetPaymentStatus(id string, status PaymentStatus) (Order, error) {
	i := l.index(id)
	if i < 0 {
		return Order{}, domain.NewNotFoundError("order", id)
	}
	if _, err := ParsePaymentStatus(string(status)); err != nil {
		return Order{}, err
	}
	o := &l.orders[i]
	if o.PaymentStatus != status {
		o.PaymentStatus = status
		l.version++
	}
	return o.Clone(), nil
}

// Delete removes an order and returns its stock to the catalog. Quantities
// are summed per product first so each product is restored once; products
// deleted from the catalog since the commit are skipped.
func (l *Ledger) Delete(id string, stock StockKeeper) (Order, error) {
	i := l.index(id)
	if i < 0 {
		return Order{}, domain.NewNotFoundError("order", id)
	}
	o := l.orders[i]

	restore := o.RestoredQuantities()
	for pid, qty := range restore {
		if !stock.Has(pid) {
			continue
		}
		_ = stock.RestoreStock(pid, qty)
	}

	l.orders = slices.Delete(l.orders, i, i+1)
	l.version++
	return o, nil
}
