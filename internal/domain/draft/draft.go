// Package draft holds the shopper's in-progress selection and derives priced
// line items from it against live stock.
package draft

import (
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/catalog"
)

var ErrInvalidModel = errors.New("model is required")

// Entry is one requested model and the quantity typed by the shopper.
type Entry struct {
	Model     string `json:"model"`
	Requested int    `json:"requested"`
}

// Draft maps product model to requested quantity. Requests are stored as
// typed; clamping to stock happens only at derivation. It is not safe for
// concurrent use.
type Draft struct {
	quantities map[string]int
	models     []string
	version    uint64
}

// New returns an empty draft.
func New() *Draft {
	return &Draft{quantities: make(map[string]int)}
}

// FromEntries rebuilds a draft from persisted entries, dropping non-positive
// requests.
func FromEntries(entries []Entry) *Draft {
	d := New()
	for _, e := range entries {
		_ = d.SetQuantity(e.Model, e.Requested)
	}
	d.version = 0
	return d
}

// SetQuantity records qty for model. A quantity of zero or less removes
// the entry.
func (d *Draft) SetQuantity(model string, qty int) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return domain.NewRuleError("model", ErrInvalidModel, model)
	}
	if qty <= 0 {
		if _, ok := d.quantities[model]; !ok {
			return nil
		}
		delete(d.quantities, model)
		d.models = slices.DeleteFunc(d.models, func(m string) bool { return m == model })
		d.version++
		return nil
	}
	if _, ok := d.quantities[model]; !ok {
		d.models = append(d.models, model)
	}
	d.quantities[model] = qty
	d.version++
	return nil
}

// Quantity returns the requested quantity for model, or 0.
func (d *Draft) Quantity(model string) int {
	return d.quantities[model]
}

// Entries returns the requests in the order they were first made.
func (d *Draft) Entries() []Entry {
	out := make([]Entry, 0, len(d.models))
	for _, m := range d.models {
		out = append(out, Entry{Model: m, Requested: d.quantities[m]})
	}
	return out
}

// Len returns the number of requested models.
func (d *Draft) Len() int {
	return len(d.models)
}

// Version increases on every change.
func (d *Draft) Version() uint64 {
	return d.version
}

// Clear empties the draft.
func (d *Draft) Clear() {
	if len(d.models) == 0 {
		return
	}
	d.quantities = make(map[string]int)
	d.models = nil
	d.version++
}

// ProductLookup resolves a model to its live product.
type ProductLookup interface {
	FindByModel(model string) (catalog.Product, bool)
}

// LineItem is a priced draft line. The json names match persisted order
// history.
type LineItem struct {
	Product   catalog.Product `json:"product"`
	Requested int             `json:"requested,omitempty"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"totalPrice"`
}

// Clamped reports whether the shopper asked for more than is in stock.
func (li LineItem) Clamped() bool {
	return li.Requested > li.Quantity
}

// Clone deep-copies the product snapshot.
func (li LineItem) Clone() LineItem {
	li.Product = li.Product.Clone()
	return li
}

// Derivation is the draft priced against the catalog at one instant.
type Derivation struct {
	Items       []LineItem      `json:"items"`
	Unavailable []LineItem      `json:"unavailable,omitempty"`
	Missing     []string        `json:"missing,omitempty"`
	TotalItems  int             `json:"totalItems"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
}

// Empty reports whether nothing in the draft can be fulfilled.
func (d Derivation) Empty() bool {
	return len(d.Items) == 0
}

// Derive prices every entry at min(requested, stock). Entries that resolve
// to zero effective quantity land in Unavailable, unknown models in Missing;
// neither contributes to the totals.
func (d *Draft) Derive(products ProductLookup) Derivation {
	out := Derivation{GrandTotal: decimal.Zero}
	for _, m := range d.models {
		requested := d.quantities[m]
		p, ok := products.FindByModel(m)
		if !ok {
			out.Missing = append(out.Missing, m)
			continue
		}
		qty := min(requested, max(0, p.StockQuantity))
		item := LineItem{
			Product:   p,
			Requested: requested,
			Quantity:  qty,
			LineTotal: p.Price.Mul(decimal.NewFromInt(int64(qty))),
		}
		if qty == 0 {
			out.Unavailable = append(out.Unavailable, item)
			continue
		}
		out.Items = append(out.Items, item)
		out.TotalItems += qty
		out.GrandTotal = out.GrandTotal.Add(item.LineTotal)
	}
	return out
}
