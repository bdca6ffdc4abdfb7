// Package catalog owns the live product records and their stock levels.
package catalog

import (
	"fmt"
	"log"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/example/pricelist/internal/domain"
)

// Field names a single inline-editable product field.
type Field string

const (
	FieldPrice Field = "price"
	FieldStock Field = "stockQuantity"
)

// ParseField maps the wire name of an inline-editable field.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldPrice, FieldStock:
		return Field(s), nil
	}
	return "", domain.NewRuleError("field", ErrUnknownField, s)
}

// Catalog is the authoritative product set, keyed by id and iterated in
// insertion order. It is not safe for concurrent use; callers serialize
// access.
type Catalog struct {
	products map[string]*Product
	ids      []string
	version  uint64
}

// New builds a catalog from an initial product list. Loaded records only
// get the load-time repairs; edit validation such as image url checks is
// not applied, so persisted products are never dropped. Records with no id
// or model cannot be keyed and are skipped with a log line. A repeated id
// replaces the earlier record.
func New(products []Product) *Catalog {
	c := &Catalog{products: make(map[string]*Product, len(products))}
	for i, p := range products {
		n, err := coerce(p)
		if err != nil {
			log.Printf("[Catalog] Skipping product at index %d: %v", i, err)
			continue
		}
		c.put(n)
	}
	c.version = 0
	return c
}

func (c *Catalog) put(p Product) {
	if _, ok := c.products[p.ID]; !ok {
		c.ids = append(c.ids, p.ID)
	}
	c.products[p.ID] = &p
	c.version++
}

// Version increases on every mutation; persistence compares it to decide
// whether the products blob needs writing.
func (c *Catalog) Version() uint64 {
	return c.version
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Has reports whether a product with id exists.
func (c *Catalog) Has(id string) bool {
	_, ok := c.products[id]
	return ok
}

// Get returns a copy of the product with id.
func (c *Catalog) Get(id string) (Product, bool) {
	p, ok := c.products[id]
	if !ok {
		return Product{}, false
	}
	return p.Clone(), true
}

// FindByModel returns a copy of the first product whose model matches.
func (c *Catalog) FindByModel(model string) (Product, bool) {
	if p, ok := c.products[model]; ok && p.Model == model {
		return p.Clone(), true
	}
	for _, id := range c.ids {
		if p := c.products[id]; p.Model == model {
			return p.Clone(), true
		}
	}
	return Product{}, false
}

// List returns copies of all products in catalog order.
func (c *Catalog) List() []Product {
	out := make([]Product, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.products[id].Clone())
	}
	return out
}

// Upsert inserts p when its id is unseen and otherwise replaces the stored
// record wholesale. Negative stock is floored at zero.
func (c *Catalog) Upsert(p Product) (Product, error) {
	n, err := normalize(p)
	if err != nil {
		return Product{}, err
	}
	c.put(n)
	return n.Clone(), nil
}

// Remove deletes the product with id. Removing an unknown id is a no-op.
func (c *Catalog) Remove(id string) bool {
	if _, ok := c.products[id]; !ok {
		return false
	}
	delete(c.products, id)
	c.ids = slices.DeleteFunc(c.ids, func(v string) bool { return v == id })
	c.version++
	return true
}

// AdjustField applies a single inline edit. Out-of-range values are rejected
// rather than clamped and leave the product untouched.
func (c *Catalog) AdjustField(id string, field Field, value decimal.Decimal) error {
	p, ok := c.products[id]
	if !ok {
		return domain.NewNotFoundError("product", id)
	}
	switch field {
	case FieldPrice:
		if value.IsNegative() {
			return domain.NewRuleError(string(field), ErrInvalidPrice, value.String())
		}
		p.Price = value
	case FieldStock:
		if value.IsNegative() || !value.IsInteger() || value.GreaterThan(decimal.NewFromInt(maxStock)) {
			return domain.NewRuleError(string(field), ErrInvalidStock, value.String())
		}
		p.StockQuantity = int(value.IntPart())
	default:
		return domain.NewRuleError("field", ErrUnknownField, string(field))
	}
	c.version++
	return nil
}

const maxStock = 1<<31 - 1

// DecrementStock lowers stock by amount, flooring at zero. Over-decrement
// is not an error.
func (c *Catalog) DecrementStock(id string, amount int) error {
	p, ok := c.products[id]
	if !ok {
		return domain.NewNotFoundError("product", id)
	}
	if amount <= 0 {
		return nil
	}
	p.StockQuantity = max(0, p.StockQuantity-amount)
	c.version++
	return nil
}

// RestoreStock raises stock by amount with no upper ceiling.
func (c *Catalog) RestoreStock(id string, amount int) error {
	p, ok := c.products[id]
	if !ok {
		return domain.NewNotFoundError("product", id)
	}
	if amount <= 0 {
		return nil
	}
	p.StockQuantity = max(0, p.StockQuantity) + amount
	c.version++
	return nil
}

// AddImage appends an image url to the product gallery.
func (c *Catalog) AddImage(id, url string) error {
	p, ok := c.products[id]
	if !ok {
		return domain.NewNotFoundError("product", id)
	}
	if !validImageURL(url) {
		return domain.NewRuleError("images", ErrInvalidImage, url)
	}
	p.Images = append(p.Images, url)
	c.version++
	return nil
}

// RemoveImage drops the image at index.
func (c *Catalog) RemoveImage(id string, index int) error {
	p, ok := c.products[id]
	if !ok {
		return domain.NewNotFoundError("product", id)
	}
	if index < 0 || index >= len(p.Images) {
		return domain.NewRuleError("images", ErrImageNotFound, fmt.Sprint(index))
	}
	p.Images = slices.Delete(p.Images, index, index+1)
	c.version++
	return nil
}
