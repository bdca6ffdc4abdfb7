// Package query derives the view-ordered product list from the catalog:
// category filter, then text search, then a stable sort.
package query

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/catalog"
)

// SortKey names the product attribute the view is ordered by. The zero
// value keeps catalog order.
type SortKey string

const (
	SortNone     SortKey = ""
	SortModel    SortKey = "model"
	SortCategory SortKey = "category"
	SortPrice    SortKey = "price"
	SortStock    SortKey = "stockQuantity"
)

// Direction is the sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSortKey maps a wire value to a SortKey.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortNone, SortModel, SortCategory, SortPrice, SortStock:
		return k, nil
	}
	return SortNone, domain.NewValidationError("sort", "unknown sort key", s)
}

// ParseDirection maps a wire value to a Direction; empty means ascending.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return Asc, domain.NewValidationError("dir", "must be asc or desc", s)
}

// SortConfig is the active sort key and direction.
type SortConfig struct {
	Key       SortKey   `json:"key"`
	Direction Direction `json:"direction"`
}

// Toggle returns the config after the user selects key: selecting the
// active ascending key flips it to descending, anything else sorts
// ascending by key.
func (s SortConfig) Toggle(key SortKey) SortConfig {
	if s.Key == key && s.Direction != Desc {
		return SortConfig{Key: key, Direction: Desc}
	}
	return SortConfig{Key: key, Direction: Asc}
}

// Params is the full set of view controls.
type Params struct {
	Category string     `json:"category"`
	Term     string     `json:"term"`
	Sort     SortConfig `json:"sort"`
}

// Pipeline runs the filter/search/sort stages. String keys compare with the
// collation rules of its language.
type Pipeline struct {
	lang language.Tag
}

// NewPipeline returns a pipeline collating strings for lang.
func NewPipeline(lang language.Tag) *Pipeline {
	return &Pipeline{lang: lang}
}

// Run returns a fresh ordered slice; products is never modified.
func (p *Pipeline) Run(products []catalog.Product, params Params) []catalog.Product {
	out := FilterCategory(products, params.Category)
	out = Search(out, params.Term)
	p.sort(out, params.Sort)
	return out
}

// FilterCategory keeps exact category matches. The sentinel and the empty
// string pass everything through.
func FilterCategory(products []catalog.Product, category string) []catalog.Product {
	out := make([]catalog.Product, 0, len(products))
	for _, prod := range products {
		if category == "" || category == catalog.AllCategories || prod.Category == category {
			out = append(out, prod)
		}
	}
	return out
}

// Search keeps products whose model, category or space-joined parameters
// contain term, ignoring case.
func Search(products []catalog.Product, term string) []catalog.Product {
	if term == "" {
		return slices.Clone(products)
	}
	needle := strings.ToLower(term)
	out := make([]catalog.Product, 0, len(products))
	for _, prod := range products {
		if strings.Contains(strings.ToLower(prod.Model), needle) ||
			strings.Contains(strings.ToLower(prod.Category), needle) ||
			strings.Contains(strings.ToLower(strings.Join(prod.Parameters, " ")), needle) {
			out = append(out, prod)
		}
	}
	return out
}

func (p *Pipeline) sort(products []catalog.Product, cfg SortConfig) {
	if cfg.Key == SortNone {
		return
	}
	// Collator is not safe for concurrent use, so each run builds its own.
	col := collate.New(p.lang)
	compare := func(a, b catalog.Product) int {
		switch cfg.Key {
		case SortModel:
			return col.CompareString(a.Model, b.Model)
		case SortCategory:
			return col.CompareString(a.Category, b.Category)
		case SortPrice:
			return a.Price.Cmp(b.Price)
		case SortStock:
			return cmp.Compare(a.StockQuantity, b.StockQuantity)
		}
		return 0
	}
	if cfg.Direction == Desc {
		slices.SortStableFunc(products, func(a, b catalog.Product) int { return compare(b, a) })
		return
	}
	slices.SortStableFunc(products, compare)
}
