package catalog

import (
	"cmp"
	"slices"
)

// AllCategories is the category filter sentinel that disables filtering.
const AllCategories = "Все категории"

// DefaultLowStockThreshold is the stock level at or below which an in-stock
// product is reported as running low.
const DefaultLowStockThreshold = 10

// CategoryCount is the number of products carried in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Categories returns the filter choices: the sentinel followed by every
// distinct category in sorted order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var cats []string
	for _, id := range c.ids {
		cat := c.products[id].Category
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		cats = append(cats, cat)
	}
	slices.Sort(cats)
	return append([]string{AllCategories}, cats...)
}

// LowStock returns in-stock products whose quantity is at or below threshold.
func (c *Catalog) LowStock(threshold int) []Product {
	var out []Product
	for _, id := range c.ids {
		p := c.products[id]
		if p.StockQuantity > 0 && p.StockQuantity <= threshold {
			out = append(out, p.Clone())
		}
	}
	return out
}

// CategoryCounts tallies products per category, largest first.
func (c *Catalog) CategoryCounts() []CategoryCount {
	counts := make(map[string]int)
	for _, id := range c.ids {
		counts[c.products[id].Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for cat, n := range counts {
		out = append(out, CategoryCount{Category: cat, Count: n})
	}
	slices.SortFunc(out, func(a, b CategoryCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Category, b.Category)
	})
	return out
}
