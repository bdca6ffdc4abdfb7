package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pricelist/internal/domain"
)

func newTestProduct(id string, stock int) Product {
	return Product{
		ID:            id,
		Model:         id,
		Category:      "Cable",
		Images:        []string{"https://picsum.photos/seed/" + id + "/400/400"},
		Color:         "White",
		Price:         decimal.NewFromInt(132),
		Parameters:    []string{"1.2m Fast Charge", "Lightning/Micro/Type-C"},
		CartonInfo:    "Small Box:49*37*24.5 100PCS",
		StockQuantity: stock,
	}
}

func newTestCatalog() *Catalog {
	return New([]Product{
		newTestProduct("TC-41S", 10),
		newTestProduct("TC-300M", 3000),
	})
}

// ============================================
// Load Tests
// ============================================

func TestNew_KeepsRecordsThatFailEditValidation(t *testing.T) {
	c := New([]Product{
		{ID: "A", Images: []string{"data:image/png;base64,AAAA"}, Price: decimal.NewFromInt(5), StockQuantity: -4},
		{ID: "B", Model: "B", Price: decimal.NewFromInt(7), StockQuantity: 2},
		{Model: " C ", Price: decimal.NewFromInt(1)},
	})

	assert.Equal(t, []string{"A", "B", "C"}, ids(c.List()))
	a, ok := c.Get("A")
	require.True(t, ok)
	assert.Equal(t, "A", a.Model)
	assert.Equal(t, 0, a.StockQuantity)
	assert.Equal(t, []string{"data:image/png;base64,AAAA"}, a.Images)
	assert.Equal(t, uint64(0), c.Version())
}

func TestNew_SkipsRecordsWithoutIdentity(t *testing.T) {
	c := New([]Product{{Category: "Cable"}, {ID: "B"}})

	assert.Equal(t, []string{"B"}, ids(c.List()))
}

func TestNew_EditsStillValidated(t *testing.T) {
	c := New([]Product{{ID: "A", Images: []string{"data:image/png;base64,AAAA"}}})

	_, err := c.Upsert(Product{ID: "A", Images: []string{"data:image/png;base64,AAAA"}})

	assert.True(t, domain.IsValidationError(err))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func ids(products []Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

// ============================================
// Upsert Tests
// ============================================

func TestCatalog_Upsert_Insert(t *testing.T) {
	c := newTestCatalog()

	p, err := c.Upsert(newTestProduct("TC-2081C", 500))

	require.NoError(t, err)
	assert.Equal(t, "TC-2081C", p.ID)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, uint64(1), c.Version())

	list := c.List()
	assert.Equal(t, "TC-2081C", list[2].ID)
}

func TestCatalog_Upsert_ReplacesWholesale(t *testing.T) {
	c := newTestCatalog()

	replacement := Product{ID: "TC-41S", Model: "TC-41S", Category: "Accessories", Price: decimal.NewFromInt(99), StockQuantity: 4}
	_, err := c.Upsert(replacement)

	require.NoError(t, err)
	got, ok := c.Get("TC-41S")
	require.True(t, ok)
	assert.Equal(t, "Accessories", got.Category)
	assert.Empty(t, got.Images)
	assert.Empty(t, got.Parameters)
	assert.Equal(t, 4, got.StockQuantity)
	assert.Equal(t, "TC-41S", c.List()[0].ID, "replacement keeps catalog position")
}

func TestCatalog_Upsert_NegativeStockFloored(t *testing.T) {
	c := newTestCatalog()

	p, err := c.Upsert(newTestProduct("TW-S09", -7))

	require.NoError(t, err)
	assert.Equal(t, 0, p.StockQuantity)
}

func TestCatalog_Upsert_IDFromModel(t *testing.T) {
	c := newTestCatalog()

	p := newTestProduct("", 1)
	p.Model = "TCB-812"
	got, err := c.Upsert(p)

	require.NoError(t, err)
	assert.Equal(t, "TCB-812", got.ID)
	assert.True(t, c.Has("TCB-812"))
}

func TestCatalog_Upsert_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(p *Product)
		field string
	}{
		{"missing id and model", func(p *Product) { p.ID = ""; p.Model = "" }, "id"},
		{"negative price", func(p *Product) { p.Price = decimal.NewFromInt(-1) }, "price"},
		{"malformed image url", func(p *Product) { p.Images = []string{"not a url"} }, "images[0]"},
		{"non-http image url", func(p *Product) { p.Images = []string{"ftp://example.com/a.png"} }, "images[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCatalog()
			p := newTestProduct("NEW-1", 5)
			tt.edit(&p)

			_, err := c.Upsert(p)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, 2, c.Len())
			assert.Equal(t, uint64(0), c.Version())
		})
	}
}

func TestCatalog_Get_ReturnsCopy(t *testing.T) {
	c := newTestCatalog()

	p, _ := c.Get("TC-41S")
	p.Parameters[0] = "mutated"
	p.Images = append(p.Images, "https://example.com/x.png")

	again, _ := c.Get("TC-41S")
	assert.Equal(t, "1.2m Fast Charge", again.Parameters[0])
	assert.Len(t, again.Images, 1)
}

// ============================================
// Remove Tests
// ============================================

func TestCatalog_Remove(t *testing.T) {
	c := newTestCatalog()

	assert.True(t, c.Remove("TC-41S"))
	assert.False(t, c.Has("TC-41S"))
	assert.Equal(t, 1, c.Len())
}

func TestCatalog_Remove_Idempotent(t *testing.T) {
	c := newTestCatalog()

	assert.False(t, c.Remove("missing"))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(0), c.Version())
}

// ============================================
// AdjustField Tests
// ============================================

func TestCatalog_AdjustField_Price(t *testing.T) {
	c := newTestCatalog()

	err := c.AdjustField("TC-41S", FieldPrice, decimal.RequireFromString("150.50"))

	require.NoError(t, err)
	p, _ := c.Get("TC-41S")
	assert.True(t, decimal.RequireFromString("150.5").Equal(p.Price))
}

func TestCatalog_AdjustField_NegativePriceRejected(t *testing.T) {
	c := newTestCatalog()

	err := c.AdjustField("TC-41S", FieldPrice, decimal.NewFromInt(-5))

	assert.True(t, domain.IsValidationError(err))
	assert.ErrorIs(t, err, ErrInvalidPrice)
	p, _ := c.Get("TC-41S")
	assert.True(t, decimal.NewFromInt(132).Equal(p.Price))
	assert.Equal(t, uint64(0), c.Version())
}

func TestCatalog_AdjustField_Stock(t *testing.T) {
	tests := []struct {
		name    string
		value   decimal.Decimal
		wantErr bool
		want    int
	}{
		{"zero", decimal.Zero, false, 0},
		{"positive integer", decimal.NewFromInt(42), false, 42},
		{"negative", decimal.NewFromInt(-1), true, 10},
		{"fractional", decimal.RequireFromString("2.5"), true, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCatalog()

			err := c.AdjustField("TC-41S", FieldStock, tt.value)

			if tt.wantErr {
				assert.True(t, domain.IsValidationError(err))
			} else {
				require.NoError(t, err)
			}
			p, _ := c.Get("TC-41S")
			assert.Equal(t, tt.want, p.StockQuantity)
		})
	}
}

func TestCatalog_AdjustField_UnknownProduct(t *testing.T) {
	c := newTestCatalog()

	err := c.AdjustField("missing", FieldPrice, decimal.NewFromInt(1))

	assert.True(t, domain.IsNotFoundError(err))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("stockQuantity")
	require.NoError(t, err)
	assert.Equal(t, FieldStock, f)

	_, err = ParseField("color")
	assert.True(t, domain.IsValidationError(err))
}

// ============================================
// Stock Movement Tests
// ============================================

func TestCatalog_DecrementStock_FloorsAtZero(t *testing.T) {
	c := newTestCatalog()

	require.NoError(t, c.DecrementStock("TC-41S", 15))

	p, _ := c.Get("TC-41S")
	assert.Equal(t, 0, p.StockQuantity)
}

func TestCatalog_DecrementStock_Partial(t *testing.T) {
	c := newTestCatalog()

	require.NoError(t, c.DecrementStock("TC-300M", 1000))

	p, _ := c.Get("TC-300M")
	assert.Equal(t, 2000, p.StockQuantity)
}

func TestCatalog_RestoreStock_Uncapped(t *testing.T) {
	c := newTestCatalog()

	require.NoError(t, c.RestoreStock("TC-41S", 1_000_000))

	p, _ := c.Get("TC-41S")
	assert.Equal(t, 1_000_010, p.StockQuantity)
}

func TestCatalog_StockNeverNegative(t *testing.T) {
	c := newTestCatalog()
	ops := []func(){
		func() { _ = c.DecrementStock("TC-41S", 3) },
		func() { _ = c.DecrementStock("TC-41S", 100) },
		func() { _ = c.RestoreStock("TC-41S", 2) },
		func() { _ = c.AdjustField("TC-41S", FieldStock, decimal.NewFromInt(-4)) },
		func() { _ = c.DecrementStock("TC-41S", 5) },
		func() { _ = c.RestoreStock("TC-41S", -9) },
	}

	for _, op := range ops {
		op()
		for _, p := range c.List() {
			assert.GreaterOrEqual(t, p.StockQuantity, 0)
		}
	}
}

func TestCatalog_StockMovement_UnknownProduct(t *testing.T) {
	c := newTestCatalog()

	assert.True(t, domain.IsNotFoundError(c.DecrementStock("missing", 1)))
	assert.True(t, domain.IsNotFoundError(c.RestoreStock("missing", 1)))
}

// ============================================
// Image Tests
// ============================================

func TestCatalog_AddImage(t *testing.T) {
	c := newTestCatalog()

	require.NoError(t, c.AddImage("TC-41S", "https://picsum.photos/seed/extra/400/400"))
	assert.True(t, domain.IsValidationError(c.AddImage("TC-41S", "picsum/photo.png")))

	p, _ := c.Get("TC-41S")
	assert.Len(t, p.Images, 2)
}

func TestCatalog_RemoveImage(t *testing.T) {
	c := newTestCatalog()

	assert.True(t, domain.IsValidationError(c.RemoveImage("TC-41S", 3)))
	require.NoError(t, c.RemoveImage("TC-41S", 0))

	p, _ := c.Get("TC-41S")
	assert.Empty(t, p.Images)
	assert.Equal(t, "", p.Thumbnail())
}

// ============================================
// Derived View Tests
// ============================================

func TestCatalog_Categories(t *testing.T) {
	c := New([]Product{
		{ID: "A", Category: "Tripod"},
		{ID: "B", Category: "Cable"},
		{ID: "C", Category: "Tripod"},
	})

	assert.Equal(t, []string{AllCategories, "Cable", "Tripod"}, c.Categories())
}

func TestCatalog_LowStock(t *testing.T) {
	c := New([]Product{
		{ID: "A", StockQuantity: 0},
		{ID: "B", StockQuantity: 10},
		{ID: "C", StockQuantity: 11},
		{ID: "D", StockQuantity: 1},
	})

	low := c.LowStock(DefaultLowStockThreshold)

	require.Len(t, low, 2)
	assert.Equal(t, "B", low[0].ID)
	assert.Equal(t, "D", low[1].ID)
}

func TestCatalog_CategoryCounts(t *testing.T) {
	c := New([]Product{
		{ID: "A", Category: "Cable"},
		{ID: "B", Category: "Tripod"},
		{ID: "C", Category: "Tripod"},
		{ID: "D", Category: "Charger"},
	})

	assert.Equal(t, []CategoryCount{
		{Category: "Tripod", Count: 2},
		{Category: "Cable", Count: 1},
		{Category: "Charger", Count: 1},
	}, c.CategoryCounts())
}

// ============================================
// JSON Tests
// ============================================

func TestProduct_UnmarshalJSON_CoercesStock(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{`12`, 12},
		{`"12"`, 12},
		{`"  7 "`, 7},
		{`12.9`, 12},
		{`-3`, 0},
		{`"abc"`, 0},
		{`null`, 0},
		{`true`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var p Product
			err := json.Unmarshal([]byte(`{"id":"X","model":"X","price":10,"stockQuantity":`+tt.raw+`}`), &p)

			require.NoError(t, err)
			assert.Equal(t, tt.want, p.StockQuantity)
			assert.True(t, decimal.NewFromInt(10).Equal(p.Price))
		})
	}
}

func TestSeed(t *testing.T) {
	products := Seed()

	require.NotEmpty(t, products)
	c := New(products)
	assert.Equal(t, len(products), c.Len())

	cable, ok := c.FindByModel("TC-41S")
	require.True(t, ok)
	assert.Equal(t, "Cable", cable.Category)
}
