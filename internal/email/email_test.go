package email

import (
	"errors"
	"net/smtp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/draft"
	"github.com/example/pricelist/internal/domain/order"
)

func testOrder() order.Order {
	return order.Order{
		ID:           "1714557600000-Trave",
		CustomerInfo: order.CustomerInfo{ShopName: "Travel <World>", CustomerName: "Anna", Phone: "+7 900", Address: "Moscow"},
		Items: []draft.LineItem{{
			Product:   catalog.Product{ID: "TFB-N137", Model: "TFB-N137", Price: decimal.NewFromInt(2010)},
			Quantity:  2,
			LineTotal: decimal.NewFromInt(4020),
		}},
		GrandTotal: decimal.NewFromInt(4020),
	}
}

// ============================================
// Template Tests
// ============================================

func TestBuildNewOrderBody(t *testing.T) {
	body := BuildNewOrderBody(testOrder())

	assert.Contains(t, body, "1714557600000-Trave")
	assert.Contains(t, body, "TFB-N137")
	assert.Contains(t, body, "Travel &lt;World&gt;")
	assert.NotContains(t, body, "<World>")
	assert.Contains(t, body, "020,00")
}

func TestBuildNewOrderBody_Thumbnails(t *testing.T) {
	o := testOrder()
	assert.NotContains(t, BuildNewOrderBody(o), "<img")

	o.Items[0].Product.Images = []string{"https://picsum.photos/seed/a&b/400/400", "https://example.com/second.png"}
	body := BuildNewOrderBody(o)

	assert.Contains(t, body, `<img src="https://picsum.photos/seed/a&amp;b/400/400"`)
	assert.NotContains(t, body, "second.png")
}

func TestBuildOrderDeletedBody(t *testing.T) {
	body := BuildOrderDeletedBody(order.OrderDeleted{
		OrderID:    "1-Shop",
		ShopName:   "Shop",
		GrandTotal: decimal.NewFromInt(10),
		Restored:   map[string]int{"B": 2, "A": 1},
	})

	assert.Contains(t, body, "<li>A: +1</li><li>B: +2</li>")
}

func TestFormatMoney(t *testing.T) {
	got := formatMoney(decimal.RequireFromString("1234.5"))

	assert.Contains(t, got, "234,50")
	assert.Contains(t, got, "₸")
}

// ============================================
// Service Tests
// ============================================

func TestService_SendNewOrder(t *testing.T) {
	var gotAddr string
	var gotTo []string
	var gotMsg string
	svc := NewService("smtp.local", "1025", "noreply@example.com", "", "").WithSender(
		func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotTo, gotMsg = addr, to, string(msg)
			assert.Nil(t, a)
			return nil
		})

	err := svc.SendNewOrder("sales@example.com", testOrder())

	require.NoError(t, err)
	assert.Equal(t, "smtp.local:1025", gotAddr)
	assert.Equal(t, []string{"sales@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: =?utf-8?q?")
	assert.Contains(t, gotMsg, "Content-Type: text/html; charset=UTF-8")
}

func TestService_SendError(t *testing.T) {
	svc := NewService("smtp.local", "25", "noreply@example.com", "user", "secret").WithSender(
		func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			assert.NotNil(t, a)
			return errors.New("550 mailbox unavailable")
		})

	err := svc.SendOrderDeleted("sales@example.com", order.OrderDeleted{OrderID: "1-Shop"})

	assert.ErrorContains(t, err, "550")
}
