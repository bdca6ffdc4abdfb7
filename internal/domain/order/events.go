package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCommitted      = "OrderCommitted"
	EventOrderProcessed      = "OrderProcessed"
	EventOrderPaymentChanged = "OrderPaymentChanged"
	EventOrderDeleted        = "OrderDeleted"
)

// Event is the envelope published after every ledger change.
type Event struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(orderID, eventType string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		EventType: eventType,
		Data:      raw,
		Timestamp: time.Now(),
	}, nil
}

type OrderCommitted struct {
	Order Order `json:"order"`
}

type OrderProcessed struct {
	OrderID     string    `json:"order_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

type OrderPaymentChanged struct {
	OrderID       string        `json:"order_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	ChangedAt     time.Time     `json:"changed_at"`
}

type OrderDeleted struct {
	OrderID    string          `json:"order_id"`
	ShopName   string          `json:"shop_name"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Restored   map[string]int  `json:"restored"`
	DeletedAt  time.Time       `json:"deleted_at"`
}

// RestoredQuantities sums line quantities per product id.
func (o *Order) RestoredQuantities() map[string]int {
	out := make(map[string]int)
	for _, li := range o.Items {
		out[li.Product.ID] += li.Quantity
	}
	return out
}

// Type reports the event type for transport headers.
func (e Event) Type() string {
	return e.EventType
}
