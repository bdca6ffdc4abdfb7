package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/pricelist/internal/domain/order"
)

// Mailer sends ledger notifications.
type Mailer interface {
	SendNewOrder(to string, o order.Order) error
	SendOrderDeleted(to string, e order.OrderDeleted) error
}

// Handler processes ledger events for sending notifications
type Handler struct {
	mailer Mailer
	inbox  string
}

// NewHandler creates a handler that mails inbox about every new and
// deleted order.
func NewHandler(mailer Mailer, inbox string) *Handler {
	return &Handler{
		mailer: mailer,
		inbox:  inbox,
	}
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	switch event.EventType {
	case order.EventOrderCommitted:
		return h.handleOrderCommitted(event)
	case order.EventOrderDeleted:
		return h.handleOrderDeleted(event)
	}
	return nil
}

func (h *Handler) handleOrderCommitted(event order.Event) error {
	var e order.OrderCommitted
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderCommitted event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderCommitted event for order %s, shop %s", e.Order.ID, e.Order.CustomerInfo.ShopName)

	if err := h.mailer.SendNewOrder(h.inbox, e.Order); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", h.inbox, err)
		return err
	}

	log.Printf("[Notifier] New order email sent to %s for order %s", h.inbox, e.Order.ID)
	return nil
}

func (h *Handler) handleOrderDeleted(event order.Event) error {
	var e order.OrderDeleted
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderDeleted event: %v", err)
		return err
	}

	if err := h.mailer.SendOrderDeleted(h.inbox, e); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", h.inbox, err)
		return err
	}

	log.Printf("[Notifier] Order deleted email sent to %s for order %s", h.inbox, e.OrderID)
	return nil
}
