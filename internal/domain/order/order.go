// Package order keeps the ledger of committed orders and coordinates stock
// movement with the catalog on commit and delete.
package order

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/example/pricelist/internal/domain"
	"github.com/example/pricelist/internal/domain/draft"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusProcessed Status = "processed"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

var (
	ErrEmptyOrder          = errors.New("order must have at least one item")
	ErrInvalidStatus       = errors.New("invalid order status transition")
	ErrUnknownStatus       = errors.New("unknown order status")
	ErrUnknownPayment      = errors.New("unknown payment status")
	ErrTotalMismatch       = errors.New("grand total does not match line totals")
	ErrMissingCustomerInfo = errors.New("is required")
)

// validTransitions defines allowed processing transitions. Payment is a
// separate axis and toggles freely.
var validTransitions = map[Status][]Status{
	StatusNew:       {StatusProcessed},
	StatusProcessed: {}, // terminal state
}

// ParseStatus maps the wire name of a processing status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusProcessed:
		return Status(s), nil
	}
	return "", domain.NewRuleError("status", ErrUnknownStatus, s)
}

// ParsePaymentStatus maps the wire name of a payment status.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentUnpaid, PaymentPaid:
		return PaymentStatus(s), nil
	}
	return "", domain.NewRuleError("paymentStatus", ErrUnknownPayment, s)
}

// CustomerInfo identifies who placed the order. Every field is required.
type CustomerInfo struct {
	ShopName     string `json:"shopName" validate:"required"`
	CustomerName string `json:"customerName" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Address      string `json:"address" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// Normalize trims every field and reports the first one left empty.
func (c CustomerInfo) Normalize() (CustomerInfo, error) {
	c.ShopName = strings.TrimSpace(c.ShopName)
	c.CustomerName = strings.TrimSpace(c.CustomerName)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return c, &domain.ValidationError{
				Field:  "customerInfo." + verrs[0].Field(),
				Reason: ErrMissingCustomerInfo.Error(),
				Value:  verrs[0].Value(),
				Err:    ErrMissingCustomerInfo,
			}
		}
		return c, err
	}
	return c, nil
}

// Order is a committed ledger entry. Items are snapshots and GrandTotal is
// frozen at commit.
type Order struct {
	ID            string           `json:"id"`
	Date          time.Time        `json:"date"`
	CustomerInfo  CustomerInfo     `json:"customerInfo"`
	Items         []draft.LineItem `json:"items"`
	GrandTotal    decimal.Decimal  `json:"grandTotal"`
	Status        Status           `json:"status"`
	PaymentStatus PaymentStatus    `json:"paymentStatus"`
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target Status) bool {
	for _, s := range validTransitions[o.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// TotalItems sums the line quantities.
func (o *Order) TotalItems() int {
	n := 0
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}

// Clone deep-copies the order, including every product snapshot.
func (o Order) Clone() Order {
	items := make([]draft.LineItem, len(o.Items))
	for i, li := range o.Items {
		items[i] = li.Clone()
	}
	o.Items = items
	return o
}

// withDefaults fills statuses missing from older persisted entries.
func (o Order) withDefaults() Order {
	if o.Status == "" {
		o.Status = StatusNew
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentUnpaid
	}
	return o
}

func sumLines(items []draft.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.LineTotal)
	}
	return total
}

func newID(at time.Time, shopName string) string {
	prefix := []rune(shopName)
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}
	return fmt.Sprintf("%d-%s", at.UnixMilli(), string(prefix))
}
