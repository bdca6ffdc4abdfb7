package engine

import (
	"github.com/example/pricelist/internal/domain/catalog"
	"github.com/example/pricelist/internal/domain/order"
)

// Capability carries what the caller has been authorized to do.
type Capability struct {
	CanEditCatalog bool
}

// Admin is the capability of an authenticated operator.
var Admin = Capability{CanEditCatalog: true}

// Catalog Commands
type EditProduct struct {
	Product catalog.Product `json:"product"`
}

type InlineEdit struct {
	ProductID string `json:"product_id"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

type AddImage struct {
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
}

type RemoveImage struct {
	ProductID string `json:"product_id"`
	Index     int    `json:"index"`
}

// Draft Commands
type SetDraftQuantity struct {
	Model    string `json:"model"`
	Quantity int    `json:"quantity"`
}

// Order Commands
type PlaceOrder struct {
	CustomerInfo order.CustomerInfo `json:"customerInfo"`
}

type SetPayment struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}
