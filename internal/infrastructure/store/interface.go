package store

import (
	"context"
	"errors"
)

// Keys of the persisted blobs.
const (
	KeyProducts = "products"
	KeyOrders   = "orders"
	KeyDraft    = "draft"
)

var ErrEmptyKey = errors.New("store: key is required")

// StateStore is a string-keyed blob store. Get reports found=false for a
// missing key rather than an error.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}
