package catalog

import (
	_ "embed"
	"encoding/json"
	"log"
)

//go:embed seed.json
var seedJSON []byte

// Seed returns the built-in price list used when no persisted catalog exists.
func Seed() []Product {
	var products []Product
	if err := json.Unmarshal(seedJSON, &products); err != nil {
		log.Printf("[Catalog] embedded seed is unreadable: %v", err)
		return nil
	}
	return products
}
