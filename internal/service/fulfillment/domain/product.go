// internal/service/fulfillment/domain/product.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the per-SKU inventory record. StockQuantity must never go
// negative; every mutation happens under a row lock scoped to the SKU.
type Product struct {
	ID            uint64
	SKU           string // unique
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
