// internal/service/fulfillment/infrastructure/models.go
package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// Database models. Kept separate from the domain types; mapper.go translates
// in both directions.

type OrderModel struct {
	ID           uint64 `gorm:"primaryKey"`
	OrderRef     string `gorm:"column:order_ref;uniqueIndex;size:64"`
	CustomerID   string `gorm:"size:64;index"`
	CustomerName string `gorm:"size:255"`
	ProductSKU   string `gorm:"column:product_sku;size:64;index"`
	ProductName  string `gorm:"size:255"`
	Quantity     int
	UnitPrice    decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency     string          `gorm:"size:8"`
	TotalAmount  decimal.Decimal `gorm:"type:decimal(10,2)"`
	Status       string          `gorm:"size:32;index"`
	OrderDate    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (OrderModel) TableName() string { return "orders" }

type ProductModel struct {
	ID            uint64          `gorm:"primaryKey"`
	SKU           string          `gorm:"column:sku;uniqueIndex;size:64"`
	Name          string          `gorm:"size:255"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2)"`
	StockQuantity int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ProductModel) TableName() string { return "products" }

type StockReservationModel struct {
	ID         uint64 `gorm:"primaryKey"`
	OrderID    uint64 `gorm:"index:idx_reservation_order_sku,unique"`
	ProductSKU string `gorm:"column:product_sku;size:64;index:idx_reservation_order_sku,unique"`
	Quantity   int
	Status     string `gorm:"size:32;index"`
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (StockReservationModel) TableName() string { return "stock_reservations" }

type PaymentModel struct {
	ID            uint64          `gorm:"primaryKey"`
	OrderID       uint64          `gorm:"index"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2)"`
	Currency      string          `gorm:"size:8"`
	Status        string          `gorm:"size:32"`
	TransactionID string          `gorm:"size:64"`
	ErrorMessage  string          `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PaymentModel) TableName() string { return "payments" }

type RefundModel struct {
	ID             uint64          `gorm:"primaryKey"`
	RefundRef      string          `gorm:"column:refund_ref;uniqueIndex;size:96"`
	OrderID        uint64          `gorm:"index"`
	OrderReference string          `gorm:"size:64;index"`
	CustomerID     string          `gorm:"size:64;index"`
	RefundType     string          `gorm:"size:16"`
	RefundAmount   decimal.Decimal `gorm:"type:decimal(10,2)"`
	OriginalAmount decimal.Decimal `gorm:"type:decimal(10,2)"`
	Reason         string          `gorm:"size:255"`
	Description    string          `gorm:"type:text"`
	Status         string          `gorm:"size:32;index"`
	TransactionID  string          `gorm:"size:64"`
	ErrorMessage   string          `gorm:"type:text"`
	Metadata       string          `gorm:"type:text"`
	RequestedAt    time.Time
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (RefundModel) TableName() string { return "refunds" }

type NotificationModel struct {
	ID             uint64 `gorm:"primaryKey"`
	OrderID        uint64 `gorm:"index"`
	OrderReference string `gorm:"size:64"`
	CustomerID     string `gorm:"size:64"`
	Kind           string `gorm:"size:16"`
	Channel        string `gorm:"size:32"`
	Recipient      string `gorm:"size:255"`
	Message        string `gorm:"type:text"`
	Status         string `gorm:"size:32"`
	ErrorMessage   string `gorm:"type:text"`
	SentAt         *time.Time
	CreatedAt      time.Time
}

func (NotificationModel) TableName() string { return "notifications" }
