package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price sources (free-text provenance tag).
const (
	PriceSourceManual = "manual"
	PriceSourceScan   = "scan"
	PriceSourceImport = "import"
)

// Price is one observation of a product's price at a store on a date.
// Multiple rows may exist per (product, store) pair across time; only
// is_active rows participate in "current price" computations, and only
// approved rows are visible to comparison queries. Rows referenced by
// receipt items are never hard-deleted — is_active=false is the
// soft-delete path.
type Price struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_prices_product_store"`
	StoreID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_prices_product_store"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	DateRecorded time.Time       `gorm:"type:date;not null"`
	IsActive     bool            `gorm:"not null;default:true;index"`
	Source       string          `gorm:"type:varchar(50);not null;default:'manual'"`
	Moderation
	CreatedAt time.Time

	Product Product `gorm:"foreignKey:ProductID"`
	Store   Store   `gorm:"foreignKey:StoreID"`
}

func (Price) TableName() string { return "prices" }
