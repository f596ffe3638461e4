package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product is the master record a receipt item or price observation links to.
// NormalizedName is the canonical matching key: lower-cased with whitespace
// collapsed to single spaces.
type Product struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string    `gorm:"not null"`
	NormalizedName string    `gorm:"index;not null"`
	CategoryID     *uuid.UUID `gorm:"type:uuid;index"`
	Brand          string
	Unit           string // e.g. "kg", "lbs", "each"
	Barcode        *string `gorm:"uniqueIndex"`
	Description    *string
	Moderation
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
}

func (Product) TableName() string { return "products" }

// NormalizeName canonicalizes a product or receipt-item name for matching:
// lower-case, leading/trailing whitespace stripped, internal runs collapsed.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
