package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store represents a retail store or supermarket where prices are observed.
// Coordinates are optional but must come as a pair; range validation is
// enforced by the service before any write.
type Store struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Location  string    `gorm:"not null"`
	Address   *string
	Latitude  *decimal.Decimal `gorm:"type:decimal(9,6)"`
	Longitude *decimal.Decimal `gorm:"type:decimal(9,6)"`
	Moderation
	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreferredStore links a user to a store they shop at.
// Set semantics: the (user, store) pair is unique; re-adding is a no-op.
type PreferredStore struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_store"`
	StoreID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_store"`
	AddedAt time.Time `gorm:"autoCreateTime"`

	Store Store `gorm:"foreignKey:StoreID"`
}

func (PreferredStore) TableName() string { return "preferred_stores" }
