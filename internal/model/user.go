package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User stores accounts with role-based access.
// Role: "shopper" | "moderator" | "admin"
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null;default:'shopper'"`
	// Profile extras
	PhoneNumber *string
	BudgetLimit *decimal.Decimal `gorm:"type:decimal(10,2)"`
	Active      bool             `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsModerator reports whether the user may approve/reject submissions.
func (u User) IsModerator() bool {
	return u.Role == "moderator" || u.Role == "admin"
}
