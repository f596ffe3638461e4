package model

import (
	"time"

	"github.com/google/uuid"
)

// Category is a node in the product category tree. The parent graph must
// remain a forest — no category may be its own ancestor. Cycle prevention
// is enforced at write time by the service (see CategoryService.Reparent).
type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string    `gorm:"uniqueIndex;not null"`
	Description *string
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
	Moderation
	CreatedAt time.Time
	UpdatedAt time.Time

	// Subcategories is a derived view (children with ParentID = self.ID),
	// not a separate ownership relation.
	Subcategories []Category `gorm:"foreignKey:ParentID"`
}

func (Category) TableName() string { return "categories" }
