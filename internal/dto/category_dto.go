package dto

import "github.com/google/uuid"

// ── Request DTOs ──────────────────────────────────────────────────────────────

type CreateCategoryRequest struct {
	Name        string     `json:"name" validate:"required,min=2,max=100"`
	Description *string    `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description"`
}

// ReparentCategoryRequest moves a category under a new parent.
// A nil parent makes it a root category.
type ReparentCategoryRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type CategoryResponse struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	Description   *string            `json:"description,omitempty"`
	ParentID      *uuid.UUID         `json:"parent_id,omitempty"`
	Status        string             `json:"status"`
	Subcategories []CategoryResponse `json:"subcategories,omitempty"`
}
