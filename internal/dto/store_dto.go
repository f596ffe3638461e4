package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ── Request DTOs ──────────────────────────────────────────────────────────────

type CreateStoreRequest struct {
	Name      string           `json:"name"     validate:"required,min=2,max=255"`
	Location  string           `json:"location" validate:"required,max=255"`
	Address   *string          `json:"address"`
	Latitude  *decimal.Decimal `json:"latitude"`
	Longitude *decimal.Decimal `json:"longitude"`
}

type UpdateStoreRequest struct {
	Name      *string          `json:"name"     validate:"omitempty,min=2,max=255"`
	Location  *string          `json:"location" validate:"omitempty,max=255"`
	Address   *string          `json:"address"`
	Latitude  *decimal.Decimal `json:"latitude"`
	Longitude *decimal.Decimal `json:"longitude"`
}

// ── Filter ────────────────────────────────────────────────────────────────────

type StoreFilter struct {
	// Status narrows the moderation status for moderators / submitters;
	// non-moderators only ever see approved stores plus their own.
	Status string `form:"status" validate:"omitempty,oneof=pending approved rejected"`
	Name   string `form:"name"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ── Response DTOs ─────────────────────────────────────────────────────────────

type StoreResponse struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Location  string           `json:"location"`
	Address   *string          `json:"address,omitempty"`
	Latitude  *decimal.Decimal `json:"latitude,omitempty"`
	Longitude *decimal.Decimal `json:"longitude,omitempty"`
	Status    string           `json:"status"`
	Active    bool             `json:"active"`
}

type StoreListResponse struct {
	Data       []StoreResponse `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}
