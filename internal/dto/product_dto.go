package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateProductRequest struct {
	Name        string     `json:"name"     validate:"required,min=2,max=255"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Brand       string     `json:"brand"    validate:"max=255"`
	Unit        string     `json:"unit"     validate:"max=50"`
	Barcode     *string    `json:"barcode"  validate:"omitempty,min=8,max=100"`
	Description *string    `json:"description"`
}

type UpdateProductRequest struct {
	Name        *string    `json:"name"    validate:"omitempty,min=2,max=255"`
	CategoryID  *uuid.UUID `json:"category_id"`
	Brand       *string    `json:"brand"   validate:"omitempty,max=255"`
	Unit        *string    `json:"unit"    validate:"omitempty,max=50"`
	Barcode     *string    `json:"barcode" validate:"omitempty,min=8,max=100"`
	Description *string    `json:"description"`
}

// SearchProductsRequest carries all query parameters explicitly —
// the core holds no session or filter state between calls.
type SearchProductsRequest struct {
	Query      string     `json:"query" validate:"required,min=1,max=255"`
	CategoryID *uuid.UUID `json:"category_id"`
	StoreID    *uuid.UUID `json:"store_id"`
}

type CompareMultipleRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1,max=50"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	NormalizedName string          `json:"normalized_name"`
	CategoryID     *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName   *string         `json:"category_name,omitempty"`
	Brand          string          `json:"brand,omitempty"`
	Unit           string          `json:"unit,omitempty"`
	Barcode        *string         `json:"barcode,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Status         string          `json:"status"`
	Active         bool            `json:"active"`
	CurrentPrices  []PriceResponse `json:"current_prices,omitempty"`
	LowestPrice    *LowestPrice    `json:"lowest_price,omitempty"`
}

// ProductSummary is the search-result shape: no derived price data beyond
// the cheapest current offer.
type ProductSummary struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	NormalizedName string       `json:"normalized_name"`
	Brand          string       `json:"brand,omitempty"`
	Unit           string       `json:"unit,omitempty"`
	CategoryName   *string      `json:"category_name,omitempty"`
	Status         string       `json:"status"`
	LowestPrice    *LowestPrice `json:"lowest_price,omitempty"`
}

// LowestPrice is the cheapest approved active offer for a product.
type LowestPrice struct {
	Price     decimal.Decimal `json:"price"`
	Store     string          `json:"store"`
	StoreID   uuid.UUID       `json:"store_id"`
}
