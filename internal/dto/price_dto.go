package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AddPriceRequest struct {
	ProductID uuid.UUID        `json:"product_id" validate:"required"`
	StoreID   uuid.UUID        `json:"store_id"   validate:"required"`
	Price     decimal.Decimal  `json:"price"      validate:"min=0"`
	// DateRecorded defaults to today when omitted. Format: 2006-01-02.
	DateRecorded *string `json:"date_recorded" validate:"omitempty,datetime=2006-01-02"`
	Source       string  `json:"source"        validate:"omitempty,max=50"`
}

type PriceFilter struct {
	StoreID *uuid.UUID `form:"store_id"`
	Page    int        `form:"page,default=1"   validate:"min=1"`
	Limit   int        `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type PriceResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	StoreID      uuid.UUID       `json:"store_id"`
	StoreName    string          `json:"store_name,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DateRecorded string          `json:"date_recorded"`
	IsActive     bool            `json:"is_active"`
	Source       string          `json:"source"`
	Status       string          `json:"status"`
}

type PriceListResponse struct {
	Data       []PriceResponse `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// ComparisonEntry is one store's current offer inside a comparison.
type ComparisonEntry struct {
	StoreID       uuid.UUID       `json:"store_id"`
	StoreName     string          `json:"store_name"`
	StoreLocation string          `json:"store_location,omitempty"`
	Price         decimal.Decimal `json:"price"`
	DateRecorded  string          `json:"date_recorded"`
}

// ComparisonResponse is the per-product price comparison summary.
// Prices are sorted ascending by price, ties broken by earliest
// date_recorded then store id, so the order is reproducible.
type ComparisonResponse struct {
	ProductID         uuid.UUID         `json:"product_id"`
	ProductName       string            `json:"product_name"`
	Brand             string            `json:"brand,omitempty"`
	Prices            []ComparisonEntry `json:"prices"`
	LowestPrice       decimal.Decimal   `json:"lowest_price"`
	HighestPrice      decimal.Decimal   `json:"highest_price"`
	PriceDifference   decimal.Decimal   `json:"price_difference"`
	SavingsPercentage decimal.Decimal   `json:"savings_percentage"`
}

type CompareMultipleResponse struct {
	Results []ComparisonResponse `json:"results"`
}
