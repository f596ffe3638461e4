package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// UploadReceiptRequest registers a receipt whose image already lives in the
// external media store; ImageRef is the handle the OCR pipeline understands.
type UploadReceiptRequest struct {
	ImageRef      string  `json:"image_ref" validate:"required,max=512"`
	StoreName     string  `json:"store_name"     validate:"max=255"`
	StoreLocation string  `json:"store_location" validate:"max=255"`
	PurchaseDate  *string `json:"purchase_date"  validate:"omitempty,datetime=2006-01-02"`
}

type UpdateReceiptRequest struct {
	StoreName     *string          `json:"store_name"     validate:"omitempty,max=255"`
	StoreLocation *string          `json:"store_location" validate:"omitempty,max=255"`
	PurchaseDate  *string          `json:"purchase_date"  validate:"omitempty,datetime=2006-01-02"`
	TaxAmount     *decimal.Decimal `json:"tax_amount"`
}

type CreateReceiptItemRequest struct {
	ProductName string          `json:"product_name" validate:"required,max=255"`
	Quantity    decimal.Decimal `json:"quantity"     validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"   validate:"min=0"`
	ProductID   *uuid.UUID      `json:"product_id"`
}

type UpdateReceiptItemRequest struct {
	ProductName *string          `json:"product_name" validate:"omitempty,max=255"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// LinkReceiptItemRequest attaches (or with nil detaches) a catalog product.
// The scanned text is never altered by linking.
type LinkReceiptItemRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
}

type ReceiptFilter struct {
	Status    string `form:"status" validate:"omitempty,oneof=pending processing completed failed"`
	Store     string `form:"store"`
	StartDate string `form:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date"   validate:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page,default=1"   validate:"min=1"`
	Limit     int    `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Extraction contract (OCR pipeline → core) ───────────────────────────────

// ExtractedItem is one line item produced by the OCR pipeline.
type ExtractedItem struct {
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

// ExtractionResult is the OCR pipeline's full structured output for a receipt.
type ExtractionResult struct {
	StoreName     string          `json:"store_name"`
	StoreLocation string          `json:"store_location"`
	PurchaseDate  *string         `json:"purchase_date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	RawText       string          `json:"raw_text"`
	Items         []ExtractedItem `json:"items"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ReceiptItemResponse struct {
	ID             uuid.UUID       `json:"id"`
	ProductName    string          `json:"product_name"`
	NormalizedName string          `json:"normalized_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	ProductID      *uuid.UUID      `json:"product_id,omitempty"`
}

type ReceiptResponse struct {
	ID              uuid.UUID             `json:"id"`
	StoreName       string                `json:"store_name"`
	StoreLocation   string                `json:"store_location,omitempty"`
	PurchaseDate    *string               `json:"purchase_date,omitempty"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	TaxAmount       decimal.Decimal       `json:"tax_amount"`
	ImageRef        string                `json:"image_ref"`
	Status          string                `json:"status"`
	ProcessingError string                `json:"processing_error,omitempty"`
	Items           []ReceiptItemResponse `json:"items"`
}

type ReceiptListResponse struct {
	Data       []ReceiptResponse `json:"data"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// ─── Statistics ──────────────────────────────────────────────────────────────

type TopStore struct {
	StoreName    string          `json:"store_name"`
	ReceiptCount int64           `json:"receipt_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
}

type ReceiptStatsResponse struct {
	TotalReceipts     int64             `json:"total_receipts"`
	TotalSpent        decimal.Decimal   `json:"total_spent"`
	ReceiptsThisMonth int64             `json:"receipts_this_month"`
	SpentThisMonth    decimal.Decimal   `json:"spent_this_month"`
	TopStores         []TopStore        `json:"top_stores"`
	RecentReceipts    []ReceiptResponse `json:"recent_receipts"`
}

type MonthlySpending struct {
	Month string          `json:"month"` // 2006-01
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}
