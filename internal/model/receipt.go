package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptStatus is the processing state of a scanned receipt.
type ReceiptStatus string

const (
	ReceiptPending    ReceiptStatus = "pending"
	ReceiptProcessing ReceiptStatus = "processing"
	ReceiptCompleted  ReceiptStatus = "completed"
	ReceiptFailed     ReceiptStatus = "failed"
)

// receiptTransitions enumerates every legal status change.
// failed → processing and completed → processing are reachable only via
// an explicit reprocess action.
var receiptTransitions = map[ReceiptStatus][]ReceiptStatus{
	ReceiptPending:    {ReceiptProcessing},
	ReceiptProcessing: {ReceiptCompleted, ReceiptFailed},
	ReceiptFailed:     {ReceiptProcessing},
	ReceiptCompleted:  {ReceiptProcessing},
}

// CanTransition reports whether from → to is a legal status change.
func (from ReceiptStatus) CanTransition(to ReceiptStatus) bool {
	for _, next := range receiptTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Receipt is a scanned shopping receipt. StoreName/StoreLocation are free
// text, NOT foreign keys — receipts may reference stores not yet in the
// catalog. The image itself lives in an external media store; ImageRef is
// the opaque handle the OCR pipeline understands.
type Receipt struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index"`
	StoreName       string
	StoreLocation   string
	PurchaseDate    *time.Time      `gorm:"type:date"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	ImageRef        string          `gorm:"not null"`
	OCRText         string          `gorm:"column:ocr_text"`
	Status          ReceiptStatus   `gorm:"type:varchar(20);not null;default:'pending';index"`
	ProcessingError string
	// Retry bookkeeping for the extraction worker
	RetryCount  int `gorm:"not null;default:0"`
	NextRetryAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []ReceiptItem `gorm:"foreignKey:ReceiptID"`
}

func (Receipt) TableName() string { return "receipts" }

// ReceiptItem is one line of a receipt. Invariant: TotalPrice equals
// Quantity * UnitPrice rounded to 2 decimals, recomputed on every edit
// that touches either field. ProductID is nullable — unmatched items
// remain name-only until linked.
type ReceiptItem struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ReceiptID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ProductName    string    `gorm:"not null"`
	NormalizedName string    `gorm:"index"`
	Quantity       decimal.Decimal `gorm:"type:decimal(10,3);not null;default:1"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	TotalPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	ProductID      *uuid.UUID      `gorm:"type:uuid;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (ReceiptItem) TableName() string { return "receipt_items" }

// LineTotal computes the canonical total for a quantity and unit price.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}
