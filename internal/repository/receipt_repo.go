package repository

import (
	"context"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceiptRepository defines the data access contract for receipts and their
// line items.
type ReceiptRepository interface {
	Create(ctx context.Context, rec *model.Receipt) error
	// FindByID scopes the lookup to the owning user unless the caller is
	// a moderator.
	FindByID(ctx context.Context, id, userID uuid.UUID, moderator bool) (*model.Receipt, error)
	List(ctx context.Context, userID uuid.UUID, filter dto.ReceiptFilter) ([]model.Receipt, int64, error)
	Update(ctx context.Context, rec *model.Receipt) error
	Delete(ctx context.Context, id uuid.UUID) error
	// UpdateStatusIf is the conditional transition primitive for the
	// receipt state machine. Returns rows affected (0 = CAS lost).
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.ReceiptStatus) (int64, error)
	// ListStuckProcessing returns receipts sitting in "processing" whose
	// next_retry_at has passed — input for the extraction retry cron.
	ListStuckProcessing(ctx context.Context, before time.Time, limit int) ([]model.Receipt, error)
	// ListStalePending returns receipts still "pending" after a grace
	// period, i.e. whose enqueue was lost; the cron re-enqueues them.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Receipt, error)

	// Items
	CreateItem(ctx context.Context, item *model.ReceiptItem) error
	CreateItems(ctx context.Context, items []model.ReceiptItem) error
	FindItem(ctx context.Context, receiptID, itemID uuid.UUID) (*model.ReceiptItem, error)
	// UpdateItemFields applies all column changes in a single UPDATE so the
	// quantity / unit_price / total_price invariant is never observable
	// half-applied.
	UpdateItemFields(ctx context.Context, itemID uuid.UUID, fields map[string]any) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, receiptID uuid.UUID) error
	SumItemTotals(ctx context.Context, receiptID uuid.UUID) (decimal.Decimal, error)

	// Statistics (completed receipts only)
	Stats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (dto.ReceiptStatsResponse, []model.Receipt, error)
	SpendingByMonth(ctx context.Context, userID uuid.UUID, since time.Time) ([]dto.MonthlySpending, error)
}

type receiptRepo struct{ db *gorm.DB }

func NewReceiptRepository(db *gorm.DB) ReceiptRepository { return &receiptRepo{db: db} }

func (r *receiptRepo) Create(ctx context.Context, rec *model.Receipt) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *receiptRepo) FindByID(ctx context.Context, id, userID uuid.UUID, moderator bool) (*model.Receipt, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if !moderator {
		q = q.Where("user_id = ?", userID)
	}
	var rec model.Receipt
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("receipt_items.created_at ASC")
	}).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *receiptRepo) List(ctx context.Context, userID uuid.UUID, filter dto.ReceiptFilter) ([]model.Receipt, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Receipt{}).Where("user_id = ?", userID)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Store != "" {
		q = q.Where("store_name ILIKE ?", "%"+filter.Store+"%")
	}
	if filter.StartDate != "" {
		q = q.Where("purchase_date >= ?", filter.StartDate)
	}
	if filter.EndDate != "" {
		q = q.Where("purchase_date <= ?", filter.EndDate)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var receipts []model.Receipt
	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("purchase_date DESC NULLS LAST, created_at DESC").
		Limit(filter.Limit).
		Offset(offset).
		Preload("Items").
		Find(&receipts).Error
	return receipts, total, err
}

func (r *receiptRepo) Update(ctx context.Context, rec *model.Receipt) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *receiptRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("receipt_id = ?", id).Delete(&model.ReceiptItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Receipt{}, "id = ?", id).Error
	})
}

func (r *receiptRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to model.ReceiptStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Receipt{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *receiptRepo) ListStuckProcessing(ctx context.Context, before time.Time, limit int) ([]model.Receipt, error) {
	var receipts []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			model.ReceiptProcessing, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepo) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]model.Receipt, error) {
	var receipts []model.Receipt
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at <= ?", model.ReceiptPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&receipts).Error
	return receipts, err
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (r *receiptRepo) CreateItem(ctx context.Context, item *model.ReceiptItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *receiptRepo) CreateItems(ctx context.Context, items []model.ReceiptItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *receiptRepo) FindItem(ctx context.Context, receiptID, itemID uuid.UUID) (*model.ReceiptItem, error) {
	var item model.ReceiptItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND receipt_id = ?", itemID, receiptID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *receiptRepo) UpdateItemFields(ctx context.Context, itemID uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&model.ReceiptItem{}).
		Where("id = ?", itemID).
		Updates(fields).Error
}

func (r *receiptRepo) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.ReceiptItem{}, "id = ?", itemID).Error
}

func (r *receiptRepo) DeleteItems(ctx context.Context, receiptID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("receipt_id = ?", receiptID).Delete(&model.ReceiptItem{}).Error
}

func (r *receiptRepo) SumItemTotals(ctx context.Context, receiptID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&model.ReceiptItem{}).
		Where("receipt_id = ?", receiptID).
		Select("COALESCE(SUM(total_price), 0)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ── Statistics ────────────────────────────────────────────────────────────────

func (r *receiptRepo) Stats(ctx context.Context, userID uuid.UUID, monthStart time.Time) (dto.ReceiptStatsResponse, []model.Receipt, error) {
	var stats dto.ReceiptStatsResponse

	base := r.db.WithContext(ctx).Model(&model.Receipt{}).
		Where("user_id = ? AND status = ?", userID, model.ReceiptCompleted)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalReceipts).Error; err != nil {
		return stats, nil, err
	}

	var totalSpent decimal.NullDecimal
	if err := base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalSpent).Error; err != nil {
		return stats, nil, err
	}
	stats.TotalSpent = totalSpent.Decimal

	month := base.Session(&gorm.Session{}).Where("purchase_date >= ?", monthStart)
	if err := month.Session(&gorm.Session{}).Count(&stats.ReceiptsThisMonth).Error; err != nil {
		return stats, nil, err
	}
	var spentMonth decimal.NullDecimal
	if err := month.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&spentMonth).Error; err != nil {
		return stats, nil, err
	}
	stats.SpentThisMonth = spentMonth.Decimal

	// Top 5 stores by total spent
	rows := []struct {
		StoreName string
		Count     int64
		Total     decimal.Decimal
	}{}
	if err := r.db.WithContext(ctx).Model(&model.Receipt{}).
		Where("user_id = ? AND status = ?", userID, model.ReceiptCompleted).
		Select("store_name, COUNT(id) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Group("store_name").
		Order("total DESC").
		Limit(5).
		Scan(&rows).Error; err != nil {
		return stats, nil, err
	}
	for _, row := range rows {
		stats.TopStores = append(stats.TopStores, dto.TopStore{
			StoreName:    row.StoreName,
			ReceiptCount: row.Count,
			TotalSpent:   row.Total,
		})
	}

	var recent []model.Receipt
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.ReceiptCompleted).
		Order("purchase_date DESC NULLS LAST").
		Limit(5).
		Find(&recent).Error; err != nil {
		return stats, nil, err
	}

	return stats, recent, nil
}

func (r *receiptRepo) SpendingByMonth(ctx context.Context, userID uuid.UUID, since time.Time) ([]dto.MonthlySpending, error) {
	var rows []dto.MonthlySpending
	err := r.db.WithContext(ctx).Model(&model.Receipt{}).
		Where("user_id = ? AND status = ? AND purchase_date >= ?",
			userID, model.ReceiptCompleted, since).
		Select("to_char(purchase_date, 'YYYY-MM') AS month, COALESCE(SUM(total_amount), 0) AS total, COUNT(id) AS count").
		Group("month").
		Order("month ASC").
		Scan(&rows).Error
	return rows, err
}
