package repository

import (
	"context"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PriceRepository defines the data access contract for the price ledger.
type PriceRepository interface {
	Create(ctx context.Context, p *model.Price) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Price, error)
	// ListCurrent returns the approved, active observations for a product
	// in the deterministic comparison order: price asc, date_recorded asc,
	// store_id asc.
	ListCurrent(ctx context.Context, productID uuid.UUID) ([]model.Price, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, filter dto.PriceFilter, viewerID uuid.UUID, moderator bool) ([]model.Price, int64, error)
	Update(ctx context.Context, p *model.Price) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// ApproveAndSupersede flips the row pending → approved and, in the same
	// transaction, deactivates every older active row for the same
	// (product, store) pair so only one current price per store survives.
	// Returns rows affected by the status flip (0 means the CAS lost).
	ApproveAndSupersede(ctx context.Context, id uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error)
}

type priceRepo struct{ db *gorm.DB }

func NewPriceRepository(db *gorm.DB) PriceRepository { return &priceRepo{db: db} }

func (r *priceRepo) Create(ctx context.Context, p *model.Price) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *priceRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Price, error) {
	var p model.Price
	err := r.db.WithContext(ctx).Preload("Store").First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *priceRepo) ListCurrent(ctx context.Context, productID uuid.UUID) ([]model.Price, error) {
	var prices []model.Price
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = true AND status = ?", productID, model.StatusApproved).
		Order("price ASC, date_recorded ASC, store_id ASC").
		Preload("Store").
		Find(&prices).Error
	return prices, err
}

func (r *priceRepo) ListByProduct(ctx context.Context, productID uuid.UUID, filter dto.PriceFilter, viewerID uuid.UUID, moderator bool) ([]model.Price, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Price{}).Where("product_id = ?", productID)

	if !moderator {
		q = q.Where("status = ? OR submitted_by = ?", model.StatusApproved, viewerID)
	}
	if filter.StoreID != nil {
		q = q.Where("store_id = ?", *filter.StoreID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var prices []model.Price
	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("date_recorded DESC").
		Limit(filter.Limit).
		Offset(offset).
		Preload("Store").
		Find(&prices).Error
	return prices, total, err
}

func (r *priceRepo) Update(ctx context.Context, p *model.Price) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *priceRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Price{}).Where("id = ?", id).Update("is_active", false).Error
}

func (r *priceRepo) ApproveAndSupersede(ctx context.Context, id uuid.UUID) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Price
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return err
		}

		res := tx.Model(&model.Price{}).
			Where("id = ? AND status = ?", id, model.StatusPending).
			Update("status", model.StatusApproved)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		if affected == 0 {
			// Lost the CAS — nothing to supersede.
			return nil
		}

		return tx.Model(&model.Price{}).
			Where("product_id = ? AND store_id = ? AND is_active = true AND id <> ?",
				p.ProductID, p.StoreID, id).
			Update("is_active", false).Error
	})
	return affected, err
}

func (r *priceRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Price{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}
