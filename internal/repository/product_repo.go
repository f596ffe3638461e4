package repository

import (
	"context"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for the product catalog.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (*model.Product, error)
	// FindApprovedByNormalizedName is the receipt reconciliation lookup:
	// exact match on the canonical matching key, approved products only.
	FindApprovedByNormalizedName(ctx context.Context, normalized string) (*model.Product, error)
	Search(ctx context.Context, req dto.SearchProductsRequest, viewerID uuid.UUID, moderator bool) ([]model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Preload("Category").First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) FindByBarcode(ctx context.Context, barcode string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Where("barcode = ? AND active = true", barcode).
		Preload("Category").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) FindApprovedByNormalizedName(ctx context.Context, normalized string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Where("normalized_name = ? AND status = ? AND active = true", normalized, model.StatusApproved).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const searchResultLimit = 20

// Search matches the query against normalized_name, name, brand and barcode
// (case-insensitive substring). Results come back prefix-matches-first, then
// alphabetical, restricted to approved products plus the viewer's own
// submissions (moderators see everything).
func (r *productRepo) Search(ctx context.Context, req dto.SearchProductsRequest, viewerID uuid.UUID, moderator bool) ([]model.Product, error) {
	normalized := model.NormalizeName(req.Query)
	like := "%" + normalized + "%"

	q := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("active = true").
		Where("normalized_name ILIKE ? OR name ILIKE ? OR brand ILIKE ? OR barcode ILIKE ?",
			like, like, like, like)

	if !moderator {
		q = q.Where("status = ? OR submitted_by = ?", model.StatusApproved, viewerID)
	}
	if req.CategoryID != nil {
		q = q.Where("category_id = ?", *req.CategoryID)
	}
	if req.StoreID != nil {
		q = q.Where(
			"id IN (SELECT product_id FROM prices WHERE store_id = ? AND is_active = true AND status = ?)",
			*req.StoreID, model.StatusApproved)
	}

	var products []model.Product
	err := q.Order(clause.OrderBy{Expression: clause.Expr{
		SQL:                "(normalized_name LIKE ?) DESC, name ASC",
		Vars:               []interface{}{normalized + "%"},
		WithoutParentheses: true,
	}}).
		Limit(searchResultLimit).
		Preload("Category").
		Find(&products).Error
	return products, err
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *productRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("active", false).Error
}

func (r *productRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}
