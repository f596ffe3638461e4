package repository

import (
	"context"

	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository defines the data access contract for the category tree.
type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	FindByName(ctx context.Context, name string) (*model.Category, error)
	// ListAll returns every category; the tree is small enough that
	// descendant traversal loads it whole, which also bounds the BFS by
	// total row count instead of graph depth.
	ListAll(ctx context.Context) ([]model.Category, error)
	ListRoots(ctx context.Context) ([]model.Category, error)
	Update(ctx context.Context, c *model.Category) error
	// UpdateParentIf sets parent_id only when the current parent still
	// matches expected — the compare-and-swap that re-validates the cycle
	// check at write time. Returns rows affected.
	UpdateParentIf(ctx context.Context, id uuid.UUID, expected, newParent *uuid.UUID) (int64, error)
	CountChildren(ctx context.Context, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error)
}

type categoryRepo struct{ db *gorm.DB }

func NewCategoryRepository(db *gorm.DB) CategoryRepository { return &categoryRepo{db: db} }

func (r *categoryRepo) Create(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *categoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Preload("Subcategories").First(&c, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) FindByName(ctx context.Context, name string) (*model.Category, error) {
	var c model.Category
	err := r.db.WithContext(ctx).Where("lower(name) = lower(?)", name).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *categoryRepo) ListAll(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, err
}

func (r *categoryRepo) ListRoots(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("name asc").
		Preload("Subcategories").
		Find(&list).Error
	return list, err
}

func (r *categoryRepo) Update(ctx context.Context, c *model.Category) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *categoryRepo) UpdateParentIf(ctx context.Context, id uuid.UUID, expected, newParent *uuid.UUID) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id)
	if expected == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *expected)
	}
	res := q.Update("parent_id", newParent)
	return res.RowsAffected, res.Error
}

func (r *categoryRepo) CountChildren(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Category{}).Where("parent_id = ?", id).Count(&n).Error
	return n, err
}

func (r *categoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Category{}, "id = ?", id).Error
}

func (r *categoryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Category{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}
