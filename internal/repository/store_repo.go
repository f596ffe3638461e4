package repository

import (
	"context"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreRepository defines the data access contract for stores and the
// per-user preferred store list.
type StoreRepository interface {
	Create(ctx context.Context, s *model.Store) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Store, error)
	FindApprovedByName(ctx context.Context, name string) (*model.Store, error)
	List(ctx context.Context, filter dto.StoreFilter, viewerID uuid.UUID, moderator bool) ([]model.Store, int64, error)
	Update(ctx context.Context, s *model.Store) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// UpdateStatus is the conditional transition primitive: the row is
	// updated only when its current status matches `from`. Returns the
	// number of rows affected (0 means the CAS lost).
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error)

	// Preferred stores — set semantics
	AddPreferred(ctx context.Context, userID, storeID uuid.UUID) error
	RemovePreferred(ctx context.Context, userID, storeID uuid.UUID) error
	ListPreferred(ctx context.Context, userID uuid.UUID) ([]model.PreferredStore, error)
}

type storeRepo struct{ db *gorm.DB }

func NewStoreRepository(db *gorm.DB) StoreRepository { return &storeRepo{db: db} }

func (r *storeRepo) Create(ctx context.Context, s *model.Store) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *storeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Store, error) {
	var s model.Store
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storeRepo) FindApprovedByName(ctx context.Context, name string) (*model.Store, error) {
	var s model.Store
	err := r.db.WithContext(ctx).
		Where("lower(name) = lower(?) AND status = ? AND active = true", name, model.StatusApproved).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *storeRepo) List(ctx context.Context, filter dto.StoreFilter, viewerID uuid.UUID, moderator bool) ([]model.Store, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Store{}).Where("active = true")

	// Visibility: approved rows are public; pending/rejected only reach
	// their submitter and moderators.
	if moderator {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
	} else if filter.Status != "" {
		q = q.Where("status = ? AND (status = ? OR submitted_by = ?)",
			filter.Status, model.StatusApproved, viewerID)
	} else {
		q = q.Where("status = ? OR submitted_by = ?", model.StatusApproved, viewerID)
	}

	if filter.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filter.Name+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var stores []model.Store
	offset := (filter.Page - 1) * filter.Limit
	err := q.Order("name ASC").Limit(filter.Limit).Offset(offset).Find(&stores).Error
	return stores, total, err
}

func (r *storeRepo) Update(ctx context.Context, s *model.Store) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *storeRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Store{}).Where("id = ?", id).Update("active", false).Error
}

func (r *storeRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Store{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// AddPreferred upserts the (user, store) pair. ON CONFLICT DO NOTHING gives
// the set semantics the API promises: re-adding is a no-op, not an error.
func (r *storeRepo) AddPreferred(ctx context.Context, userID, storeID uuid.UUID) error {
	pref := model.PreferredStore{UserID: userID, StoreID: storeID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&pref).Error
}

func (r *storeRepo) RemovePreferred(ctx context.Context, userID, storeID uuid.UUID) error {
	// Removing a non-member is a no-op; 0 rows affected is not an error.
	return r.db.WithContext(ctx).
		Where("user_id = ? AND store_id = ?", userID, storeID).
		Delete(&model.PreferredStore{}).Error
}

func (r *storeRepo) ListPreferred(ctx context.Context, userID uuid.UUID) ([]model.PreferredStore, error) {
	var prefs []model.PreferredStore
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Preload("Store").
		Find(&prefs).Error
	return prefs, err
}
