package service

import (
	"context"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoreService defines business operations for the store registry and the
// per-user preferred store list.
type StoreService interface {
	Create(ctx context.Context, viewer Viewer, req dto.CreateStoreRequest) (dto.StoreResponse, error)
	Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.StoreResponse, error)
	List(ctx context.Context, viewer Viewer, filter dto.StoreFilter) (dto.StoreListResponse, error)
	Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateStoreRequest) (dto.StoreResponse, error)
	Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error
	Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.StoreResponse, error)
	Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.StoreResponse, error)

	ListPreferred(ctx context.Context, viewer Viewer) ([]dto.StoreResponse, error)
	AddPreferred(ctx context.Context, viewer Viewer, storeID uuid.UUID) error
	RemovePreferred(ctx context.Context, viewer Viewer, storeID uuid.UUID) error
}

type storeService struct {
	repo repository.StoreRepository
}

func NewStoreService(repo repository.StoreRepository) StoreService {
	return &storeService{repo: repo}
}

var (
	minLatitude  = decimal.NewFromInt(-90)
	maxLatitude  = decimal.NewFromInt(90)
	minLongitude = decimal.NewFromInt(-180)
	maxLongitude = decimal.NewFromInt(180)
)

// validateCoordinates enforces the pairing invariant: one coordinate
// without the other is rejected, and each must fall in its valid range.
func validateCoordinates(lat, lon *decimal.Decimal) error {
	if (lat == nil) != (lon == nil) {
		return apierror.Validation("Latitude and longitude must be provided together")
	}
	if lat == nil {
		return nil
	}
	if lat.LessThan(minLatitude) || lat.GreaterThan(maxLatitude) {
		return apierror.Validation("Latitude must be between -90 and 90")
	}
	if lon.LessThan(minLongitude) || lon.GreaterThan(maxLongitude) {
		return apierror.Validation("Longitude must be between -180 and 180")
	}
	return nil
}

func mapStore(s model.Store) dto.StoreResponse {
	return dto.StoreResponse{
		ID:        s.ID,
		Name:      s.Name,
		Location:  s.Location,
		Address:   s.Address,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Status:    string(s.Status),
		Active:    s.Active,
	}
}

func (s *storeService) Create(ctx context.Context, viewer Viewer, req dto.CreateStoreRequest) (dto.StoreResponse, error) {
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return dto.StoreResponse{}, err
	}

	store := &model.Store{
		Name:      req.Name,
		Location:  req.Location,
		Address:   req.Address,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Moderation: model.Moderation{
			Status:      model.StatusPending,
			SubmittedBy: viewer.ID,
		},
		Active: true,
	}
	if err := s.repo.Create(ctx, store); err != nil {
		return dto.StoreResponse{}, err
	}
	return mapStore(*store), nil
}

func (s *storeService) Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.StoreResponse, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.StoreResponse{}, notFound(err, "Store not found")
	}
	if err := visibleOrNotFound(store.Moderation, viewer, "Store not found"); err != nil {
		return dto.StoreResponse{}, err
	}
	return mapStore(*store), nil
}

func (s *storeService) List(ctx context.Context, viewer Viewer, filter dto.StoreFilter) (dto.StoreListResponse, error) {
	stores, total, err := s.repo.List(ctx, filter, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.StoreListResponse{}, err
	}
	resp := dto.StoreListResponse{
		Data:       make([]dto.StoreResponse, 0, len(stores)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, st := range stores {
		resp.Data = append(resp.Data, mapStore(st))
	}
	return resp, nil
}

func (s *storeService) Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateStoreRequest) (dto.StoreResponse, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.StoreResponse{}, notFound(err, "Store not found")
	}
	if err := visibleOrNotFound(store.Moderation, viewer, "Store not found"); err != nil {
		return dto.StoreResponse{}, err
	}
	// Submitters may fix their own pending entry; approved records are a
	// shared resource and take a moderator.
	if !viewer.Moderator && (store.SubmittedBy != viewer.ID || store.Status != model.StatusPending) {
		return dto.StoreResponse{}, apierror.Permission("Only moderators may edit this store")
	}

	if req.Name != nil {
		store.Name = *req.Name
	}
	if req.Location != nil {
		store.Location = *req.Location
	}
	if req.Address != nil {
		store.Address = req.Address
	}
	if req.Latitude != nil || req.Longitude != nil {
		// Merge onto the stored pair so one coordinate can be changed
		// without resending the other.
		lat, lng := store.Latitude, store.Longitude
		if req.Latitude != nil {
			lat = req.Latitude
		}
		if req.Longitude != nil {
			lng = req.Longitude
		}
		if err := validateCoordinates(lat, lng); err != nil {
			return dto.StoreResponse{}, err
		}
		store.Latitude = lat
		store.Longitude = lng
	}

	if err := s.repo.Update(ctx, store); err != nil {
		return dto.StoreResponse{}, err
	}
	return mapStore(*store), nil
}

func (s *storeService) Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	if err := requireModerator(viewer); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFound(err, "Store not found")
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *storeService) Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.StoreResponse, error) {
	return s.moderate(ctx, viewer, id, model.StatusApproved)
}

func (s *storeService) Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.StoreResponse, error) {
	return s.moderate(ctx, viewer, id, model.StatusRejected)
}

func (s *storeService) moderate(ctx context.Context, viewer Viewer, id uuid.UUID, to model.ModerationStatus) (dto.StoreResponse, error) {
	if err := requireModerator(viewer); err != nil {
		return dto.StoreResponse{}, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return dto.StoreResponse{}, notFound(err, "Store not found")
	}
	rows, err := s.repo.UpdateStatus(ctx, id, model.StatusPending, to)
	if err := checkTransition(rows, err, "Store"); err != nil {
		return dto.StoreResponse{}, err
	}
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.StoreResponse{}, err
	}
	return mapStore(*store), nil
}

// ── Preferred stores ──────────────────────────────────────────────────────────

func (s *storeService) ListPreferred(ctx context.Context, viewer Viewer) ([]dto.StoreResponse, error) {
	prefs, err := s.repo.ListPreferred(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	result := make([]dto.StoreResponse, 0, len(prefs))
	for _, p := range prefs {
		result = append(result, mapStore(p.Store))
	}
	return result, nil
}

func (s *storeService) AddPreferred(ctx context.Context, viewer Viewer, storeID uuid.UUID) error {
	store, err := s.repo.FindByID(ctx, storeID)
	if err != nil {
		return notFound(err, "Store not found")
	}
	if err := visibleOrNotFound(store.Moderation, viewer, "Store not found"); err != nil {
		return err
	}
	return s.repo.AddPreferred(ctx, viewer.ID, storeID)
}

func (s *storeService) RemovePreferred(ctx context.Context, viewer Viewer, storeID uuid.UUID) error {
	return s.repo.RemovePreferred(ctx, viewer.ID, storeID)
}
