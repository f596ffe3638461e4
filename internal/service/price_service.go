package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const compareCachePrefix = "compare:"

var oneHundred = decimal.NewFromInt(100)

// PriceService defines the business logic contract for the price ledger
// and the comparison engine built on top of it.
type PriceService interface {
	Add(ctx context.Context, viewer Viewer, req dto.AddPriceRequest) (dto.PriceResponse, error)
	ListByProduct(ctx context.Context, viewer Viewer, productID uuid.UUID, filter dto.PriceFilter) (dto.PriceListResponse, error)
	Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.PriceResponse, error)
	Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.PriceResponse, error)
	Deactivate(ctx context.Context, viewer Viewer, id uuid.UUID) error
	Compare(ctx context.Context, viewer Viewer, productID uuid.UUID) (dto.ComparisonResponse, error)
	CompareMultiple(ctx context.Context, viewer Viewer, req dto.CompareMultipleRequest) (dto.CompareMultipleResponse, error)
}

type priceService struct {
	repo        repository.PriceRepository
	productRepo repository.ProductRepository
	storeRepo   repository.StoreRepository
	rdb         *redis.Client
	cacheTTL    time.Duration
}

func NewPriceService(
	repo repository.PriceRepository,
	productRepo repository.ProductRepository,
	storeRepo repository.StoreRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
) PriceService {
	return &priceService{
		repo:        repo,
		productRepo: productRepo,
		storeRepo:   storeRepo,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
	}
}

func mapPrice(p model.Price) dto.PriceResponse {
	return dto.PriceResponse{
		ID:           p.ID,
		ProductID:    p.ProductID,
		StoreID:      p.StoreID,
		StoreName:    p.Store.Name,
		Price:        p.Price,
		DateRecorded: p.DateRecorded.Format(dateLayout),
		IsActive:     p.IsActive,
		Source:       p.Source,
		Status:       string(p.Status),
	}
}

func (s *priceService) Add(ctx context.Context, viewer Viewer, req dto.AddPriceRequest) (dto.PriceResponse, error) {
	if req.Price.IsNegative() {
		return dto.PriceResponse{}, apierror.Validation("Price must be zero or positive")
	}

	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return dto.PriceResponse{}, notFound(err, "Product not found")
	}
	if err := visibleOrNotFound(product.Moderation, viewer, "Product not found"); err != nil {
		return dto.PriceResponse{}, err
	}
	store, err := s.storeRepo.FindByID(ctx, req.StoreID)
	if err != nil {
		return dto.PriceResponse{}, notFound(err, "Store not found")
	}
	if err := visibleOrNotFound(store.Moderation, viewer, "Store not found"); err != nil {
		return dto.PriceResponse{}, err
	}

	dateRecorded := time.Now().UTC().Truncate(24 * time.Hour)
	if req.DateRecorded != nil {
		parsed, err := time.Parse(dateLayout, *req.DateRecorded)
		if err != nil {
			return dto.PriceResponse{}, apierror.Validation("date_recorded must be formatted as YYYY-MM-DD")
		}
		dateRecorded = parsed
	}

	source := req.Source
	if source == "" {
		source = model.PriceSourceManual
	}

	p := &model.Price{
		ProductID:    req.ProductID,
		StoreID:      req.StoreID,
		Price:        req.Price,
		DateRecorded: dateRecorded,
		IsActive:     true,
		Source:       source,
		Moderation: model.Moderation{
			Status:      model.StatusPending,
			SubmittedBy: viewer.ID,
		},
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return dto.PriceResponse{}, err
	}
	p.Store = *store
	return mapPrice(*p), nil
}

func (s *priceService) ListByProduct(ctx context.Context, viewer Viewer, productID uuid.UUID, filter dto.PriceFilter) (dto.PriceListResponse, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return dto.PriceListResponse{}, notFound(err, "Product not found")
	}
	if err := visibleOrNotFound(product.Moderation, viewer, "Product not found"); err != nil {
		return dto.PriceListResponse{}, err
	}

	prices, total, err := s.repo.ListByProduct(ctx, productID, filter, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.PriceListResponse{}, err
	}

	resp := dto.PriceListResponse{
		Data:       make([]dto.PriceResponse, 0, len(prices)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, p := range prices {
		resp.Data = append(resp.Data, mapPrice(p))
	}
	return resp, nil
}

// Approve flips a pending observation to approved and, atomically,
// deactivates every older active observation for the same
// (product, store) pair. Exactly one current price per store survives.
func (s *priceService) Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.PriceResponse, error) {
	if err := requireModerator(viewer); err != nil {
		return dto.PriceResponse{}, err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.PriceResponse{}, notFound(err, "Price not found")
	}
	rows, err := s.repo.ApproveAndSupersede(ctx, id)
	if err := checkTransition(rows, err, "Price"); err != nil {
		return dto.PriceResponse{}, err
	}
	s.invalidateCompareCache(p.ProductID)

	p, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.PriceResponse{}, err
	}
	return mapPrice(*p), nil
}

func (s *priceService) Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.PriceResponse, error) {
	if err := requireModerator(viewer); err != nil {
		return dto.PriceResponse{}, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return dto.PriceResponse{}, notFound(err, "Price not found")
	}
	rows, err := s.repo.UpdateStatus(ctx, id, model.StatusPending, model.StatusRejected)
	if err := checkTransition(rows, err, "Price"); err != nil {
		return dto.PriceResponse{}, err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.PriceResponse{}, err
	}
	return mapPrice(*p), nil
}

func (s *priceService) Deactivate(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	if err := requireModerator(viewer); err != nil {
		return err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "Price not found")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidateCompareCache(p.ProductID)
	return nil
}

func (s *priceService) Compare(ctx context.Context, viewer Viewer, productID uuid.UUID) (dto.ComparisonResponse, error) {
	cacheKey := compareCachePrefix + productID.String()

	// The visibility check runs before the cache is consulted: a cached
	// payload must never leak a pending product to a third party.
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return dto.ComparisonResponse{}, notFound(err, "Product not found")
	}
	if err := visibleOrNotFound(product.Moderation, viewer, "Product not found"); err != nil {
		return dto.ComparisonResponse{}, err
	}

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp dto.ComparisonResponse
			if jsonErr := json.Unmarshal(cached, &resp); jsonErr == nil {
				return resp, nil
			}
		}
	}

	current, err := s.repo.ListCurrent(ctx, productID)
	if err != nil {
		return dto.ComparisonResponse{}, err
	}
	if len(current) == 0 {
		return dto.ComparisonResponse{}, apierror.NoData("No price data available for product %s", product.Name)
	}

	resp := buildComparison(*product, current)

	// Best effort, ignore errors. Only approved products are cached — the
	// payload is viewer-independent once the product is public.
	if s.rdb != nil && product.Status == model.StatusApproved {
		if b, jsonErr := json.Marshal(resp); jsonErr == nil {
			_ = s.rdb.Set(context.Background(), cacheKey, b, s.cacheTTL).Err()
		}
	}
	return resp, nil
}

// CompareMultiple skips products without any current price data
// rather than failing the whole batch.
func (s *priceService) CompareMultiple(ctx context.Context, viewer Viewer, req dto.CompareMultipleRequest) (dto.CompareMultipleResponse, error) {
	resp := dto.CompareMultipleResponse{Results: make([]dto.ComparisonResponse, 0, len(req.ProductIDs))}
	for _, productID := range req.ProductIDs {
		comparison, err := s.Compare(ctx, viewer, productID)
		if err != nil {
			if apierror.IsKind(err, apierror.KindNoData) || apierror.IsKind(err, apierror.KindNotFound) {
				continue
			}
			return dto.CompareMultipleResponse{}, err
		}
		resp.Results = append(resp.Results, comparison)
	}
	return resp, nil
}

// buildComparison computes the summary over observations already sorted
// by price asc, date_recorded asc, store_id asc.
func buildComparison(product model.Product, current []model.Price) dto.ComparisonResponse {
	resp := dto.ComparisonResponse{
		ProductID:   product.ID,
		ProductName: product.Name,
		Brand:       product.Brand,
		Prices:      make([]dto.ComparisonEntry, 0, len(current)),
	}
	for _, p := range current {
		resp.Prices = append(resp.Prices, dto.ComparisonEntry{
			StoreID:       p.StoreID,
			StoreName:     p.Store.Name,
			StoreLocation: p.Store.Location,
			Price:         p.Price,
			DateRecorded:  p.DateRecorded.Format(dateLayout),
		})
	}

	resp.LowestPrice = current[0].Price
	resp.HighestPrice = current[len(current)-1].Price
	resp.PriceDifference = resp.HighestPrice.Sub(resp.LowestPrice)
	if resp.HighestPrice.IsZero() {
		resp.SavingsPercentage = decimal.Zero
	} else {
		resp.SavingsPercentage = resp.PriceDifference.Div(resp.HighestPrice).Mul(oneHundred).Round(2)
	}
	return resp
}

func (s *priceService) invalidateCompareCache(productID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	_ = s.rdb.Del(context.Background(), compareCachePrefix+productID.String()).Err()
}
