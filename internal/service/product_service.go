package service

import (
	"context"
	"errors"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductService defines the business logic contract for the product catalog.
type ProductService interface {
	Create(ctx context.Context, viewer Viewer, req dto.CreateProductRequest) (dto.ProductResponse, error)
	Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ProductResponse, error)
	GetByBarcode(ctx context.Context, viewer Viewer, barcode string) (dto.ProductResponse, error)
	Search(ctx context.Context, viewer Viewer, req dto.SearchProductsRequest) ([]dto.ProductSummary, error)
	Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateProductRequest) (dto.ProductResponse, error)
	Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error
	Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ProductResponse, error)
	Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ProductResponse, error)
	// LowestPrice returns the cheapest approved active offer, or nil when
	// the product has no current prices.
	LowestPrice(ctx context.Context, viewer Viewer, id uuid.UUID) (*dto.LowestPrice, error)
}

type productService struct {
	repo      repository.ProductRepository
	priceRepo repository.PriceRepository
	catRepo   repository.CategoryRepository
}

func NewProductService(
	repo repository.ProductRepository,
	priceRepo repository.PriceRepository,
	catRepo repository.CategoryRepository,
) ProductService {
	return &productService{repo: repo, priceRepo: priceRepo, catRepo: catRepo}
}

func mapProduct(p model.Product) dto.ProductResponse {
	resp := dto.ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		NormalizedName: p.NormalizedName,
		CategoryID:     p.CategoryID,
		Brand:          p.Brand,
		Unit:           p.Unit,
		Barcode:        p.Barcode,
		Description:    p.Description,
		Status:         string(p.Status),
		Active:         p.Active,
	}
	if p.Category != nil {
		resp.CategoryName = &p.Category.Name
	}
	return resp
}

func mapProductSummary(p model.Product, lowest *dto.LowestPrice) dto.ProductSummary {
	summary := dto.ProductSummary{
		ID:             p.ID,
		Name:           p.Name,
		NormalizedName: p.NormalizedName,
		Brand:          p.Brand,
		Unit:           p.Unit,
		Status:         string(p.Status),
		LowestPrice:    lowest,
	}
	if p.Category != nil {
		summary.CategoryName = &p.Category.Name
	}
	return summary
}

func (s *productService) Create(ctx context.Context, viewer Viewer, req dto.CreateProductRequest) (dto.ProductResponse, error) {
	if req.CategoryID != nil {
		if _, err := s.catRepo.FindByID(ctx, *req.CategoryID); err != nil {
			return dto.ProductResponse{}, notFound(err, "Category not found")
		}
	}

	p := &model.Product{
		Name:           req.Name,
		NormalizedName: model.NormalizeName(req.Name),
		CategoryID:     req.CategoryID,
		Brand:          req.Brand,
		Unit:           req.Unit,
		Barcode:        req.Barcode,
		Description:    req.Description,
		Moderation: model.Moderation{
			Status:      model.StatusPending,
			SubmittedBy: viewer.ID,
		},
		Active: true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return dto.ProductResponse{}, err
	}
	return mapProduct(*p), nil
}

func (s *productService) Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, notFound(err, "Product not found")
	}
	if err := visibleOrNotFound(p.Moderation, viewer, "Product not found"); err != nil {
		return dto.ProductResponse{}, err
	}

	resp := mapProduct(*p)
	current, err := s.priceRepo.ListCurrent(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, err
	}
	for _, price := range current {
		resp.CurrentPrices = append(resp.CurrentPrices, mapPrice(price))
	}
	if len(current) > 0 {
		resp.LowestPrice = &dto.LowestPrice{
			Price:   current[0].Price,
			Store:   current[0].Store.Name,
			StoreID: current[0].StoreID,
		}
	}
	return resp, nil
}

func (s *productService) GetByBarcode(ctx context.Context, viewer Viewer, barcode string) (dto.ProductResponse, error) {
	p, err := s.repo.FindByBarcode(ctx, barcode)
	if err != nil {
		return dto.ProductResponse{}, notFound(err, "Product not found")
	}
	if err := visibleOrNotFound(p.Moderation, viewer, "Product not found"); err != nil {
		return dto.ProductResponse{}, err
	}
	return s.Get(ctx, viewer, p.ID)
}

func (s *productService) Search(ctx context.Context, viewer Viewer, req dto.SearchProductsRequest) ([]dto.ProductSummary, error) {
	products, err := s.repo.Search(ctx, req, viewer.ID, viewer.Moderator)
	if err != nil {
		return nil, err
	}

	// Approved results and the viewer's own pending submissions arrive
	// from disjoint status filters; a union keyed by id still guards
	// against a repeated row without any last-write-wins ambiguity.
	seen := make(map[uuid.UUID]bool, len(products))
	result := make([]dto.ProductSummary, 0, len(products))
	for _, p := range products {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		var lowest *dto.LowestPrice
		current, err := s.priceRepo.ListCurrent(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(current) > 0 {
			lowest = &dto.LowestPrice{
				Price:   current[0].Price,
				Store:   current[0].Store.Name,
				StoreID: current[0].StoreID,
			}
		}
		result = append(result, mapProductSummary(p, lowest))
	}
	return result, nil
}

func (s *productService) Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateProductRequest) (dto.ProductResponse, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, notFound(err, "Product not found")
	}
	if err := visibleOrNotFound(p.Moderation, viewer, "Product not found"); err != nil {
		return dto.ProductResponse{}, err
	}
	if !viewer.Moderator && (p.SubmittedBy != viewer.ID || p.Status != model.StatusPending) {
		return dto.ProductResponse{}, apierror.Permission("Only moderators may edit this product")
	}

	if req.Name != nil {
		p.Name = *req.Name
		p.NormalizedName = model.NormalizeName(*req.Name)
	}
	if req.CategoryID != nil {
		if _, err := s.catRepo.FindByID(ctx, *req.CategoryID); err != nil {
			return dto.ProductResponse{}, notFound(err, "Category not found")
		}
		p.CategoryID = req.CategoryID
	}
	if req.Brand != nil {
		p.Brand = *req.Brand
	}
	if req.Unit != nil {
		p.Unit = *req.Unit
	}
	if req.Barcode != nil {
		p.Barcode = req.Barcode
	}
	if req.Description != nil {
		p.Description = req.Description
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return dto.ProductResponse{}, err
	}
	return mapProduct(*p), nil
}

func (s *productService) Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	if err := requireModerator(viewer); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return notFound(err, "Product not found")
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *productService) Approve(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ProductResponse, error) {
	return s.moderate(ctx, viewer, id, model.StatusApproved)
}

func (s *productService) Reject(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ProductResponse, error) {
	return s.moderate(ctx, viewer, id, model.StatusRejected)
}

func (s *productService) moderate(ctx context.Context, viewer Viewer, id uuid.UUID, to model.ModerationStatus) (dto.ProductResponse, error) {
	if err := requireModerator(viewer); err != nil {
		return dto.ProductResponse{}, err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return dto.ProductResponse{}, notFound(err, "Product not found")
	}
	rows, err := s.repo.UpdateStatus(ctx, id, model.StatusPending, to)
	if err := checkTransition(rows, err, "Product"); err != nil {
		return dto.ProductResponse{}, err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return dto.ProductResponse{}, err
	}
	return mapProduct(*p), nil
}

func (s *productService) LowestPrice(ctx context.Context, viewer Viewer, id uuid.UUID) (*dto.LowestPrice, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierror.NotFound("Product not found")
		}
		return nil, err
	}
	if err := visibleOrNotFound(p.Moderation, viewer, "Product not found"); err != nil {
		return nil, err
	}
	current, err := s.priceRepo.ListCurrent(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, nil
	}
	return &dto.LowestPrice{
		Price:   current[0].Price,
		Store:   current[0].Store.Name,
		StoreID: current[0].StoreID,
	}, nil
}
