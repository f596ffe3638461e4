package tests

import (
	"context"
	"testing"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildProductSvc() (service.ProductService, *stubProductRepo, *stubPriceRepo, *stubCategoryRepo) {
	productRepo := newStubProductRepo()
	priceRepo := newStubPriceRepo()
	categoryRepo := newStubCategoryRepo()
	svc := service.NewProductService(productRepo, priceRepo, categoryRepo)
	return svc, productRepo, priceRepo, categoryRepo
}

func seedProduct(repo *stubProductRepo, name string, status model.ModerationStatus, submitter uuid.UUID) *model.Product {
	p := &model.Product{
		ID:             uuid.New(),
		Name:           name,
		NormalizedName: model.NormalizeName(name),
		Moderation: model.Moderation{
			Status:      status,
			SubmittedBy: submitter,
		},
		Active: true,
	}
	repo.products[p.ID] = p
	return p
}

// seedCurrentPrice inserts an approved active observation directly.
func seedCurrentPrice(repo *stubPriceRepo, product *model.Product, store *model.Store, price string, date time.Time) *model.Price {
	p := &model.Price{
		ID:           uuid.New(),
		ProductID:    product.ID,
		StoreID:      store.ID,
		Price:        decimal.RequireFromString(price),
		DateRecorded: date,
		IsActive:     true,
		Source:       model.PriceSourceManual,
		Moderation: model.Moderation{
			Status:      model.StatusApproved,
			SubmittedBy: uuid.New(),
		},
		Store: *store,
	}
	repo.prices[p.ID] = p
	return p
}

// ── Tests ─────────────────────────────────────────────────────────────────────

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Whole   Milk ": "whole milk",
		"WHOLE MILK":      "whole milk",
		"whole milk":      "whole milk",
		"Cheddar\tCheese": "cheddar cheese",
		"":                "",
	}
	for input, want := range cases {
		assert.Equal(t, want, model.NormalizeName(input), "input %q", input)
	}
}

func TestCreateProduct_NormalizedAndPending(t *testing.T) {
	svc, _, _, _ := buildProductSvc()
	shopper := service.Viewer{ID: uuid.New()}

	resp, err := svc.Create(context.Background(), shopper, dto.CreateProductRequest{
		Name:  "  Whole   Milk ",
		Brand: "DairyCo",
		Unit:  "each",
	})
	require.NoError(t, err)
	assert.Equal(t, "whole milk", resp.NormalizedName)
	assert.Equal(t, "pending", resp.Status)
}

func TestCreateProduct_MissingCategory(t *testing.T) {
	svc, _, _, _ := buildProductSvc()
	shopper := service.Viewer{ID: uuid.New()}
	missing := uuid.New()

	_, err := svc.Create(context.Background(), shopper, dto.CreateProductRequest{
		Name:       "Whole Milk",
		CategoryID: &missing,
	})
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestGetByBarcode(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	shopper := service.Viewer{ID: uuid.New()}
	p := seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())
	barcode := "0123456789012"
	p.Barcode = &barcode

	resp, err := svc.GetByBarcode(context.Background(), shopper, barcode)
	require.NoError(t, err)
	assert.Equal(t, p.ID, resp.ID)

	_, err = svc.GetByBarcode(context.Background(), shopper, "9999999999999")
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

func TestGetProduct_AttachesLowestPrice(t *testing.T) {
	svc, productRepo, priceRepo, _ := buildProductSvc()
	storeRepo := newStubStoreRepo()
	shopper := service.Viewer{ID: uuid.New()}

	p := seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())
	cheap := seedStore(storeRepo, "FreshMart", model.StatusApproved, uuid.New())
	dear := seedStore(storeRepo, "MegaStore", model.StatusApproved, uuid.New())
	day := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedCurrentPrice(priceRepo, p, dear, "3.00", day)
	seedCurrentPrice(priceRepo, p, cheap, "2.50", day)

	resp, err := svc.Get(context.Background(), shopper, p.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.LowestPrice)
	assert.Equal(t, "2.5", resp.LowestPrice.Price.String())
	assert.Equal(t, "FreshMart", resp.LowestPrice.Store)
	assert.Len(t, resp.CurrentPrices, 2)
}

func TestSearch_VisibilityFilter(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	submitter := service.Viewer{ID: uuid.New()}
	other := service.Viewer{ID: uuid.New()}

	seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())
	seedProduct(productRepo, "Skim Milk", model.StatusPending, submitter.ID)

	results, err := svc.Search(context.Background(), other, dto.SearchProductsRequest{Query: "milk"})
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Submitters also see their own pending products.
	results, err = svc.Search(context.Background(), submitter, dto.SearchProductsRequest{Query: "milk"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_NormalizesQuery(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	shopper := service.Viewer{ID: uuid.New()}
	seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())

	results, err := svc.Search(context.Background(), shopper, dto.SearchProductsRequest{Query: "  WHOLE   milk "})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_PrefixMatchesRankFirst(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	shopper := service.Viewer{ID: uuid.New()}
	seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())
	seedProduct(productRepo, "Milkshake", model.StatusApproved, uuid.New())
	seedProduct(productRepo, "Almond Milk", model.StatusApproved, uuid.New())

	results, err := svc.Search(context.Background(), shopper, dto.SearchProductsRequest{Query: "milk"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Milkshake", results[0].Name)
	assert.Equal(t, "Almond Milk", results[1].Name)
	assert.Equal(t, "Whole Milk", results[2].Name)
}

func TestApproveProduct_SecondApproveConflicts(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	p := seedProduct(productRepo, "Whole Milk", model.StatusPending, uuid.New())

	resp, err := svc.Approve(context.Background(), moderator, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)

	_, err = svc.Approve(context.Background(), moderator, p.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidState))
}

func TestUpdateProduct_RenameRecomputesNormalizedName(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	submitter := service.Viewer{ID: uuid.New()}
	p := seedProduct(productRepo, "Whole Milk", model.StatusPending, submitter.ID)
	newName := "  Organic   Whole Milk "

	resp, err := svc.Update(context.Background(), submitter, p.ID, dto.UpdateProductRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "organic whole milk", resp.NormalizedName)
}

func TestUpdateProduct_ApprovedNeedsModerator(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	submitter := service.Viewer{ID: uuid.New()}
	p := seedProduct(productRepo, "Whole Milk", model.StatusApproved, submitter.ID)
	newName := "Whole Milk 2L"

	_, err := svc.Update(context.Background(), submitter, p.ID, dto.UpdateProductRequest{Name: &newName})
	assert.True(t, apierror.IsKind(err, apierror.KindPermission))

	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	_, err = svc.Update(context.Background(), moderator, p.ID, dto.UpdateProductRequest{Name: &newName})
	assert.NoError(t, err)
}

func TestSoftDeleteProduct(t *testing.T) {
	svc, productRepo, _, _ := buildProductSvc()
	moderator := service.Viewer{ID: uuid.New(), Moderator: true}
	p := seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())

	require.NoError(t, svc.Delete(context.Background(), moderator, p.ID))
	assert.False(t, productRepo.products[p.ID].Active)

	// Deleted products no longer show up in search.
	results, err := svc.Search(context.Background(), moderator, dto.SearchProductsRequest{Query: "milk"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
