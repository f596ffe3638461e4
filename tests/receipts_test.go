package tests

import (
	"context"
	"errors"
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

func buildReceiptSvc() (service.ReceiptService, *stubReceiptRepo, *stubProductRepo, *stubStoreRepo, *stubPriceRepo, *stubEnqueuer) {
	receiptRepo := newStubReceiptRepo()
	productRepo := newStubProductRepo()
	storeRepo := newStubStoreRepo()
	priceRepo := newStubPriceRepo()
	queue := &stubEnqueuer{}
	svc := service.NewReceiptService(receiptRepo, productRepo, storeRepo, priceRepo, queue)
	return svc, receiptRepo, productRepo, storeRepo, priceRepo, queue
}

func uploadReceipt(t *testing.T, svc service.ReceiptService, viewer service.Viewer) dto.ReceiptResponse {
	t.Helper()
	resp, err := svc.Upload(context.Background(), viewer, dto.UploadReceiptRequest{
		ImageRef:  "media/receipt-001.jpg",
		StoreName: "FreshMart",
	})
	require.NoError(t, err)
	return resp
}

// moveToStatus walks the receipt through legal transitions to the target.
func moveToStatus(t *testing.T, repo *stubReceiptRepo, id uuid.UUID, target model.ReceiptStatus) {
	t.Helper()
	ctx := context.Background()
	switch target {
	case model.ReceiptProcessing:
		_, err := repo.UpdateStatusIf(ctx, id, model.ReceiptPending, model.ReceiptProcessing)
		require.NoError(t, err)
	case model.ReceiptCompleted, model.ReceiptFailed:
		_, err := repo.UpdateStatusIf(ctx, id, model.ReceiptPending, model.ReceiptProcessing)
		require.NoError(t, err)
		rows, err := repo.UpdateStatusIf(ctx, id, model.ReceiptProcessing, target)
		require.NoError(t, err)
		require.EqualValues(t, 1, rows)
	}
}

// ── Upload & lifecycle ────────────────────────────────────────────────────────

func TestUploadReceipt_PendingAndEnqueued(t *testing.T) {
	svc, _, _, _, _, queue := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}

	resp := uploadReceipt(t, svc, shopper)
	assert.Equal(t, "pending", resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0])
}

func TestUploadReceipt_EnqueueFailureIsNotFatal(t *testing.T) {
	svc, repo, _, _, _, queue := buildReceiptSvc()
	queue.failErr = errors.New("redis down")
	shopper := service.Viewer{ID: uuid.New()}

	resp := uploadReceipt(t, svc, shopper)

	// The receipt is stored in pending; the cron re-enqueues it later.
	stored, err := repo.FindByID(context.Background(), resp.ID, shopper.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptPending, stored.Status)
}

func TestGetReceipt_ScopedToOwner(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	owner := service.Viewer{ID: uuid.New()}
	other := service.Viewer{ID: uuid.New()}

	resp := uploadReceipt(t, svc, owner)

	_, err := svc.Get(context.Background(), other, resp.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindNotFound))
}

// ── Items ─────────────────────────────────────────────────────────────────────

func TestAddItem_ComputesLineTotal(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	item, err := svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "Whole Milk",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "3", item.TotalPrice.String())
	assert.Equal(t, "whole milk", item.NormalizedName)
}

func TestUpdateItem_QuantityRecomputesTotals(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	item, err := svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "Whole Milk",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)

	qty := decimal.NewFromInt(3)
	updated, err := svc.UpdateItem(context.Background(), shopper, rec.ID, item.ID, dto.UpdateReceiptItemRequest{
		Quantity: &qty,
	})
	require.NoError(t, err)
	assert.Equal(t, "4.5", updated.TotalPrice.String())

	// The receipt total follows the line items.
	stored, err := svc.Get(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.5", stored.TotalAmount.String())
}

func TestUpdateItem_ZeroQuantityRejected(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	item, err := svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "Whole Milk",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)

	zero := decimal.Zero
	_, err = svc.UpdateItem(context.Background(), shopper, rec.ID, item.ID, dto.UpdateReceiptItemRequest{
		Quantity: &zero,
	})
	assert.True(t, apierror.IsKind(err, apierror.KindValidation))
}

func TestDeleteItem_RecomputesReceiptTotal(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	first, err := svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "Whole Milk",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "Bread",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("2.25"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(context.Background(), shopper, rec.ID, first.ID))

	stored, err := svc.Get(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.25", stored.TotalAmount.String())
}

func TestLinkItem_AttachAndDetach(t *testing.T) {
	svc, _, productRepo, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	product := seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())

	item, err := svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "WHOLE MILK 2L",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)

	linked, err := svc.LinkItem(context.Background(), shopper, rec.ID, item.ID, dto.LinkReceiptItemRequest{
		ProductID: &product.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, linked.ProductID)
	assert.Equal(t, product.ID, *linked.ProductID)
	// Linking never rewrites the scanned text.
	assert.Equal(t, "WHOLE MILK 2L", linked.ProductName)

	detached, err := svc.LinkItem(context.Background(), shopper, rec.ID, item.ID, dto.LinkReceiptItemRequest{})
	require.NoError(t, err)
	assert.Nil(t, detached.ProductID)
}

// ── Reprocess ─────────────────────────────────────────────────────────────────

func TestReprocess_PendingRejected(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	_, err := svc.Reprocess(context.Background(), shopper, rec.ID)
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidTransition))
}

func TestReprocess_FailedReceipt(t *testing.T) {
	svc, repo, _, _, _, queue := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, rec.ID, model.ReceiptFailed)
	queue.enqueued = nil

	resp, err := svc.Reprocess(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	assert.Empty(t, resp.Items)
	require.Len(t, queue.enqueued, 1)
}

func TestReprocess_CompletedDiscardsOldItems(t *testing.T) {
	svc, repo, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	_, err := svc.AddItem(context.Background(), shopper, rec.ID, dto.CreateReceiptItemRequest{
		ProductName: "Whole Milk",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.RequireFromString("1.50"),
	})
	require.NoError(t, err)
	moveToStatus(t, repo, rec.ID, model.ReceiptCompleted)

	resp, err := svc.Reprocess(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.True(t, resp.TotalAmount.IsZero())
}

// ── Worker-facing transitions ─────────────────────────────────────────────────

func extractionFixture() dto.ExtractionResult {
	date := "2026-08-15"
	return dto.ExtractionResult{
		StoreName:    "FreshMart",
		PurchaseDate: &date,
		TotalAmount:  decimal.RequireFromString("4.75"),
		RawText:      "FRESHMART\nWHOLE MILK 2 x 1.50\nBREAD 1.75\nTOTAL 4.75",
		Items: []dto.ExtractedItem{
			{ProductName: "WHOLE MILK", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("1.50")},
			{ProductName: "BREAD", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("1.75")},
		},
	}
}

func TestApplyExtraction_CompletesAndAutoLinks(t *testing.T) {
	svc, repo, productRepo, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, rec.ID, model.ReceiptProcessing)
	milk := seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())

	require.NoError(t, svc.ApplyExtraction(context.Background(), rec.ID, extractionFixture()))

	stored, err := svc.Get(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", stored.Status)
	assert.Equal(t, "4.75", stored.TotalAmount.String())
	require.Len(t, stored.Items, 2)

	// "WHOLE MILK" matches the catalog product by normalized name;
	// "BREAD" has no match and stays unlinked.
	for _, item := range stored.Items {
		switch item.NormalizedName {
		case "whole milk":
			require.NotNil(t, item.ProductID)
			assert.Equal(t, milk.ID, *item.ProductID)
		case "bread":
			assert.Nil(t, item.ProductID)
		}
	}
}

func TestApplyExtraction_NotProcessing(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	err := svc.ApplyExtraction(context.Background(), rec.ID, extractionFixture())
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidTransition))
}

func TestApplyExtraction_ZeroQuantityDefaultsToOne(t *testing.T) {
	svc, repo, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, rec.ID, model.ReceiptProcessing)

	result := dto.ExtractionResult{
		Items: []dto.ExtractedItem{
			{ProductName: "Eggs", UnitPrice: decimal.RequireFromString("3.20")},
		},
	}
	require.NoError(t, svc.ApplyExtraction(context.Background(), rec.ID, result))

	stored, err := svc.Get(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "1", stored.Items[0].Quantity.String())
	assert.Equal(t, "3.2", stored.Items[0].TotalPrice.String())
}

func TestApplyExtraction_FeedsScannedPrices(t *testing.T) {
	svc, repo, productRepo, storeRepo, priceRepo, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, rec.ID, model.ReceiptProcessing)

	milk := seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())
	store := seedStore(storeRepo, "FreshMart", model.StatusApproved, uuid.New())

	require.NoError(t, svc.ApplyExtraction(context.Background(), rec.ID, extractionFixture()))

	// The linked milk item became a pending scan-sourced observation;
	// the unlinked bread item did not.
	require.Len(t, priceRepo.prices, 1)
	for _, p := range priceRepo.prices {
		assert.Equal(t, milk.ID, p.ProductID)
		assert.Equal(t, store.ID, p.StoreID)
		assert.Equal(t, model.PriceSourceScan, p.Source)
		assert.Equal(t, model.StatusPending, p.Status)
		assert.Equal(t, shopper.ID, p.SubmittedBy)
		assert.Equal(t, "1.5", p.Price.String())
	}
}

func TestApplyExtraction_UnknownStoreFeedsNothing(t *testing.T) {
	svc, repo, productRepo, _, priceRepo, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, rec.ID, model.ReceiptProcessing)
	seedProduct(productRepo, "Whole Milk", model.StatusApproved, uuid.New())

	require.NoError(t, svc.ApplyExtraction(context.Background(), rec.ID, extractionFixture()))
	assert.Empty(t, priceRepo.prices)
}

func TestMarkFailed(t *testing.T) {
	svc, repo, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, rec.ID, model.ReceiptProcessing)

	require.NoError(t, svc.MarkFailed(context.Background(), rec.ID, "ocr sidecar unreachable"))

	stored, err := svc.Get(context.Background(), shopper, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", stored.Status)
	assert.Equal(t, "ocr sidecar unreachable", stored.ProcessingError)
}

func TestMarkFailed_NotProcessing(t *testing.T) {
	svc, _, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}
	rec := uploadReceipt(t, svc, shopper)

	err := svc.MarkFailed(context.Background(), rec.ID, "boom")
	assert.True(t, apierror.IsKind(err, apierror.KindInvalidTransition))
}

func TestReceiptTransitions(t *testing.T) {
	legal := []struct {
		from, to model.ReceiptStatus
	}{
		{model.ReceiptPending, model.ReceiptProcessing},
		{model.ReceiptProcessing, model.ReceiptCompleted},
		{model.ReceiptProcessing, model.ReceiptFailed},
		{model.ReceiptFailed, model.ReceiptProcessing},
		{model.ReceiptCompleted, model.ReceiptProcessing},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransition(tc.to), "%s → %s should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from, to model.ReceiptStatus
	}{
		{model.ReceiptPending, model.ReceiptCompleted},
		{model.ReceiptPending, model.ReceiptFailed},
		{model.ReceiptCompleted, model.ReceiptFailed},
		{model.ReceiptFailed, model.ReceiptCompleted},
		{model.ReceiptProcessing, model.ReceiptPending},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransition(tc.to), "%s → %s should be illegal", tc.from, tc.to)
	}
}

// ── Statistics ────────────────────────────────────────────────────────────────

func TestSpendingByMonth_DefaultsToTwelveMonths(t *testing.T) {
	svc, repo, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}

	recent := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, recent.ID, model.ReceiptCompleted)
	repo.receipts[recent.ID].TotalAmount = decimal.RequireFromString("10.00")
	repo.receipts[recent.ID].CreatedAt = time.Now().UTC().AddDate(0, -10, 0)

	ancient := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, ancient.ID, model.ReceiptCompleted)
	repo.receipts[ancient.ID].TotalAmount = decimal.RequireFromString("30.00")
	repo.receipts[ancient.ID].CreatedAt = time.Now().UTC().AddDate(0, -14, 0)

	// months <= 0 falls back to the last 12 months.
	spending, err := svc.SpendingByMonth(context.Background(), shopper, 0)
	require.NoError(t, err)
	require.Len(t, spending, 1)
	assert.Equal(t, "10", spending[0].Total.String())
}

func TestStats_CompletedReceiptsOnly(t *testing.T) {
	svc, repo, _, _, _, _ := buildReceiptSvc()
	shopper := service.Viewer{ID: uuid.New()}

	done := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, done.ID, model.ReceiptCompleted)
	repo.receipts[done.ID].TotalAmount = decimal.RequireFromString("20.00")

	failed := uploadReceipt(t, svc, shopper)
	moveToStatus(t, repo, failed.ID, model.ReceiptFailed)
	repo.receipts[failed.ID].TotalAmount = decimal.RequireFromString("99.00")

	stats, err := svc.Stats(context.Background(), shopper)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalReceipts)
	assert.Equal(t, "20", stats.TotalSpent.String())
}
