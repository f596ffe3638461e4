package service

import (
	"context"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/apierror"
	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ReceiptEnqueuer pushes a receipt onto the async extraction queue.
// Implemented by the worker dispatcher; kept as an interface so services
// stay testable without Redis.
type ReceiptEnqueuer interface {
	EnqueueReceipt(ctx context.Context, receiptID uuid.UUID) error
}

// ReceiptService defines the business logic contract for receipt
// reconciliation: upload, async extraction, manual correction, stats.
type ReceiptService interface {
	Upload(ctx context.Context, viewer Viewer, req dto.UploadReceiptRequest) (dto.ReceiptResponse, error)
	Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ReceiptResponse, error)
	List(ctx context.Context, viewer Viewer, filter dto.ReceiptFilter) (dto.ReceiptListResponse, error)
	Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateReceiptRequest) (dto.ReceiptResponse, error)
	Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error
	Reprocess(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ReceiptResponse, error)

	AddItem(ctx context.Context, viewer Viewer, receiptID uuid.UUID, req dto.CreateReceiptItemRequest) (dto.ReceiptItemResponse, error)
	UpdateItem(ctx context.Context, viewer Viewer, receiptID, itemID uuid.UUID, req dto.UpdateReceiptItemRequest) (dto.ReceiptItemResponse, error)
	DeleteItem(ctx context.Context, viewer Viewer, receiptID, itemID uuid.UUID) error
	LinkItem(ctx context.Context, viewer Viewer, receiptID, itemID uuid.UUID, req dto.LinkReceiptItemRequest) (dto.ReceiptItemResponse, error)

	// ApplyExtraction and MarkFailed are the worker-facing half of the
	// state machine; both CAS out of "processing".
	ApplyExtraction(ctx context.Context, receiptID uuid.UUID, result dto.ExtractionResult) error
	MarkFailed(ctx context.Context, receiptID uuid.UUID, reason string) error

	Stats(ctx context.Context, viewer Viewer) (dto.ReceiptStatsResponse, error)
	SpendingByMonth(ctx context.Context, viewer Viewer, months int) ([]dto.MonthlySpending, error)
}

type receiptService struct {
	repo        repository.ReceiptRepository
	productRepo repository.ProductRepository
	storeRepo   repository.StoreRepository
	priceRepo   repository.PriceRepository
	queue       ReceiptEnqueuer
}

func NewReceiptService(
	repo repository.ReceiptRepository,
	productRepo repository.ProductRepository,
	storeRepo repository.StoreRepository,
	priceRepo repository.PriceRepository,
	queue ReceiptEnqueuer,
) ReceiptService {
	return &receiptService{
		repo:        repo,
		productRepo: productRepo,
		storeRepo:   storeRepo,
		priceRepo:   priceRepo,
		queue:       queue,
	}
}

func mapReceiptItem(item model.ReceiptItem) dto.ReceiptItemResponse {
	return dto.ReceiptItemResponse{
		ID:             item.ID,
		ProductName:    item.ProductName,
		NormalizedName: item.NormalizedName,
		Quantity:       item.Quantity,
		UnitPrice:      item.UnitPrice,
		TotalPrice:     item.TotalPrice,
		ProductID:      item.ProductID,
	}
}

func mapReceipt(rec model.Receipt) dto.ReceiptResponse {
	resp := dto.ReceiptResponse{
		ID:              rec.ID,
		StoreName:       rec.StoreName,
		StoreLocation:   rec.StoreLocation,
		TotalAmount:     rec.TotalAmount,
		TaxAmount:       rec.TaxAmount,
		ImageRef:        rec.ImageRef,
		Status:          string(rec.Status),
		ProcessingError: rec.ProcessingError,
		Items:           make([]dto.ReceiptItemResponse, 0, len(rec.Items)),
	}
	if rec.PurchaseDate != nil {
		formatted := rec.PurchaseDate.Format(dateLayout)
		resp.PurchaseDate = &formatted
	}
	for _, item := range rec.Items {
		resp.Items = append(resp.Items, mapReceiptItem(item))
	}
	return resp
}

func (s *receiptService) Upload(ctx context.Context, viewer Viewer, req dto.UploadReceiptRequest) (dto.ReceiptResponse, error) {
	rec := &model.Receipt{
		UserID:        viewer.ID,
		StoreName:     req.StoreName,
		StoreLocation: req.StoreLocation,
		ImageRef:      req.ImageRef,
		Status:        model.ReceiptPending,
	}
	if req.PurchaseDate != nil {
		parsed, err := time.Parse(dateLayout, *req.PurchaseDate)
		if err != nil {
			return dto.ReceiptResponse{}, apierror.Validation("purchase_date must be formatted as YYYY-MM-DD")
		}
		rec.PurchaseDate = &parsed
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return dto.ReceiptResponse{}, err
	}

	// Best effort: a receipt stuck in pending is re-enqueued by the cron.
	if s.queue != nil {
		if err := s.queue.EnqueueReceipt(ctx, rec.ID); err != nil {
			log.Warn().Err(err).Str("receipt_id", rec.ID.String()).Msg("receipt: enqueue failed, cron will retry")
		}
	}
	return mapReceipt(*rec), nil
}

func (s *receiptService) Get(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ReceiptResponse, error) {
	rec, err := s.repo.FindByID(ctx, id, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.ReceiptResponse{}, notFound(err, "Receipt not found")
	}
	return mapReceipt(*rec), nil
}

func (s *receiptService) List(ctx context.Context, viewer Viewer, filter dto.ReceiptFilter) (dto.ReceiptListResponse, error) {
	receipts, total, err := s.repo.List(ctx, viewer.ID, filter)
	if err != nil {
		return dto.ReceiptListResponse{}, err
	}
	resp := dto.ReceiptListResponse{
		Data:       make([]dto.ReceiptResponse, 0, len(receipts)),
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}
	for _, rec := range receipts {
		resp.Data = append(resp.Data, mapReceipt(rec))
	}
	return resp, nil
}

func (s *receiptService) Update(ctx context.Context, viewer Viewer, id uuid.UUID, req dto.UpdateReceiptRequest) (dto.ReceiptResponse, error) {
	rec, err := s.repo.FindByID(ctx, id, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.ReceiptResponse{}, notFound(err, "Receipt not found")
	}

	if req.StoreName != nil {
		rec.StoreName = *req.StoreName
	}
	if req.StoreLocation != nil {
		rec.StoreLocation = *req.StoreLocation
	}
	if req.PurchaseDate != nil {
		parsed, err := time.Parse(dateLayout, *req.PurchaseDate)
		if err != nil {
			return dto.ReceiptResponse{}, apierror.Validation("purchase_date must be formatted as YYYY-MM-DD")
		}
		rec.PurchaseDate = &parsed
	}
	if req.TaxAmount != nil {
		if req.TaxAmount.IsNegative() {
			return dto.ReceiptResponse{}, apierror.Validation("tax_amount must be zero or positive")
		}
		rec.TaxAmount = *req.TaxAmount
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return dto.ReceiptResponse{}, err
	}
	return mapReceipt(*rec), nil
}

func (s *receiptService) Delete(ctx context.Context, viewer Viewer, id uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, id, viewer.ID, viewer.Moderator); err != nil {
		return notFound(err, "Receipt not found")
	}
	return s.repo.Delete(ctx, id)
}

// Reprocess requeues a completed or failed receipt through extraction.
// The status flip is a CAS on the observed status so two concurrent
// reprocess calls cannot both win.
func (s *receiptService) Reprocess(ctx context.Context, viewer Viewer, id uuid.UUID) (dto.ReceiptResponse, error) {
	rec, err := s.repo.FindByID(ctx, id, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.ReceiptResponse{}, notFound(err, "Receipt not found")
	}
	if !rec.Status.CanTransition(model.ReceiptProcessing) || rec.Status == model.ReceiptPending {
		return dto.ReceiptResponse{}, apierror.InvalidTransition(
			"Cannot reprocess a receipt in status %q", rec.Status)
	}

	rows, err := s.repo.UpdateStatusIf(ctx, id, rec.Status, model.ReceiptProcessing)
	if err != nil {
		return dto.ReceiptResponse{}, err
	}
	if rows == 0 {
		return dto.ReceiptResponse{}, apierror.InvalidTransition("Receipt status changed concurrently")
	}

	// Old extraction output is discarded; manual edits go with it.
	if err := s.repo.DeleteItems(ctx, id); err != nil {
		return dto.ReceiptResponse{}, err
	}
	rec.Status = model.ReceiptProcessing
	rec.ProcessingError = ""
	rec.TotalAmount = decimal.Zero
	rec.Items = nil
	if err := s.repo.Update(ctx, rec); err != nil {
		return dto.ReceiptResponse{}, err
	}

	if s.queue != nil {
		if err := s.queue.EnqueueReceipt(ctx, id); err != nil {
			log.Warn().Err(err).Str("receipt_id", id.String()).Msg("receipt: reprocess enqueue failed, cron will retry")
		}
	}
	return mapReceipt(*rec), nil
}

// ─── Items ───────────────────────────────────────────────────────────────────

func (s *receiptService) AddItem(ctx context.Context, viewer Viewer, receiptID uuid.UUID, req dto.CreateReceiptItemRequest) (dto.ReceiptItemResponse, error) {
	rec, err := s.repo.FindByID(ctx, receiptID, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.ReceiptItemResponse{}, notFound(err, "Receipt not found")
	}
	if req.Quantity.IsNegative() || req.Quantity.IsZero() {
		return dto.ReceiptItemResponse{}, apierror.Validation("quantity must be positive")
	}
	if req.UnitPrice.IsNegative() {
		return dto.ReceiptItemResponse{}, apierror.Validation("unit_price must be zero or positive")
	}
	if req.ProductID != nil {
		if _, err := s.productRepo.FindByID(ctx, *req.ProductID); err != nil {
			return dto.ReceiptItemResponse{}, notFound(err, "Product not found")
		}
	}

	item := &model.ReceiptItem{
		ReceiptID:      rec.ID,
		ProductName:    req.ProductName,
		NormalizedName: model.NormalizeName(req.ProductName),
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		TotalPrice:     model.LineTotal(req.Quantity, req.UnitPrice),
		ProductID:      req.ProductID,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return dto.ReceiptItemResponse{}, err
	}
	if err := s.recomputeTotal(ctx, rec); err != nil {
		return dto.ReceiptItemResponse{}, err
	}
	return mapReceiptItem(*item), nil
}

func (s *receiptService) UpdateItem(ctx context.Context, viewer Viewer, receiptID, itemID uuid.UUID, req dto.UpdateReceiptItemRequest) (dto.ReceiptItemResponse, error) {
	rec, err := s.repo.FindByID(ctx, receiptID, viewer.ID, viewer.Moderator)
	if err != nil {
		return dto.ReceiptItemResponse{}, notFound(err, "Receipt not found")
	}
	item, err := s.repo.FindItem(ctx, receiptID, itemID)
	if err != nil {
		return dto.ReceiptItemResponse{}, notFound(err, "Receipt item not found")
	}

	fields := map[string]any{}
	if req.ProductName != nil {
		fields["product_name"] = *req.ProductName
		fields["normalized_name"] = model.NormalizeName(*req.ProductName)
		item.ProductName = *req.ProductName
		item.NormalizedName = model.NormalizeName(*req.ProductName)
	}
	quantity := item.Quantity
	unitPrice := item.UnitPrice
	if req.Quantity != nil {
		if req.Quantity.IsNegative() || req.Quantity.IsZero() {
			return dto.ReceiptItemResponse{}, apierror.Validation("quantity must be positive")
		}
		quantity = *req.Quantity
		fields["quantity"] = quantity
		item.Quantity = quantity
	}
	if req.UnitPrice != nil {
		if req.UnitPrice.IsNegative() {
			return dto.ReceiptItemResponse{}, apierror.Validation("unit_price must be zero or positive")
		}
		unitPrice = *req.UnitPrice
		fields["unit_price"] = unitPrice
		item.UnitPrice = unitPrice
	}
	if req.Quantity != nil || req.UnitPrice != nil {
		item.TotalPrice = model.LineTotal(quantity, unitPrice)
		fields["total_price"] = item.TotalPrice
	}
	if len(fields) == 0 {
		return mapReceiptItem(*item), nil
	}

	// Single UPDATE so quantity, unit price and the derived total land
	// together; no observer sees a total that disagrees with its factors.
	if err := s.repo.UpdateItemFields(ctx, itemID, fields); err != nil {
		return dto.ReceiptItemResponse{}, err
	}
	if err := s.recomputeTotal(ctx, rec); err != nil {
		return dto.ReceiptItemResponse{}, err
	}
	return mapReceiptItem(*item), nil
}

func (s *receiptService) DeleteItem(ctx context.Context, viewer Viewer, receiptID, itemID uuid.UUID) error {
	rec, err := s.repo.FindByID(ctx, receiptID, viewer.ID, viewer.Moderator)
	if err != nil {
		return notFound(err, "Receipt not found")
	}
	if _, err := s.repo.FindItem(ctx, receiptID, itemID); err != nil {
		return notFound(err, "Receipt item not found")
	}
	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	return s.recomputeTotal(ctx, rec)
}

// LinkItem attaches or detaches a catalog product. The scanned text is
// left untouched either way.
func (s *receiptService) LinkItem(ctx context.Context, viewer Viewer, receiptID, itemID uuid.UUID, req dto.LinkReceiptItemRequest) (dto.ReceiptItemResponse, error) {
	if _, err := s.repo.FindByID(ctx, receiptID, viewer.ID, viewer.Moderator); err != nil {
		return dto.ReceiptItemResponse{}, notFound(err, "Receipt not found")
	}
	item, err := s.repo.FindItem(ctx, receiptID, itemID)
	if err != nil {
		return dto.ReceiptItemResponse{}, notFound(err, "Receipt item not found")
	}

	if req.ProductID != nil {
		product, err := s.productRepo.FindByID(ctx, *req.ProductID)
		if err != nil {
			return dto.ReceiptItemResponse{}, notFound(err, "Product not found")
		}
		if err := visibleOrNotFound(product.Moderation, viewer, "Product not found"); err != nil {
			return dto.ReceiptItemResponse{}, err
		}
	}

	if err := s.repo.UpdateItemFields(ctx, itemID, map[string]any{"product_id": req.ProductID}); err != nil {
		return dto.ReceiptItemResponse{}, err
	}
	item.ProductID = req.ProductID
	return mapReceiptItem(*item), nil
}

func (s *receiptService) recomputeTotal(ctx context.Context, rec *model.Receipt) error {
	total, err := s.repo.SumItemTotals(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.TotalAmount = total
	return s.repo.Update(ctx, rec)
}

// ─── Worker-facing transitions ───────────────────────────────────────────────

// ApplyExtraction ingests the OCR pipeline output: replaces items,
// auto-links catalog products by exact normalized name, feeds observed
// prices into the moderation queue when the store is recognized, and
// completes the receipt.
func (s *receiptService) ApplyExtraction(ctx context.Context, receiptID uuid.UUID, result dto.ExtractionResult) error {
	rec, err := s.repo.FindByID(ctx, receiptID, uuid.Nil, true)
	if err != nil {
		return notFound(err, "Receipt not found")
	}
	if rec.Status != model.ReceiptProcessing {
		return apierror.InvalidTransition("Receipt %s is not processing", receiptID)
	}

	if rec.StoreName == "" {
		rec.StoreName = result.StoreName
	}
	if rec.StoreLocation == "" {
		rec.StoreLocation = result.StoreLocation
	}
	if rec.PurchaseDate == nil && result.PurchaseDate != nil {
		if parsed, err := time.Parse(dateLayout, *result.PurchaseDate); err == nil {
			rec.PurchaseDate = &parsed
		}
	}
	rec.OCRText = result.RawText
	rec.TaxAmount = result.TaxAmount
	rec.ProcessingError = ""

	if err := s.repo.DeleteItems(ctx, receiptID); err != nil {
		return err
	}

	items := make([]model.ReceiptItem, 0, len(result.Items))
	for _, extracted := range result.Items {
		normalized := model.NormalizeName(extracted.ProductName)
		item := model.ReceiptItem{
			ReceiptID:      receiptID,
			ProductName:    extracted.ProductName,
			NormalizedName: normalized,
			Quantity:       extracted.Quantity,
			UnitPrice:      extracted.UnitPrice,
			TotalPrice:     model.LineTotal(extracted.Quantity, extracted.UnitPrice),
		}
		if item.Quantity.IsZero() {
			item.Quantity = decimal.NewFromInt(1)
			item.TotalPrice = model.LineTotal(item.Quantity, item.UnitPrice)
		}
		// Exact normalized-name match only. Fuzzy linking creates wrong
		// links that users silently trust; near-misses stay unlinked.
		if product, err := s.productRepo.FindApprovedByNormalizedName(ctx, normalized); err == nil {
			item.ProductID = &product.ID
		}
		items = append(items, item)
	}
	if len(items) > 0 {
		if err := s.repo.CreateItems(ctx, items); err != nil {
			return err
		}
	}

	total, err := s.repo.SumItemTotals(ctx, receiptID)
	if err != nil {
		return err
	}
	if total.IsZero() && !result.TotalAmount.IsZero() {
		total = result.TotalAmount
	}
	rec.TotalAmount = total
	if err := s.repo.Update(ctx, rec); err != nil {
		return err
	}

	s.feedScannedPrices(ctx, rec, items)

	rows, err := s.repo.UpdateStatusIf(ctx, receiptID, model.ReceiptProcessing, model.ReceiptCompleted)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apierror.InvalidTransition("Receipt %s left processing concurrently", receiptID)
	}
	return nil
}

// feedScannedPrices turns linked line items into pending price
// observations when the receipt's store name resolves to an approved
// store. Failures here never fail the extraction.
func (s *receiptService) feedScannedPrices(ctx context.Context, rec *model.Receipt, items []model.ReceiptItem) {
	if rec.StoreName == "" {
		return
	}
	store, err := s.storeRepo.FindApprovedByName(ctx, rec.StoreName)
	if err != nil {
		return
	}

	dateRecorded := time.Now().UTC().Truncate(24 * time.Hour)
	if rec.PurchaseDate != nil {
		dateRecorded = *rec.PurchaseDate
	}
	for _, item := range items {
		if item.ProductID == nil || item.UnitPrice.IsNegative() || item.UnitPrice.IsZero() {
			continue
		}
		p := &model.Price{
			ProductID:    *item.ProductID,
			StoreID:      store.ID,
			Price:        item.UnitPrice,
			DateRecorded: dateRecorded,
			IsActive:     true,
			Source:       model.PriceSourceScan,
			Moderation: model.Moderation{
				Status:      model.StatusPending,
				SubmittedBy: rec.UserID,
			},
		}
		if err := s.priceRepo.Create(ctx, p); err != nil {
			log.Warn().Err(err).
				Str("receipt_id", rec.ID.String()).
				Str("product_id", item.ProductID.String()).
				Msg("receipt: scanned price not recorded")
		}
	}
}

func (s *receiptService) MarkFailed(ctx context.Context, receiptID uuid.UUID, reason string) error {
	rec, err := s.repo.FindByID(ctx, receiptID, uuid.Nil, true)
	if err != nil {
		return notFound(err, "Receipt not found")
	}
	rows, err := s.repo.UpdateStatusIf(ctx, receiptID, model.ReceiptProcessing, model.ReceiptFailed)
	if err != nil {
		return err
	}
	if rows == 0 {
		return apierror.InvalidTransition("Receipt %s is not processing", receiptID)
	}
	rec.Status = model.ReceiptFailed
	rec.ProcessingError = reason
	return s.repo.Update(ctx, rec)
}

// ─── Statistics ──────────────────────────────────────────────────────────────

func (s *receiptService) Stats(ctx context.Context, viewer Viewer) (dto.ReceiptStatsResponse, error) {
	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	stats, recent, err := s.repo.Stats(ctx, viewer.ID, monthStart)
	if err != nil {
		return dto.ReceiptStatsResponse{}, err
	}
	stats.RecentReceipts = make([]dto.ReceiptResponse, 0, len(recent))
	for _, rec := range recent {
		stats.RecentReceipts = append(stats.RecentReceipts, mapReceipt(rec))
	}
	return stats, nil
}

func (s *receiptService) SpendingByMonth(ctx context.Context, viewer Viewer, months int) ([]dto.MonthlySpending, error) {
	if months <= 0 {
		months = 12
	}
	since := time.Now().UTC().AddDate(0, -months, 0)
	return s.repo.SpendingByMonth(ctx, viewer.ID, since)
}
