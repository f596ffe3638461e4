package tests

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/model"
	"github.com/RhaCode/Groci-Smart-sub000/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Store stub ────────────────────────────────────────────────────────────────

// stubStoreRepo is an in-memory StoreRepository for testing.
type stubStoreRepo struct {
	stores map[uuid.UUID]*model.Store
	prefs  map[uuid.UUID]map[uuid.UUID]time.Time // userID -> storeID -> added
}

func newStubStoreRepo() *stubStoreRepo {
	return &stubStoreRepo{
		stores: make(map[uuid.UUID]*model.Store),
		prefs:  make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (r *stubStoreRepo) Create(_ context.Context, s *model.Store) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.stores[s.ID] = s
	return nil
}

func (r *stubStoreRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *stubStoreRepo) FindApprovedByName(_ context.Context, name string) (*model.Store, error) {
	for _, s := range r.stores {
		if strings.EqualFold(s.Name, name) && s.Status == model.StatusApproved && s.Active {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubStoreRepo) List(_ context.Context, filter dto.StoreFilter, viewerID uuid.UUID, moderator bool) ([]model.Store, int64, error) {
	var out []model.Store
	for _, s := range r.stores {
		if !s.VisibleTo(viewerID, moderator) {
			continue
		}
		if filter.Status != "" && string(s.Status) != filter.Status {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(filter.Name)) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *stubStoreRepo) Update(_ context.Context, s *model.Store) error {
	if _, ok := r.stores[s.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *s
	r.stores[s.ID] = &copied
	return nil
}

func (r *stubStoreRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	s, ok := r.stores[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Active = false
	return nil
}

func (r *stubStoreRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	s, ok := r.stores[id]
	if !ok || s.Status != from {
		return 0, nil
	}
	s.Status = to
	return 1, nil
}

func (r *stubStoreRepo) AddPreferred(_ context.Context, userID, storeID uuid.UUID) error {
	if r.prefs[userID] == nil {
		r.prefs[userID] = make(map[uuid.UUID]time.Time)
	}
	// set semantics: re-adding is a no-op
	if _, exists := r.prefs[userID][storeID]; !exists {
		r.prefs[userID][storeID] = time.Now()
	}
	return nil
}

func (r *stubStoreRepo) RemovePreferred(_ context.Context, userID, storeID uuid.UUID) error {
	delete(r.prefs[userID], storeID)
	return nil
}

func (r *stubStoreRepo) ListPreferred(_ context.Context, userID uuid.UUID) ([]model.PreferredStore, error) {
	var out []model.PreferredStore
	for storeID, added := range r.prefs[userID] {
		s := r.stores[storeID]
		out = append(out, model.PreferredStore{
			UserID:  userID,
			StoreID: storeID,
			AddedAt: added,
			Store:   *s,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Store.Name < out[j].Store.Name })
	return out, nil
}

var _ repository.StoreRepository = (*stubStoreRepo)(nil)

// ── Category stub ─────────────────────────────────────────────────────────────

type stubCategoryRepo struct {
	categories map[uuid.UUID]*model.Category
	order      []uuid.UUID
}

func newStubCategoryRepo() *stubCategoryRepo {
	return &stubCategoryRepo{categories: make(map[uuid.UUID]*model.Category)}
}

func (r *stubCategoryRepo) Create(_ context.Context, c *model.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.categories[c.ID] = c
	r.order = append(r.order, c.ID)
	return nil
}

func (r *stubCategoryRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Category, error) {
	c, ok := r.categories[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *stubCategoryRepo) FindByName(_ context.Context, name string) (*model.Category, error) {
	for _, c := range r.categories {
		if c.Name == name {
			copied := *c
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubCategoryRepo) ListAll(_ context.Context) ([]model.Category, error) {
	out := make([]model.Category, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.categories[id])
	}
	return out, nil
}

func (r *stubCategoryRepo) ListRoots(_ context.Context) ([]model.Category, error) {
	var out []model.Category
	for _, id := range r.order {
		c := r.categories[id]
		if c.ParentID != nil {
			continue
		}
		root := *c
		for _, childID := range r.order {
			child := r.categories[childID]
			if child.ParentID != nil && *child.ParentID == c.ID {
				root.Subcategories = append(root.Subcategories, *child)
			}
		}
		out = append(out, root)
	}
	return out, nil
}

func (r *stubCategoryRepo) Update(_ context.Context, c *model.Category) error {
	if _, ok := r.categories[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *c
	r.categories[c.ID] = &copied
	return nil
}

func (r *stubCategoryRepo) UpdateParentIf(_ context.Context, id uuid.UUID, expected, newParent *uuid.UUID) (int64, error) {
	c, ok := r.categories[id]
	if !ok {
		return 0, nil
	}
	if (c.ParentID == nil) != (expected == nil) {
		return 0, nil
	}
	if c.ParentID != nil && *c.ParentID != *expected {
		return 0, nil
	}
	c.ParentID = newParent
	return 1, nil
}

func (r *stubCategoryRepo) CountChildren(_ context.Context, id uuid.UUID) (int64, error) {
	var n int64
	for _, c := range r.categories {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *stubCategoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.categories, id)
	return nil
}

func (r *stubCategoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	c, ok := r.categories[id]
	if !ok || c.Status != from {
		return 0, nil
	}
	c.Status = to
	return 1, nil
}

var _ repository.CategoryRepository = (*stubCategoryRepo)(nil)

// ── Product stub ──────────────────────────────────────────────────────────────

type stubProductRepo struct {
	products map[uuid.UUID]*model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *stubProductRepo) Create(_ context.Context, p *model.Product) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.products[p.ID] = p
	return nil
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *stubProductRepo) FindByBarcode(_ context.Context, barcode string) (*model.Product, error) {
	for _, p := range r.products {
		if p.Barcode != nil && *p.Barcode == barcode {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductRepo) FindApprovedByNormalizedName(_ context.Context, normalized string) (*model.Product, error) {
	for _, p := range r.products {
		if p.NormalizedName == normalized && p.Status == model.StatusApproved && p.Active {
			copied := *p
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductRepo) Search(_ context.Context, req dto.SearchProductsRequest, viewerID uuid.UUID, moderator bool) ([]model.Product, error) {
	query := model.NormalizeName(req.Query)
	var out []model.Product
	for _, p := range r.products {
		if !p.Active || !p.VisibleTo(viewerID, moderator) {
			continue
		}
		if !strings.Contains(p.NormalizedName, query) {
			continue
		}
		if req.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *req.CategoryID) {
			continue
		}
		out = append(out, *p)
	}
	// Prefix matches first, then name, mirroring the SQL ORDER BY.
	sort.Slice(out, func(i, j int) bool {
		pi := strings.HasPrefix(out[i].NormalizedName, query)
		pj := strings.HasPrefix(out[j].NormalizedName, query)
		if pi != pj {
			return pi
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *stubProductRepo) Update(_ context.Context, p *model.Product) error {
	if _, ok := r.products[p.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *p
	r.products[p.ID] = &copied
	return nil
}

func (r *stubProductRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	p, ok := r.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Active = false
	return nil
}

func (r *stubProductRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	p, ok := r.products[id]
	if !ok || p.Status != from {
		return 0, nil
	}
	p.Status = to
	return 1, nil
}

var _ repository.ProductRepository = (*stubProductRepo)(nil)

// ── Price stub ────────────────────────────────────────────────────────────────

type stubPriceRepo struct {
	prices map[uuid.UUID]*model.Price
}

func newStubPriceRepo() *stubPriceRepo {
	return &stubPriceRepo{prices: make(map[uuid.UUID]*model.Price)}
}

func (r *stubPriceRepo) Create(_ context.Context, p *model.Price) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.prices[p.ID] = p
	return nil
}

func (r *stubPriceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Price, error) {
	p, ok := r.prices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *stubPriceRepo) ListCurrent(_ context.Context, productID uuid.UUID) ([]model.Price, error) {
	var out []model.Price
	for _, p := range r.prices {
		if p.ProductID == productID && p.IsActive && p.Status == model.StatusApproved {
			out = append(out, *p)
		}
	}
	// price asc, date_recorded asc, store_id asc — same order as the query
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		if !out[i].DateRecorded.Equal(out[j].DateRecorded) {
			return out[i].DateRecorded.Before(out[j].DateRecorded)
		}
		return out[i].StoreID.String() < out[j].StoreID.String()
	})
	return out, nil
}

func (r *stubPriceRepo) ListByProduct(_ context.Context, productID uuid.UUID, filter dto.PriceFilter, viewerID uuid.UUID, moderator bool) ([]model.Price, int64, error) {
	var out []model.Price
	for _, p := range r.prices {
		if p.ProductID != productID || !p.VisibleTo(viewerID, moderator) {
			continue
		}
		if filter.StoreID != nil && p.StoreID != *filter.StoreID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateRecorded.After(out[j].DateRecorded) })
	return out, int64(len(out)), nil
}

func (r *stubPriceRepo) Update(_ context.Context, p *model.Price) error {
	if _, ok := r.prices[p.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *p
	r.prices[p.ID] = &copied
	return nil
}

func (r *stubPriceRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	p, ok := r.prices[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.IsActive = false
	return nil
}

func (r *stubPriceRepo) ApproveAndSupersede(_ context.Context, id uuid.UUID) (int64, error) {
	p, ok := r.prices[id]
	if !ok || p.Status != model.StatusPending {
		return 0, nil
	}
	p.Status = model.StatusApproved
	for _, other := range r.prices {
		if other.ID == id {
			continue
		}
		if other.ProductID == p.ProductID && other.StoreID == p.StoreID && other.IsActive {
			other.IsActive = false
		}
	}
	return 1, nil
}

func (r *stubPriceRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.ModerationStatus) (int64, error) {
	p, ok := r.prices[id]
	if !ok || p.Status != from {
		return 0, nil
	}
	p.Status = to
	return 1, nil
}

var _ repository.PriceRepository = (*stubPriceRepo)(nil)

// ── User stub ─────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	users map[uuid.UUID]*model.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[uuid.UUID]*model.User)}
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = u
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubUserRepo) List(_ context.Context, includeInactive bool) ([]model.User, error) {
	var out []model.User
	for _, u := range r.users {
		if !includeInactive && !u.Active {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, u *model.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *u
	r.users[u.ID] = &copied
	return nil
}

func (r *stubUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Active = false
	return nil
}

func (r *stubUserRepo) Reactivate(_ context.Context, id uuid.UUID) error {
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Active = true
	return nil
}

var _ repository.UserRepository = (*stubUserRepo)(nil)

// ── Receipt stub ──────────────────────────────────────────────────────────────

type stubReceiptRepo struct {
	receipts map[uuid.UUID]*model.Receipt
	items    map[uuid.UUID]*model.ReceiptItem
}

func newStubReceiptRepo() *stubReceiptRepo {
	return &stubReceiptRepo{
		receipts: make(map[uuid.UUID]*model.Receipt),
		items:    make(map[uuid.UUID]*model.ReceiptItem),
	}
}

func (r *stubReceiptRepo) Create(_ context.Context, rec *model.Receipt) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()
	r.receipts[rec.ID] = rec
	return nil
}

func (r *stubReceiptRepo) FindByID(_ context.Context, id, userID uuid.UUID, moderator bool) (*model.Receipt, error) {
	rec, ok := r.receipts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if !moderator && rec.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *rec
	copied.Items = nil
	for _, item := range r.items {
		if item.ReceiptID == id {
			copied.Items = append(copied.Items, *item)
		}
	}
	sort.Slice(copied.Items, func(i, j int) bool {
		return copied.Items[i].CreatedAt.Before(copied.Items[j].CreatedAt)
	})
	return &copied, nil
}

func (r *stubReceiptRepo) List(_ context.Context, userID uuid.UUID, filter dto.ReceiptFilter) ([]model.Receipt, int64, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if rec.UserID != userID {
			continue
		}
		if filter.Status != "" && string(rec.Status) != filter.Status {
			continue
		}
		if filter.Store != "" && !strings.Contains(strings.ToLower(rec.StoreName), strings.ToLower(filter.Store)) {
			continue
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *stubReceiptRepo) Update(_ context.Context, rec *model.Receipt) error {
	stored, ok := r.receipts[rec.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *rec
	copied.Status = stored.Status // status changes only via UpdateStatusIf
	copied.Items = nil
	r.receipts[rec.ID] = &copied
	return nil
}

func (r *stubReceiptRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.receipts, id)
	for itemID, item := range r.items {
		if item.ReceiptID == id {
			delete(r.items, itemID)
		}
	}
	return nil
}

func (r *stubReceiptRepo) UpdateStatusIf(_ context.Context, id uuid.UUID, from, to model.ReceiptStatus) (int64, error) {
	rec, ok := r.receipts[id]
	if !ok || rec.Status != from {
		return 0, nil
	}
	rec.Status = to
	return 1, nil
}

func (r *stubReceiptRepo) ListStuckProcessing(_ context.Context, before time.Time, limit int) ([]model.Receipt, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if rec.Status == model.ReceiptProcessing && rec.NextRetryAt != nil && rec.NextRetryAt.Before(before) {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *stubReceiptRepo) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]model.Receipt, error) {
	var out []model.Receipt
	for _, rec := range r.receipts {
		if rec.Status == model.ReceiptPending && !rec.CreatedAt.After(olderThan) {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *stubReceiptRepo) CreateItem(_ context.Context, item *model.ReceiptItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	r.items[item.ID] = item
	return nil
}

func (r *stubReceiptRepo) CreateItems(_ context.Context, items []model.ReceiptItem) error {
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
		items[i].CreatedAt = time.Now()
		copied := items[i]
		r.items[copied.ID] = &copied
	}
	return nil
}

func (r *stubReceiptRepo) FindItem(_ context.Context, receiptID, itemID uuid.UUID) (*model.ReceiptItem, error) {
	item, ok := r.items[itemID]
	if !ok || item.ReceiptID != receiptID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *stubReceiptRepo) UpdateItemFields(_ context.Context, itemID uuid.UUID, fields map[string]any) error {
	item, ok := r.items[itemID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "product_name":
			item.ProductName = value.(string)
		case "normalized_name":
			item.NormalizedName = value.(string)
		case "quantity":
			item.Quantity = value.(decimal.Decimal)
		case "unit_price":
			item.UnitPrice = value.(decimal.Decimal)
		case "total_price":
			item.TotalPrice = value.(decimal.Decimal)
		case "product_id":
			item.ProductID = value.(*uuid.UUID)
		}
	}
	return nil
}

func (r *stubReceiptRepo) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	delete(r.items, itemID)
	return nil
}

func (r *stubReceiptRepo) DeleteItems(_ context.Context, receiptID uuid.UUID) error {
	for itemID, item := range r.items {
		if item.ReceiptID == receiptID {
			delete(r.items, itemID)
		}
	}
	return nil
}

func (r *stubReceiptRepo) SumItemTotals(_ context.Context, receiptID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range r.items {
		if item.ReceiptID == receiptID {
			total = total.Add(item.TotalPrice)
		}
	}
	return total, nil
}

func (r *stubReceiptRepo) Stats(_ context.Context, userID uuid.UUID, monthStart time.Time) (dto.ReceiptStatsResponse, []model.Receipt, error) {
	stats := dto.ReceiptStatsResponse{
		TotalSpent:     decimal.Zero,
		SpentThisMonth: decimal.Zero,
	}
	var recent []model.Receipt
	for _, rec := range r.receipts {
		if rec.UserID != userID || rec.Status != model.ReceiptCompleted {
			continue
		}
		stats.TotalReceipts++
		stats.TotalSpent = stats.TotalSpent.Add(rec.TotalAmount)
		if !rec.CreatedAt.Before(monthStart) {
			stats.ReceiptsThisMonth++
			stats.SpentThisMonth = stats.SpentThisMonth.Add(rec.TotalAmount)
		}
		recent = append(recent, *rec)
	}
	return stats, recent, nil
}

func (r *stubReceiptRepo) SpendingByMonth(_ context.Context, userID uuid.UUID, since time.Time) ([]dto.MonthlySpending, error) {
	byMonth := make(map[string]*dto.MonthlySpending)
	for _, rec := range r.receipts {
		if rec.UserID != userID || rec.Status != model.ReceiptCompleted || rec.CreatedAt.Before(since) {
			continue
		}
		month := rec.CreatedAt.Format("2006-01")
		entry, ok := byMonth[month]
		if !ok {
			entry = &dto.MonthlySpending{Month: month, Total: decimal.Zero}
			byMonth[month] = entry
		}
		entry.Total = entry.Total.Add(rec.TotalAmount)
		entry.Count++
	}
	var out []dto.MonthlySpending
	for _, entry := range byMonth {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

var _ repository.ReceiptRepository = (*stubReceiptRepo)(nil)

// ── Queue stub ────────────────────────────────────────────────────────────────

// stubEnqueuer records enqueued receipt IDs; failErr simulates Redis down.
type stubEnqueuer struct {
	enqueued []uuid.UUID
	failErr  error
}

func (q *stubEnqueuer) EnqueueReceipt(_ context.Context, receiptID uuid.UUID) error {
	if q.failErr != nil {
		return q.failErr
	}
	q.enqueued = append(q.enqueued, receiptID)
	return nil
}
