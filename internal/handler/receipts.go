package handler

import (
	"net/http"
	"strconv"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/middleware"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type ReceiptsHandler struct{ svc service.ReceiptService }

func NewReceiptsHandler(svc service.ReceiptService) *ReceiptsHandler {
	return &ReceiptsHandler{svc: svc}
}

// Upload godoc
// @Summary Register an uploaded receipt image for extraction
// @Tags receipts
// @Accept json
// @Produce json
// @Success 201 {object} dto.ReceiptResponse
// @Router /v1/receipts [post]
func (h *ReceiptsHandler) Upload(c *gin.Context) {
	var req dto.UploadReceiptRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Upload(c.Request.Context(), middleware.CurrentViewer(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ReceiptsHandler) List(c *gin.Context) {
	var filter dto.ReceiptFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.List(c.Request.Context(), middleware.CurrentViewer(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReceiptsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReceiptsHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateReceiptRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), middleware.CurrentViewer(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReceiptsHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentViewer(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReceiptsHandler) Reprocess(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Reprocess(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// ── Items ─────────────────────────────────────────────────────────────────────

func (h *ReceiptsHandler) AddItem(c *gin.Context) {
	receiptID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateReceiptItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddItem(c.Request.Context(), middleware.CurrentViewer(c), receiptID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *ReceiptsHandler) UpdateItem(c *gin.Context) {
	receiptID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	var req dto.UpdateReceiptItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateItem(c.Request.Context(), middleware.CurrentViewer(c), receiptID, itemID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReceiptsHandler) DeleteItem(c *gin.Context) {
	receiptID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	if err := h.svc.DeleteItem(c.Request.Context(), middleware.CurrentViewer(c), receiptID, itemID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ReceiptsHandler) LinkItem(c *gin.Context) {
	receiptID, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	var req dto.LinkReceiptItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.LinkItem(c.Request.Context(), middleware.CurrentViewer(c), receiptID, itemID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Statistics ────────────────────────────────────────────────────────────────

func (h *ReceiptsHandler) Stats(c *gin.Context) {
	resp, err := h.svc.Stats(c.Request.Context(), middleware.CurrentViewer(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ReceiptsHandler) SpendingByMonth(c *gin.Context) {
	months, _ := strconv.Atoi(c.DefaultQuery("months", "12"))
	resp, err := h.svc.SpendingByMonth(c.Request.Context(), middleware.CurrentViewer(c), months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
