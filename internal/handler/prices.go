package handler

import (
	"net/http"

	"github.com/RhaCode/Groci-Smart-sub000/internal/dto"
	"github.com/RhaCode/Groci-Smart-sub000/internal/middleware"
	"github.com/RhaCode/Groci-Smart-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type PricesHandler struct{ svc service.PriceService }

func NewPricesHandler(svc service.PriceService) *PricesHandler {
	return &PricesHandler{svc: svc}
}

func (h *PricesHandler) Add(c *gin.Context) {
	var req dto.AddPriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Add(c.Request.Context(), middleware.CurrentViewer(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *PricesHandler) ListByProduct(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var filter dto.PriceFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListByProduct(c.Request.Context(), middleware.CurrentViewer(c), productID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Compare godoc
// @Summary Compare a product's current prices across stores
// @Tags prices
// @Produce json
// @Success 200 {object} dto.ComparisonResponse
// @Failure 404 {object} apierror.Response
// @Router /v1/products/{id}/compare [get]
func (h *PricesHandler) Compare(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Compare(c.Request.Context(), middleware.CurrentViewer(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PricesHandler) CompareMultiple(c *gin.Context) {
	var req dto.CompareMultipleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CompareMultiple(c.Request.Context(), middleware.CurrentViewer(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PricesHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Approve(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PricesHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Reject(c.Request.Context(), middleware.CurrentViewer(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PricesHandler) Deactivate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Deactivate(c.Request.Context(), middleware.CurrentViewer(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
