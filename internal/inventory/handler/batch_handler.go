package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/web"
)

type BatchHandler struct {
	lots *service.LotService
}

func NewBatchHandler(lots *service.LotService) *BatchHandler {
	return &BatchHandler{lots: lots}
}

// CreateBatch POST /batches
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	batch, err := h.lots.CreateBatch(c.Request.Context(), web.GetUserID(c), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, batch)
}

// ListBatches GET /batches
func (h *BatchHandler) ListBatches(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	filters := map[string]string{
		"product_id": c.Query("product_id"),
		"active":     c.Query("active"),
		"search":     c.Query("search"),
	}
	batches, total, err := h.lots.ListBatches(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: batches, Pagination: web.NewPagination(page, pageSize, total)})
}

// GetBatch GET /batches/:id
func (h *BatchHandler) GetBatch(c *gin.Context) {
	batch, err := h.lots.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, batch)
}

// ExpiringSoon GET /batches/expiring
func (h *BatchHandler) ExpiringSoon(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	batches, err := h.lots.ExpiringSoon(c.Request.Context(), days)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"items": batches, "days": days})
}

type retireRequest struct {
	Reason string `json:"reason"`
}

// RetireBatch POST /batches/:id/retire
func (h *BatchHandler) RetireBatch(c *gin.Context) {
	var req retireRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	batch, err := h.lots.RetireBatch(c.Request.Context(), web.GetUserID(c), c.Param("id"), req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, batch)
}

type allocateRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	Strategy  string `json:"strategy"`
	BatchID   string `json:"batch_id"`
	Reference string `json:"reference" binding:"required"`
}

// Allocate POST /allocations
func (h *BatchHandler) Allocate(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	allocations, err := h.lots.Allocate(c.Request.Context(), web.GetUserID(c), req.ProductID, req.Quantity,
		service.Strategy{Kind: req.Strategy, BatchID: req.BatchID}, req.Reference)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, gin.H{"allocations": allocations})
}

type reverseAllocationRequest struct {
	Reference string `json:"reference" binding:"required"`
	Reason    string `json:"reason"`
}

// ReverseAllocation POST /allocations/reverse
func (h *BatchHandler) ReverseAllocation(c *gin.Context) {
	var req reverseAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movements, err := h.lots.ReverseAllocation(c.Request.Context(), web.GetUserID(c), req.Reference, req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, gin.H{"reversals": movements})
}

// GetSummary GET /stock/summary/:productId
func (h *BatchHandler) GetSummary(c *gin.Context) {
	summary, err := h.lots.GetSummary(c.Request.Context(), c.Param("productId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, summary)
}
