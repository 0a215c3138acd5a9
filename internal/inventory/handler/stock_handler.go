package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/haldiram/distribution/internal/inventory/service"
	"github.com/haldiram/distribution/internal/web"
)

type StockHandler struct {
	ledger *service.LedgerService
	report *service.ReportService
}

func NewStockHandler(ledger *service.LedgerService, report *service.ReportService) *StockHandler {
	return &StockHandler{ledger: ledger, report: report}
}

// GetLevel GET /stock/levels/:productId
func (h *StockHandler) GetLevel(c *gin.Context) {
	productID := c.Param("productId")
	quantity, err := h.ledger.GetLevel(c.Request.Context(), productID)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"product_id": productID, "quantity": quantity})
}

// ListLevels GET /stock/levels
func (h *StockHandler) ListLevels(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	levels, total, err := h.ledger.ListLevels(c.Request.Context(), page, pageSize)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: levels, Pagination: web.NewPagination(page, pageSize, total)})
}

// ListMovements GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	filters := map[string]string{
		"product_id": c.Query("product_id"),
		"kind":       c.Query("kind"),
		"reference":  c.Query("reference"),
		"from":       c.Query("from"),
		"to":         c.Query("to"),
	}
	movements, total, err := h.ledger.ListMovements(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: movements, Pagination: web.NewPagination(page, pageSize, total)})
}

// GetMovement GET /stock/movements/:id
func (h *StockHandler) GetMovement(c *gin.Context) {
	movement, err := h.ledger.GetMovement(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, movement)
}

// ApplyMovement POST /stock/movements
func (h *StockHandler) ApplyMovement(c *gin.Context) {
	var req service.ApplyMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movement, err := h.ledger.ApplyMovement(c.Request.Context(), web.GetUserID(c), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, movement)
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

// ReverseMovement POST /stock/movements/:id/reverse
func (h *StockHandler) ReverseMovement(c *gin.Context) {
	var req reverseRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movement, err := h.ledger.Reverse(c.Request.Context(), c.Param("id"), web.GetUserID(c), req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, movement)
}

type setAbsoluteRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity" binding:"required"`
	Reason    string `json:"reason"`
}

// SetAbsolute POST /stock/levels/set
func (h *StockHandler) SetAbsolute(c *gin.Context) {
	var req setAbsoluteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	movement, err := h.ledger.SetAbsolute(c.Request.Context(), req.ProductID, *req.Quantity, web.GetUserID(c), req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, movement)
}

// ExportMovements GET /stock/movements/export
func (h *StockHandler) ExportMovements(c *gin.Context) {
	filters := map[string]string{
		"product_id": c.Query("product_id"),
		"kind":       c.Query("kind"),
		"reference":  c.Query("reference"),
		"from":       c.Query("from"),
		"to":         c.Query("to"),
	}
	f, filename, err := h.report.ExportMovements(c.Request.Context(), filters)
	if err != nil {
		web.Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		web.InternalError(c, "write excel: "+err.Error())
	}
}
