package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haldiram/distribution/internal/purchasing/service"
	"github.com/haldiram/distribution/internal/web"
)

type POHandler struct {
	svc     *service.POService
	invoice *service.InvoiceService
}

func NewPOHandler(svc *service.POService, invoice *service.InvoiceService) *POHandler {
	return &POHandler{svc: svc, invoice: invoice}
}

// Create POST /purchase-orders
func (h *POHandler) Create(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.Create(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, po)
}

// List GET /purchase-orders
func (h *POHandler) List(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	filters := map[string]string{
		"vendor_id": c.Query("vendor_id"),
		"status":    c.Query("status"),
		"search":    c.Query("search"),
		"from":      c.Query("from"),
		"to":        c.Query("to"),
	}
	pos, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: pos, Pagination: web.NewPagination(page, pageSize, total)})
}

// Get GET /purchase-orders/:id
func (h *POHandler) Get(c *gin.Context) {
	po, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// ItemHistory GET /purchase-orders/:id/item-history
func (h *POHandler) ItemHistory(c *gin.Context) {
	history, err := h.svc.ItemHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"items": history})
}

// UpdateItems PUT /purchase-orders/:id/items
func (h *POHandler) UpdateItems(c *gin.Context) {
	var req service.UpdateItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.UpdateItems(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// Accept POST /purchase-orders/:id/accept
func (h *POHandler) Accept(c *gin.Context) {
	po, err := h.svc.Accept(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

type receiveRequest struct {
	ExpireDate *time.Time `json:"expire_date"`
}

// Receive POST /purchase-orders/:id/receive
func (h *POHandler) Receive(c *gin.Context) {
	var req receiveRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.Receive(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.ExpireDate)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// Dispatch POST /purchase-orders/:id/dispatch
func (h *POHandler) Dispatch(c *gin.Context) {
	po, err := h.svc.Dispatch(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// RequestPayment POST /purchase-orders/:id/payment/request
func (h *POHandler) RequestPayment(c *gin.Context) {
	po, redirectURL, err := h.svc.RequestPayment(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"purchase_order": po, "redirect_url": redirectURL})
}

// SyncPayment POST /purchase-orders/:id/payment/sync
func (h *POHandler) SyncPayment(c *gin.Context) {
	po, err := h.svc.SyncPayment(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// VerifyPayment POST /purchase-orders/:id/payment/verify
func (h *POHandler) VerifyPayment(c *gin.Context) {
	po, err := h.svc.VerifyPayment(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

type packRequest struct {
	BoxCount int `json:"box_count" binding:"required"`
}

// MarkPacked POST /purchase-orders/:id/pack
func (h *POHandler) MarkPacked(c *gin.Context) {
	var req packRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.MarkPacked(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.BoxCount)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// AssignDriver POST /purchase-orders/:id/assign-driver
func (h *POHandler) AssignDriver(c *gin.Context) {
	var req service.AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.AssignDriver(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// ListDriverAssignments GET /purchase-orders/driver-assignments
func (h *POHandler) ListDriverAssignments(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	logs, total, err := h.svc.ListDriverAssignments(c.Request.Context(), page, pageSize)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: logs, Pagination: web.NewPagination(page, pageSize, total)})
}

type shipRequest struct {
	TrackingID string `json:"tracking_id"`
}

// Ship POST /purchase-orders/:id/ship
func (h *POHandler) Ship(c *gin.Context) {
	var req shipRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.Ship(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.TrackingID)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Cancel POST /purchase-orders/:id/cancel
func (h *POHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	po, err := h.svc.Cancel(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, po)
}

// Invoice GET /purchase-orders/:id/invoice
func (h *POHandler) Invoice(c *gin.Context) {
	inv, err := h.invoice.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, inv)
}
