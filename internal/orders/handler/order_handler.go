package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/haldiram/distribution/internal/orders/service"
	"github.com/haldiram/distribution/internal/web"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// Create POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.Create(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, order)
}

// List GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	filters := map[string]string{
		"customer_id": c.Query("customer_id"),
		"status":      c.Query("status"),
		"search":      c.Query("search"),
		"from":        c.Query("from"),
		"to":          c.Query("to"),
	}
	orders, total, err := h.svc.List(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: orders, Pagination: web.NewPagination(page, pageSize, total)})
}

// Get GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

// ItemHistory GET /orders/:id/item-history
func (h *OrderHandler) ItemHistory(c *gin.Context) {
	history, err := h.svc.ItemHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"items": history})
}

// UpdateItems PUT /orders/:id/items
func (h *OrderHandler) UpdateItems(c *gin.Context) {
	var req service.UpdateItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.UpdateItems(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), &req)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

type confirmRequest struct {
	VehicleID *string `json:"vehicle_id"`
}

// Confirm POST /orders/:id/confirm
func (h *OrderHandler) Confirm(c *gin.Context) {
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.Confirm(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.VehicleID)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

// CheckPayment POST /orders/:id/payment-check
func (h *OrderHandler) CheckPayment(c *gin.Context) {
	order, err := h.svc.CheckPayment(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

// Process POST /orders/:id/process
func (h *OrderHandler) Process(c *gin.Context) {
	order, err := h.svc.Process(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

// Ship POST /orders/:id/ship
func (h *OrderHandler) Ship(c *gin.Context) {
	order, err := h.svc.Ship(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

// Receive POST /orders/:id/receive
func (h *OrderHandler) Receive(c *gin.Context) {
	order, err := h.svc.Receive(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// Return POST /orders/:id/return
func (h *OrderHandler) Return(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.Return(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}

// Cancel POST /orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	order, err := h.svc.Cancel(c.Request.Context(), web.GetUserID(c), web.GetUserRole(c), c.Param("id"), req.Reason)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, order)
}
