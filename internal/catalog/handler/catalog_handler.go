package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/haldiram/distribution/internal/catalog/entity"
	"github.com/haldiram/distribution/internal/catalog/repository"
	"github.com/haldiram/distribution/internal/web"
)

// CatalogHandler serves the product master, users, and the vehicle fleet.
type CatalogHandler struct {
	repos *repository.Repositories
}

func NewCatalogHandler(repos *repository.Repositories) *CatalogHandler {
	return &CatalogHandler{repos: repos}
}

type createProductRequest struct {
	SKU         string  `json:"sku" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	WeightGrams int     `json:"weight_grams"`
	MinQuantity int     `json:"min_quantity"`
	MaxQuantity int     `json:"max_quantity"`
	UnitPrice   float64 `json:"unit_price" binding:"required"`
	GSTRate     float64 `json:"gst_rate"`
}

// CreateProduct POST /products
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	product := &entity.Product{
		ID:          uuid.New().String()[:32],
		SKU:         req.SKU,
		Name:        req.Name,
		WeightGrams: req.WeightGrams,
		MinQuantity: req.MinQuantity,
		MaxQuantity: req.MaxQuantity,
		UnitPrice:   req.UnitPrice,
		GSTRate:     req.GSTRate,
		Active:      true,
	}
	if err := h.repos.Product.Create(c.Request.Context(), product); err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, product)
}

// ListProducts GET /products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	filters := map[string]string{
		"search": c.Query("search"),
		"active": c.Query("active"),
	}
	products, total, err := h.repos.Product.FindAll(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: products, Pagination: web.NewPagination(page, pageSize, total)})
}

// GetProduct GET /products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.repos.Product.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, product)
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	WeightGrams *int     `json:"weight_grams"`
	MinQuantity *int     `json:"min_quantity"`
	MaxQuantity *int     `json:"max_quantity"`
	UnitPrice   *float64 `json:"unit_price"`
	GSTRate     *float64 `json:"gst_rate"`
	Active      *bool    `json:"active"`
}

// UpdateProduct PUT /products/:id
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	product, err := h.repos.Product.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.WeightGrams != nil {
		product.WeightGrams = *req.WeightGrams
	}
	if req.MinQuantity != nil {
		product.MinQuantity = *req.MinQuantity
	}
	if req.MaxQuantity != nil {
		product.MaxQuantity = *req.MaxQuantity
	}
	if req.UnitPrice != nil {
		product.UnitPrice = *req.UnitPrice
	}
	if req.GSTRate != nil {
		product.GSTRate = *req.GSTRate
	}
	if req.Active != nil {
		product.Active = *req.Active
	}
	if err := h.repos.Product.Update(c.Request.Context(), product); err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, product)
}

// ListDrivers GET /users/drivers
func (h *CatalogHandler) ListDrivers(c *gin.Context) {
	drivers, err := h.repos.User.FindActiveByRole(c.Request.Context(), entity.RoleDriver)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"items": drivers})
}

// GetUser GET /users/:id
func (h *CatalogHandler) GetUser(c *gin.Context) {
	user, err := h.repos.User.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, user)
}

type createVehicleRequest struct {
	Number     string `json:"number" binding:"required"`
	Type       string `json:"type"`
	CapacityKg int    `json:"capacity_kg"`
}

// CreateVehicle POST /vehicles
func (h *CatalogHandler) CreateVehicle(c *gin.Context) {
	var req createVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		web.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	vehicle := &entity.Vehicle{
		ID:         uuid.New().String()[:32],
		Number:     req.Number,
		Type:       req.Type,
		CapacityKg: req.CapacityKg,
		Active:     true,
	}
	if err := h.repos.Vehicle.Create(c.Request.Context(), vehicle); err != nil {
		web.Fail(c, err)
		return
	}
	web.Created(c, vehicle)
}

// ListVehicles GET /vehicles
func (h *CatalogHandler) ListVehicles(c *gin.Context) {
	vehicles, err := h.repos.Vehicle.FindActive(c.Request.Context())
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, gin.H{"items": vehicles})
}
