package audit

import (
	"github.com/gin-gonic/gin"
	"github.com/haldiram/distribution/internal/web"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Trail GET /audit/:entityType/:entityId
func (h *Handler) Trail(c *gin.Context) {
	page, pageSize := web.GetPagination(c)
	logs, total, err := h.repo.FindByEntity(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), page, pageSize)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.Success(c, web.ListResponse{Items: logs, Pagination: web.NewPagination(page, pageSize, total)})
}
