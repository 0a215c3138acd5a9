package web

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/haldiram/distribution/internal/errs"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func NewPagination(page, pageSize int, total int64) *Pagination {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// Fail maps the service error taxonomy onto the response envelope. Unknown
// errors surface as 500 without leaking internals.
func Fail(c *gin.Context, err error) {
	var (
		notFound     *errs.NotFoundError
		validation   *errs.ValidationError
		insufficient *errs.InsufficientStockError
		negative     *errs.NegativeStockError
		transition   *errs.InvalidStateTransitionError
		reversed     *errs.AlreadyReversedError
		forbidden    *errs.ForbiddenError
		noop         *errs.NoOpError
	)
	switch {
	case errors.As(err, &notFound):
		NotFound(c, err.Error())
	case errors.As(err, &validation):
		BadRequest(c, err.Error())
	case errors.As(err, &insufficient):
		Error(c, 40901, err.Error())
	case errors.As(err, &negative):
		Error(c, 40902, err.Error())
	case errors.As(err, &transition):
		Conflict(c, err.Error())
	case errors.As(err, &reversed):
		Conflict(c, err.Error())
	case errors.As(err, &forbidden):
		Forbidden(c, err.Error())
	case errors.As(err, &noop):
		BadRequest(c, err.Error())
	default:
		InternalError(c, "internal error")
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetUserRole(c *gin.Context) string {
	role, _ := c.Get("role")
	if r, ok := role.(string); ok {
		return r
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}
