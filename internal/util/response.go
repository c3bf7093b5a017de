package util

import (
	"errors"
	"net/http"
	"proctor_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Reason  string      `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// RespondError 按错误分类映射 HTTP 状态码；InvalidState 与 Conflict 都返回 409，由 reason 区分
func RespondError(c *gin.Context, err error) {
	var status int
	var reason string
	switch {
	case errors.Is(err, ErrNotFound):
		status, reason = http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict):
		status, reason = http.StatusConflict, "conflict"
	case errors.Is(err, ErrInvalidState):
		status, reason = http.StatusConflict, "invalid_state"
	case errors.Is(err, ErrInvalidArgument):
		status, reason = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, ErrUnauthorized):
		status, reason = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		status, reason = http.StatusForbidden, "forbidden"
	default:
		LogInternalError(c, err)
		return
	}

	c.JSON(status, Response{
		Code:    status,
		Message: err.Error(),
		Reason:  reason,
	})
}
