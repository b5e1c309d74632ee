package handler

import (
	"net/http"

	"github.com/blues/agrofund/internal/errs"
	"github.com/blues/agrofund/internal/logger"
	"github.com/gin-gonic/gin"
)

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromLogic 把业务错误转换为HTTP状态码
func ErrorFromLogic(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		logger.Error("%s %s failed: %+v", c.Request.Method, c.FullPath(), err)
		ErrorResponse(c, status, "internal server error")
		return
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "5")
	}
	ErrorResponse(c, status, errs.Message(err))
}

// StatusOf 错误类型对应的HTTP状态码
func StatusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindPolicy:
		return http.StatusUnprocessableEntity
	case errs.KindExternalDependency:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
