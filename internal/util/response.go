package util

import (
	"errors"
	"net/http"

	"formquiz_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const RequestIDKey = "request_id"

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
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

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// ValidationFailed 返回字段级校验错误
func ValidationFailed(c *gin.Context, v *ValidationError) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    http.StatusBadRequest,
		Message: "validation failed",
		Data:    gin.H{"fields": v.Fields},
	})
}

// InternalServerError 不向客户端暴露内部错误，只返回请求ID便于排查
func InternalServerError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:    http.StatusInternalServerError,
		Message: "Internal server error",
		Data:    gin.H{"requestId": c.GetString(RequestIDKey)},
	})
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.Error(err),
		zap.String("request_id", c.GetString(RequestIDKey)),
		zap.String("path", c.Request.URL.Path),
	)
	InternalServerError(c)
}

// HandleError 将业务错误映射为对应的 HTTP 响应
func HandleError(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationFailed(c, verr)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound):
		NotFound(c)
	case errors.Is(err, ErrForbidden):
		Forbidden(c)
	case errors.Is(err, ErrAlreadyAnswered):
		Conflict(c, "already answered")
	case errors.Is(err, ErrEmailRegistered):
		Conflict(c, err.Error())
	case errors.Is(err, ErrInvalidLogin):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrWrongFormType), errors.Is(err, ErrFormTypeImmutable):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrUploadFailed):
		logger.Log.Warn("upload failed",
			zap.Error(err),
			zap.String("request_id", c.GetString(RequestIDKey)),
		)
		Error(c, http.StatusBadGateway, ErrUploadFailed.Error())
	default:
		LogInternalError(c, err)
	}
}
