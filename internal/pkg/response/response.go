package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`              // 业务错误码（0表示成功）
	Message string      `json:"message,omitempty"` // 提示信息
	Data    interface{} `json:"data"`              // 实际数据（可能为空对象 {}）
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusOK, Response{
		Code: apperrors.Success,
		Data: data,
	})
}

// Created 创建资源成功（201）
func Created(c *gin.Context, data interface{}) {
	if data == nil {
		data = struct{}{}
	}
	c.JSON(http.StatusCreated, Response{
		Code: apperrors.Success,
		Data: data,
	})
}

// NoContent 删除成功（204，无响应体）
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HandleError 统一错误处理，从 AppError 提取错误码和详情
func HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	code := apperrors.ExtractCode(err)
	writeError(c, code, apperrors.GetDetails(err))
}

// ErrorWithCode 按错误码返回错误响应
func ErrorWithCode(c *gin.Context, code int, details ...string) {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	writeError(c, code, detail)
}

func writeError(c *gin.Context, code int, detail string) {
	c.JSON(apperrors.GetHTTPStatus(code), Response{
		Code:    code,
		Message: apperrors.FormatError(code, detail),
		Data:    struct{}{},
	})
}
