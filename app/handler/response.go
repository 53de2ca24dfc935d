package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ApiResponse 统一的API响应格式
type ApiResponse struct {
	Code    int    `json:"code"`    // 状态码，0表示成功
	Message string `json:"message"` // 响应消息
	Data    any    `json:"data"`    // 响应数据
}

// success 返回成功响应
func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, ApiResponse{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// fail 返回错误响应，错误码与 HTTP 状态码一致
func fail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ApiResponse{
		Code:    statusCode,
		Message: message,
		Data:    nil,
	})
}
