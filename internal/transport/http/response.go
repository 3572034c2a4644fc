package httptransport

import (
	"github.com/gin-gonic/gin"
)

// Success 成功响应，payload 中的字段与 success 标记并列输出
func Success(c *gin.Context, status int, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(status, payload)
}

// Fail 失败响应
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

// FailWithError 根据错误类型选择状态码和提示信息，未知错误按 500 处理
func FailWithError(c *gin.Context, err error) {
	status, msg := ErrorStatus(err)
	if status >= 500 {
		_ = c.Error(err)
	}
	Fail(c, status, msg)
}
