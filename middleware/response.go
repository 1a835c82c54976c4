package middleware

import (
	"github.com/gin-gonic/gin"

	"IMProject/logger"
	"IMProject/tools/errs"
	"IMProject/tools/specialerror"
)

// Response 统一响应信封，code=0 表示成功
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// OK 成功响应
func OK(c *gin.Context, data any) {
	c.JSON(200, Response{Code: 0, Msg: "ok", Data: data})
}

// Fail 失败响应。业务错误按自身 code 渲染并还原 HTTP 状态码；
// 认不出的错误记日志后对外统一报"系统异常"。
func Fail(c *gin.Context, err error) {
	codeErr := specialerror.ErrCode(err)
	if codeErr == nil {
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		codeErr = errs.ErrInternalServer
	}
	msg := codeErr.EMsg()
	if codeErr.DDetail() != "" {
		msg = msg + ": " + codeErr.DDetail()
	}
	c.JSON(errs.HTTPStatus(codeErr.ECode()), Response{Code: codeErr.ECode(), Msg: msg})
}

// AbortFail Fail 的中间件版本，终止后续 handler
func AbortFail(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}
