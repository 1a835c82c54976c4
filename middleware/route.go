package middleware

import (
	"github.com/gin-gonic/gin"
)

// RouteOpt 路由注册选项。NeedAdmin > CheckStatus > IsAuth，取最严的一档。
type RouteOpt struct {
	IsAuth      bool // 要求登录
	CheckStatus bool // 要求登录且未被冻结
	NeedAdmin   bool // 要求管理员
}

// Routes 带守卫的注册器。三档守卫由 main 构造注入，模块只声明 RouteOpt。
type Routes struct {
	auth   gin.HandlerFunc
	status gin.HandlerFunc
	admin  gin.HandlerFunc
}

func NewRoutes(auth, status, admin gin.HandlerFunc) *Routes {
	return &Routes{auth: auth, status: status, admin: admin}
}

// 封装 POST
func (rt *Routes) POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, rt.chain(opt, handler)...)
}

// 封装 GET
func (rt *Routes) GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, rt.chain(opt, handler)...)
}

// 封装 PUT
func (rt *Routes) PUT(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PUT(path, rt.chain(opt, handler)...)
}

// 封装 DELETE
func (rt *Routes) DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.DELETE(path, rt.chain(opt, handler)...)
}

// 封装 PATCH
func (rt *Routes) PATCH(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.PATCH(path, rt.chain(opt, handler)...)
}

func (rt *Routes) chain(opt RouteOpt, handler gin.HandlerFunc) []gin.HandlerFunc {
	var hs []gin.HandlerFunc
	switch {
	case opt.NeedAdmin:
		hs = append(hs, rt.admin)
	case opt.CheckStatus:
		hs = append(hs, rt.status)
	case opt.IsAuth:
		hs = append(hs, rt.auth)
	}
	return append(hs, handler)
}
