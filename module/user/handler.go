package user

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	"IMProject/module/user/service"
	"IMProject/tools/errs"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 挂载用户、令牌与后台管理路由
func RegisterRoutes(r gin.IRouter, rt *middleware.Routes, h *Handler) {
	rt.POST(r, "/user/register", h.Register, middleware.RouteOpt{})
	rt.GET(r, "/user/all", h.All, middleware.RouteOpt{IsAuth: true})
	rt.GET(r, "/user/info", h.Info, middleware.RouteOpt{IsAuth: true})

	rt.POST(r, "/token/login", h.Login, middleware.RouteOpt{})
	rt.DELETE(r, "/token/logout", h.Logout, middleware.RouteOpt{IsAuth: true})
	rt.POST(r, "/token/renew", h.Renew, middleware.RouteOpt{IsAuth: true})

	rt.GET(r, "/admin/user", h.All, middleware.RouteOpt{NeedAdmin: true})
	rt.PUT(r, "/admin/user/freeze/:uid", h.Freeze, middleware.RouteOpt{NeedAdmin: true})
	rt.PUT(r, "/admin/user/unfreeze/:uid", h.Unfreeze, middleware.RouteOpt{NeedAdmin: true})
}

// Register 注册新用户
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail(err.Error()).Wrap())
		return
	}
	u, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, u)
}

// All 用户列表
func (h *Handler) All(c *gin.Context) {
	users, err := h.svc.All(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, users)
}

// Info 当前登录用户的主档
func (h *Handler) Info(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	u, err := h.svc.GetByID(c.Request.Context(), claims.ID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if u == nil {
		middleware.Fail(c, errs.ErrUserNotExist.Wrap())
		return
	}
	middleware.OK(c, u)
}

type loginReq struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 用户名密码换取访问令牌
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrMissingCredentials.WithDetail(err.Error()).Wrap())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, res)
}

// Logout 注销登录态
func (h *Handler) Logout(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	if err := h.svc.Logout(c.Request.Context(), claims.ID); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Renew 续签令牌
func (h *Handler) Renew(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	res, err := h.svc.Renew(c.Request.Context(), claims.ID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, res)
}

// Freeze 冻结用户（管理员）
func (h *Handler) Freeze(c *gin.Context) {
	uid, err := paramInt64(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if err := h.svc.Freeze(c.Request.Context(), uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Unfreeze 解冻用户（管理员）
func (h *Handler) Unfreeze(c *gin.Context) {
	uid, err := paramInt64(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if err := h.svc.Unfreeze(c.Request.Context(), uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errs.ErrArgs.WithDetail(name + " must be an integer").Wrap()
	}
	return v, nil
}
