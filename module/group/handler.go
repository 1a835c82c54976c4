package group

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	"IMProject/module/group/service"
	"IMProject/tools/errs"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 挂载群组路由，全部要求登录
func RegisterRoutes(r gin.IRouter, rt *middleware.Routes, h *Handler) {
	rt.GET(r, "/group/all", h.All, middleware.RouteOpt{IsAuth: true})
	rt.POST(r, "/group/create", h.Create, middleware.RouteOpt{CheckStatus: true})
	rt.PUT(r, "/group/:gid/add/:uid", h.Add, middleware.RouteOpt{IsAuth: true})
	rt.DELETE(r, "/group/:gid/remove/:uid", h.Remove, middleware.RouteOpt{IsAuth: true})
	rt.DELETE(r, "/group/delete/:gid", h.Delete, middleware.RouteOpt{IsAuth: true})
	rt.PUT(r, "/group/:gid/forbid/:uid", h.Forbid, middleware.RouteOpt{IsAuth: true})
	rt.PUT(r, "/group/:gid/unforbid/:uid", h.Unforbid, middleware.RouteOpt{IsAuth: true})
}

// All 群列表
func (h *Handler) All(c *gin.Context) {
	groups, err := h.svc.All(c.Request.Context())
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, groups)
}

type createReq struct {
	Name string `json:"name" binding:"required,min=1"`
}

// Create 建群，返回新群ID
func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail("Group name must be at least one letter").Wrap())
		return
	}
	claims := midsec.CurrentClaims(c)
	gid, err := h.svc.Create(c.Request.Context(), claims.ID, req.Name)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, gid)
}

// Add 拉人入群
func (h *Handler) Add(c *gin.Context) {
	gid, uid, err := gidUID(c)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if err := h.svc.Add(c.Request.Context(), gid, uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Remove 移出群成员
func (h *Handler) Remove(c *gin.Context) {
	gid, uid, err := gidUID(c)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if err := h.svc.Remove(c.Request.Context(), gid, uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Delete 删群（含成员关系）
func (h *Handler) Delete(c *gin.Context) {
	gid, err := paramInt64(c, "gid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), gid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Forbid 禁言（仅群主）
func (h *Handler) Forbid(c *gin.Context) {
	gid, uid, err := gidUID(c)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	claims := midsec.CurrentClaims(c)
	if err := h.svc.Forbid(c.Request.Context(), claims.ID, gid, uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Unforbid 解除禁言（仅群主）
func (h *Handler) Unforbid(c *gin.Context) {
	gid, uid, err := gidUID(c)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	claims := midsec.CurrentClaims(c)
	if err := h.svc.Unforbid(c.Request.Context(), claims.ID, gid, uid); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

func gidUID(c *gin.Context) (int64, int64, error) {
	gid, err := paramInt64(c, "gid")
	if err != nil {
		return 0, 0, err
	}
	uid, err := paramInt64(c, "uid")
	if err != nil {
		return 0, 0, err
	}
	return gid, uid, nil
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errs.ErrArgs.WithDetail(name + " must be an integer").Wrap()
	}
	return v, nil
}
