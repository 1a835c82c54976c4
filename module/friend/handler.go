package friend

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	"IMProject/module/friend/service"
	"IMProject/tools/errs"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 挂载好友路由。写操作额外要求账号未被冻结。
func RegisterRoutes(r gin.IRouter, rt *middleware.Routes, h *Handler) {
	rt.GET(r, "/friend/", h.List, middleware.RouteOpt{IsAuth: true})
	rt.GET(r, "/friend/req", h.ReqList, middleware.RouteOpt{IsAuth: true})
	rt.POST(r, "/friend/req/:uid", h.Request, middleware.RouteOpt{CheckStatus: true})
	rt.POST(r, "/friend/req", h.Review, middleware.RouteOpt{CheckStatus: true})
	rt.PATCH(r, "/friend/loc", h.SetLoc, middleware.RouteOpt{CheckStatus: true})
	rt.GET(r, "/friend/loc/:radius", h.Nearby, middleware.RouteOpt{CheckStatus: true})
}

// List 好友列表
func (h *Handler) List(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	friends, err := h.svc.List(c.Request.Context(), claims.DgraphUID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, friends)
}

// ReqList 发给我的好友申请
func (h *Handler) ReqList(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	reqs, err := h.svc.IncomingList(c.Request.Context(), claims.ID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, reqs)
}

type requestReq struct {
	Reason *string `json:"reason"`
}

// Request 向 :uid 发起好友申请
func (h *Handler) Request(c *gin.Context) {
	target, err := paramInt64(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	var req requestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail(err.Error()).Wrap())
		return
	}
	claims := midsec.CurrentClaims(c)
	if err := h.svc.Request(c.Request.Context(), claims.ID, claims.DgraphUID, target, req.Reason); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

type reviewReq struct {
	ID     int64  `json:"id" binding:"required"`
	Status string `json:"status" binding:"required"`
}

// Review 审核好友申请
func (h *Handler) Review(c *gin.Context) {
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail(err.Error()).Wrap())
		return
	}
	claims := midsec.CurrentClaims(c)
	if err := h.svc.Review(c.Request.Context(), claims.ID, req.ID, req.Status); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

type locReq struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// SetLoc 上报我的位置
func (h *Handler) SetLoc(c *gin.Context) {
	var req locReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail(err.Error()).Wrap())
		return
	}
	claims := midsec.CurrentClaims(c)
	if err := h.svc.SetLoc(c.Request.Context(), claims.DgraphUID, req.Longitude, req.Latitude); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}

// Nearby 查附近的人，半径单位米
func (h *Handler) Nearby(c *gin.Context) {
	radius, err := paramInt64(c, "radius")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	claims := midsec.CurrentClaims(c)
	nodes, err := h.svc.Nearby(c.Request.Context(), claims.DgraphUID, int(radius))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nodes)
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errs.ErrArgs.WithDetail(name + " must be an integer").Wrap()
	}
	return v, nil
}
