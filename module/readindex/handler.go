package readindex

import (
	"github.com/gin-gonic/gin"

	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	"IMProject/tools/errs"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 挂载已读回执路由
func RegisterRoutes(r gin.IRouter, rt *middleware.Routes, h *Handler) {
	rt.PUT(r, "/read-index", h.Set, middleware.RouteOpt{IsAuth: true})
}

// Set 推进当前用户在某会话上的已读位置
func (h *Handler) Set(c *gin.Context) {
	var up Update
	if err := c.ShouldBindJSON(&up); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail(err.Error()).Wrap())
		return
	}
	claims := midsec.CurrentClaims(c)
	if err := h.svc.SetReadIndex(c.Request.Context(), claims.ID, up); err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, nil)
}
