package message

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	msgmodel "IMProject/module/message/model"
	"IMProject/tools/errs"
)

const defaultPageLimit = 50

// SpeakChecker 群发言资格校验（群模块实现）
type SpeakChecker interface {
	CheckSpeak(ctx context.Context, gid, uid int64) error
}

type Handler struct {
	svc   *Service
	speak SpeakChecker
}

func NewHandler(svc *Service, speak SpeakChecker) *Handler {
	return &Handler{svc: svc, speak: speak}
}

// RegisterRoutes 挂载消息与聊天列表路由
func RegisterRoutes(r gin.IRouter, rt *middleware.Routes, h *Handler) {
	rt.POST(r, "/message/send", h.Send, middleware.RouteOpt{CheckStatus: true})
	rt.GET(r, "/message/history/user/:uid", h.HistoryUser, middleware.RouteOpt{IsAuth: true})
	rt.GET(r, "/message/history/group/:gid", h.HistoryGroup, middleware.RouteOpt{IsAuth: true})
	rt.GET(r, "/message/sync", h.Sync, middleware.RouteOpt{IsAuth: true})
	rt.GET(r, "/chat/list", h.ChatList, middleware.RouteOpt{IsAuth: true})
}

type sendReq struct {
	Msg    string                 `json:"msg" binding:"required"`
	Target msgmodel.MessageTarget `json:"target"`
}

// Send 发消息，返回分配的 mid。群聊先过禁言检查。
func (h *Handler) Send(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, errs.ErrArgs.WithDetail("msg is blank").Wrap())
		return
	}
	claims := midsec.CurrentClaims(c)
	ctx := c.Request.Context()

	if req.Target.Group != nil {
		if err := h.speak.CheckSpeak(ctx, req.Target.Group.GID, claims.ID); err != nil {
			middleware.Fail(c, err)
			return
		}
	}
	mid, err := h.svc.Send(ctx, claims.ID, req.Target, req.Msg)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, mid)
}

// HistoryUser 与 :uid 的单聊历史，新到旧
func (h *Handler) HistoryUser(c *gin.Context) {
	peer, err := paramInt64(c, "uid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	claims := midsec.CurrentClaims(c)
	msgs, err := h.svc.HistoryDM(claims.ID, peer, queryInt64(c, "before"), queryLimit(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, msgs)
}

// HistoryGroup 群聊历史，新到旧
func (h *Handler) HistoryGroup(c *gin.Context) {
	gid, err := paramInt64(c, "gid")
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	msgs, err := h.svc.HistoryGroup(gid, queryInt64(c, "before"), queryLimit(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, msgs)
}

// Sync 拉取断线期间错过的消息，旧到新
func (h *Handler) Sync(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	msgs, err := h.svc.Sync(claims.ID, queryInt64(c, "after"), queryLimit(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, msgs)
}

// ChatList 聊天列表：会话、最新消息与未读数
func (h *Handler) ChatList(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	items, err := h.svc.ChatList(c.Request.Context(), claims.ID)
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	middleware.OK(c, items)
}

func paramInt64(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, errs.ErrArgs.WithDetail(name + " must be an integer").Wrap()
	}
	return v, nil
}

// queryInt64 可选的游标参数，缺省或解析失败都当没传
func queryInt64(c *gin.Context, name string) *int64 {
	v, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryLimit(c *gin.Context) int {
	v, err := strconv.Atoi(c.Query("limit"))
	if err != nil || v <= 0 {
		return defaultPageLimit
	}
	return v
}
