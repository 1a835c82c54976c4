package event

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"IMProject/logger"
	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	msgmodel "IMProject/module/message/model"
	"IMProject/tools/errs"
	"IMProject/tools/safe"
)

// SSE 连接节奏：心跳首跳偏移 5s、之后每 60s 一跳；
// 注释帧每 5s 一条防止中间代理断开空闲连接。
const (
	heartbeatFirst    = 5 * time.Second
	heartbeatInterval = 60 * time.Second
	keepAliveInterval = 5 * time.Second
	keepAliveText     = ": keep-alive-text\n\n"
)

// EventMessage 推送帧，外部标签二选一
type EventMessage struct {
	ChatMessage *msgmodel.ChatMessage `json:"ChatMessage,omitempty"`
	Heartbeat   *HeartbeatMessage     `json:"Heartbeat,omitempty"`
}

// Name SSE 事件名
func (m EventMessage) Name() string {
	if m.Heartbeat != nil {
		return "Heartbeat"
	}
	return "Chat"
}

type HeartbeatMessage struct {
	Time msgmodel.Timestamp `json:"time"`
}

func chatFrame(msg msgmodel.ChatMessage) EventMessage {
	return EventMessage{ChatMessage: &msg}
}

func heartbeatFrame() EventMessage {
	return EventMessage{Heartbeat: &HeartbeatMessage{Time: msgmodel.Now()}}
}

type StreamHandler struct {
	hub *Hub
}

func NewStreamHandler(hub *Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// RegisterRoutes 挂载事件推送路由。浏览器的 EventSource 与 WebSocket
// 都没法带自定义请求头，令牌走 ?token= 传递。
func RegisterRoutes(r gin.IRouter, rt *middleware.Routes, h *StreamHandler, ws *WSHandler) {
	rt.GET(r, "/event/stream", h.Stream, middleware.RouteOpt{IsAuth: true})
	rt.GET(r, "/event/ws", ws.Serve, middleware.RouteOpt{IsAuth: true})
}

// Stream SSE 长连接。订阅广播中枢并把命中的消息推给客户端，
// 订阅端落后太多（事件被挤掉）时直接断流，客户端重连后走
// /message/sync 补齐。
func (h *StreamHandler) Stream(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	sub, err := h.hub.Subscribe()
	if err != nil {
		middleware.Fail(c, errs.WrapMsg(err, "subscribe event hub"))
		return
	}
	defer sub.Unsubscribe()

	connID := uuid.NewString()
	logger.Infof("`%s` connected, conn=%s uid=%d", c.Request.UserAgent(), connID, claims.ID)
	defer logger.Infof("event stream closed, conn=%s uid=%d", connID, claims.ID)

	ctx := c.Request.Context()
	frames := make(chan EventMessage)
	safe.SafeGo(func() {
		defer close(frames)
		for {
			ev, err := sub.Recv(ctx)
			if err != nil {
				return // 取消、中枢关闭或落后太多，结束本流
			}
			if !ev.Matches(claims.ID) {
				continue
			}
			select {
			case frames <- chatFrame(ev.Message):
			case <-ctx.Done():
				return
			}
		}
	})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	heartbeat := time.NewTimer(heartbeatFirst)
	defer heartbeat.Stop()
	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case frame, ok := <-frames:
			if !ok {
				return false
			}
			c.SSEvent(frame.Name(), frame)
			return true
		case <-heartbeat.C:
			frame := heartbeatFrame()
			c.SSEvent(frame.Name(), frame)
			heartbeat.Reset(heartbeatInterval)
			return true
		case <-keepAlive.C:
			_, werr := io.WriteString(w, keepAliveText)
			return werr == nil
		case <-ctx.Done():
			return false
		}
	})
}
