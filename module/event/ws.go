package event

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"IMProject/logger"
	midsec "IMProject/middleware/security"
	"IMProject/tools/safe"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler 单向推送的 WebSocket 出口，下行帧与 SSE 同构。
// 上行只处理控制帧，数据帧一律丢弃；发消息仍走 HTTP 接口。
type WSHandler struct {
	hub *Hub
}

func NewWSHandler(hub *Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Serve 升级连接并持续推送，对端断开或订阅端落后太多时结束
func (h *WSHandler) Serve(c *gin.Context) {
	claims := midsec.CurrentClaims(c)
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("ws upgrade uid=%d: %v", claims.ID, err)
		return
	}
	defer func() { _ = conn.Close() }()

	sub, err := h.hub.Subscribe()
	if err != nil {
		return
	}
	defer sub.Unsubscribe()

	connID := uuid.NewString()
	logger.Infof("ws connected, conn=%s uid=%d", connID, claims.ID)
	defer logger.Infof("ws closed, conn=%s uid=%d", connID, claims.ID)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 读端只为消费控制帧、探测断开
	safe.SafeGo(func() {
		defer cancel()
		conn.SetReadLimit(1 << 20)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	frames := make(chan EventMessage)
	safe.SafeGo(func() {
		defer close(frames)
		for {
			ev, err := sub.Recv(ctx)
			if err != nil {
				return
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

	heartbeat := time.NewTimer(heartbeatFirst)
	defer heartbeat.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := h.write(conn, frame); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := h.write(conn, heartbeatFrame()); err != nil {
				return
			}
			heartbeat.Reset(heartbeatInterval)
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *WSHandler) write(conn *websocket.Conn, frame EventMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(frame)
}
