package event

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	midsec "IMProject/middleware/security"
	msgmodel "IMProject/module/message/model"
	jwtsec "IMProject/tools/security"
)

func TestChatFrameWireShape(t *testing.T) {
	at := msgmodel.Timestamp{Time: time.Date(2024, 5, 1, 12, 0, 0, 0, msgmodel.East8)}
	msg := msgmodel.NewChatMessage(42, msgmodel.ChatMessagePayload{
		FromUID:   1,
		CreatedAt: at,
		Target:    msgmodel.MessageTarget{User: &msgmodel.MessageTargetUser{UID: 2}},
		Detail: msgmodel.MessageDetail{
			Normal: &msgmodel.MessageNormal{Content: msgmodel.MessageContent{Content: "hello"}},
		},
	})

	frame := chatFrame(msg)
	assert.Equal(t, "Chat", frame.Name())

	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"ChatMessage": {
			"mid": 42,
			"payload": {
				"from_uid": 1,
				"created_at": "2024-05-01 12:00:00",
				"target": {"User": {"uid": 2}},
				"detail": {"Normal": {"content": {"content": "hello"}}}
			}
		}
	}`, string(raw))
}

func TestHeartbeatFrameWireShape(t *testing.T) {
	frame := heartbeatFrame()
	assert.Equal(t, "Heartbeat", frame.Name())

	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ChatMessage")

	var decoded struct {
		Heartbeat struct {
			Time string `json:"time"`
		} `json:"Heartbeat"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	_, err = time.ParseInLocation("2006-01-02 15:04:05", decoded.Heartbeat.Time, msgmodel.East8)
	assert.NoError(t, err)
}

// 起一个只做身份注入的路由，模拟已通过鉴权的连接
func streamServer(t *testing.T, hub *Hub, uid int64) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/event/stream", func(c *gin.Context) {
		c.Set(midsec.CtxClaimsKey, &jwtsec.Claims{ID: uid})
	}, NewStreamHandler(hub).Stream)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestStream_PushesMatchingChatEvent(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	srv := streamServer(t, hub, 7)

	// SSE 首帧发出前服务端不回包，发布要先于请求挂起
	go func() {
		for i := 0; i < 400; i++ {
			if hub.SubscriberCount() == 1 {
				hub.Publish(chatEvent(99, 1, 7))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/event/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var eventName, data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && eventName == "Chat":
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if data != "" {
			break
		}
	}
	require.NotEmpty(t, data, "no chat frame received")

	var frame EventMessage
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	require.NotNil(t, frame.ChatMessage)
	assert.Equal(t, int64(99), frame.ChatMessage.Mid)
	assert.Equal(t, int64(1), frame.ChatMessage.Payload.FromUID)

	// 客户端断开后订阅被清理
	cancel()
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestStream_FiltersForeignEvents(t *testing.T) {
	hub := NewHub(0)
	defer hub.Close()

	srv := streamServer(t, hub, 7)

	go func() {
		for i := 0; i < 400; i++ {
			if hub.SubscriberCount() == 1 {
				// 与 uid=7 无关的事件不该出现在流里
				hub.Publish(chatEvent(100, 3, 4))
				hub.Publish(chatEvent(101, 3, 7))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/event/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var data string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data:") && strings.Contains(line, "ChatMessage") {
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			break
		}
	}
	require.NotEmpty(t, data)

	// 首条聊天帧就是 101，100 被过滤掉了
	var frame EventMessage
	require.NoError(t, json.Unmarshal([]byte(data), &frame))
	require.NotNil(t, frame.ChatMessage)
	assert.Equal(t, int64(101), frame.ChatMessage.Mid)
}
