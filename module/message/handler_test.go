package message

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	msgmodel "IMProject/module/message/model"
	"IMProject/module/readindex"
	"IMProject/tools/errs"
	jwtsec "IMProject/tools/security"
)

type speakGate struct {
	err  error
	gids []int64
}

func (s *speakGate) CheckSpeak(_ context.Context, gid, _ int64) error {
	s.gids = append(s.gids, gid)
	return s.err
}

// newTestRouter 用直通守卫挂真实路由，身份固定为 uid
func newTestRouter(t *testing.T, uid int64) (*gin.Engine, *Service, *recordRepo, *speakGate) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, repo, _, _ := newTestService(t)
	gate := &speakGate{}

	stub := func(c *gin.Context) {
		c.Set(midsec.CtxClaimsKey, &jwtsec.Claims{ID: uid})
		c.Next()
	}
	rt := middleware.NewRoutes(stub, stub, stub)

	r := gin.New()
	RegisterRoutes(r, rt, NewHandler(svc, gate))
	return r, svc, repo, gate
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func doReq(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestHandler_SendDM(t *testing.T) {
	r, _, repo, gate := newTestRouter(t, 1)

	w, env := doReq(t, r, http.MethodPost, "/message/send",
		`{"msg":"hello","target":{"User":{"uid":2}}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "1", string(env.Data)) // 首条消息 mid=1
	assert.Empty(t, gate.gids)             // 单聊不查禁言
	assert.NotEmpty(t, repo.calls)
}

func TestHandler_Send_BlankMsg(t *testing.T) {
	r, _, _, _ := newTestRouter(t, 1)

	w, env := doReq(t, r, http.MethodPost, "/message/send",
		`{"target":{"User":{"uid":2}}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ArgsError, env.Code)
	assert.Contains(t, env.Msg, "msg is blank")
}

func TestHandler_SendGroup_MutedSenderRejected(t *testing.T) {
	r, svc, _, gate := newTestRouter(t, 1)
	gate.err = errs.ErrSpeakForbidden.Wrap()

	w, env := doReq(t, r, http.MethodPost, "/message/send",
		`{"msg":"hi","target":{"Group":{"gid":5}}}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errs.SpeakForbiddenError, env.Code)
	assert.Equal(t, []int64{5}, gate.gids)

	// 被拒的消息不落盘
	msgs, err := svc.HistoryGroup(5, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHandler_SendGroup(t *testing.T) {
	r, svc, _, gate := newTestRouter(t, 1)

	w, env := doReq(t, r, http.MethodPost, "/message/send",
		`{"msg":"all hands","target":{"Group":{"gid":5}}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, []int64{5}, gate.gids)

	msgs, err := svc.HistoryGroup(5, nil, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "all hands", msgs[0].Payload.Detail.Content())
}

func TestHandler_HistoryUser(t *testing.T) {
	r, svc, _, _ := newTestRouter(t, 1)

	for _, msg := range []string{"one", "two", "three"} {
		_, err := svc.Send(context.Background(), 1, userTarget(2), msg)
		require.NoError(t, err)
	}

	w, env := doReq(t, r, http.MethodGet, "/message/history/user/2", "")
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []msgmodel.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 3)
	// 新到旧
	assert.Equal(t, "three", msgs[0].Payload.Detail.Content())
	assert.Equal(t, "one", msgs[2].Payload.Detail.Content())

	// before 为开区间游标
	_, env = doReq(t, r, http.MethodGet, "/message/history/user/2?before=3&limit=1", "")
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Payload.Detail.Content())
}

func TestHandler_HistoryUser_BadParam(t *testing.T) {
	r, _, _, _ := newTestRouter(t, 1)

	w, env := doReq(t, r, http.MethodGet, "/message/history/user/abc", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ArgsError, env.Code)
}

func TestHandler_Sync(t *testing.T) {
	// 接收方视角补数据
	r, svc, _, _ := newTestRouter(t, 2)

	for _, msg := range []string{"one", "two", "three"} {
		_, err := svc.Send(context.Background(), 1, userTarget(2), msg)
		require.NoError(t, err)
	}

	w, env := doReq(t, r, http.MethodGet, "/message/sync?after=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var msgs []msgmodel.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 2)
	// 旧到新
	assert.Equal(t, "two", msgs[0].Payload.Detail.Content())
	assert.Equal(t, "three", msgs[1].Payload.Detail.Content())
}

func TestHandler_ChatList(t *testing.T) {
	r, svc, repo, _ := newTestRouter(t, 1)

	mid, err := svc.Send(context.Background(), 1, userTarget(2), "latest")
	require.NoError(t, err)

	repo.rows = []readindex.Row{{TargetUID: ptr(2), LatestMid: mid, UIDOfLatestMsg: 1}}

	w, env := doReq(t, r, http.MethodGet, "/chat/list", "")
	require.Equal(t, http.StatusOK, w.Code)

	var items []struct {
		TargetUID *int64          `json:"target_uid"`
		LatestMid int64           `json:"latest_mid"`
		LatestMsg json.RawMessage `json:"latest_msg"`
		UnRead    string          `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.Len(t, items, 1)
	require.NotNil(t, items[0].TargetUID)
	assert.EqualValues(t, 2, *items[0].TargetUID)
	assert.Equal(t, mid, items[0].LatestMid)
	assert.NotEmpty(t, items[0].LatestMsg)
	// 从未回执过 → 未读 "all"
	assert.Equal(t, "all", items[0].UnRead)
}
