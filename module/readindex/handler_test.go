package readindex

import (
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
	"IMProject/tools/errs"
	jwtsec "IMProject/tools/security"
)

func newTestRouter(t *testing.T, uid int64, repo *fakeRepo, members *fakeMembers) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub := func(c *gin.Context) {
		c.Set(midsec.CtxClaimsKey, &jwtsec.Claims{ID: uid})
		c.Next()
	}
	rt := middleware.NewRoutes(stub, stub, stub)

	r := gin.New()
	RegisterRoutes(r, rt, NewHandler(NewService(repo, members)))
	return r
}

func putReadIndex(t *testing.T, r *gin.Engine, body string) (*httptest.ResponseRecorder, int) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/read-index", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp.Code
}

func TestHandlerSet_DM(t *testing.T) {
	repo := &fakeRepo{}
	r := newTestRouter(t, 1, repo, &fakeMembers{})

	w, code := putReadIndex(t, r, `{"User":{"target_uid":2,"mid":9}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{
		"acting-dm uid=1 target=2 mid=9",
		"peer-dm uid=2 target=1 latest=9 by=1",
	}, repo.calls)
}

func TestHandlerSet_Group(t *testing.T) {
	repo := &fakeRepo{}
	r := newTestRouter(t, 1, repo, &fakeMembers{uids: []int64{1, 2}})

	w, code := putReadIndex(t, r, `{"Group":{"target_gid":5,"mid":12}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, code)
	assert.Equal(t, []string{
		"acting-group uid=1 gid=5 mid=12",
		"member-group uid=2 gid=5 latest=12 by=1",
	}, repo.calls)
}

func TestHandlerSet_BothBranchesRejected(t *testing.T) {
	repo := &fakeRepo{}
	r := newTestRouter(t, 1, repo, &fakeMembers{})

	w, code := putReadIndex(t, r,
		`{"User":{"target_uid":2,"mid":9},"Group":{"target_gid":5,"mid":9}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ArgsError, code)
	assert.Empty(t, repo.calls)
}

func TestHandlerSet_MalformedBody(t *testing.T) {
	repo := &fakeRepo{}
	r := newTestRouter(t, 1, repo, &fakeMembers{})

	w, code := putReadIndex(t, r, `{"User":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errs.ArgsError, code)
}
