package security

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IMProject/service/session"
	"IMProject/tools/errs"
	jwtsec "IMProject/tools/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authEnv struct {
	auth     *Auth
	opts     jwtsec.Options
	registry session.Registry
	users    map[int64]*AuthUser
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	opts := jwtsec.Options{Secret: []byte("unit-test-secret"), Alg: "HS256", TTL: time.Minute}
	reg := session.NewMemory(session.MemoryConf{IdleTTL: time.Minute, SweepEvery: time.Minute})
	t.Cleanup(reg.Close)

	env := &authEnv{opts: opts, registry: reg, users: map[int64]*AuthUser{}}
	env.auth = New(opts, reg, func(_ context.Context, uid int64) (*AuthUser, error) {
		return env.users[uid], nil
	})
	return env
}

// login 造一个已登录用户：签发令牌并写入注册表
func (e *authEnv) login(t *testing.T, u *AuthUser) string {
	t.Helper()
	e.users[u.ID] = u
	token, _, _, err := jwtsec.Generate(e.opts, &jwtsec.Claims{ID: u.ID, Name: "tester"})
	require.NoError(t, err)
	require.NoError(t, e.registry.Put(context.Background(), u.ID, token))
	return token
}

func routerWith(guard gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/ping", guard, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": CurrentClaims(c).ID})
	})
	return r
}

func do(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bodyCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Code
}

func TestRequire_ValidToken(t *testing.T) {
	env := newAuthEnv(t)
	token := env.login(t, &AuthUser{ID: 7, Status: "NORMAL", Role: "User"})

	w := do(routerWith(env.auth.Require()), token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"uid":7`)
}

func TestRequire_TokenViaQuery(t *testing.T) {
	// SSE 场景走 ?token=
	env := newAuthEnv(t)
	token := env.login(t, &AuthUser{ID: 7, Status: "NORMAL", Role: "User"})

	r := routerWith(env.auth.Require())
	req := httptest.NewRequest(http.MethodGet, "/ping?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequire_MissingToken(t *testing.T) {
	env := newAuthEnv(t)

	w := do(routerWith(env.auth.Require()), "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.InvalidTokenError, bodyCode(t, w))
}

func TestRequire_GarbageToken(t *testing.T) {
	env := newAuthEnv(t)

	w := do(routerWith(env.auth.Require()), "not-a-jwt")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.InvalidTokenError, bodyCode(t, w))
}

func TestRequire_ExpiredToken(t *testing.T) {
	env := newAuthEnv(t)
	env.users[7] = &AuthUser{ID: 7, Status: "NORMAL", Role: "User"}

	claims := &jwtsec.Claims{ID: 7}
	claims.ExpiresAt = jwtlib.NewNumericDate(time.Now().Add(-time.Minute))
	expired, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(env.opts.Secret)
	require.NoError(t, err)

	w := do(routerWith(env.auth.Require()), expired)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.TokenExpiredError, bodyCode(t, w))
}

func TestRequire_LoggedOut(t *testing.T) {
	// 令牌本身仍有效，但注册表已无表项（登出/被踢）
	env := newAuthEnv(t)
	token := env.login(t, &AuthUser{ID: 7, Status: "NORMAL", Role: "User"})
	require.NoError(t, env.registry.Del(context.Background(), 7))

	w := do(routerWith(env.auth.Require()), token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.InvalidTokenError, bodyCode(t, w))
}

func TestRequireNormal_FrozenUser(t *testing.T) {
	env := newAuthEnv(t)
	token := env.login(t, &AuthUser{ID: 7, Status: "FREEZE", Role: "User"})

	w := do(routerWith(env.auth.RequireNormal()), token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errs.LoginUserFrozenError, bodyCode(t, w))
}

func TestRequireAdmin(t *testing.T) {
	env := newAuthEnv(t)
	admin := env.login(t, &AuthUser{ID: 1, Status: "NORMAL", Role: "Admin"})
	user := env.login(t, &AuthUser{ID: 2, Status: "NORMAL", Role: "User"})

	r := routerWith(env.auth.RequireAdmin())

	w := do(r, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errs.NeedAdminError, bodyCode(t, w))
}

func TestExtractToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/ping?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractToken(c))

	c.Request.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", ExtractToken(c))

	// Basic 等其他 scheme 不认，回落到 query
	c.Request.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "from-query", ExtractToken(c))
}
