// Package security 提供登录鉴权中间件。令牌从 Authorization: Bearer
// 或 ?token= 读取（SSE 无法携带请求头，只能走 query）。令牌本身有效
// 之外还要求 uid 在登录注册表中，登出/冻结踢人即刻生效。
package security

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"

	"IMProject/middleware"
	"IMProject/service/session"
	"IMProject/tools/errs"
	jwtsec "IMProject/tools/security"
)

// CtxClaimsKey 校验通过后的用户身份存放在 gin context 的这个键下
const CtxClaimsKey = "authClaims"

// AuthUser 状态/权限检查需要的用户子集
type AuthUser struct {
	ID     int64
	Status string
	Role   string
}

const (
	statusFreeze = "FREEZE"
	roleAdmin    = "Admin"
)

// LoadUserFunc 按 uid 加载用户，查无此人返回 (nil, nil)
type LoadUserFunc func(ctx context.Context, uid int64) (*AuthUser, error)

// Auth 鉴权中间件集。注册表与用户加载器由构造方注入，不依赖全局状态。
type Auth struct {
	opts     jwtsec.Options
	registry session.Registry
	loadUser LoadUserFunc
}

func New(opts jwtsec.Options, registry session.Registry, loadUser LoadUserFunc) *Auth {
	return &Auth{opts: opts, registry: registry, loadUser: loadUser}
}

// Require 校验令牌与登录态，通过后把 Claims 写入 context
func (a *Auth) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.authenticate(c)
		if err != nil {
			middleware.AbortFail(c, err)
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// RequireNormal 在 Require 之上校验用户未被冻结
func (a *Auth) RequireNormal() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.authenticate(c)
		if err != nil {
			middleware.AbortFail(c, err)
			return
		}
		if err := a.checkNotFrozen(c.Request.Context(), claims.ID); err != nil {
			middleware.AbortFail(c, err)
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

// RequireAdmin 在 RequireNormal 之上要求管理员角色
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.authenticate(c)
		if err != nil {
			middleware.AbortFail(c, err)
			return
		}
		u, err := a.load(c.Request.Context(), claims.ID)
		if err != nil {
			middleware.AbortFail(c, err)
			return
		}
		if u.Status == statusFreeze {
			middleware.AbortFail(c, errs.ErrLoginUserFrozen.Wrap())
			return
		}
		if u.Role != roleAdmin {
			middleware.AbortFail(c, errs.ErrNeedAdmin.Wrap())
			return
		}
		c.Set(CtxClaimsKey, claims)
		c.Next()
	}
}

func (a *Auth) authenticate(c *gin.Context) (*jwtsec.Claims, error) {
	token := ExtractToken(c)
	if token == "" {
		return nil, errs.ErrInvalidToken.Wrap()
	}
	claims, err := jwtsec.Verify(a.opts, token, "")
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, errs.ErrTokenExpired.Wrap()
		}
		return nil, errs.ErrInvalidToken.Wrap()
	}
	// 注册表命中同时刷新空闲计时
	online, err := a.registry.Get(c.Request.Context(), claims.ID)
	if err != nil {
		return nil, errs.WrapMsg(err, "query login registry")
	}
	if !online {
		return nil, errs.ErrInvalidToken.Wrap()
	}
	return claims, nil
}

func (a *Auth) load(ctx context.Context, uid int64) (*AuthUser, error) {
	u, err := a.loadUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errs.ErrUserNotExist.Wrap()
	}
	return u, nil
}

func (a *Auth) checkNotFrozen(ctx context.Context, uid int64) error {
	u, err := a.load(ctx, uid)
	if err != nil {
		return err
	}
	if u.Status == statusFreeze {
		return errs.ErrLoginUserFrozen.Wrap()
	}
	return nil
}

// ExtractToken 依次尝试 Bearer 头与 token 查询参数
func ExtractToken(c *gin.Context) string {
	if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	return strings.TrimSpace(c.Query("token"))
}

// CurrentClaims 取出 Require* 写入的用户身份；未鉴权的路由返回 nil
func CurrentClaims(c *gin.Context) *jwtsec.Claims {
	v, ok := c.Get(CtxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*jwtsec.Claims)
	return claims
}
