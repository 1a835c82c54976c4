package security

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Options 控制签名与TTL等参数。
type Options struct {
	Secret []byte        // HMAC 密钥（生产用ENV/KMS）
	Alg    string        // HS256/HS384/HS512（默认 HS256）
	TTL    time.Duration // 令牌有效期（默认 5m，与登录态空闲时间一致）
}

// Claims 随令牌下发的用户身份，exp 之外的字段登录后不再变化。
type Claims struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone"`
	DgraphUID string  `json:"dgraph_uid"`
	jwtlib.RegisteredClaims
}

func DefaultOptions(secret []byte) Options {
	return Options{Secret: secret, Alg: "HS256", TTL: 5 * time.Minute}
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Generate 重置 exp 后签发令牌，返回令牌、其哈希与过期时间。
func Generate(opts Options, claims *Claims) (token string, accessTokenHash string, expireAt time.Time, err error) {
	method, err := signingMethod(opts.Alg)
	if err != nil {
		return "", "", time.Time{}, err
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	exp := time.Now().Add(opts.TTL)
	claims.ExpiresAt = jwtlib.NewNumericDate(exp)

	tok := jwtlib.NewWithClaims(method, claims)
	signed, err := tok.SignedString(opts.Secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return signed, HashToken(signed), exp, nil
}

// Verify 解析并校验令牌。exp 按绝对时间校验，不留余量；
// expectedHash 非空时额外比对令牌哈希。
func Verify(opts Options, token string, expectedHash string) (*Claims, error) {
	_, err := signingMethod(opts.Alg) // 校验 alg 合法
	if err != nil {
		return nil, err
	}
	var claims Claims
	parsed, err := jwtlib.ParseWithClaims(token, &claims, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return opts.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if expectedHash != "" && HashToken(token) != expectedHash {
		return nil, errors.New("access token hash mismatch")
	}
	return &claims, nil
}

func signingMethod(alg string) (jwtlib.SigningMethod, error) {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "", "HS256":
		return jwtlib.SigningMethodHS256, nil
	case "HS384":
		return jwtlib.SigningMethodHS384, nil
	case "HS512":
		return jwtlib.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported alg: %s (use HS256/HS384/HS512)", alg)
	}
}
