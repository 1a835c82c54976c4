package session

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"IMProject/tools/security"
)

// login key: im:login:<uid>
// Value 存令牌哈希，TTL 控制空闲过期
func loginKey(uid int64) string { return "im:login:" + strconv.FormatInt(uid, 10) }

// Redis 基于 redis 的注册表，多副本部署时共享登录态
type Redis struct {
	rdb     *redis.Client
	idleTTL time.Duration
}

func NewRedis(rdb *redis.Client, idleTTL time.Duration) *Redis {
	if idleTTL <= 0 {
		idleTTL = 300 * time.Second
	}
	return &Redis{rdb: rdb, idleTTL: idleTTL}
}

func (r *Redis) Put(ctx context.Context, uid int64, token string) error {
	return r.rdb.Set(ctx, loginKey(uid), security.HashToken(token), r.idleTTL).Err()
}

func (r *Redis) Get(ctx context.Context, uid int64) (bool, error) {
	// GETEX 命中同时续期，保持空闲过期语义
	_, err := r.rdb.GetEx(ctx, loginKey(uid), r.idleTTL).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Del(ctx context.Context, uid int64) error {
	return r.rdb.Del(ctx, loginKey(uid)).Err()
}

func (r *Redis) Close() {}

var _ Registry = (*Redis)(nil)
