// Package session 维护"已登录用户"注册表。令牌校验通过后还要求
// uid 在注册表中存在才算有效；登出与冻结通过删除表项立即生效。
// 表项按空闲时间过期：每次命中都会把空闲计时重置，与令牌有效期同长。
package session

import "context"

// Registry 登录态注册表
type Registry interface {
	// Put 登录或续期后写入，空闲计时从当前时刻起算
	Put(ctx context.Context, uid int64, token string) error
	// Get 返回 uid 是否在线，命中时刷新空闲计时
	Get(ctx context.Context, uid int64) (bool, error)
	// Del 移除登录态（登出、冻结踢下线）
	Del(ctx context.Context, uid int64) error
	// Close 释放后台资源
	Close()
}
