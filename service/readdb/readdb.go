// Package readdb 持有 read_index 所在的 PostgreSQL 连接池。
// 用户/群/好友元数据走 Mongo，已读索引按关系表存取，两边互不依赖。
package readdb

import (
	"context"
	"sync"
	"time"

	"IMProject/tools/errs"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pgOnce sync.Once
	pgMgr  *PgManager
)

type PgManager struct {
	pool *pgxpool.Pool
}

// Config 用于初始化连接池
type Config struct {
	Dsn string
}

// InitPg 初始化连接池（单例），带一次连通性探测
func InitPg(ctx context.Context, c Config) error {
	var initErr error
	pgOnce.Do(func() {
		pool, err := pgxpool.New(ctx, c.Dsn)
		if err != nil {
			initErr = errs.WrapMsg(err, "create pgx pool", "dsn", c.Dsn)
			return
		}

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			initErr = errs.WrapMsg(err, "ping postgres")
			return
		}

		pgMgr = &PgManager{pool: pool}
	})
	return initErr
}

// GetPool 获取连接池
func GetPool() *pgxpool.Pool {
	if pgMgr == nil {
		panic("Postgres not initialized, call InitPg first")
	}
	return pgMgr.pool
}

// ClosePg 关闭连接池
func ClosePg() {
	if pgMgr != nil && pgMgr.pool != nil {
		pgMgr.pool.Close()
	}
}
