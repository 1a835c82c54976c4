// Package mgo 管理 Mongo 连接：异步启动、退避重连、周期健康检查。
// 业务模型通过 GetDB().Collection(...) 取集合。
package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"IMProject/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Config Mongo 连接配置
type Config struct {
	Uri         string
	Database    string
	Username    string
	Password    string
	AuthSource  string
	MaxPoolSize int
	MaxRetry    int
}

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

func (c *Config) validateAndSetDefaults() error {
	if c.Uri == "" {
		return errs.New("mongo uri is required")
	}
	if c.Database == "" {
		return errs.New("mongo database is required")
	}
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = defaultMaxPoolSize
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = defaultMaxRetry
	}
	if c.AuthSource == "" {
		c.AuthSource = "admin"
	}
	return nil
}

// Client 一个已建立的 Mongo 连接及其默认库
type Client struct {
	cli *mongo.Client
	db  *mongo.Database
}

func (c *Client) GetDB() *mongo.Database { return c.db }

func (c *Client) Disconnect(ctx context.Context) error {
	return c.cli.Disconnect(ctx)
}

// NewClient 建立连接并 ping 通，带有限次重试
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if err := cfg.validateAndSetDefaults(); err != nil {
		return nil, err
	}
	opts := options.Client().ApplyURI(cfg.Uri).SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	// 认证单独给了用户名时覆盖 URI 里的认证
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.AuthSource,
		})
	}

	var cli *mongo.Client
	var err error
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = connect(ctx, opts)
		if err != nil && shouldRetry(ctx, err) {
			time.Sleep(time.Second / 2)
			continue
		}
		break
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "failed to connect to MongoDB", "URI", cfg.Uri)
	}
	return &Client{cli: cli, db: cli.Database(cfg.Database)}, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cli, nil
}

// shouldRetry 鉴权失败（13/18）不重试，其余错误在 ctx 有效期内重试
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		if cmdErr, ok := err.(mongo.CommandError); ok {
			return cmdErr.Code != 13 && cmdErr.Code != 18
		}
		return true
	}
}

type MongoManager struct {
	mu        sync.RWMutex
	client    *Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr MongoManager

// StartAsync 一直运行到 ctx.Done()；首次连上时 close readyCh，后续掉线会自动重连
func StartAsync(ctx context.Context, cfg *Config) {
	if globalMgr.readyCh == nil {
		globalMgr.readyCh = make(chan struct{})
	}

	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second // 健康检查周期
			failThresh  = 3                // 连续失败阈值
		)

		for {
			// ===== 连接阶段（带退避重试） =====
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := NewClient(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.client = cli
					globalMgr.mu.Unlock()

					// 只在首次成功时通知就绪
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					break // 进入健康检查阶段
				}

				globalMgr.lastErr.Store(err)

				// 退避 + 抖动
				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff / 5))) // 0~20%
				sleep := backoff - jitter/2

				timer := time.NewTimer(sleep)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// ===== 健康检查阶段（保持/掉线→重连）=====
			fail := 0
			healthTicker := time.NewTicker(healthEvery)
			func() {
				defer healthTicker.Stop()
				for {
					select {
					case <-ctx.Done():
						// 退出前尽量断开
						globalMgr.mu.Lock()
						if globalMgr.client != nil {
							_ = globalMgr.client.Disconnect(context.Background())
							globalMgr.client = nil
						}
						globalMgr.mu.Unlock()
						return
					case <-healthTicker.C:
						globalMgr.mu.RLock()
						c := globalMgr.client
						globalMgr.mu.RUnlock()

						if c == nil {
							// 异常状态，跳出健康检查回到连接阶段
							return
						}
						if err := c.GetDB().Client().Ping(ctx, nil); err != nil {
							fail++
							globalMgr.lastErr.Store(err)
							if fail >= failThresh {
								// 标记掉线，断开并回到连接阶段
								globalMgr.mu.Lock()
								if globalMgr.client != nil {
									_ = globalMgr.client.Disconnect(context.Background())
									globalMgr.client = nil
								}
								globalMgr.mu.Unlock()
								return
							}
						} else {
							fail = 0
						}
					}
				}
			}() // 健康循环结束后自动回到外层 for 进行重连
		}
	}()
}

// Ready 首次连接成功时会 close；可 select 等待
func Ready() <-chan struct{} {
	return globalMgr.readyCh
}

func Manager() *MongoManager {
	return &globalMgr
}

// Err 最近一次错误
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		panic("Mongo not ready: wait Ready() or use TryGetDB()")
	}
	return globalMgr.client.GetDB()
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil, false
	}
	return globalMgr.client.GetDB(), true
}

// WaitReady 阻塞等待首次连接成功
func WaitReady(ctx context.Context, m *MongoManager) error {
	m.mu.RLock()
	readyCh := m.readyCh
	clientNil := m.client == nil
	m.mu.RUnlock()

	if !clientNil {
		return nil
	}
	if readyCh == nil {
		return fmt.Errorf("mongo manager not started")
	}

	select {
	case <-readyCh: // 首次成功时会被 close
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
