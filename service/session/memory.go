package session

import (
	"context"
	"sync"
	"time"
)

// ===== 配置 =====

type MemoryConf struct {
	IdleTTL    time.Duration    // 空闲时长（如 300s，与令牌有效期一致）
	SweepEvery time.Duration    // 清理周期（如 30s）
	Clock      func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *MemoryConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 300 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
}

// ===== 实现 =====

type memEntry struct {
	token    string
	expireAt time.Time
}

// Memory 进程内注册表，后台 sweeper 定期清掉过期表项
type Memory struct {
	mu      sync.Mutex
	entries map[int64]*memEntry

	conf     MemoryConf
	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewMemory(conf MemoryConf) *Memory {
	conf.norm()
	m := &Memory{
		entries: make(map[int64]*memEntry),
		conf:    conf,
		stopCh:  make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *Memory) Put(_ context.Context, uid int64, token string) error {
	now := m.conf.Clock()
	m.mu.Lock()
	m.entries[uid] = &memEntry{token: token, expireAt: now.Add(m.conf.IdleTTL)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, uid int64) (bool, error) {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[uid]
	if !ok {
		return false, nil
	}
	if now.After(e.expireAt) {
		// 已过期但 sweeper 还没来得及清，按不在线处理
		delete(m.entries, uid)
		return false, nil
	}
	e.expireAt = now.Add(m.conf.IdleTTL)
	return true, nil
}

func (m *Memory) Del(_ context.Context, uid int64) error {
	m.mu.Lock()
	delete(m.entries, uid)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// ===== 清理 =====

func (m *Memory) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweepOnce(m.conf.Clock())
		}
	}
}

func (m *Memory) sweepOnce(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, e := range m.entries {
		if now.After(e.expireAt) {
			delete(m.entries, uid)
		}
	}
}

var _ Registry = (*Memory)(nil)
