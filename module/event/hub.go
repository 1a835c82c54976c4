// Package event 实现进程内消息事件的广播与推送桥接。
// 发送方永不阻塞：订阅者缓冲满时挤掉最旧事件并累计丢失数，
// 订阅者在下一次 Recv 时得到一次 LaggedError，然后继续收新事件。
// 不提供回放，落后的客户端通过消息库的用户流水补齐。
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	msgmodel "IMProject/module/message/model"
)

// DefaultCapacity 单个订阅者的事件缓冲上限
const DefaultCapacity = 128

// ErrClosed 中枢已关闭或订阅已取消
var ErrClosed = errors.New("event: closed")

// LaggedError 订阅者缓冲溢出后，Recv 返回一次该错误报告丢失数量
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("event: lagged, %d events missed", e.Missed)
}

// BroadcastEvent 一次消息投递事件
type BroadcastEvent struct {
	// Targets 收件人集合：单聊为 {from,to}，群聊为发送时刻的成员快照
	Targets []int64
	Message msgmodel.ChatMessage
}

// Matches 判断事件是否应推给 uid：是收件人，或是发送者本人
func (e *BroadcastEvent) Matches(uid int64) bool {
	if e.Message.Payload.FromUID == uid {
		return true
	}
	for _, t := range e.Targets {
		if t == uid {
			return true
		}
	}
	return false
}

// Hub 进程内广播中枢
type Hub struct {
	mu       sync.Mutex
	subs     map[int64]*Subscriber
	nextID   int64
	capacity int
	closed   bool
}

// NewHub capacity<=0 时取 DefaultCapacity
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Hub{
		subs:     make(map[int64]*Subscriber),
		capacity: capacity,
	}
}

// Publish 把事件投给当前所有订阅者。没有订阅者时事件直接丢弃，
// 任何情况下都不阻塞调用方。
func (h *Hub) Publish(ev *BroadcastEvent) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.push(ev)
	}
}

// Subscribe 注册一个新订阅者，从订阅时刻起接收事件
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.nextID++
	s := &Subscriber{
		hub:    h,
		id:     h.nextID,
		buf:    make([]*BroadcastEvent, 0, h.capacity),
		notify: make(chan struct{}, 1),
	}
	h.subs[s.id] = s
	return s, nil
}

// SubscriberCount 当前订阅者数量
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close 关闭中枢并唤醒所有订阅者
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = map[int64]*Subscriber{}
	h.mu.Unlock()

	for _, s := range subs {
		s.markClosed()
	}
}

func (h *Hub) remove(id int64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscriber 单个订阅端，持有自己的有界缓冲
type Subscriber struct {
	hub *Hub
	id  int64

	mu     sync.Mutex
	buf    []*BroadcastEvent
	missed uint64
	closed bool
	notify chan struct{}
}

func (s *Subscriber) push(ev *BroadcastEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.buf) >= cap(s.buf) {
		// 挤掉最旧事件，记一次丢失
		copy(s.buf, s.buf[1:])
		s.buf = s.buf[:len(s.buf)-1]
		s.missed++
	}
	s.buf = append(s.buf, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscriber) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv 取下一事件。若期间有事件被挤掉，先返回一次 *LaggedError，
// 再次调用继续取缓冲中最旧的事件。ctx 取消时返回其错误。
func (s *Subscriber) Recv(ctx context.Context) (*BroadcastEvent, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			n := s.missed
			s.missed = 0
			s.mu.Unlock()
			return nil, &LaggedError{Missed: n}
		}
		if len(s.buf) > 0 {
			ev := s.buf[0]
			copy(s.buf, s.buf[1:])
			s.buf = s.buf[:len(s.buf)-1]
			s.mu.Unlock()
			return ev, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

// Unsubscribe 取消订阅并释放缓冲
func (s *Subscriber) Unsubscribe() {
	s.hub.remove(s.id)
	s.markClosed()
}
