package server

import (
	"sync"
	"sync/atomic"

	"github.com/rs/xid"

	"github.com/ImranAdan/computational-benchmarks/internal/metrics"
)

// Frame 一帧打包好的数据，发布后只读，所有订阅者共享
type Frame struct {
	Seq     uint64 // 发布序号（不上线）
	Payload []byte // 线上格式：latency_us + points
}

// Hub 广播分发：每个订阅者一个有界队列，满了就丢掉新帧，发布永不阻塞
type Hub struct {
	mu    sync.RWMutex
	subs  map[xid.ID]*Subscription
	depth int

	published atomic.Uint64
	dropped   atomic.Uint64
}

// Subscription 订阅句柄，Close 后不再收到帧
type Subscription struct {
	id  xid.ID
	hub *Hub
	ch  chan Frame

	sent    atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
}

// SubscriptionStats 订阅者统计
type SubscriptionStats struct {
	Sent    uint64
	Dropped uint64
}

// HubStats 分发器统计
type HubStats struct {
	Subscribers int
	Published   uint64
	Dropped     uint64
}

// NewHub 创建分发器，depth 为每个订阅者的队列深度
func NewHub(depth int) *Hub {
	if depth < 1 {
		depth = 1
	}
	return &Hub{
		subs:  make(map[xid.ID]*Subscription),
		depth: depth,
	}
}

// Subscribe 注册新的订阅者
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:  xid.New(),
		hub: h,
		ch:  make(chan Frame, h.depth),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	return sub
}

// SubscriberCount 当前订阅者数量
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish 非阻塞地把帧投递给所有订阅者，返回成功投递的数量
func (h *Hub) Publish(frame Frame) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.published.Add(1)

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- frame:
			sub.sent.Add(1)
			delivered++
		default:
			// 队列满：只丢这一个订阅者的这一帧
			sub.dropped.Add(1)
			h.dropped.Add(1)
			metrics.RecordFrameDropped()
		}
	}
	return delivered
}

// Stats 返回分发器统计
func (h *Hub) Stats() HubStats {
	return HubStats{
		Subscribers: h.SubscriberCount(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	// 持有写锁时关闭，Publish 不会再向它发送
	close(sub.ch)
}

// ID 订阅者标识
func (s *Subscription) ID() string {
	return s.id.String()
}

// Frames 按发布顺序产出帧；Close 后通道关闭
func (s *Subscription) Frames() <-chan Frame {
	return s.ch
}

// Close 取消订阅（可重复调用）
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
	})
}

// Stats 返回订阅者统计
func (s *Subscription) Stats() SubscriptionStats {
	return SubscriptionStats{
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
	}
}
