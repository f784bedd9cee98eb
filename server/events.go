package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/types"
)

// defaultSubscriptionBuffer 每个订阅的事件缓冲
const defaultSubscriptionBuffer = 256

// Subscription 事件订阅
//
// Events 在订阅取消或因消费过慢被丢弃时关闭，Dropped 区分两者。
type Subscription struct {
	ID     string
	filter types.EventFilter
	ch     chan *types.Event

	mu      sync.Mutex
	closed  bool
	dropped bool
}

// Events 事件通道
func (s *Subscription) Events() <-chan *types.Event { return s.ch }

// Dropped 是否因缓冲满被服务端断开
func (s *Subscription) Dropped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Subscription) close(dropped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.dropped = dropped
	close(s.ch)
}

// Hub 事件分发中心，实现 settlement.EventSink
//
// Publish 在结算引擎的写锁内被调用，不能阻塞：订阅缓冲已满时直接断开该订阅。
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	logger log.Logger
}

var _ settlement.EventSink = (*Hub)(nil)

// NewHub 创建事件分发中心
func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.Nop()
	}
	return &Hub{
		subs:   make(map[string]*Subscription),
		buffer: defaultSubscriptionBuffer,
		logger: logger.With("component", "events"),
	}
}

// Subscribe 新建订阅
func (h *Hub) Subscribe(filter types.EventFilter) *Subscription {
	sub := &Subscription{
		ID:     uuid.New().String(),
		filter: filter,
		ch:     make(chan *types.Event, h.buffer),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()
	h.logger.Debug("subscribed", "subscription", sub.ID, "topics", filter.Topics)
	return sub
}

// Unsubscribe 取消订阅，返回订阅是否存在
func (h *Hub) Unsubscribe(id string) bool {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		sub.close(false)
	}
	return ok
}

// Len 当前订阅数
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish 分发事件
func (h *Hub) Publish(ev *types.Event) {
	var slow []*Subscription

	h.mu.RLock()
	for _, sub := range h.subs {
		if !sub.filter.Match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, sub := range slow {
		delete(h.subs, sub.ID)
	}
	h.mu.Unlock()
	for _, sub := range slow {
		sub.close(true)
		h.logger.Warn("dropping slow subscriber", "subscription", sub.ID, "sequence", ev.Sequence)
	}
}

// Close 关闭全部订阅
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()
	for _, sub := range subs {
		sub.close(false)
	}
}
