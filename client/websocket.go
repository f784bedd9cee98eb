package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/types"
)

// defaultEventBuffer 订阅事件通道缓冲
const defaultEventBuffer = 256

// websocketClient WebSocket 客户端实现
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	timeout  time.Duration
	logger   log.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
	nextID  atomic.Uint64

	mu       sync.Mutex
	requests map[uint64]*pendingCall
	subs     map[string]chan *types.Event
}

// pendingCall 等待响应的请求；onResult 在读循环中同步执行
type pendingCall struct {
	ch       chan *wsMessage
	onResult func(result json.RawMessage)
}

// wsMessage 响应或订阅推送
type wsMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := config.Endpoint
	// 将 http:// 或 https:// 转换为 ws:// 或 wss://
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://"):
		endpoint = "ws://" + endpoint
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial websocket: %w", err))
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &websocketClient{
		endpoint: endpoint,
		conn:     conn,
		timeout:  timeout,
		logger:   config.logger(),
		requests: make(map[uint64]*pendingCall),
		subs:     make(map[string]chan *types.Event),
	}

	// 启动消息读取循环
	go c.readLoop()

	return c, nil
}

// readLoop 消息读取循环
func (c *websocketClient) readLoop() {
	defer c.shutdown()

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !c.closed.Load() {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}

		if msg.Method == types.MethodSubscription {
			c.deliver(msg.Params)
			continue
		}
		if msg.ID == nil {
			continue
		}

		c.mu.Lock()
		p, ok := c.requests[*msg.ID]
		delete(c.requests, *msg.ID)
		c.mu.Unlock()
		if !ok {
			continue
		}
		if msg.Error == nil && p.onResult != nil {
			p.onResult(msg.Result)
		}
		p.ch <- &msg
	}
}

// deliver 推送事件到订阅通道；通道已满时断开该订阅
func (c *websocketClient) deliver(params json.RawMessage) {
	var notice types.SubscriptionNotice
	if err := json.Unmarshal(params, &notice); err != nil || notice.Result == nil {
		c.logger.Warn("invalid subscription notice", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.subs[notice.Subscription]
	if !ok {
		return
	}
	select {
	case ch <- notice.Result:
	default:
		delete(c.subs, notice.Subscription)
		close(ch)
		c.logger.Warn("subscription buffer full, dropping", "subscription", notice.Subscription)
	}
}

// shutdown 连接断开：唤醒所有等待中的请求并关闭订阅通道
func (c *websocketClient) shutdown() {
	c.closed.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.requests {
		close(p.ch)
		delete(c.requests, id)
	}
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params, result interface{}) error {
	raw, err := c.call(ctx, method, params, nil)
	if err != nil {
		return err
	}
	if result == nil || raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return NewInvalidResponseError("unmarshal result failed", err)
	}
	return nil
}

func (c *websocketClient) call(ctx context.Context, method string, params interface{}, onResult func(json.RawMessage)) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, &Error{Code: ErrCodeClosed, Message: "websocket client is closed"}
	}
	if params == nil {
		params = types.EmptyArgs{}
	}

	// 1. 登记请求
	reqID := c.nextID.Add(1)
	p := &pendingCall{ch: make(chan *wsMessage, 1), onResult: onResult}
	c.mu.Lock()
	c.requests[reqID] = p
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.requests, reqID)
		c.mu.Unlock()
	}

	// 2. 发送
	c.writeMu.Lock()
	err := c.conn.WriteJSON(&jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params, ID: reqID})
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return nil, NewNetworkError(fmt.Errorf("write request: %w", err))
	}

	// 3. 等待响应
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case msg, ok := <-p.ch:
		if !ok {
			return nil, &Error{Code: ErrCodeClosed, Message: "connection closed"}
		}
		if msg.Error != nil {
			return nil, msg.Error.toError()
		}
		return msg.Result, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-timer.C:
		forget()
		return nil, NewTimeoutError()
	}
}

// Subscribe 订阅事件
func (c *websocketClient) Subscribe(ctx context.Context, filter *types.EventFilter) (<-chan *types.Event, error) {
	if filter == nil {
		filter = &types.EventFilter{}
	}

	// 订阅通道在读循环中随响应一起登记，之后到达的推送不会丢失
	var (
		subID string
		ch    = make(chan *types.Event, defaultEventBuffer)
	)
	_, err := c.call(ctx, types.MethodSubscribe, []interface{}{filter}, func(raw json.RawMessage) {
		var reply types.SubscribeReply
		if json.Unmarshal(raw, &reply) != nil || reply.Subscription == "" {
			return
		}
		subID = reply.Subscription
		c.mu.Lock()
		c.subs[subID] = ch
		c.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	if subID == "" {
		return nil, NewInvalidResponseError("missing subscription ID", nil)
	}

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		_, active := c.subs[subID]
		if active {
			delete(c.subs, subID)
			close(ch)
		}
		c.mu.Unlock()
		if active && !c.closed.Load() {
			unsubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = c.call(unsubCtx, types.MethodUnsubscribe, []string{subID}, nil)
		}
	}()

	return ch, nil
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		return c.conn.Close()
	}
	return nil
}
