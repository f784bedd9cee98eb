package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/types"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 1 << 20
)

// wsRequest WebSocket 上的 JSON-RPC 请求
type wsRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *uint64         `json:"id,omitempty"`
}

// wsResponse JSON-RPC 响应
type wsResponse struct {
	JSONRPC string       `json:"jsonrpc"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *json2.Error `json:"error,omitempty"`
	ID      *uint64      `json:"id"`
}

// wsNotification 订阅推送
type wsNotification struct {
	JSONRPC string                    `json:"jsonrpc"`
	Method  string                    `json:"method"`
	Params  *types.SubscriptionNotice `json:"params"`
}

// WebSocketHandler JSON-RPC over WebSocket：支持全部 bridge.* 方法与 bridge_subscribe / bridge_unsubscribe
type WebSocketHandler struct {
	dispatcher *Dispatcher
	hub        *Hub
	upgrader   websocket.Upgrader
	logger     log.Logger
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(dispatcher *Dispatcher, hub *Hub, logger log.Logger) *WebSocketHandler {
	if logger == nil {
		logger = log.Nop()
	}
	return &WebSocketHandler{
		dispatcher: dispatcher,
		hub:        hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "websocket"),
	}
}

// ServeHTTP 升级连接并处理消息直到连接关闭
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &wsConn{
		conn:    conn,
		handler: h,
		subs:    make(map[string]*Subscription),
		logger:  h.logger.With("remote", r.RemoteAddr),
	}
	defer func() {
		cancel()
		c.closeSubscriptions()
		conn.Close()
		c.wg.Wait()
	}()

	go c.pingLoop(ctx)
	c.readLoop(ctx)
}

// wsConn 单个 WebSocket 连接
type wsConn struct {
	conn    *websocket.Conn
	handler *WebSocketHandler
	logger  log.Logger

	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   map[string]*Subscription
	wg     sync.WaitGroup
}

func (c *wsConn) readLoop(ctx context.Context) {
	c.conn.SetReadLimit(wsMaxMessage)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		var req wsRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		c.handle(ctx, &req)
	}
}

func (c *wsConn) handle(ctx context.Context, req *wsRequest) {
	var (
		result interface{}
		err    error
	)
	switch req.Method {
	case types.MethodSubscribe:
		result, err = c.subscribe(ctx, req.Params)
	case types.MethodUnsubscribe:
		result, err = c.unsubscribe(req.Params)
	default:
		result, err = c.handler.dispatcher.Dispatch(ctx, req.Method, req.Params)
	}

	// 无 id 的请求为通知，不回复
	if req.ID == nil {
		return
	}
	resp := &wsResponse{JSONRPC: "2.0", ID: req.ID}
	if err != nil {
		resp.Error = toRPCError(err).(*json2.Error)
	} else {
		resp.Result = result
	}
	c.write(resp)
}

func (c *wsConn) subscribe(ctx context.Context, params json.RawMessage) (*types.SubscribeReply, error) {
	var filter types.EventFilter
	if err := decodeParams(params, &filter); err != nil {
		return nil, err
	}
	sub := c.handler.hub.Subscribe(filter)

	c.subsMu.Lock()
	c.subs[sub.ID] = sub
	c.subsMu.Unlock()

	c.wg.Add(1)
	go c.forward(ctx, sub)
	return &types.SubscribeReply{Subscription: sub.ID}, nil
}

func (c *wsConn) unsubscribe(params json.RawMessage) (bool, error) {
	var id string
	if err := decodeParams(params, &id); err != nil {
		return false, err
	}

	c.subsMu.Lock()
	_, owned := c.subs[id]
	delete(c.subs, id)
	c.subsMu.Unlock()

	if !owned {
		return false, nil
	}
	return c.handler.hub.Unsubscribe(id), nil
}

// forward 将订阅事件写回连接；订阅因过慢被丢弃时关闭连接
func (c *wsConn) forward(ctx context.Context, sub *Subscription) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Dropped() {
					c.writeClose(websocket.ClosePolicyViolation, "subscriber too slow")
				}
				return
			}
			c.write(&wsNotification{
				JSONRPC: "2.0",
				Method:  types.MethodSubscription,
				Params:  &types.SubscriptionNotice{Subscription: sub.ID, Result: ev},
			})
		}
	}
}

func (c *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) write(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		c.logger.Debug("write failed", "error", err)
	}
}

func (c *wsConn) writeClose(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, text)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}

func (c *wsConn) closeSubscriptions() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[string]*Subscription)
	c.subsMu.Unlock()
	for id := range subs {
		c.handler.hub.Unsubscribe(id)
	}
}
