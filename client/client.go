// Package client 结算节点客户端：HTTP / WebSocket / gRPC 传输与类型化的 BridgeClient
package client

import (
	"context"
	"fmt"

	"github.com/weisyn/bridge-go/types"
)

// Client 节点传输接口
type Client interface {
	// Call 调用方法，result 非 nil 时将结果解码到 result
	Call(ctx context.Context, method string, params, result interface{}) error

	// Subscribe 订阅事件，ctx 取消后通道关闭（HTTP 不支持）
	Subscribe(ctx context.Context, filter *types.EventFilter) (<-chan *types.Event, error)

	// Close 关闭连接
	Close() error
}

// NewClient 按协议创建客户端
func NewClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Protocol {
	case ProtocolHTTP:
		return NewHTTPClient(config)
	case ProtocolGRPC:
		return NewGRPCClient(config)
	case ProtocolWebSocket:
		return NewWebSocketClient(config)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", config.Protocol)
	}
}
