package client

import (
	"github.com/weisyn/bridge-go/log"
)

// Config 客户端配置
type Config struct {
	// Endpoint 节点端点地址
	//   HTTP:      http://127.0.0.1:8645/rpc
	//   WebSocket: ws://127.0.0.1:8645/ws
	//   gRPC:      127.0.0.1:8646
	Endpoint string

	// Protocol 协议类型
	Protocol Protocol

	// Timeout 超时时间（秒）
	Timeout int

	// Retry 重试配置（仅 HTTP；nil 使用默认配置）
	Retry *RetryConfig

	// 调试模式
	Debug bool

	// 日志器（可选）
	Logger log.Logger
}

// Protocol 协议类型
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolGRPC      Protocol = "grpc"
	ProtocolWebSocket Protocol = "websocket"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://127.0.0.1:8645/rpc",
		Protocol: ProtocolHTTP,
		Timeout:  30,
		Debug:    false,
	}
}

func (c *Config) logger() log.Logger {
	if c.Logger == nil {
		return log.Nop()
	}
	return c.Logger
}
