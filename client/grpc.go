package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/types"
)

// grpcClient gRPC 客户端实现（JSON 编码的 bridge.Bridge 服务）
type grpcClient struct {
	conn     *grpc.ClientConn
	endpoint string
	logger   log.Logger
}

// NewGRPCClient 创建 gRPC 客户端
func NewGRPCClient(config *Config, opts ...grpc.DialOption) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	// 移除协议前缀
	endpoint := strings.TrimPrefix(strings.TrimPrefix(config.Endpoint, "http://"), "https://")

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// 当前使用 insecure 连接，生产环境应通过 opts 传入 TLS 凭证
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(types.JSONCodec{})),
	}, opts...)
	conn, err := grpc.DialContext(ctx, endpoint, opts...)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial gRPC: %w", err))
	}

	return &grpcClient{conn: conn, endpoint: endpoint, logger: config.logger()}, nil
}

// Call 通过 bridge.Bridge/Call 调用方法
func (c *grpcClient) Call(ctx context.Context, method string, params, result interface{}) error {
	if params == nil {
		params = types.EmptyArgs{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params failed: %w", err)
	}

	resp := new(types.CallResponse)
	if err := c.conn.Invoke(ctx, types.GRPCMethodCall, &types.CallRequest{Method: method, Params: raw}, resp); err != nil {
		return NewNetworkError(err)
	}
	if resp.Error != nil {
		return types.NewBridgeErrorFromProblemDetails(resp.Error)
	}
	if result == nil || resp.Result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return NewInvalidResponseError("unmarshal result failed", err)
	}
	return nil
}

// Subscribe 通过 bridge.Bridge/Subscribe 服务端流订阅事件
func (c *grpcClient) Subscribe(ctx context.Context, filter *types.EventFilter) (<-chan *types.Event, error) {
	if filter == nil {
		filter = &types.EventFilter{}
	}

	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, types.GRPCMethodSubscribe)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("open stream: %w", err))
	}
	if err := stream.SendMsg(filter); err != nil {
		return nil, NewNetworkError(fmt.Errorf("send filter: %w", err))
	}
	if err := stream.CloseSend(); err != nil {
		return nil, NewNetworkError(fmt.Errorf("close send: %w", err))
	}

	ch := make(chan *types.Event, defaultEventBuffer)
	go func() {
		defer close(ch)
		for {
			ev := new(types.Event)
			if err := stream.RecvMsg(ev); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					c.logger.Warn("subscription stream ended", "error", err)
				}
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close 关闭连接
func (c *grpcClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
