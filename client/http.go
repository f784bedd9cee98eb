package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/types"
)

// httpClient HTTP客户端实现
type httpClient struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

// NewHTTPClient 创建HTTP客户端
func NewHTTPClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.logger()

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		if config.Debug {
			retryConfig.OnRetry = func(attempt int, err error) {
				logger.Warn("Retrying request", "attempt", attempt, "error", err)
			}
		}
	}

	return &httpClient{
		endpoint: config.Endpoint,
		client:   &http.Client{Timeout: time.Duration(config.Timeout) * time.Second},
		logger:   logger,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// Call 调用JSON-RPC方法
func (c *httpClient) Call(ctx context.Context, method string, params, result interface{}) error {
	if params == nil {
		params = types.EmptyArgs{}
	}

	// 1. 构建请求
	reqBody, err := json.Marshal(&jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}
	if c.debug {
		c.logger.Debug("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	// 2. 发送（带重试，每次重试重新创建请求体）
	var (
		status   int
		respBody []byte
	)
	err = withRetry(ctx, func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
		if reqErr != nil {
			return fmt.Errorf("create request failed: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		httpResp, reqErr := c.client.Do(httpReq)
		if reqErr != nil {
			return reqErr
		}
		defer httpResp.Body.Close()

		if isRetryableHTTPError(httpResp.StatusCode) {
			return fmt.Errorf("%w: %d", errRetryableStatus, httpResp.StatusCode)
		}
		body, readErr := io.ReadAll(httpResp.Body)
		if readErr != nil {
			return fmt.Errorf("read response failed: %w", readErr)
		}
		status, respBody = httpResp.StatusCode, body
		return nil
	}, retryFor(ctx, c.retry))
	if err != nil {
		return NewNetworkError(err)
	}
	if c.debug {
		c.logger.Debug("JSON-RPC response", "status", status, "body", string(respBody))
	}

	// 3. 解析响应
	return decodeHTTPResponse(status, respBody, result)
}

// decodeHTTPResponse 解析 JSON-RPC 响应；非 200 响应优先按 Problem Details 解析
func decodeHTTPResponse(status int, body []byte, result interface{}) error {
	var resp jsonRPCResponse
	if err := json.Unmarshal(body, &resp); err != nil || (resp.Error == nil && resp.Result == nil) {
		if status != http.StatusOK {
			var pd types.ProblemDetails
			if json.Unmarshal(body, &pd) == nil && pd.Code != "" {
				return types.NewBridgeErrorFromProblemDetails(&pd)
			}
			return &Error{Code: ErrCodeInvalidResponse, Message: fmt.Sprintf("HTTP error: %d, body: %s", status, string(body))}
		}
		if err != nil {
			return NewInvalidResponseError("unmarshal response failed", err)
		}
	}

	if resp.Error != nil {
		return resp.Error.toError()
	}
	if result == nil || resp.Result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return NewInvalidResponseError("unmarshal result failed", err)
	}
	return nil
}

// Subscribe 订阅事件（HTTP不支持，需要使用WebSocket或gRPC）
func (c *httpClient) Subscribe(context.Context, *types.EventFilter) (<-chan *types.Event, error) {
	return nil, &Error{Code: ErrCodeNotSupported, Message: "HTTP client does not support event subscription, use WebSocket or gRPC client instead"}
}

// Close 关闭连接（HTTP客户端无需特殊处理）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// jsonRPCRequest JSON-RPC请求结构
type jsonRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// jsonRPCResponse JSON-RPC响应结构
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}
