package client

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
	"time"
)

// RetryConfig 重试配置
//
// 签名写请求只在连接未建立时重试（见 withSignedWrite），查询请求按 Retryable 重试。
type RetryConfig struct {
	// MaxRetries 最大重试次数
	MaxRetries int
	// InitialDelay 初始延迟（毫秒）
	InitialDelay int
	// MaxDelay 最大延迟（毫秒）
	MaxDelay int
	// BackoffMultiplier 退避倍数
	BackoffMultiplier float64
	// Retryable 判断错误是否可重试的函数
	Retryable func(error) bool
	// OnRetry 重试前的回调函数
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500,
		MaxDelay:          5000,
		BackoffMultiplier: 2.0,
		Retryable:         isRetryableError,
	}
}

// errRetryableStatus 可重试的 HTTP 状态
var errRetryableStatus = errors.New("retryable HTTP status")

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errRetryableStatus) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// 网络错误（连接失败、超时等）
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := err.Error()
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"EOF",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isDialError 连接未建立，请求一定没有发出
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

type signedWriteKey struct{}

// withSignedWrite 标记签名写请求
//
// 请求发出后才失败（连接被重置、读响应超时、5xx）时节点可能已经执行并消耗了 nonce，
// 重发只会得到 UNAUTHORIZED，因此这类请求只对 isDialError 重试。
func withSignedWrite(ctx context.Context) context.Context {
	return context.WithValue(ctx, signedWriteKey{}, true)
}

func isSignedWrite(ctx context.Context) bool {
	v, _ := ctx.Value(signedWriteKey{}).(bool)
	return v
}

// retryFor 返回本次调用使用的重试配置
func retryFor(ctx context.Context, config *RetryConfig) *RetryConfig {
	if config == nil || !isSignedWrite(ctx) {
		return config
	}
	writeConfig := *config
	writeConfig.Retryable = isDialError
	return &writeConfig
}

// isRetryableHTTPError 判断 HTTP 响应状态是否可重试：5xx 与 429
func isRetryableHTTPError(statusCode int) bool {
	return statusCode >= 500 && statusCode < 600 || statusCode == 429
}

// calculateBackoffDelay 计算退避延迟
func calculateBackoffDelay(attempt int, config *RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.BackoffMultiplier, float64(attempt))
	if maxDelay := float64(config.MaxDelay); delay > maxDelay {
		delay = maxDelay
	}
	return time.Duration(delay) * time.Millisecond
}

// withRetry 带重试的函数执行器
func withRetry(ctx context.Context, fn func() error, config *RetryConfig) error {
	if config == nil {
		return fn()
	}

	retryable := config.Retryable
	if retryable == nil {
		retryable = isRetryableError
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		attempts++
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= config.MaxRetries || !retryable(err) {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateBackoffDelay(attempt, config)):
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("retry failed after %d attempts: %w", attempts, lastErr)
}
