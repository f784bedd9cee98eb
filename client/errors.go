package client

import (
	"fmt"

	"github.com/weisyn/bridge-go/types"
)

// Error 客户端错误（传输层或无法解析为 Problem Details 的 RPC 错误）
//
// 节点返回的业务错误统一转换为 *types.BridgeError，可用 errors.Is 与 types 中的哨兵错误比较。
type Error struct {
	Code    int
	Message string
	Data    interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsBridgeError 检查错误是否为节点返回的业务错误
func IsBridgeError(err error) (*types.BridgeError, bool) {
	return types.IsBridgeError(err)
}

// 错误码定义
const (
	ErrCodeNetwork         = 1000 // 网络错误
	ErrCodeTimeout         = 1001 // 超时错误
	ErrCodeInvalidResponse = 1002 // 无效响应
	ErrCodeRPCError        = 1003 // JSON-RPC错误
	ErrCodeNotSupported    = 1004 // 不支持的操作
	ErrCodeClosed          = 1005 // 连接已关闭
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{
		Code:    ErrCodeNetwork,
		Message: "network error",
		Err:     err,
	}
}

// NewTimeoutError 创建超时错误
func NewTimeoutError() *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: "request timeout",
	}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(message string, err error) *Error {
	return &Error{
		Code:    ErrCodeInvalidResponse,
		Message: message,
		Err:     err,
	}
}

// NewRPCError 创建JSON-RPC错误
func NewRPCError(code int, message string, data interface{}) *Error {
	return &Error{
		Code:    ErrCodeRPCError,
		Message: fmt.Sprintf("JSON-RPC error %d: %s", code, message),
		Data:    data,
	}
}

// jsonRPCError JSON-RPC错误结构
type jsonRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// toError JSON-RPC 错误转换：data 中带 Problem Details 时返回 BridgeError
func (e *jsonRPCError) toError() error {
	pd, err := types.ParseProblemDetailsFromRPCError(map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
		"data":    e.Data,
	})
	if err == nil {
		return types.NewBridgeErrorFromProblemDetails(pd)
	}
	return NewRPCError(e.Code, e.Message, e.Data)
}
