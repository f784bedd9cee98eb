package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProblemDetails Problem Details 结构（基于 RFC7807 + 桥扩展）
// 作为 JSON-RPC error.data 在节点与客户端之间传递
type ProblemDetails struct {
	// RFC7807 标准字段
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   *int   `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// 扩展字段（必填）
	Code        string                 `json:"code"`
	Layer       string                 `json:"layer"`
	UserMessage string                 `json:"userMessage"`
	Details     map[string]interface{} `json:"details,omitempty"`
	TraceID     string                 `json:"traceId"`
	Timestamp   string                 `json:"timestamp"`
}

// BridgeError 桥错误类型
//
// UserMessage 保存链上合约同款的 revert 文案（如 "Not enough signatures!"），
// Detail 保存本次调用的技术细节。errors.Is 按 Code 匹配。
type BridgeError struct {
	Code        string
	Layer       string
	UserMessage string
	Detail      string
	Status      int
	Details     map[string]interface{}
	TraceID     string
	Timestamp   string
}

func (e *BridgeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.UserMessage, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.UserMessage)
}

// Is 按错误码匹配，使 errors.Is(err, types.ErrQuorumNotMet) 可用
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail 基于哨兵错误创建一次具体的错误实例
func (e *BridgeError) WithDetail(format string, args ...interface{}) *BridgeError {
	return newInstance(e, fmt.Sprintf(format, args...), nil)
}

// WithDetails 同 WithDetail，并附带结构化字段
func (e *BridgeError) WithDetails(details map[string]interface{}, format string, args ...interface{}) *BridgeError {
	return newInstance(e, fmt.Sprintf(format, args...), details)
}

func newInstance(base *BridgeError, detail string, details map[string]interface{}) *BridgeError {
	if details == nil {
		details = make(map[string]interface{})
	}
	return &BridgeError{
		Code:        base.Code,
		Layer:       base.Layer,
		UserMessage: base.UserMessage,
		Detail:      detail,
		Status:      base.Status,
		Details:     details,
		TraceID:     uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// ToProblemDetails 转换为 Problem Details
func (e *BridgeError) ToProblemDetails() *ProblemDetails {
	pd := &ProblemDetails{
		Title:       e.UserMessage,
		Code:        e.Code,
		Layer:       e.Layer,
		UserMessage: e.UserMessage,
		Detail:      e.Detail,
		Details:     e.Details,
		TraceID:     e.TraceID,
		Timestamp:   e.Timestamp,
	}
	if e.Status != 0 {
		status := e.Status
		pd.Status = &status
	}
	if pd.TraceID == "" {
		pd.TraceID = uuid.New().String()
	}
	if pd.Timestamp == "" {
		pd.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return pd
}

// NewBridgeErrorFromProblemDetails 从 Problem Details 创建 BridgeError
func NewBridgeErrorFromProblemDetails(pd *ProblemDetails) *BridgeError {
	status := 0
	if pd.Status != nil {
		status = *pd.Status
	}
	return &BridgeError{
		Code:        pd.Code,
		Layer:       pd.Layer,
		UserMessage: pd.UserMessage,
		Detail:      pd.Detail,
		Status:      status,
		Details:     pd.Details,
		TraceID:     pd.TraceID,
		Timestamp:   pd.Timestamp,
	}
}

// IsBridgeError 检查错误链中是否包含 BridgeError
func IsBridgeError(err error) (*BridgeError, bool) {
	var bridgeErr *BridgeError
	if errors.As(err, &bridgeErr) {
		return bridgeErr, true
	}
	return nil, false
}

// AsBridgeError 将任意错误转换为 BridgeError，未知错误归为内部错误
func AsBridgeError(err error) *BridgeError {
	if bridgeErr, ok := IsBridgeError(err); ok {
		if bridgeErr.TraceID == "" {
			return newInstance(bridgeErr, bridgeErr.Detail, bridgeErr.Details)
		}
		return bridgeErr
	}
	return ErrInternal.WithDetail("%v", err)
}

// ParseProblemDetailsFromRPCError 从 JSON-RPC 错误响应解析 Problem Details
func ParseProblemDetailsFromRPCError(rpcError interface{}) (*ProblemDetails, error) {
	rpcMap, ok := rpcError.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid RPC error format")
	}

	// 检查 data 字段是否包含 Problem Details
	data, ok := rpcMap["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("no data field in RPC error")
	}

	code, _ := data["code"].(string)
	layer, _ := data["layer"].(string)
	userMessage, _ := data["userMessage"].(string)
	traceID, _ := data["traceId"].(string)

	if code == "" || layer == "" || userMessage == "" || traceID == "" {
		return nil, fmt.Errorf("missing required fields in problem details")
	}

	detail, _ := data["detail"].(string)
	if detail == "" {
		if msg, ok := rpcMap["message"].(string); ok && msg != userMessage {
			detail = msg
		}
	}

	var status *int
	if statusVal, ok := data["status"].(float64); ok {
		s := int(statusVal)
		status = &s
	}

	details, _ := data["details"].(map[string]interface{})

	timestamp, _ := data["timestamp"].(string)
	if timestamp == "" {
		timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	typeVal, _ := data["type"].(string)
	title, _ := data["title"].(string)
	instance, _ := data["instance"].(string)

	return &ProblemDetails{
		Code:        code,
		Layer:       layer,
		UserMessage: userMessage,
		Detail:      detail,
		Status:      status,
		Details:     details,
		TraceID:     traceID,
		Timestamp:   timestamp,
		Type:        typeVal,
		Title:       title,
		Instance:    instance,
	}, nil
}
