package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// JSON-RPC 方法名（gorilla/rpc 服务名 "bridge"）
const (
	MethodGetActiveValidators          = "bridge.GetActiveValidators"
	MethodGetSupportedTokens           = "bridge.GetSupportedTokens"
	MethodGetLockedBalance             = "bridge.GetLockedBalance"
	MethodGetCreditedBalance           = "bridge.GetCreditedBalance"
	MethodGetAvailableBalance          = "bridge.GetAvailableBalance"
	MethodGetCollateralHeadroom        = "bridge.GetCollateralHeadroom"
	MethodGetStatus                    = "bridge.GetStatus"
	MethodIsBatchRecorded              = "bridge.IsBatchRecorded"
	MethodDeposit                      = "bridge.Deposit"
	MethodBatchUpdateAvailableBalances = "bridge.BatchUpdateAvailableBalances"
	MethodWithdraw                     = "bridge.Withdraw"
	MethodAddValidators                = "bridge.AddValidators"
	MethodRemoveValidators             = "bridge.RemoveValidators"
	MethodSetSupportedToken            = "bridge.SetSupportedToken"
	MethodPause                        = "bridge.Pause"
	MethodUnpause                      = "bridge.Unpause"
	MethodTransferOwnership            = "bridge.TransferOwnership"

	// WebSocket / gRPC 订阅
	MethodSubscribe    = "bridge_subscribe"
	MethodUnsubscribe  = "bridge_unsubscribe"
	MethodSubscription = "bridge_subscription"
)

// ========== 只读请求 ==========

// EmptyArgs 无参数
type EmptyArgs struct{}

// TokenArgs 代币参数
type TokenArgs struct {
	Token string `json:"token"`
}

// BalanceArgs 余额查询参数
type BalanceArgs struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}

// BatchIDArgs 批次 ID 参数
type BatchIDArgs struct {
	BatchID string `json:"batchId"`
}

// AmountReply 金额（十进制字符串）
type AmountReply struct {
	Amount string `json:"amount"`
}

// ValidatorsReply 验证者名单
type ValidatorsReply struct {
	Validators []string `json:"validators"`
}

// TokensReply 支持的代币列表
type TokensReply struct {
	Tokens []string `json:"tokens"`
}

// BatchRecordedReply 批次是否已记录
type BatchRecordedReply struct {
	Recorded bool `json:"recorded"`
}

// QuorumInfo 当前法定人数策略
type QuorumInfo struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
	MinRoster   int    `json:"minRoster"`
}

// StatusReply 节点状态
type StatusReply struct {
	Owner           string     `json:"owner"`
	Paused          bool       `json:"paused"`
	DomainSeparator string     `json:"domainSeparator"`
	Validators      int        `json:"validators"`
	Quorum          QuorumInfo `json:"quorum"`
}

// ========== 写请求 ==========

// CallAuth 调用方认证信息
//
// Signature 为 EIP-191 签名，签名内容为 CallDigest(domainSeparator, method, payload, nonce)。
// Nonce 对同一调用方必须严格递增。
type CallAuth struct {
	From      string `json:"from"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

// SignedArgs 带认证信息的写请求
type SignedArgs interface {
	CallAuth() CallAuth
	CallPayload() interface{}
}

// DepositPayload 存入抵押
type DepositPayload struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// BatchPayload 批次结算
type BatchPayload struct {
	Token      string   `json:"token"`
	Recipients []string `json:"recipients"`
	Amounts    []string `json:"amounts"`
	BatchID    string   `json:"batchId"`
	Signatures []string `json:"signatures"`
}

// WithdrawPayload 提取可用余额
type WithdrawPayload struct {
	Token string `json:"token"`
}

// ValidatorsPayload 验证者名单变更
type ValidatorsPayload struct {
	Validators []string `json:"validators"`
}

// SupportedTokenPayload 代币白名单变更
type SupportedTokenPayload struct {
	Token   string `json:"token"`
	Enabled bool   `json:"enabled"`
}

// OwnershipPayload 所有权转移
type OwnershipPayload struct {
	NewOwner string `json:"newOwner"`
}

// EmptyPayload 无业务参数
type EmptyPayload struct{}

// DepositArgs 存入请求
type DepositArgs struct {
	Auth    CallAuth       `json:"auth"`
	Payload DepositPayload `json:"payload"`
}

// BatchArgs 批次结算请求
type BatchArgs struct {
	Auth    CallAuth     `json:"auth"`
	Payload BatchPayload `json:"payload"`
}

// WithdrawArgs 提取请求
type WithdrawArgs struct {
	Auth    CallAuth        `json:"auth"`
	Payload WithdrawPayload `json:"payload"`
}

// ValidatorsArgs 验证者变更请求
type ValidatorsArgs struct {
	Auth    CallAuth          `json:"auth"`
	Payload ValidatorsPayload `json:"payload"`
}

// SupportedTokenArgs 白名单变更请求
type SupportedTokenArgs struct {
	Auth    CallAuth              `json:"auth"`
	Payload SupportedTokenPayload `json:"payload"`
}

// OwnershipArgs 所有权转移请求
type OwnershipArgs struct {
	Auth    CallAuth         `json:"auth"`
	Payload OwnershipPayload `json:"payload"`
}

// AdminArgs 无业务参数的管理请求（Pause / Unpause）
type AdminArgs struct {
	Auth    CallAuth     `json:"auth"`
	Payload EmptyPayload `json:"payload"`
}

func (a *DepositArgs) CallAuth() CallAuth { return a.Auth }
func (a *DepositArgs) CallPayload() interface{} { return a.Payload }
func (a *BatchArgs) CallAuth() CallAuth { return a.Auth }
func (a *BatchArgs) CallPayload() interface{} { return a.Payload }
func (a *WithdrawArgs) CallAuth() CallAuth { return a.Auth }
func (a *WithdrawArgs) CallPayload() interface{} { return a.Payload }
func (a *ValidatorsArgs) CallAuth() CallAuth { return a.Auth }
func (a *ValidatorsArgs) CallPayload() interface{} { return a.Payload }
func (a *SupportedTokenArgs) CallAuth() CallAuth { return a.Auth }
func (a *SupportedTokenArgs) CallPayload() interface{} { return a.Payload }
func (a *OwnershipArgs) CallAuth() CallAuth { return a.Auth }
func (a *OwnershipArgs) CallPayload() interface{} { return a.Payload }
func (a *AdminArgs) CallAuth() CallAuth { return a.Auth }
func (a *AdminArgs) CallPayload() interface{} { return a.Payload }

// EmptyReply 无返回值
type EmptyReply struct{}

// BatchReply 批次结算结果
type BatchReply struct {
	BatchID string `json:"batchId"`
	Total   string `json:"total"`
	Signers int    `json:"signers"`
}

// WithdrawReply 提取结果
type WithdrawReply struct {
	Amount string `json:"amount"`
}

// ========== 订阅 ==========

// SubscribeReply 订阅结果
type SubscribeReply struct {
	Subscription string `json:"subscription"`
}

// SubscriptionNotice 订阅推送
type SubscriptionNotice struct {
	Subscription string `json:"subscription"`
	Result       *Event `json:"result"`
}

// CallDigest 计算写请求的认证摘要
//
//	keccak256(domainSeparator || method || 0x00 || json(payload) || uint64be(nonce))
//
// domainSeparator 与批次签名使用同一个签名域，签名只对该部署有效。
// payload 只包含字符串、字符串切片和布尔字段，JSON 编码结果是确定的。
func CallDigest(domainSeparator common.Hash, method string, payload interface{}, nonce uint64) (common.Hash, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return common.Hash{}, fmt.Errorf("marshal payload: %w", err)
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)

	buf := make([]byte, 0, common.HashLength+len(method)+1+len(body)+8)
	buf = append(buf, domainSeparator[:]...)
	buf = append(buf, method...)
	buf = append(buf, 0)
	buf = append(buf, body...)
	buf = append(buf, nonceBytes[:]...)
	return crypto.Keccak256Hash(buf), nil
}

// ========== gRPC 隧道 ==========

// gRPC 服务与方法全名
const (
	GRPCServiceName     = "bridge.Bridge"
	GRPCMethodCall      = "/bridge.Bridge/Call"
	GRPCMethodSubscribe = "/bridge.Bridge/Subscribe"
)

// CallRequest gRPC Call 请求：方法名与 JSON-RPC 相同，Params 为 JSON 对象
type CallRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// CallResponse gRPC Call 响应，业务错误以 Problem Details 带回
type CallResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProblemDetails `json:"error,omitempty"`
}

// JSONCodec gRPC 编解码器，消息体为 JSON
type JSONCodec struct{}

// Marshal 编码
func (JSONCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

// Unmarshal 解码
func (JSONCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

// Name 编解码器名称（content-subtype）
func (JSONCodec) Name() string { return "json" }
