package server

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// API 与传输无关的节点接口，JSON-RPC、WebSocket 与 gRPC 共用
//
// 每个方法形如 func(ctx, *Args, *Reply) error，写方法先完成调用方认证再进入结算引擎。
type API struct {
	engine settlement.Service
	auth   *Authenticator
	logger log.Logger
}

// NewAPI 创建节点接口
func NewAPI(engine settlement.Service, auth *Authenticator, logger log.Logger) *API {
	if auth == nil {
		auth = NewAuthenticator(engine.DomainSeparator(), nil)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &API{engine: engine, auth: auth, logger: logger}
}

// ========== 查询 ==========

// GetActiveValidators 当前验证者名单
func (a *API) GetActiveValidators(_ context.Context, _ *types.EmptyArgs, reply *types.ValidatorsReply) error {
	reply.Validators = utils.FormatAddresses(a.engine.GetActiveValidators())
	return nil
}

// GetSupportedTokens 支持的代币
func (a *API) GetSupportedTokens(_ context.Context, _ *types.EmptyArgs, reply *types.TokensReply) error {
	reply.Tokens = utils.FormatAddresses(a.engine.GetSupportedTokens())
	return nil
}

// GetLockedBalance 代币锁定总额
func (a *API) GetLockedBalance(_ context.Context, args *types.TokenArgs, reply *types.AmountReply) error {
	token, err := parseAddress("token", args.Token)
	if err != nil {
		return err
	}
	reply.Amount = utils.FormatAmount(a.engine.GetLockedBalance(token))
	return nil
}

// GetCreditedBalance 代币已记入可用余额的总额
func (a *API) GetCreditedBalance(_ context.Context, args *types.TokenArgs, reply *types.AmountReply) error {
	token, err := parseAddress("token", args.Token)
	if err != nil {
		return err
	}
	reply.Amount = utils.FormatAmount(a.engine.GetCreditedBalance(token))
	return nil
}

// GetAvailableBalance 账户可用余额
func (a *API) GetAvailableBalance(_ context.Context, args *types.BalanceArgs, reply *types.AmountReply) error {
	token, err := parseAddress("token", args.Token)
	if err != nil {
		return err
	}
	account, err := parseAddress("account", args.Account)
	if err != nil {
		return err
	}
	reply.Amount = utils.FormatAmount(a.engine.GetAvailableBalance(token, account))
	return nil
}

// GetCollateralHeadroom 剩余可记账额度
func (a *API) GetCollateralHeadroom(_ context.Context, args *types.TokenArgs, reply *types.AmountReply) error {
	token, err := parseAddress("token", args.Token)
	if err != nil {
		return err
	}
	reply.Amount = utils.FormatAmount(a.engine.GetCollateralHeadroom(token))
	return nil
}

// IsBatchRecorded 批次是否已结算
func (a *API) IsBatchRecorded(_ context.Context, args *types.BatchIDArgs, reply *types.BatchRecordedReply) error {
	id, err := parseAmount("batchId", args.BatchID)
	if err != nil {
		return err
	}
	reply.Recorded = a.engine.IsBatchRecorded(id)
	return nil
}

// GetStatus 节点状态
func (a *API) GetStatus(_ context.Context, _ *types.EmptyArgs, reply *types.StatusReply) error {
	policy := a.engine.QuorumPolicy()
	reply.Owner = a.engine.Owner().Hex()
	reply.Paused = a.engine.Paused()
	reply.DomainSeparator = a.engine.DomainSeparator().Hex()
	reply.Validators = len(a.engine.GetActiveValidators())
	reply.Quorum = types.QuorumInfo{
		Numerator:   policy.Numerator,
		Denominator: policy.Denominator,
		MinRoster:   policy.MinRoster,
	}
	return nil
}

// ========== 写操作 ==========

// Deposit 存入抵押
func (a *API) Deposit(ctx context.Context, args *types.DepositArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodDeposit, args)
	if err != nil {
		return err
	}
	token, err := parseAddress("token", args.Payload.Token)
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", args.Payload.Amount)
	if err != nil {
		return err
	}
	return a.engine.Deposit(ctx, caller, token, amount)
}

// BatchUpdateAvailableBalances 提交批次
func (a *API) BatchUpdateAvailableBalances(ctx context.Context, args *types.BatchArgs, reply *types.BatchReply) error {
	caller, err := a.auth.Authenticate(types.MethodBatchUpdateAvailableBalances, args)
	if err != nil {
		return err
	}
	batch, sigs, err := parseBatch(&args.Payload)
	if err != nil {
		return err
	}
	result, err := a.engine.BatchUpdateAvailableBalances(ctx, caller, batch, sigs)
	if err != nil {
		return err
	}
	reply.BatchID = utils.FormatAmount(result.BatchID)
	reply.Total = utils.FormatAmount(result.Total)
	reply.Signers = len(result.Signers)
	return nil
}

// Withdraw 提取全部可用余额
func (a *API) Withdraw(ctx context.Context, args *types.WithdrawArgs, reply *types.WithdrawReply) error {
	caller, err := a.auth.Authenticate(types.MethodWithdraw, args)
	if err != nil {
		return err
	}
	token, err := parseAddress("token", args.Payload.Token)
	if err != nil {
		return err
	}
	amount, err := a.engine.Withdraw(ctx, caller, token)
	if err != nil {
		return err
	}
	reply.Amount = utils.FormatAmount(amount)
	return nil
}

// AddValidators 增加验证者
func (a *API) AddValidators(ctx context.Context, args *types.ValidatorsArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodAddValidators, args)
	if err != nil {
		return err
	}
	ids, err := parseAddresses("validators", args.Payload.Validators)
	if err != nil {
		return err
	}
	return a.engine.AddValidators(ctx, caller, ids)
}

// RemoveValidators 移除验证者
func (a *API) RemoveValidators(ctx context.Context, args *types.ValidatorsArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodRemoveValidators, args)
	if err != nil {
		return err
	}
	ids, err := parseAddresses("validators", args.Payload.Validators)
	if err != nil {
		return err
	}
	return a.engine.RemoveValidators(ctx, caller, ids)
}

// SetSupportedToken 修改代币白名单
func (a *API) SetSupportedToken(ctx context.Context, args *types.SupportedTokenArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodSetSupportedToken, args)
	if err != nil {
		return err
	}
	token, err := parseAddress("token", args.Payload.Token)
	if err != nil {
		return err
	}
	return a.engine.SetSupportedToken(ctx, caller, token, args.Payload.Enabled)
}

// Pause 暂停
func (a *API) Pause(ctx context.Context, args *types.AdminArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodPause, args)
	if err != nil {
		return err
	}
	return a.engine.Pause(ctx, caller)
}

// Unpause 恢复
func (a *API) Unpause(ctx context.Context, args *types.AdminArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodUnpause, args)
	if err != nil {
		return err
	}
	return a.engine.Unpause(ctx, caller)
}

// TransferOwnership 转移所有权
func (a *API) TransferOwnership(ctx context.Context, args *types.OwnershipArgs, _ *types.EmptyReply) error {
	caller, err := a.auth.Authenticate(types.MethodTransferOwnership, args)
	if err != nil {
		return err
	}
	newOwner, err := parseAddress("newOwner", args.Payload.NewOwner)
	if err != nil {
		return err
	}
	return a.engine.TransferOwnership(ctx, caller, newOwner)
}

// ========== 方法表 ==========

// handler 解码 JSON 参数并调用对应 API 方法
type handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

func bind[A any, R any](fn func(context.Context, *A, *R) error) handler {
	return func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		args := new(A)
		if err := decodeParams(params, args); err != nil {
			return nil, err
		}
		reply := new(R)
		if err := fn(ctx, args, reply); err != nil {
			return nil, err
		}
		return reply, nil
	}
}

// decodeParams 参数可以是对象，也可以是只含一个对象的数组
func decodeParams(params json.RawMessage, dst interface{}) error {
	trimmed := strings.TrimSpace(string(params))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		wrapped := [1]interface{}{dst}
		if err := json.Unmarshal(params, &wrapped); err != nil {
			return types.ErrInvalidParams.WithDetail("%v", err)
		}
		return nil
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return types.ErrInvalidParams.WithDetail("%v", err)
	}
	return nil
}

// methods 方法名到处理函数的映射
func (a *API) methods() map[string]handler {
	return map[string]handler{
		types.MethodGetActiveValidators:          bind(a.GetActiveValidators),
		types.MethodGetSupportedTokens:           bind(a.GetSupportedTokens),
		types.MethodGetLockedBalance:             bind(a.GetLockedBalance),
		types.MethodGetCreditedBalance:           bind(a.GetCreditedBalance),
		types.MethodGetAvailableBalance:          bind(a.GetAvailableBalance),
		types.MethodGetCollateralHeadroom:        bind(a.GetCollateralHeadroom),
		types.MethodGetStatus:                    bind(a.GetStatus),
		types.MethodIsBatchRecorded:              bind(a.IsBatchRecorded),
		types.MethodDeposit:                      bind(a.Deposit),
		types.MethodBatchUpdateAvailableBalances: bind(a.BatchUpdateAvailableBalances),
		types.MethodWithdraw:                     bind(a.Withdraw),
		types.MethodAddValidators:                bind(a.AddValidators),
		types.MethodRemoveValidators:             bind(a.RemoveValidators),
		types.MethodSetSupportedToken:            bind(a.SetSupportedToken),
		types.MethodPause:                        bind(a.Pause),
		types.MethodUnpause:                      bind(a.Unpause),
		types.MethodTransferOwnership:            bind(a.TransferOwnership),
	}
}

// Dispatcher 按方法名分发调用（WebSocket 与 gRPC 使用）
type Dispatcher struct {
	api      *API
	handlers map[string]handler
}

// NewDispatcher 创建分发器
func NewDispatcher(api *API) *Dispatcher {
	return &Dispatcher{api: api, handlers: api.methods()}
}

// Dispatch 调用方法，返回可 JSON 编码的结果
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	h, ok := d.handlers[method]
	if !ok {
		return nil, types.ErrInvalidParams.WithDetail("unknown method %q", method)
	}
	result, err := h(ctx, params)
	if err != nil {
		d.api.logRejected(method, err)
		return nil, err
	}
	return result, nil
}

func (a *API) logRejected(method string, err error) {
	be := types.AsBridgeError(err)
	if be.Status >= 500 {
		a.logger.Error("call failed", "method", method, "code", be.Code, "detail", be.Detail, "traceId", be.TraceID)
		return
	}
	a.logger.Debug("call rejected", "method", method, "code", be.Code, "detail", be.Detail)
}

// ========== 参数解析 ==========

func parseAddress(field, s string) (common.Address, error) {
	addr, err := utils.ParseAddress(s)
	if err != nil {
		return common.Address{}, types.ErrInvalidParams.WithDetail("%s: %v", field, err)
	}
	return addr, nil
}

func parseAddresses(field string, items []string) ([]common.Address, error) {
	addrs, err := utils.ParseAddresses(items)
	if err != nil {
		return nil, types.ErrInvalidParams.WithDetail("%s: %v", field, err)
	}
	return addrs, nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	v, err := utils.ParseAmount(s)
	if err != nil {
		return nil, types.ErrInvalidParams.WithDetail("%s: %v", field, err)
	}
	return v, nil
}

// parseBatch 解析批次参数；列表长度不一致留给引擎按 LengthMismatch 拒绝
func parseBatch(p *types.BatchPayload) (*types.Batch, [][]byte, error) {
	token, err := parseAddress("token", p.Token)
	if err != nil {
		return nil, nil, err
	}
	recipients, err := parseAddresses("recipients", p.Recipients)
	if err != nil {
		return nil, nil, err
	}
	amounts, err := utils.ParseAmounts(p.Amounts)
	if err != nil {
		return nil, nil, types.ErrInvalidParams.WithDetail("amounts: %v", err)
	}
	id, err := parseAmount("batchId", p.BatchID)
	if err != nil {
		return nil, nil, err
	}
	sigs := make([][]byte, len(p.Signatures))
	for i, s := range p.Signatures {
		if sigs[i], err = utils.DecodeHex(s); err != nil {
			return nil, nil, types.ErrInvalidParams.WithDetail("signatures[%d]: %v", i, err)
		}
	}
	return &types.Batch{Token: token, Recipients: recipients, Amounts: amounts, ID: id}, sigs, nil
}
