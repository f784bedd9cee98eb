package server

import (
	"net/http"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/weisyn/bridge-go/types"
)

// RPCServiceName gorilla/rpc 服务名，方法全名为 "bridge.<Method>"
const RPCServiceName = "bridge"

// BridgeService gorilla/rpc 服务，转发到 API
type BridgeService struct {
	api *API
}

// newRPCServer 创建 JSON-RPC 2.0 服务
func newRPCServer(api *API, hooks ...requestHooks) (*rpc.Server, error) {
	codec := json2.NewCodec()

	server := rpc.NewServer()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	for _, h := range hooks {
		server.RegisterInterceptFunc(h.InterceptRequest)
		server.RegisterAfterFunc(h.AfterRequest)
	}
	if err := server.RegisterService(&BridgeService{api: api}, RPCServiceName); err != nil {
		return nil, err
	}
	return server, nil
}

// requestHooks gorilla/rpc 请求钩子（指标）
type requestHooks interface {
	InterceptRequest(i *rpc.RequestInfo) *http.Request
	AfterRequest(i *rpc.RequestInfo)
}

// toRPCError 业务错误转换为 JSON-RPC 错误，data 字段携带 Problem Details
func toRPCError(err error) error {
	if err == nil {
		return nil
	}
	be := types.AsBridgeError(err)
	code := json2.E_SERVER
	if be.Code == types.CodeInvalidParams {
		code = json2.E_BAD_PARAMS
	}
	return &json2.Error{
		Code:    code,
		Message: be.UserMessage,
		Data:    be.ToProblemDetails(),
	}
}

func (s *BridgeService) call(r *http.Request, method string, fn func() error) error {
	err := fn()
	if err != nil {
		s.api.logRejected(method, err)
	}
	return toRPCError(err)
}

// GetActiveValidators bridge.GetActiveValidators
func (s *BridgeService) GetActiveValidators(r *http.Request, args *types.EmptyArgs, reply *types.ValidatorsReply) error {
	return s.call(r, types.MethodGetActiveValidators, func() error {
		return s.api.GetActiveValidators(r.Context(), args, reply)
	})
}

// GetSupportedTokens bridge.GetSupportedTokens
func (s *BridgeService) GetSupportedTokens(r *http.Request, args *types.EmptyArgs, reply *types.TokensReply) error {
	return s.call(r, types.MethodGetSupportedTokens, func() error {
		return s.api.GetSupportedTokens(r.Context(), args, reply)
	})
}

// GetLockedBalance bridge.GetLockedBalance
func (s *BridgeService) GetLockedBalance(r *http.Request, args *types.TokenArgs, reply *types.AmountReply) error {
	return s.call(r, types.MethodGetLockedBalance, func() error {
		return s.api.GetLockedBalance(r.Context(), args, reply)
	})
}

// GetCreditedBalance bridge.GetCreditedBalance
func (s *BridgeService) GetCreditedBalance(r *http.Request, args *types.TokenArgs, reply *types.AmountReply) error {
	return s.call(r, types.MethodGetCreditedBalance, func() error {
		return s.api.GetCreditedBalance(r.Context(), args, reply)
	})
}

// GetAvailableBalance bridge.GetAvailableBalance
func (s *BridgeService) GetAvailableBalance(r *http.Request, args *types.BalanceArgs, reply *types.AmountReply) error {
	return s.call(r, types.MethodGetAvailableBalance, func() error {
		return s.api.GetAvailableBalance(r.Context(), args, reply)
	})
}

// GetCollateralHeadroom bridge.GetCollateralHeadroom
func (s *BridgeService) GetCollateralHeadroom(r *http.Request, args *types.TokenArgs, reply *types.AmountReply) error {
	return s.call(r, types.MethodGetCollateralHeadroom, func() error {
		return s.api.GetCollateralHeadroom(r.Context(), args, reply)
	})
}

// IsBatchRecorded bridge.IsBatchRecorded
func (s *BridgeService) IsBatchRecorded(r *http.Request, args *types.BatchIDArgs, reply *types.BatchRecordedReply) error {
	return s.call(r, types.MethodIsBatchRecorded, func() error {
		return s.api.IsBatchRecorded(r.Context(), args, reply)
	})
}

// GetStatus bridge.GetStatus
func (s *BridgeService) GetStatus(r *http.Request, args *types.EmptyArgs, reply *types.StatusReply) error {
	return s.call(r, types.MethodGetStatus, func() error {
		return s.api.GetStatus(r.Context(), args, reply)
	})
}

// Deposit bridge.Deposit
func (s *BridgeService) Deposit(r *http.Request, args *types.DepositArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodDeposit, func() error {
		return s.api.Deposit(r.Context(), args, reply)
	})
}

// BatchUpdateAvailableBalances bridge.BatchUpdateAvailableBalances
func (s *BridgeService) BatchUpdateAvailableBalances(r *http.Request, args *types.BatchArgs, reply *types.BatchReply) error {
	return s.call(r, types.MethodBatchUpdateAvailableBalances, func() error {
		return s.api.BatchUpdateAvailableBalances(r.Context(), args, reply)
	})
}

// Withdraw bridge.Withdraw
func (s *BridgeService) Withdraw(r *http.Request, args *types.WithdrawArgs, reply *types.WithdrawReply) error {
	return s.call(r, types.MethodWithdraw, func() error {
		return s.api.Withdraw(r.Context(), args, reply)
	})
}

// AddValidators bridge.AddValidators
func (s *BridgeService) AddValidators(r *http.Request, args *types.ValidatorsArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodAddValidators, func() error {
		return s.api.AddValidators(r.Context(), args, reply)
	})
}

// RemoveValidators bridge.RemoveValidators
func (s *BridgeService) RemoveValidators(r *http.Request, args *types.ValidatorsArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodRemoveValidators, func() error {
		return s.api.RemoveValidators(r.Context(), args, reply)
	})
}

// SetSupportedToken bridge.SetSupportedToken
func (s *BridgeService) SetSupportedToken(r *http.Request, args *types.SupportedTokenArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodSetSupportedToken, func() error {
		return s.api.SetSupportedToken(r.Context(), args, reply)
	})
}

// Pause bridge.Pause
func (s *BridgeService) Pause(r *http.Request, args *types.AdminArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodPause, func() error {
		return s.api.Pause(r.Context(), args, reply)
	})
}

// Unpause bridge.Unpause
func (s *BridgeService) Unpause(r *http.Request, args *types.AdminArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodUnpause, func() error {
		return s.api.Unpause(r.Context(), args, reply)
	})
}

// TransferOwnership bridge.TransferOwnership
func (s *BridgeService) TransferOwnership(r *http.Request, args *types.OwnershipArgs, reply *types.EmptyReply) error {
	return s.call(r, types.MethodTransferOwnership, func() error {
		return s.api.TransferOwnership(r.Context(), args, reply)
	})
}
