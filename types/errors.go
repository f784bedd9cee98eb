package types

import "net/http"

// Layer 常量
const (
	LayerSettlement = "bridge-settlement"
	LayerQuorum     = "bridge-quorum"
	LayerNode       = "bridge-node"
	LayerClient     = "bridge-client-go"
)

// ErrorCode 错误码常量
const (
	// 授权错误
	CodeOnlyValidator = "ONLY_VALIDATOR"
	CodeNotOwner      = "NOT_OWNER"
	CodeUnauthorized  = "UNAUTHORIZED"

	// 状态错误
	CodeSystemPaused     = "SYSTEM_PAUSED"
	CodeNotPaused        = "NOT_PAUSED"
	CodeUnsupportedToken = "UNSUPPORTED_TOKEN"
	CodeZeroToken        = "ZERO_TOKEN"
	CodeInvalidIdentity  = "INVALID_IDENTITY"
	CodeInvalidOwner     = "INVALID_OWNER"
	CodeNoBalance        = "NO_BALANCE"

	// 形状错误
	CodeLengthMismatch = "LENGTH_MISMATCH"
	CodeInvalidParams  = "INVALID_PARAMS"

	// 完整性错误
	CodeQuorumNotMet           = "QUORUM_NOT_MET"
	CodeRosterTooSmall         = "ROSTER_TOO_SMALL"
	CodeBatchAlreadyRecorded   = "BATCH_ALREADY_RECORDED"
	CodeInsufficientCollateral = "INSUFFICIENT_COLLATERAL"
	CodeInvalidSignature       = "INVALID_SIGNATURE"
	CodeInvalidSignatureLength = "INVALID_SIGNATURE_LENGTH"
	CodeInvalidSignatureS      = "INVALID_SIGNATURE_S"
	CodeAmountOverflow         = "AMOUNT_OVERFLOW"

	// 通用错误
	CodeTransferFailed = "TRANSFER_FAILED"
	CodeStorageError   = "STORAGE_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// 哨兵错误，UserMessage 与合约 revert 文案保持一致
var (
	ErrOnlyValidator = sentinel(CodeOnlyValidator, LayerSettlement, "Only validator!", http.StatusForbidden)
	ErrNotOwner      = sentinel(CodeNotOwner, LayerSettlement, "Ownable: caller is not the owner", http.StatusForbidden)
	ErrUnauthorized  = sentinel(CodeUnauthorized, LayerNode, "Caller authentication failed!", http.StatusUnauthorized)

	ErrSystemPaused     = sentinel(CodeSystemPaused, LayerSettlement, "Pausable: paused", http.StatusConflict)
	ErrNotPaused        = sentinel(CodeNotPaused, LayerSettlement, "Pausable: not paused", http.StatusConflict)
	ErrUnsupportedToken = sentinel(CodeUnsupportedToken, LayerSettlement, "Token not supported!", http.StatusConflict)
	ErrZeroToken        = sentinel(CodeZeroToken, LayerSettlement, "Zero token address!", http.StatusBadRequest)
	ErrInvalidIdentity  = sentinel(CodeInvalidIdentity, LayerSettlement, "Cannot be zero address!", http.StatusBadRequest)
	ErrInvalidOwner     = sentinel(CodeInvalidOwner, LayerSettlement, "Ownable: new owner is the zero address", http.StatusBadRequest)
	ErrNoBalance        = sentinel(CodeNoBalance, LayerSettlement, "No balance!", http.StatusConflict)

	ErrLengthMismatch = sentinel(CodeLengthMismatch, LayerSettlement, "Lists length do not match!", http.StatusBadRequest)
	ErrInvalidParams  = sentinel(CodeInvalidParams, LayerNode, "Invalid parameters!", http.StatusBadRequest)

	ErrQuorumNotMet           = sentinel(CodeQuorumNotMet, LayerQuorum, "Not enough signatures!", http.StatusUnprocessableEntity)
	ErrRosterTooSmall         = sentinel(CodeRosterTooSmall, LayerQuorum, "Not enough validators!", http.StatusUnprocessableEntity)
	ErrBatchAlreadyRecorded   = sentinel(CodeBatchAlreadyRecorded, LayerSettlement, "Batch already recorded!", http.StatusConflict)
	ErrInsufficientCollateral = sentinel(CodeInsufficientCollateral, LayerSettlement, "Not enough locked token!", http.StatusUnprocessableEntity)
	ErrInvalidSignature       = sentinel(CodeInvalidSignature, LayerQuorum, "ECDSA: invalid signature", http.StatusBadRequest)
	ErrInvalidSignatureLength = sentinel(CodeInvalidSignatureLength, LayerQuorum, "ECDSA: invalid signature length", http.StatusBadRequest)
	ErrInvalidSignatureS      = sentinel(CodeInvalidSignatureS, LayerQuorum, "ECDSA: invalid signature 's' value", http.StatusBadRequest)
	ErrAmountOverflow         = sentinel(CodeAmountOverflow, LayerSettlement, "Amount overflow!", http.StatusUnprocessableEntity)

	ErrTransferFailed = sentinel(CodeTransferFailed, LayerSettlement, "Token transfer failed!", http.StatusBadGateway)
	ErrStorage        = sentinel(CodeStorageError, LayerSettlement, "State commit failed!", http.StatusInternalServerError)
	ErrInternal       = sentinel(CodeInternal, LayerNode, "Internal error!", http.StatusInternalServerError)
)

func sentinel(code, layer, userMessage string, status int) *BridgeError {
	return &BridgeError{
		Code:        code,
		Layer:       layer,
		UserMessage: userMessage,
		Status:      status,
	}
}
