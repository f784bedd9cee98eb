// Package settlement 跨链桥结算引擎：抵押存入、多签批次记账、提取与管理操作
package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/log"
	"github.com/weisyn/bridge-go/services"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
)

// Service 结算服务接口
//
// 写操作的 caller 必须是已认证的调用方身份（由节点层完成签名认证）。
type Service interface {
	// Deposit 存入抵押：托管转入成功后增加代币锁定总额
	Deposit(ctx context.Context, caller, token common.Address, amount *uint256.Int) error

	// BatchUpdateAvailableBalances 验证者提交经法定人数签名的批次，为各账户记入可用余额
	BatchUpdateAvailableBalances(ctx context.Context, caller common.Address, batch *types.Batch, signatures [][]byte) (*SettlementResult, error)

	// Withdraw 提取调用方在代币下的全部可用余额
	Withdraw(ctx context.Context, caller, token common.Address) (*uint256.Int, error)

	// 管理操作（仅所有者）
	AddValidators(ctx context.Context, caller common.Address, ids []common.Address) error
	RemoveValidators(ctx context.Context, caller common.Address, ids []common.Address) error
	SetSupportedToken(ctx context.Context, caller, token common.Address, enabled bool) error
	Pause(ctx context.Context, caller common.Address) error
	Unpause(ctx context.Context, caller common.Address) error
	TransferOwnership(ctx context.Context, caller, newOwner common.Address) error

	// 查询（不需要认证）
	GetActiveValidators() []common.Address
	GetSupportedTokens() []common.Address
	GetLockedBalance(token common.Address) *uint256.Int
	GetCreditedBalance(token common.Address) *uint256.Int
	GetAvailableBalance(token, account common.Address) *uint256.Int
	GetCollateralHeadroom(token common.Address) *uint256.Int
	IsBatchRecorded(id *uint256.Int) bool
	Owner() common.Address
	Paused() bool
	DomainSeparator() common.Hash
	QuorumPolicy() quorum.Policy
	SetQuorumPolicy(policy quorum.Policy) error
}

// SettlementResult 批次结算结果
type SettlementResult struct {
	BatchID    *uint256.Int
	Token      common.Address
	Total      *uint256.Int
	Recipients int
	Signers    []common.Address
}

// Option 引擎可选项
type Option func(*Engine)

// WithStore 持久化状态
func WithStore(store Store) Option {
	return func(e *Engine) { e.store = store }
}

// WithCustody 代币托管实现（默认内存托管）
func WithCustody(custody Custody) Option {
	return func(e *Engine) { e.custody = custody }
}

// WithLogger 日志器
func WithLogger(logger log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithEventSink 事件接收方
func WithEventSink(sink EventSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMetrics 指标
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine 结算引擎
//
// 所有写操作在同一把写锁内完成“检查 → 持久化 → 更新内存 → 发布事件”，
// 任一步骤失败都不会留下部分更新。查询持有读锁，看到的总是某次完整提交后的状态。
type Engine struct {
	mu       sync.RWMutex
	state    *state
	sequence uint64

	domain          quorum.Domain
	domainSeparator common.Hash
	verifier        *quorum.Verifier

	store   Store
	custody Custody
	logger  log.Logger
	sink    EventSink
	metrics Metrics
}

var _ Service = (*Engine)(nil)

// NewService 创建结算引擎
//
// **流程**：
// 1. 校验配置，创建法定人数校验器
// 2. 状态库非空时从快照恢复
// 3. 否则按配置初始化所有者、名单、代币并写入状态库
func NewService(cfg *services.Config, opts ...Option) (*Engine, error) {
	// 1. 配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settlement config: %w", err)
	}
	verifier, err := quorum.NewVerifier(cfg.Quorum)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		state:           newState(),
		domain:          cfg.Domain,
		domainSeparator: cfg.Domain.Separator(),
		verifier:        verifier,
		custody:         NewMemoryCustody(),
		logger:          log.Nop(),
		sink:            nopSink{},
		metrics:         nopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "settlement")

	// 2. 恢复
	if e.store != nil {
		snap, err := e.store.Load()
		if err != nil {
			return nil, types.ErrStorage.WithDetail("load state: %v", err)
		}
		if snap != nil {
			e.state.apply(snap.ChangeSet())
			e.metrics.SetRosterSize(e.state.validators.Size())
			e.logger.Info("settlement state restored",
				"owner", e.state.owner.Hex(),
				"validators", e.state.validators.Size(),
				"tokens", len(e.state.tokens.List()),
				"batches", e.state.batches.Len(),
				"paused", e.state.paused)
			return e, nil
		}
	}

	// 3. 初始化
	for i, id := range cfg.Validators {
		if id == (common.Address{}) {
			return nil, types.ErrInvalidIdentity.WithDetail("initial validator at index %d is the zero address", i)
		}
	}
	for i, token := range cfg.Tokens {
		if token == (common.Address{}) {
			return nil, types.ErrZeroToken.WithDetail("initial token at index %d is the zero address", i)
		}
	}
	initial := &Snapshot{
		Owner:      cfg.Owner,
		Validators: NewValidatorRegistry(cfg.Validators...).List(),
		Tokens:     NewTokenRegistry(cfg.Tokens...).List(),
	}
	if err := e.commit(initial.ChangeSet()); err != nil {
		return nil, err
	}
	e.metrics.SetRosterSize(e.state.validators.Size())
	e.logger.Info("settlement state initialized",
		"owner", cfg.Owner.Hex(),
		"validators", e.state.validators.Size(),
		"tokens", len(cfg.Tokens),
		"quorum", cfg.Quorum.String())
	return e, nil
}

// commit 持久化变更后写入内存，调用方需持有写锁
func (e *Engine) commit(cs *ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	if e.store != nil {
		if err := e.store.Commit(cs); err != nil {
			e.logger.Error("state commit failed", "err", err)
			return types.ErrStorage.WithDetail("%v", err)
		}
	}
	e.state.apply(cs)
	return nil
}

// Snapshot 导出当前完整状态
func (e *Engine) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.snapshot()
}

// resultOf 指标标签
func resultOf(err error) string {
	if err == nil {
		return ResultOK
	}
	if be, ok := types.IsBridgeError(err); ok {
		return be.Code
	}
	return types.CodeInternal
}
