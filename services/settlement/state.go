package settlement

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
)

// Store 结算状态持久化接口
//
// Commit 必须原子：要么整个 ChangeSet 落盘，要么什么都不写。
// 引擎先 Commit 成功再更新内存状态，因此崩溃后从 Load 恢复的状态与
// 最后一次成功返回的操作一致。
type Store interface {
	// Load 读取完整状态；库为空时返回 (nil, nil)
	Load() (*Snapshot, error)

	// Commit 原子写入一组变更
	Commit(cs *ChangeSet) error

	// Close 释放底层资源
	Close() error
}

// Snapshot 完整结算状态
type Snapshot struct {
	Owner      common.Address
	Paused     bool
	Validators []common.Address
	Tokens     []common.Address
	Ledger     []LedgerEntry
	Batches    []types.BatchKey
}

// ChangeSet 一次操作产生的全部状态变更
//
// 名单与代币集合以整体替换的形式记录；账本条目为绝对值，零值表示删除。
type ChangeSet struct {
	Owner      *common.Address
	Paused     *bool
	Validators []common.Address
	Tokens     []common.Address
	Ledger     []LedgerEntry
	Batches    []types.BatchKey

	ValidatorsChanged bool
	TokensChanged     bool
}

// Empty 是否没有任何变更
func (cs *ChangeSet) Empty() bool {
	return cs.Owner == nil &&
		cs.Paused == nil &&
		!cs.ValidatorsChanged &&
		!cs.TokensChanged &&
		len(cs.Ledger) == 0 &&
		len(cs.Batches) == 0
}

// ChangeSet 把快照转换为等价的全量变更（首次初始化时写入）
func (s *Snapshot) ChangeSet() *ChangeSet {
	owner := s.Owner
	paused := s.Paused
	return &ChangeSet{
		Owner:             &owner,
		Paused:            &paused,
		Validators:        s.Validators,
		Tokens:            s.Tokens,
		Ledger:            s.Ledger,
		Batches:           s.Batches,
		ValidatorsChanged: true,
		TokensChanged:     true,
	}
}

// state 引擎的内存状态，仅在持有写锁时修改
type state struct {
	owner      common.Address
	paused     bool
	validators *ValidatorRegistry
	tokens     *TokenRegistry
	ledger     *BalanceLedger
	batches    *BatchReplayGuard
}

func newState() *state {
	return &state{
		validators: NewValidatorRegistry(),
		tokens:     NewTokenRegistry(),
		ledger:     NewBalanceLedger(),
		batches:    NewBatchReplayGuard(),
	}
}

// apply 把已持久化的变更写入内存
func (s *state) apply(cs *ChangeSet) {
	if cs.Owner != nil {
		s.owner = *cs.Owner
	}
	if cs.Paused != nil {
		s.paused = *cs.Paused
	}
	if cs.ValidatorsChanged {
		s.validators = NewValidatorRegistry(cs.Validators...)
	}
	if cs.TokensChanged {
		s.tokens = NewTokenRegistry(cs.Tokens...)
	}
	s.ledger.apply(cs.Ledger)
	for _, key := range cs.Batches {
		s.batches.Record(key)
	}
}

// snapshot 导出完整状态
func (s *state) snapshot() *Snapshot {
	return &Snapshot{
		Owner:      s.owner,
		Paused:     s.paused,
		Validators: s.validators.List(),
		Tokens:     s.tokens.List(),
		Ledger:     s.ledger.Entries(),
		Batches:    s.batches.Keys(),
	}
}
