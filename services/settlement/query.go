package settlement

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
)

// GetActiveValidators 当前验证者名单
func (e *Engine) GetActiveValidators() []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.validators.List()
}

// GetSupportedTokens 当前启用的代币
func (e *Engine) GetSupportedTokens() []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.tokens.List()
}

// GetLockedBalance 代币托管抵押总额
func (e *Engine) GetLockedBalance(token common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ledger.LockedOf(token)
}

// GetCreditedBalance 代币已记账未提取总额
func (e *Engine) GetCreditedBalance(token common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ledger.CreditedOf(token)
}

// GetAvailableBalance 账户可用余额
func (e *Engine) GetAvailableBalance(token, account common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ledger.AvailableOf(token, account)
}

// GetCollateralHeadroom 代币剩余可记账额度
func (e *Engine) GetCollateralHeadroom(token common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ledger.Headroom(token)
}

// IsBatchRecorded 批次是否已结算
func (e *Engine) IsBatchRecorded(id *uint256.Int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.batches.Seen(types.KeyOf(id))
}

// Owner 当前所有者
func (e *Engine) Owner() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.owner
}

// Paused 是否暂停
func (e *Engine) Paused() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.paused
}

// DomainSeparator 签名域分隔符
func (e *Engine) DomainSeparator() common.Hash {
	return e.domainSeparator
}

// Domain 签名域
func (e *Engine) Domain() quorum.Domain {
	return e.domain
}

// QuorumPolicy 当前法定人数策略
func (e *Engine) QuorumPolicy() quorum.Policy {
	return e.verifier.Policy()
}
