package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/types"
)

// Withdraw 提取调用方在代币下的全部可用余额
//
// **流程**：
// 1. 系统未暂停
// 2. 暂存：可用余额清零，锁定总额与已记账总额同步扣减（无余额时 NoBalance）
// 3. 先持久化再转出；转出失败时回写提取前的条目
//
// 代币被停用后仍可提取已有余额。
func (e *Engine) Withdraw(ctx context.Context, caller, token common.Address) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	amount, err := e.withdraw(ctx, caller, token)
	e.metrics.ObserveWithdrawal(resultOf(err))
	if err != nil {
		e.logger.Warn("withdrawal rejected", "caller", caller.Hex(), "token", token.Hex(), "err", err)
		return nil, err
	}
	e.logger.Info("withdrawal completed", "caller", caller.Hex(), "token", token.Hex(), "amount", amount.Dec())
	return amount, nil
}

func (e *Engine) withdraw(ctx context.Context, caller, token common.Address) (*uint256.Int, error) {
	// 1. 前置条件
	if err := e.authorize(caller, requireNotPaused); err != nil {
		return nil, err
	}

	// 2. 暂存
	tx := e.state.ledger.Begin()
	amount, err := tx.Release(token, caller)
	if err != nil {
		return nil, err
	}
	undo := []LedgerEntry{
		{Kind: EntryLocked, Token: token, Value: e.state.ledger.LockedOf(token)},
		{Kind: EntryCredited, Token: token, Value: e.state.ledger.CreditedOf(token)},
		{Kind: EntryAvailable, Token: token, Account: caller, Value: e.state.ledger.AvailableOf(token, caller)},
	}

	// 3. 提交 + 转出
	if err := e.commit(&ChangeSet{Ledger: tx.Entries()}); err != nil {
		return nil, err
	}
	if err := e.custody.TransferOut(ctx, token, caller, amount); err != nil {
		if undoErr := e.commit(&ChangeSet{Ledger: undo}); undoErr != nil {
			e.logger.Error("withdrawal rollback failed",
				"caller", caller.Hex(), "token", token.Hex(), "amount", amount.Dec(), "err", undoErr)
		}
		return nil, types.ErrTransferFailed.WithDetail("transfer out: %v", err)
	}

	e.publish(types.TopicWithdrawal, withdrawalEvent(token, caller, amount))
	return amount, nil
}
