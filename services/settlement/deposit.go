package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/types"
)

// Deposit 存入抵押
//
// **流程**：
// 1. 系统未暂停、代币已启用
// 2. 暂存锁定总额增加（检查溢出）
// 3. 托管转入，失败则不记账
// 4. 持久化并更新内存；持久化失败时把代币退回调用方
func (e *Engine) Deposit(ctx context.Context, caller, token common.Address, amount *uint256.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.deposit(ctx, caller, token, amount)
	e.metrics.ObserveDeposit(resultOf(err))
	if err != nil {
		e.logger.Warn("deposit rejected", "caller", caller.Hex(), "token", token.Hex(), "err", err)
		return err
	}
	e.logger.Info("deposit accepted", "caller", caller.Hex(), "token", token.Hex(), "amount", amount.Dec())
	return nil
}

func (e *Engine) deposit(ctx context.Context, caller, token common.Address, amount *uint256.Int) error {
	// 1. 前置条件
	if err := e.authorize(caller, requireNotPaused); err != nil {
		return err
	}
	if amount == nil {
		return types.ErrInvalidParams.WithDetail("amount is required")
	}
	if !e.state.tokens.IsSupported(token) {
		return types.ErrUnsupportedToken.WithDetail("token %s", token.Hex())
	}

	// 2. 暂存
	tx := e.state.ledger.Begin()
	if err := tx.Lock(token, amount); err != nil {
		return err
	}

	// 3. 托管转入
	if err := e.custody.TransferIn(ctx, token, caller, amount); err != nil {
		return types.ErrTransferFailed.WithDetail("transfer in: %v", err)
	}

	// 4. 提交
	if err := e.commit(&ChangeSet{Ledger: tx.Entries()}); err != nil {
		if refundErr := e.custody.TransferOut(context.Background(), token, caller, amount); refundErr != nil {
			e.logger.Error("deposit refund failed",
				"caller", caller.Hex(), "token", token.Hex(), "amount", amount.Dec(), "err", refundErr)
		}
		return err
	}

	e.publish(types.TopicDeposit, depositEvent(token, caller, amount))
	return nil
}
