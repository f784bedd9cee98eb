package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// BatchUpdateAvailableBalances 结算一个经法定人数签名的批次
//
// **检查顺序**（先失败者决定错误）：
// 1. 调用方是验证者（OnlyValidator）
// 2. 系统未暂停（SystemPaused）
// 3. 收款人与金额长度一致（LengthMismatch）
// 4. 代币已启用（UnsupportedToken）
// 5. 签名法定人数（RosterTooSmall / 签名格式错误 / QuorumNotMet）
// 6. 批次未结算过（BatchAlreadyRecorded）
// 7. 批次总额不超过剩余额度（InsufficientCollateral）
//
// 全部通过后记账与批次记录一次性提交；任一检查失败状态不变。
func (e *Engine) BatchUpdateAvailableBalances(ctx context.Context, caller common.Address, batch *types.Batch, signatures [][]byte) (*SettlementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	recipients := 0
	if batch != nil {
		recipients = len(batch.Recipients)
	}

	result, err := e.settle(ctx, caller, batch, signatures)
	e.metrics.ObserveSettlement(resultOf(err), recipients)
	if err != nil {
		e.logger.Warn("batch rejected", "caller", caller.Hex(), "batchId", batchIDOf(batch), "err", err)
		return nil, err
	}

	e.logger.Info("batch settled",
		"batchId", result.BatchID.Dec(),
		"token", result.Token.Hex(),
		"recipients", result.Recipients,
		"total", result.Total.Dec(),
		"signers", len(result.Signers))
	return result, nil
}

func (e *Engine) settle(ctx context.Context, caller common.Address, b *types.Batch, signatures [][]byte) (*SettlementResult, error) {
	// 1-2. 调用方与系统状态
	if err := e.authorize(caller, requireValidator|requireNotPaused); err != nil {
		return nil, err
	}

	// 3. 形状
	if b == nil || b.ID == nil {
		return nil, types.ErrInvalidParams.WithDetail("batch id is required")
	}
	if len(b.Recipients) != len(b.Amounts) {
		return nil, types.ErrLengthMismatch.WithDetail("%d recipients, %d amounts", len(b.Recipients), len(b.Amounts))
	}
	for i, amount := range b.Amounts {
		if amount == nil {
			return nil, types.ErrInvalidParams.WithDetail("amount at index %d is missing", i)
		}
	}

	// 4. 代币
	if !e.state.tokens.IsSupported(b.Token) {
		return nil, types.ErrUnsupportedToken.WithDetail("token %s", b.Token.Hex())
	}

	// 5. 法定人数
	hash := quorum.SignedBatchHash(e.domainSeparator, b)
	verdict, err := e.verifier.Verify(ctx, hash, signatures, e.state.validators)
	if err != nil {
		return nil, err
	}

	// 6. 防重放
	key := b.Key()
	if e.state.batches.Seen(key) {
		return nil, types.ErrBatchAlreadyRecorded.WithDetail("batch %s", b.ID.Dec())
	}

	// 7. 抵押额度
	total, overflow := utils.SumAmounts(b.Amounts)
	headroom := e.state.ledger.Headroom(b.Token)
	if overflow || total.Gt(headroom) {
		return nil, types.ErrInsufficientCollateral.WithDetails(map[string]interface{}{
			"token":    b.Token.Hex(),
			"total":    utils.FormatAmount(total),
			"overflow": overflow,
			"headroom": headroom.Dec(),
		}, "batch total exceeds collateral headroom %s", headroom.Dec())
	}

	// 8. 记账并提交
	tx := e.state.ledger.Begin()
	for i, recipient := range b.Recipients {
		if err := tx.Credit(b.Token, recipient, b.Amounts[i]); err != nil {
			return nil, err
		}
	}
	cs := &ChangeSet{
		Ledger:  tx.Entries(),
		Batches: []types.BatchKey{key},
	}
	if err := e.commit(cs); err != nil {
		return nil, err
	}

	e.publish(types.TopicBatchSettled, batchSettledEvent(b, total, verdict.Signers))
	return &SettlementResult{
		BatchID:    b.ID.Clone(),
		Token:      b.Token,
		Total:      total,
		Recipients: len(b.Recipients),
		Signers:    verdict.Signers,
	}, nil
}

func batchIDOf(b *types.Batch) string {
	if b == nil || b.ID == nil {
		return ""
	}
	return b.ID.Dec()
}
