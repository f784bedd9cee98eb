package integration

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/client"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/wallet"
)

// Credit 单笔记账
type Credit struct {
	Account common.Address
	Amount  uint64
}

// NewBatch 构造批次
func NewBatch(id uint64, credits ...Credit) *types.Batch {
	b := &types.Batch{Token: TestToken, ID: uint256.NewInt(id)}
	for _, c := range credits {
		b.Recipients = append(b.Recipients, c.Account)
		b.Amounts = append(b.Amounts, uint256.NewInt(c.Amount))
	}
	return b
}

// SignBatch 由 signers 对批次签名
func (n *TestNode) SignBatch(t *testing.T, batch *types.Batch, signers ...wallet.Wallet) [][]byte {
	t.Helper()
	sigs, err := quorum.SignBatchAll(signers, n.Engine().DomainSeparator(), batch)
	require.NoError(t, err, "批次签名失败")
	return sigs
}

// DepositForTest 发放外部余额并存入抵押
func (n *TestNode) DepositForTest(t *testing.T, c *client.BridgeClient, w wallet.Wallet, amount uint64) {
	t.Helper()
	n.FundTestAccount(w.Address(), amount)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	require.NoError(t, c.Deposit(ctx, TestToken, uint256.NewInt(amount)), "存入失败")
}

// verifyCollateral 校验代币的锁定、记账与剩余额度
func verifyCollateral(t *testing.T, c *client.BridgeClient, locked, credited uint64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	gotLocked, err := c.LockedBalance(ctx, TestToken)
	require.NoError(t, err)
	gotCredited, err := c.CreditedBalance(ctx, TestToken)
	require.NoError(t, err)
	headroom, err := c.CollateralHeadroom(ctx, TestToken)
	require.NoError(t, err)

	assert.Equal(t, locked, gotLocked.Uint64(), "锁定总额不匹配")
	assert.Equal(t, credited, gotCredited.Uint64(), "记账总额不匹配")
	assert.Equal(t, locked-credited, headroom.Uint64(), "剩余额度不匹配")
}

// VerifyCollateral 校验抵押约束（导出函数）
func VerifyCollateral(t *testing.T, c *client.BridgeClient, locked, credited uint64) {
	verifyCollateral(t, c, locked, credited)
}

// VerifyAvailable 校验账户可用余额
func VerifyAvailable(t *testing.T, c *client.BridgeClient, account common.Address, expected uint64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	got, err := c.AvailableBalance(ctx, TestToken, account)
	require.NoError(t, err, "查询可用余额失败")
	assert.Equal(t, expected, got.Uint64(), "可用余额不匹配")
}

// WaitForEvent 等待指定主题的事件
func WaitForEvent(t *testing.T, events <-chan *types.Event, topic string) *types.Event {
	t.Helper()
	deadline := time.After(DefaultTimeout)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "订阅已关闭")
			if ev.Topic == topic {
				return ev
			}
		case <-deadline:
			t.Fatalf("等待事件 %s 超时", topic)
			return nil
		}
	}
}
