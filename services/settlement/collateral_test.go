package settlement

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/types"
)

func TestDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fund(t, tokenA, alice, 250)
	f.fund(t, tokenA, bob, 50)

	assert.Equal(t, "300", f.engine.GetLockedBalance(tokenA).Dec())
	assert.Equal(t, "300", f.engine.GetCollateralHeadroom(tokenA).Dec())
	assert.Equal(t, "300", f.custody.VaultOf(tokenA).Dec())
	assert.True(t, f.custody.BalanceOf(tokenA, alice).IsZero())
	assert.Equal(t, 2, f.metrics.deposits[ResultOK])

	ev := f.events.last()
	require.NotNil(t, ev)
	assert.Equal(t, types.TopicDeposit, ev.Topic)
	assert.Equal(t, bob.Hex(), ev.Data["depositor"])
	assert.Equal(t, "50", ev.Data["amount"])

	t.Run("unsupported token", func(t *testing.T) {
		f.custody.Mint(tokenB, alice, uint256.NewInt(10))
		err := f.engine.Deposit(ctx, alice, tokenB, uint256.NewInt(10))
		requireCode(t, err, types.CodeUnsupportedToken)
		assert.Equal(t, "10", f.custody.BalanceOf(tokenB, alice).Dec())
	})

	t.Run("transfer failure", func(t *testing.T) {
		err := f.engine.Deposit(ctx, alice, tokenA, uint256.NewInt(1))
		requireCode(t, err, types.CodeTransferFailed)
		assert.Equal(t, "300", f.engine.GetLockedBalance(tokenA).Dec())
	})

	t.Run("paused", func(t *testing.T) {
		require.NoError(t, f.engine.Pause(ctx, f.owner.Address()))
		defer func() { require.NoError(t, f.engine.Unpause(ctx, f.owner.Address())) }()

		f.custody.Mint(tokenA, alice, uint256.NewInt(5))
		err := f.engine.Deposit(ctx, alice, tokenA, uint256.NewInt(5))
		requireCode(t, err, types.CodeSystemPaused)
	})

	t.Run("zero amount", func(t *testing.T) {
		require.NoError(t, f.engine.Deposit(ctx, alice, tokenA, uint256.NewInt(0)))
		assert.Equal(t, "300", f.engine.GetLockedBalance(tokenA).Dec())
	})
}

func TestDeposit_CustodyRejects(t *testing.T) {
	f := newFixture(t, WithCustody(failingCustody{}))

	err := f.engine.Deposit(context.Background(), alice, tokenA, uint256.NewInt(5))
	requireCode(t, err, types.CodeTransferFailed)
	assert.True(t, f.engine.GetLockedBalance(tokenA).IsZero())
	assert.Equal(t, 1, f.metrics.deposits[types.CodeTransferFailed])
}

func TestDeposit_CommitFailureRefunds(t *testing.T) {
	store := &memoryStore{}
	f := newFixture(t, WithStore(store))
	f.custody.Mint(tokenA, alice, uint256.NewInt(40))

	store.failNext = true
	err := f.engine.Deposit(context.Background(), alice, tokenA, uint256.NewInt(40))
	requireCode(t, err, types.CodeStorageError)
	assert.True(t, f.engine.GetLockedBalance(tokenA).IsZero())
	assert.Equal(t, "40", f.custody.BalanceOf(tokenA, alice).Dec())
	assert.True(t, f.custody.VaultOf(tokenA).IsZero())
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, tokenA, alice, 1000)

	b := newBatch(1, tokenA, bob, 400)
	_, err := f.engine.BatchUpdateAvailableBalances(ctx, f.submitter(), b, f.sign(t, b, 10))
	require.NoError(t, err)

	amount, err := f.engine.Withdraw(ctx, bob, tokenA)
	require.NoError(t, err)
	assert.Equal(t, "400", amount.Dec())

	assert.True(t, f.engine.GetAvailableBalance(tokenA, bob).IsZero())
	assert.Equal(t, "600", f.engine.GetLockedBalance(tokenA).Dec())
	assert.True(t, f.engine.GetCreditedBalance(tokenA).IsZero())
	assert.Equal(t, "600", f.engine.GetCollateralHeadroom(tokenA).Dec())
	assert.Equal(t, "400", f.custody.BalanceOf(tokenA, bob).Dec())
	assert.Equal(t, types.TopicWithdrawal, f.events.last().Topic)

	_, err = f.engine.Withdraw(ctx, bob, tokenA)
	requireCode(t, err, types.CodeNoBalance)

	_, err = f.engine.Withdraw(ctx, bob, tokenB)
	requireCode(t, err, types.CodeNoBalance)
}

func TestWithdraw_AfterTokenDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, tokenA, alice, 100)

	b := newBatch(1, tokenA, bob, 60)
	_, err := f.engine.BatchUpdateAvailableBalances(ctx, f.submitter(), b, f.sign(t, b, 10))
	require.NoError(t, err)

	require.NoError(t, f.engine.SetSupportedToken(ctx, f.owner.Address(), tokenA, false))
	assert.Empty(t, f.engine.GetSupportedTokens())
	assert.Equal(t, "60", f.engine.GetAvailableBalance(tokenA, bob).Dec())

	amount, err := f.engine.Withdraw(ctx, bob, tokenA)
	require.NoError(t, err)
	assert.Equal(t, "60", amount.Dec())
}

func TestWithdraw_Paused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Pause(ctx, f.owner.Address()))

	_, err := f.engine.Withdraw(ctx, bob, tokenA)
	requireCode(t, err, types.CodeSystemPaused)
}

func TestWithdraw_TransferFailureRestoresBalance(t *testing.T) {
	store := &memoryStore{}
	custody := NewMemoryCustody()
	f := newFixture(t, WithStore(store), WithCustody(custody))
	f.custody = custody
	ctx := context.Background()
	f.fund(t, tokenA, alice, 100)

	b := newBatch(1, tokenA, bob, 30)
	_, err := f.engine.BatchUpdateAvailableBalances(ctx, f.submitter(), b, f.sign(t, b, 10))
	require.NoError(t, err)

	// 模拟托管被外部清空
	require.NoError(t, custody.TransferOut(ctx, tokenA, alice, uint256.NewInt(100)))

	_, err = f.engine.Withdraw(ctx, bob, tokenA)
	requireCode(t, err, types.CodeTransferFailed)
	assert.Equal(t, "30", f.engine.GetAvailableBalance(tokenA, bob).Dec())
	assert.Equal(t, "100", f.engine.GetLockedBalance(tokenA).Dec())
	assert.Equal(t, "30", f.engine.GetCreditedBalance(tokenA).Dec())

	engine, err := NewService(testConfig(f.owner.Address(), nil), WithStore(store))
	require.NoError(t, err)
	assert.Equal(t, "30", engine.GetAvailableBalance(tokenA, bob).Dec())
}
