package store

import (
	"context"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/bridge-go/services"
	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/services/settlement"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/wallet"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestLevelDB_EmptyLoad(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	snap, err := db.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestLevelDB_CommitAndLoad(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	owner := common.HexToAddress("0x01")
	paused := true
	id := types.KeyOf(uint256.NewInt(9))
	require.NoError(t, db.Commit(&settlement.ChangeSet{
		Owner:             &owner,
		Paused:            &paused,
		Validators:        []common.Address{alice, bob},
		ValidatorsChanged: true,
		Tokens:            []common.Address{tokenA},
		TokensChanged:     true,
		Ledger: []settlement.LedgerEntry{
			{Kind: settlement.EntryLocked, Token: tokenA, Value: uint256.NewInt(100)},
			{Kind: settlement.EntryCredited, Token: tokenA, Value: uint256.NewInt(30)},
			{Kind: settlement.EntryAvailable, Token: tokenA, Account: bob, Value: uint256.NewInt(30)},
		},
		Batches: []types.BatchKey{id},
	}))

	snap, err := db.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, owner, snap.Owner)
	assert.True(t, snap.Paused)
	assert.Equal(t, []common.Address{alice, bob}, snap.Validators)
	assert.Equal(t, []common.Address{tokenA}, snap.Tokens)
	assert.Equal(t, []types.BatchKey{id}, snap.Batches)
	require.Len(t, snap.Ledger, 3)

	// 零值条目删除
	require.NoError(t, db.Commit(&settlement.ChangeSet{
		Ledger: []settlement.LedgerEntry{
			{Kind: settlement.EntryAvailable, Token: tokenA, Account: bob, Value: new(uint256.Int)},
		},
	}))
	snap, err = db.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Ledger, 2)
}

func TestLevelDB_EngineRestart(t *testing.T) {
	dir := t.TempDir()
	validators := []wallet.Wallet{
		wallet.MustFromPrivateKey("c87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"),
		wallet.MustFromPrivateKey("ae6ae8e5ccbfb04590405997ee2d52d2b330726137b875053c36d94e974d162f"),
		wallet.MustFromPrivateKey("0dbbe8e4ae425a6d2687f1a7e3ba17bc98c673636790f1b8ad91193c05875ef1"),
	}
	owner := wallet.MustFromPrivateKey("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	cfg := &services.Config{
		Domain: quorum.Domain{Name: "Dexilon", Version: "tests", ChainID: 1337},
		Owner:  owner.Address(),
		Validators: []common.Address{
			validators[0].Address(), validators[1].Address(), validators[2].Address(),
		},
		Tokens: []common.Address{tokenA},
		Quorum: quorum.DefaultPolicy(),
	}
	ctx := context.Background()

	// 1. 第一次启动：存入、结算、管理操作
	db, err := Open(dir, true)
	require.NoError(t, err)
	custody := settlement.NewMemoryCustody()
	engine, err := settlement.NewService(cfg, settlement.WithStore(db), settlement.WithCustody(custody))
	require.NoError(t, err)

	custody.Mint(tokenA, alice, uint256.NewInt(500))
	require.NoError(t, engine.Deposit(ctx, alice, tokenA, uint256.NewInt(500)))

	b := &types.Batch{
		Token:      tokenA,
		Recipients: []common.Address{bob},
		Amounts:    []*uint256.Int{uint256.NewInt(120)},
		ID:         uint256.NewInt(77),
	}
	sigs, err := quorum.SignBatchAll(validators, engine.DomainSeparator(), b)
	require.NoError(t, err)
	_, err = engine.BatchUpdateAvailableBalances(ctx, validators[0].Address(), b, sigs)
	require.NoError(t, err)

	require.NoError(t, engine.SetSupportedToken(ctx, owner.Address(), tokenB, true))
	require.NoError(t, engine.Pause(ctx, owner.Address()))
	before := engine.Snapshot()
	require.NoError(t, db.Close())

	// 2. 重启：配置中的初始值被忽略，状态以库为准
	db, err = Open(dir, true)
	require.NoError(t, err)
	defer db.Close()

	restartCfg := *cfg
	restartCfg.Owner = alice
	restartCfg.Tokens = nil
	restarted, err := settlement.NewService(&restartCfg, settlement.WithStore(db))
	require.NoError(t, err)

	after := restarted.Snapshot()
	assert.Equal(t, before.Owner, after.Owner)
	assert.True(t, after.Paused)
	assert.Equal(t, before.Validators, after.Validators)
	assert.Equal(t, []common.Address{tokenA, tokenB}, after.Tokens)
	assert.ElementsMatch(t, before.Batches, after.Batches)
	assert.Equal(t, ledgerStrings(before.Ledger), ledgerStrings(after.Ledger))

	assert.Equal(t, "120", restarted.GetAvailableBalance(tokenA, bob).Dec())
	assert.Equal(t, "380", restarted.GetCollateralHeadroom(tokenA).Dec())
	assert.True(t, restarted.IsBatchRecorded(uint256.NewInt(77)))

	// 重放在重启后依旧被拒绝
	require.NoError(t, restarted.Unpause(ctx, owner.Address()))
	_, err = restarted.BatchUpdateAvailableBalances(ctx, validators[0].Address(), b, sigs)
	assert.ErrorIs(t, err, types.ErrBatchAlreadyRecorded)
}

func ledgerStrings(entries []settlement.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Kind.String() + "/" + e.Token.Hex() + "/" + e.Account.Hex() + "=" + e.Value.Dec()
	}
	sort.Strings(out)
	return out
}
