package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/wallet"
)

// TestLedgerProperties 随机的存入 / 结算 / 提取序列下账本不变式始终成立：
// 已记账总额等于各账户可用余额之和，且不超过锁定总额；锁定总额等于托管中的代币。
func TestLedgerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("ledger invariants hold for any operation sequence", prop.ForAll(
		func(script []uint64) string {
			return runLedgerScript(script)
		},
		gen.SliceOfN(30, gen.UInt64Range(0, math.MaxUint32)),
	))

	properties.TestingRun(t)
}

func runLedgerScript(script []uint64) string {
	ctx := context.Background()
	validator := wallet.MustFromPrivateKey(validatorKeys[0])
	owner := wallet.MustFromPrivateKey(ownerKey)

	cfg := testConfig(owner.Address(), []common.Address{validator.Address()})
	cfg.Quorum = quorum.Policy{Numerator: 2, Denominator: 3, MinRoster: 1}
	custody := NewMemoryCustody()
	engine, err := NewService(cfg, WithCustody(custody))
	if err != nil {
		return err.Error()
	}

	accounts := []common.Address{alice, bob, owner.Address()}
	nextID := uint64(1)

	for step, n := range script {
		acc := accounts[(n>>2)%uint64(len(accounts))]
		switch n % 3 {
		case 0:
			amount := uint256.NewInt((n >> 8) % 1000)
			custody.Mint(tokenA, acc, amount)
			if err := engine.Deposit(ctx, acc, tokenA, amount); err != nil {
				return fmt.Sprintf("step %d: deposit: %v", step, err)
			}

		case 1:
			b := &types.Batch{
				Token:      tokenA,
				Recipients: []common.Address{acc, accounts[(n>>4)%uint64(len(accounts))]},
				Amounts:    []*uint256.Int{uint256.NewInt((n >> 8) % 500), uint256.NewInt((n >> 16) % 500)},
				ID:         uint256.NewInt(nextID),
			}
			nextID++
			sig, err := quorum.SignBatch(validator, engine.DomainSeparator(), b)
			if err != nil {
				return err.Error()
			}
			total, _ := new(uint256.Int).AddOverflow(b.Amounts[0], b.Amounts[1])
			fits := !total.Gt(engine.GetCollateralHeadroom(tokenA))

			_, err = engine.BatchUpdateAvailableBalances(ctx, validator.Address(), b, [][]byte{sig})
			switch {
			case fits && err != nil:
				return fmt.Sprintf("step %d: batch within headroom rejected: %v", step, err)
			case !fits && !errors.Is(err, types.ErrInsufficientCollateral):
				return fmt.Sprintf("step %d: batch over headroom: %v", step, err)
			}

		case 2:
			before := engine.GetAvailableBalance(tokenA, acc)
			amount, err := engine.Withdraw(ctx, acc, tokenA)
			if before.IsZero() {
				if !errors.Is(err, types.ErrNoBalance) {
					return fmt.Sprintf("step %d: withdraw of empty balance: %v", step, err)
				}
				continue
			}
			if err != nil {
				return fmt.Sprintf("step %d: withdraw: %v", step, err)
			}
			if !amount.Eq(before) {
				return fmt.Sprintf("step %d: withdrew %s, available was %s", step, amount.Dec(), before.Dec())
			}
		}

		sum := new(uint256.Int)
		for _, a := range accounts {
			sum.Add(sum, engine.GetAvailableBalance(tokenA, a))
		}
		credited := engine.GetCreditedBalance(tokenA)
		locked := engine.GetLockedBalance(tokenA)
		if !sum.Eq(credited) {
			return fmt.Sprintf("step %d: credited %s != sum of available %s", step, credited.Dec(), sum.Dec())
		}
		if credited.Gt(locked) {
			return fmt.Sprintf("step %d: credited %s exceeds locked %s", step, credited.Dec(), locked.Dec())
		}
		if vault := custody.VaultOf(tokenA); !vault.Eq(locked) {
			return fmt.Sprintf("step %d: locked %s != vault %s", step, locked.Dec(), vault.Dec())
		}
	}
	return ""
}

// TestRegistryProperties 名单在任意增删序列后成员唯一，且 Size 与 List 一致
func TestRegistryProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("members stay unique", prop.ForAll(
		func(adds, removes []uint8) bool {
			r := NewValidatorRegistry()
			toAddr := func(v uint8) common.Address { return common.BigToAddress(uint256.NewInt(uint64(v) + 1).ToBig()) }

			ids := make([]common.Address, len(adds))
			for i, v := range adds {
				ids[i] = toAddr(v % 16)
			}
			if _, err := r.Add(ids); err != nil {
				return false
			}
			drop := make([]common.Address, len(removes))
			for i, v := range removes {
				drop[i] = toAddr(v % 16)
			}
			r.Remove(drop)

			seen := make(map[common.Address]bool)
			for _, id := range r.List() {
				if seen[id] || !r.Contains(id) {
					return false
				}
				seen[id] = true
			}
			for _, id := range drop {
				if r.Contains(id) {
					return false
				}
			}
			return len(seen) == r.Size()
		},
		gen.SliceOf(gen.UInt8()),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
