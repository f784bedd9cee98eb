package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Custody 代币托管：存入时从账户转入托管，提取时从托管转给账户
//
// 任何错误都视为转账失败，引擎不会据此修改账本。
type Custody interface {
	TransferIn(ctx context.Context, token, from common.Address, amount *uint256.Int) error
	TransferOut(ctx context.Context, token, to common.Address, amount *uint256.Int) error
}

// MemoryCustody 内存托管：按 (代币, 账户) 记录外部余额，用于节点演示与测试
type MemoryCustody struct {
	mu       sync.Mutex
	balances map[accountKey]*uint256.Int
	vault    map[common.Address]*uint256.Int
}

// NewMemoryCustody 创建内存托管
func NewMemoryCustody() *MemoryCustody {
	return &MemoryCustody{
		balances: make(map[accountKey]*uint256.Int),
		vault:    make(map[common.Address]*uint256.Int),
	}
}

// Mint 给账户发放外部余额
func (c *MemoryCustody) Mint(token, account common.Address, amount *uint256.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := accountKey{token, account}
	c.balances[key] = new(uint256.Int).Add(copyOrZero(c.balances[key]), orZero(amount))
}

// BalanceOf 账户外部余额
func (c *MemoryCustody) BalanceOf(token, account common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyOrZero(c.balances[accountKey{token, account}])
}

// VaultOf 托管中的代币总额
func (c *MemoryCustody) VaultOf(token common.Address) *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyOrZero(c.vault[token])
}

// TransferIn 账户 → 托管
func (c *MemoryCustody) TransferIn(ctx context.Context, token, from common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := accountKey{token, from}
	balance := copyOrZero(c.balances[key])
	if balance.Lt(orZero(amount)) {
		return fmt.Errorf("insufficient balance: have %s, need %s", balance.Dec(), orZero(amount).Dec())
	}
	c.balances[key] = balance.Sub(balance, orZero(amount))
	c.vault[token] = new(uint256.Int).Add(copyOrZero(c.vault[token]), orZero(amount))
	return nil
}

// TransferOut 托管 → 账户
func (c *MemoryCustody) TransferOut(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	vault := copyOrZero(c.vault[token])
	if vault.Lt(orZero(amount)) {
		return fmt.Errorf("insufficient vault balance: have %s, need %s", vault.Dec(), orZero(amount).Dec())
	}
	c.vault[token] = vault.Sub(vault, orZero(amount))
	key := accountKey{token, to}
	c.balances[key] = new(uint256.Int).Add(copyOrZero(c.balances[key]), orZero(amount))
	return nil
}
