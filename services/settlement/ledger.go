package settlement

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/types"
)

// EntryKind 账本条目类型
type EntryKind uint8

const (
	// EntryLocked 代币的托管抵押总额
	EntryLocked EntryKind = iota + 1
	// EntryCredited 代币已记入账户、尚未提取的总额
	EntryCredited
	// EntryAvailable 账户在某代币下的可用余额
	EntryAvailable
)

func (k EntryKind) String() string {
	switch k {
	case EntryLocked:
		return "locked"
	case EntryCredited:
		return "credited"
	case EntryAvailable:
		return "available"
	default:
		return "unknown"
	}
}

// LedgerEntry 账本条目的绝对值，Account 仅对 EntryAvailable 有意义
type LedgerEntry struct {
	Kind    EntryKind
	Token   common.Address
	Account common.Address
	Value   *uint256.Int
}

type accountKey struct {
	token   common.Address
	account common.Address
}

// BalanceLedger 余额账本
//
// 对每个代币维护：Locked（托管抵押总额）、Credited（已记账未提取总额）、
// 以及每个账户的 Available。不变式：Credited == Σ Available ≤ Locked。
// 可记账额度 Headroom = Locked - Credited。
//
// 所有读取返回副本，修改只能经由 LedgerTx 暂存后 apply。
type BalanceLedger struct {
	locked    map[common.Address]*uint256.Int
	credited  map[common.Address]*uint256.Int
	available map[accountKey]*uint256.Int
}

// NewBalanceLedger 创建空账本
func NewBalanceLedger() *BalanceLedger {
	return &BalanceLedger{
		locked:    make(map[common.Address]*uint256.Int),
		credited:  make(map[common.Address]*uint256.Int),
		available: make(map[accountKey]*uint256.Int),
	}
}

// LockedOf 代币托管抵押总额
func (l *BalanceLedger) LockedOf(token common.Address) *uint256.Int {
	return copyOrZero(l.locked[token])
}

// CreditedOf 代币已记账未提取总额
func (l *BalanceLedger) CreditedOf(token common.Address) *uint256.Int {
	return copyOrZero(l.credited[token])
}

// AvailableOf 账户可用余额
func (l *BalanceLedger) AvailableOf(token, account common.Address) *uint256.Int {
	return copyOrZero(l.available[accountKey{token, account}])
}

// Headroom 代币剩余可记账额度
func (l *BalanceLedger) Headroom(token common.Address) *uint256.Int {
	return headroom(l.LockedOf(token), l.CreditedOf(token))
}

// Entries 导出全部非零条目（用于快照）
func (l *BalanceLedger) Entries() []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(l.locked)+len(l.credited)+len(l.available))
	for token, v := range l.locked {
		entries = append(entries, LedgerEntry{Kind: EntryLocked, Token: token, Value: v.Clone()})
	}
	for token, v := range l.credited {
		entries = append(entries, LedgerEntry{Kind: EntryCredited, Token: token, Value: v.Clone()})
	}
	for key, v := range l.available {
		entries = append(entries, LedgerEntry{Kind: EntryAvailable, Token: key.token, Account: key.account, Value: v.Clone()})
	}
	return entries
}

// Begin 开启暂存事务
func (l *BalanceLedger) Begin() *LedgerTx {
	return &LedgerTx{
		parent:    l,
		locked:    make(map[common.Address]*uint256.Int),
		credited:  make(map[common.Address]*uint256.Int),
		available: make(map[accountKey]*uint256.Int),
	}
}

// apply 写入条目的绝对值，零值条目被删除
func (l *BalanceLedger) apply(entries []LedgerEntry) {
	for _, e := range entries {
		switch e.Kind {
		case EntryLocked:
			setOrDelete(l.locked, e.Token, e.Value)
		case EntryCredited:
			setOrDelete(l.credited, e.Token, e.Value)
		case EntryAvailable:
			setOrDelete(l.available, accountKey{e.Token, e.Account}, e.Value)
		}
	}
}

// LedgerTx 账本暂存事务：读取穿透到父账本，写入只落在事务内
//
// 事务本身不修改父账本；调用方把 Entries 持久化成功后再 apply 到父账本，
// 失败时直接丢弃事务即可。
type LedgerTx struct {
	parent    *BalanceLedger
	locked    map[common.Address]*uint256.Int
	credited  map[common.Address]*uint256.Int
	available map[accountKey]*uint256.Int
	order     []LedgerEntry
}

// LockedOf 事务视图下的托管抵押总额
func (tx *LedgerTx) LockedOf(token common.Address) *uint256.Int {
	if v, ok := tx.locked[token]; ok {
		return v.Clone()
	}
	return tx.parent.LockedOf(token)
}

// CreditedOf 事务视图下的已记账总额
func (tx *LedgerTx) CreditedOf(token common.Address) *uint256.Int {
	if v, ok := tx.credited[token]; ok {
		return v.Clone()
	}
	return tx.parent.CreditedOf(token)
}

// AvailableOf 事务视图下的账户可用余额
func (tx *LedgerTx) AvailableOf(token, account common.Address) *uint256.Int {
	if v, ok := tx.available[accountKey{token, account}]; ok {
		return v.Clone()
	}
	return tx.parent.AvailableOf(token, account)
}

// Headroom 事务视图下的剩余可记账额度
func (tx *LedgerTx) Headroom(token common.Address) *uint256.Int {
	return headroom(tx.LockedOf(token), tx.CreditedOf(token))
}

// Lock 增加代币托管抵押总额
func (tx *LedgerTx) Lock(token common.Address, amount *uint256.Int) error {
	locked, overflow := new(uint256.Int).AddOverflow(tx.LockedOf(token), orZero(amount))
	if overflow {
		return types.ErrAmountOverflow.WithDetail("locked balance of %s overflows", token.Hex())
	}
	tx.setLocked(token, locked)
	return nil
}

// Credit 为账户记入可用余额，同时增加代币已记账总额
//
// 额度检查由调用方完成，这里只保证不溢出。
func (tx *LedgerTx) Credit(token, account common.Address, amount *uint256.Int) error {
	amount = orZero(amount)
	credited, overflow := new(uint256.Int).AddOverflow(tx.CreditedOf(token), amount)
	if overflow {
		return types.ErrAmountOverflow.WithDetail("credited balance of %s overflows", token.Hex())
	}
	available, overflow := new(uint256.Int).AddOverflow(tx.AvailableOf(token, account), amount)
	if overflow {
		return types.ErrAmountOverflow.WithDetail("available balance of %s overflows", account.Hex())
	}
	tx.setCredited(token, credited)
	tx.setAvailable(token, account, available)
	return nil
}

// Release 提取账户全部可用余额：可用余额清零，托管总额与已记账总额同步扣减
func (tx *LedgerTx) Release(token, account common.Address) (*uint256.Int, error) {
	amount := tx.AvailableOf(token, account)
	if amount.IsZero() {
		return nil, types.ErrNoBalance
	}

	locked := tx.LockedOf(token)
	credited := tx.CreditedOf(token)
	if locked.Lt(amount) || credited.Lt(amount) {
		return nil, types.ErrInternal.WithDetails(map[string]interface{}{
			"token":     token.Hex(),
			"locked":    locked.Dec(),
			"credited":  credited.Dec(),
			"available": amount.Dec(),
		}, "ledger invariant violated for %s", token.Hex())
	}

	tx.setLocked(token, locked.Sub(locked, amount))
	tx.setCredited(token, credited.Sub(credited, amount))
	tx.setAvailable(token, account, new(uint256.Int))
	return amount, nil
}

// Entries 事务内变更的条目（按首次修改顺序，取最终值）
func (tx *LedgerTx) Entries() []LedgerEntry {
	out := make([]LedgerEntry, len(tx.order))
	for i, e := range tx.order {
		switch e.Kind {
		case EntryLocked:
			e.Value = tx.locked[e.Token].Clone()
		case EntryCredited:
			e.Value = tx.credited[e.Token].Clone()
		case EntryAvailable:
			e.Value = tx.available[accountKey{e.Token, e.Account}].Clone()
		}
		out[i] = e
	}
	return out
}

func (tx *LedgerTx) setLocked(token common.Address, v *uint256.Int) {
	if _, ok := tx.locked[token]; !ok {
		tx.order = append(tx.order, LedgerEntry{Kind: EntryLocked, Token: token})
	}
	tx.locked[token] = v
}

func (tx *LedgerTx) setCredited(token common.Address, v *uint256.Int) {
	if _, ok := tx.credited[token]; !ok {
		tx.order = append(tx.order, LedgerEntry{Kind: EntryCredited, Token: token})
	}
	tx.credited[token] = v
}

func (tx *LedgerTx) setAvailable(token, account common.Address, v *uint256.Int) {
	key := accountKey{token, account}
	if _, ok := tx.available[key]; !ok {
		tx.order = append(tx.order, LedgerEntry{Kind: EntryAvailable, Token: token, Account: account})
	}
	tx.available[key] = v
}

func headroom(locked, credited *uint256.Int) *uint256.Int {
	if credited.Gt(locked) {
		return new(uint256.Int)
	}
	return locked.Sub(locked, credited)
}

func setOrDelete[K comparable](m map[K]*uint256.Int, key K, v *uint256.Int) {
	if v == nil || v.IsZero() {
		delete(m, key)
		return
	}
	m[key] = v.Clone()
}

func copyOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
