package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Batch 批次记账指令：为同一代币的一组账户增加可用余额
type Batch struct {
	Token      common.Address
	Recipients []common.Address
	Amounts    []*uint256.Int
	ID         *uint256.Int
}

// BatchKey 批次 ID 的定长表示（uint256 大端 32 字节），用作防重放集合的键
type BatchKey [32]byte

// Key 返回批次 ID 对应的防重放键
func (b *Batch) Key() BatchKey {
	return KeyOf(b.ID)
}

// KeyOf 计算批次 ID 的防重放键，nil 视为 0
func KeyOf(id *uint256.Int) BatchKey {
	if id == nil {
		return BatchKey{}
	}
	return BatchKey(id.Bytes32())
}

// ID 将键还原为批次 ID
func (k BatchKey) ID() *uint256.Int {
	return new(uint256.Int).SetBytes32(k[:])
}
