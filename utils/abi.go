package utils

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// PackedEncoder 按 Solidity abi.encodePacked 规则拼接参数
//
// **编码规则**：
// - address 标量：20 字节原样写入
// - bytes32 / uint256 标量：32 字节大端
// - address[] / uint256[]：每个元素左填充到 32 字节，不写长度前缀
// - string：UTF-8 原始字节
//
// 同时提供 PaddedAddress 用于 abi.encode（非 packed）中的 address 字段
type PackedEncoder struct {
	buf []byte
}

// NewPackedEncoder 创建编码器
func NewPackedEncoder() *PackedEncoder {
	return &PackedEncoder{buf: make([]byte, 0, 256)}
}

// Bytes32 写入 bytes32
func (e *PackedEncoder) Bytes32(h common.Hash) *PackedEncoder {
	e.buf = append(e.buf, h[:]...)
	return e
}

// Address 写入 20 字节地址（packed 标量）
func (e *PackedEncoder) Address(addr common.Address) *PackedEncoder {
	e.buf = append(e.buf, addr[:]...)
	return e
}

// PaddedAddress 写入左填充到 32 字节的地址（abi.encode 规则，以及 packed 数组元素）
func (e *PackedEncoder) PaddedAddress(addr common.Address) *PackedEncoder {
	e.buf = append(e.buf, common.LeftPadBytes(addr[:], 32)...)
	return e
}

// Uint256 写入 32 字节大端整数，nil 视为 0
func (e *PackedEncoder) Uint256(v *uint256.Int) *PackedEncoder {
	var word [32]byte
	if v != nil {
		word = v.Bytes32()
	}
	e.buf = append(e.buf, word[:]...)
	return e
}

// Uint64 以 uint256 宽度写入
func (e *PackedEncoder) Uint64(v uint64) *PackedEncoder {
	return e.Uint256(uint256.NewInt(v))
}

// AddressArray 写入 address[]
func (e *PackedEncoder) AddressArray(addrs []common.Address) *PackedEncoder {
	for _, addr := range addrs {
		e.PaddedAddress(addr)
	}
	return e
}

// Uint256Array 写入 uint256[]
func (e *PackedEncoder) Uint256Array(values []*uint256.Int) *PackedEncoder {
	for _, v := range values {
		e.Uint256(v)
	}
	return e
}

// String 写入字符串原始字节
func (e *PackedEncoder) String(s string) *PackedEncoder {
	e.buf = append(e.buf, s...)
	return e
}

// Raw 写入原始字节
func (e *PackedEncoder) Raw(b []byte) *PackedEncoder {
	e.buf = append(e.buf, b...)
	return e
}

// Bytes 返回编码结果
func (e *PackedEncoder) Bytes() []byte {
	return e.buf
}

// Keccak256 返回编码结果的 keccak256
func (e *PackedEncoder) Keccak256() common.Hash {
	return crypto.Keccak256Hash(e.buf)
}
