package quorum

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// BatchHash 计算批次消息哈希（验证者签名前的原始哈希）
//
//	keccak256(abi.encodePacked(bytes32 domainSeparator, address token,
//	    address[] recipients, uint256[] amounts, uint256 batchId))
func BatchHash(domainSeparator common.Hash, b *types.Batch) common.Hash {
	return utils.NewPackedEncoder().
		Bytes32(domainSeparator).
		Address(b.Token).
		AddressArray(b.Recipients).
		Uint256Array(b.Amounts).
		Uint256(b.ID).
		Keccak256()
}

// SignedBatchHash 计算验证者实际签名的哈希（EIP-191 包装后的 BatchHash）
func SignedBatchHash(domainSeparator common.Hash, b *types.Batch) common.Hash {
	h := BatchHash(domainSeparator, b)
	return PersonalHash(h[:])
}

// PersonalHash 计算 "\x19Ethereum Signed Message:\n" + len(msg) + msg 的 keccak256
func PersonalHash(msg []byte) common.Hash {
	return common.BytesToHash(accounts.TextHash(msg))
}
