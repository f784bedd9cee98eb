package quorum

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/bridge-go/utils"
)

// domainTypeHash EIP-712 域类型哈希
var domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))

// Domain 签名域：部署名称、版本、链 ID 与合约地址
//
// 同一批次在不同部署或不同链上的签名互不通用。
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract common.Address
}

// Separator 计算域分隔符
//
//	keccak256(typeHash || keccak256(name) || keccak256(version) || uint256(chainId) || address(verifyingContract))
func (d Domain) Separator() common.Hash {
	return utils.NewPackedEncoder().
		Bytes32(domainTypeHash).
		Bytes32(crypto.Keccak256Hash([]byte(d.Name))).
		Bytes32(crypto.Keccak256Hash([]byte(d.Version))).
		Uint64(d.ChainID).
		PaddedAddress(d.VerifyingContract).
		Keccak256()
}
