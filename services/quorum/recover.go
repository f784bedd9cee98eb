package quorum

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/types"
)

// SignatureLength r || s || v
const SignatureLength = 65

// secp256k1HalfN secp256k1 曲线阶的一半，s 超过该值的签名视为可延展签名
var secp256k1HalfN = uint256.MustFromHex("0x7fffffffffffffffffffffffffffffff5d576e7357a4501ddfe92f46681b20a0")

// Recover 从签名中恢复签名者地址（纯函数）
//
// **校验顺序**：
// 1. 长度必须为 65 字节
// 2. s 必须位于曲线阶的下半区
// 3. v 必须为 27 或 28
// 4. 公钥恢复成功且地址非零
func Recover(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, types.ErrInvalidSignatureLength.WithDetail("got %d bytes", len(sig))
	}

	s := new(uint256.Int).SetBytes32(sig[32:64])
	if s.Gt(secp256k1HalfN) {
		return common.Address{}, types.ErrInvalidSignatureS.WithDetail("s=%s", s.Hex())
	}

	v := sig[64]
	if v != 27 && v != 28 {
		return common.Address{}, types.ErrInvalidSignature.WithDetail("invalid recovery id %d", v)
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	normalized[64] = v - 27

	pub, err := crypto.SigToPub(hash[:], normalized)
	if err != nil {
		return common.Address{}, types.ErrInvalidSignature.WithDetail("%v", err)
	}

	addr := crypto.PubkeyToAddress(*pub)
	if addr == (common.Address{}) {
		return common.Address{}, types.ErrInvalidSignature.WithDetail("recovered zero address")
	}
	return addr, nil
}
