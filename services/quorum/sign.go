package quorum

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/wallet"
)

// SignBatch 验证者对批次签名（EIP-191 包装 BatchHash）
func SignBatch(w wallet.Wallet, domainSeparator common.Hash, b *types.Batch) ([]byte, error) {
	h := BatchHash(domainSeparator, b)
	sig, err := w.SignMessage(h[:])
	if err != nil {
		return nil, fmt.Errorf("sign batch: %w", err)
	}
	return sig, nil
}

// SignBatchAll 多个验证者依次签名，签名顺序与 wallets 一致
func SignBatchAll(wallets []wallet.Wallet, domainSeparator common.Hash, b *types.Batch) ([][]byte, error) {
	sigs := make([][]byte, 0, len(wallets))
	for i, w := range wallets {
		sig, err := SignBatch(w, domainSeparator, b)
		if err != nil {
			return nil, fmt.Errorf("wallet %d: %w", i, err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// RecoverPersonal 恢复 EIP-191 消息签名者（用于调用方认证）
func RecoverPersonal(msg []byte, sig []byte) (common.Address, error) {
	return Recover(PersonalHash(msg), sig)
}
