package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/bridge-go/utils"
)

// Wallet 钱包接口
type Wallet interface {
	// Address 获取钱包地址（EVM 20 字节地址）
	Address() common.Address

	// SignHash 签名 32 字节哈希，返回 65 字节 r || s || v（v ∈ {27, 28}）
	SignHash(hash []byte) ([]byte, error)

	// SignMessage 按 EIP-191 personal_sign 规则签名消息
	SignMessage(msg []byte) ([]byte, error)

	// PrivateKey 获取私钥（谨慎使用）
	PrivateKey() *ecdsa.PrivateKey
}

// SimpleWallet 简单钱包实现（用于测试和开发）
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	createdAt  time.Time
}

// NewWallet 创建新钱包
func NewWallet() (Wallet, error) {
	// 生成 secp256k1 私钥
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
		createdAt:  time.Now(),
	}, nil
}

// NewWalletFromPrivateKey 从十六进制私钥创建钱包
func NewWalletFromPrivateKey(privateKeyHex string) (Wallet, error) {
	privateKeyBytes, err := utils.DecodeHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	// 验证私钥长度（secp256k1 私钥为 32 字节）
	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(privateKeyBytes))
	}

	privateKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}

	return &SimpleWallet{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
		createdAt:  time.Now(),
	}, nil
}

// MustFromPrivateKey 从私钥创建钱包，失败时 panic（用于测试夹具）
func MustFromPrivateKey(privateKeyHex string) Wallet {
	w, err := NewWalletFromPrivateKey(privateKeyHex)
	if err != nil {
		panic(err)
	}
	return w
}

// Address 获取钱包地址
func (w *SimpleWallet) Address() common.Address {
	return w.address
}

// SignHash 签名哈希值
//
// go-ethereum 返回的恢复标识 v ∈ {0, 1}，这里转换为以太坊签名约定的 {27, 28}，
// 与链上 ecrecover 及 personal_sign 输出保持一致。
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	sig, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// SignMessage 签名消息（"\x19Ethereum Signed Message:\n" + len + msg）
func (w *SimpleWallet) SignMessage(msg []byte) ([]byte, error) {
	return w.SignHash(accounts.TextHash(msg))
}

// PrivateKey 获取私钥
func (w *SimpleWallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}
