package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// KeystoreManager Keystore 管理器
//
// 每个密钥保存为 <dir>/<地址小写十六进制>.json，格式为 Web3 Secret Storage v3（scrypt + aes-128-ctr），
// 与 geth / hardhat 导出的 keystore 文件互通。
type KeystoreManager struct {
	keystoreDir string
	scryptN     int
	scryptP     int
}

// NewKeystoreManager 创建 Keystore 管理器
func NewKeystoreManager(keystoreDir string) (*KeystoreManager, error) {
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &KeystoreManager{
		keystoreDir: keystoreDir,
		scryptN:     keystore.StandardScryptN,
		scryptP:     keystore.StandardScryptP,
	}, nil
}

// NewLightKeystoreManager 使用轻量 scrypt 参数（测试用）
func NewLightKeystoreManager(keystoreDir string) (*KeystoreManager, error) {
	km, err := NewKeystoreManager(keystoreDir)
	if err != nil {
		return nil, err
	}
	km.scryptN, km.scryptP = keystore.LightScryptN, keystore.LightScryptP
	return km, nil
}

// Path 地址对应的 keystore 文件路径
func (km *KeystoreManager) Path(address common.Address) string {
	name := strings.ToLower(strings.TrimPrefix(address.Hex(), "0x")) + ".json"
	return filepath.Join(km.keystoreDir, name)
}

// Save 加密保存钱包私钥，返回文件路径
func (km *KeystoreManager) Save(w Wallet, password string) (string, error) {
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    w.Address(),
		PrivateKey: w.PrivateKey(),
	}
	data, err := keystore.EncryptKey(key, password, km.scryptN, km.scryptP)
	if err != nil {
		return "", fmt.Errorf("encrypt key: %w", err)
	}

	path := km.Path(w.Address())
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write keystore file: %w", err)
	}
	return path, nil
}

// Load 解密加载钱包
func (km *KeystoreManager) Load(address common.Address, password string) (Wallet, error) {
	return LoadKeystoreFile(km.Path(address), password)
}

// List 列出 keystore 目录中的地址
func (km *KeystoreManager) List() ([]common.Address, error) {
	entries, err := os.ReadDir(km.keystoreDir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var addrs []common.Address
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		if !common.IsHexAddress(stem) {
			continue
		}
		addrs = append(addrs, common.HexToAddress(stem))
	}
	return addrs, nil
}

// LoadKeystoreFile 解密单个 keystore 文件
func LoadKeystoreFile(path, password string) (Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore %s: %w", filepath.Base(path), err)
	}
	return fromECDSA(key.PrivateKey), nil
}

func fromECDSA(privateKey *ecdsa.PrivateKey) Wallet {
	return &SimpleWallet{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
		createdAt:  time.Now(),
	}
}
