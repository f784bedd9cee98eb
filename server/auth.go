package server

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// NonceStore 调用方 nonce 持久化
type NonceStore interface {
	LoadNonce(caller common.Address) (nonce uint64, ok bool, err error)
	StoreNonce(caller common.Address, nonce uint64) error
}

// MemoryNonces 内存 nonce 表（节点重启后清空）
type MemoryNonces struct {
	mu     sync.Mutex
	nonces map[common.Address]uint64
}

// NewMemoryNonces 创建内存 nonce 表
func NewMemoryNonces() *MemoryNonces {
	return &MemoryNonces{nonces: make(map[common.Address]uint64)}
}

// LoadNonce 读取
func (m *MemoryNonces) LoadNonce(caller common.Address) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nonces[caller]
	return n, ok, nil
}

// StoreNonce 写入
func (m *MemoryNonces) StoreNonce(caller common.Address, nonce uint64) error {
	m.mu.Lock()
	m.nonces[caller] = nonce
	m.mu.Unlock()
	return nil
}

// Authenticator 写请求调用方认证
//
// 调用方用自己的密钥对 CallDigest(domainSeparator, method, payload, nonce) 做 EIP-191 签名，
// 恢复出的地址必须等于 From，且 nonce 严格大于该调用方上一次使用的值。
// 其他签名域（其他链或其他合约地址）下签出的请求在这里恢复不出 From。
type Authenticator struct {
	mu              sync.Mutex
	domainSeparator common.Hash
	nonces          NonceStore
}

// NewAuthenticator 创建认证器，nonces 为 nil 时使用内存表
func NewAuthenticator(domainSeparator common.Hash, nonces NonceStore) *Authenticator {
	if nonces == nil {
		nonces = NewMemoryNonces()
	}
	return &Authenticator{domainSeparator: domainSeparator, nonces: nonces}
}

// Authenticate 校验签名并消耗 nonce，返回调用方地址
func (a *Authenticator) Authenticate(method string, args types.SignedArgs) (common.Address, error) {
	auth := args.CallAuth()

	// 1. 解析调用方与签名
	from, err := utils.ParseAddress(auth.From)
	if err != nil {
		return common.Address{}, types.ErrUnauthorized.WithDetail("from: %v", err)
	}
	sig, err := utils.DecodeHex(auth.Signature)
	if err != nil {
		return common.Address{}, types.ErrUnauthorized.WithDetail("signature: %v", err)
	}

	// 2. 恢复签名者
	digest, err := types.CallDigest(a.domainSeparator, method, args.CallPayload(), auth.Nonce)
	if err != nil {
		return common.Address{}, types.ErrInvalidParams.WithDetail("%v", err)
	}
	signer, err := quorum.RecoverPersonal(digest[:], sig)
	if err != nil {
		return common.Address{}, types.ErrUnauthorized.WithDetail("recover signer: %v", err)
	}
	if signer != from {
		return common.Address{}, types.ErrUnauthorized.WithDetail("signed by %s, not %s", signer.Hex(), from.Hex())
	}

	// 3. nonce 单调递增
	a.mu.Lock()
	defer a.mu.Unlock()

	last, seen, err := a.nonces.LoadNonce(from)
	if err != nil {
		return common.Address{}, types.ErrStorage.WithDetail("%v", err)
	}
	if seen && auth.Nonce <= last {
		return common.Address{}, types.ErrUnauthorized.WithDetails(map[string]interface{}{
			"nonce":    auth.Nonce,
			"lastUsed": last,
		}, "nonce %d already used", auth.Nonce)
	}
	if err := a.nonces.StoreNonce(from, auth.Nonce); err != nil {
		return common.Address{}, types.ErrStorage.WithDetail("%v", err)
	}
	return from, nil
}
