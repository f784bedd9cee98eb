package settlement

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
)

// TokenRegistry 支持代币集合：仅记录启用的代币，保持启用顺序
type TokenRegistry struct {
	order   []common.Address
	enabled map[common.Address]struct{}
}

// NewTokenRegistry 由初始代币创建集合（忽略零地址与重复代币）
func NewTokenRegistry(tokens ...common.Address) *TokenRegistry {
	r := &TokenRegistry{
		order:   make([]common.Address, 0, len(tokens)),
		enabled: make(map[common.Address]struct{}, len(tokens)),
	}
	for _, token := range tokens {
		if token == (common.Address{}) {
			continue
		}
		r.enable(token)
	}
	return r
}

// SetSupported 启用或停用代币，返回集合是否发生变化
//
// 停用代币不影响其已有的锁定与可用余额。
func (r *TokenRegistry) SetSupported(token common.Address, enabled bool) (bool, error) {
	if token == (common.Address{}) {
		return false, types.ErrZeroToken
	}
	if enabled {
		return r.enable(token), nil
	}
	return r.disable(token), nil
}

// IsSupported 代币是否启用
func (r *TokenRegistry) IsSupported(token common.Address) bool {
	_, ok := r.enabled[token]
	return ok
}

// List 返回启用代币副本
func (r *TokenRegistry) List() []common.Address {
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// Clone 深拷贝
func (r *TokenRegistry) Clone() *TokenRegistry {
	return NewTokenRegistry(r.order...)
}

func (r *TokenRegistry) enable(token common.Address) bool {
	if _, ok := r.enabled[token]; ok {
		return false
	}
	r.enabled[token] = struct{}{}
	r.order = append(r.order, token)
	return true
}

func (r *TokenRegistry) disable(token common.Address) bool {
	if _, ok := r.enabled[token]; !ok {
		return false
	}
	delete(r.enabled, token)
	for i, t := range r.order {
		if t == token {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}
