package settlement

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
)

// ValidatorRegistry 验证者名单：成员唯一，保持加入顺序
//
// 非并发安全，由引擎的写锁保护；变更时先 Clone 再修改，提交成功后整体替换。
type ValidatorRegistry struct {
	order []common.Address
	index map[common.Address]struct{}
}

// NewValidatorRegistry 由初始成员创建名单（忽略零地址与重复成员）
func NewValidatorRegistry(ids ...common.Address) *ValidatorRegistry {
	r := &ValidatorRegistry{
		order: make([]common.Address, 0, len(ids)),
		index: make(map[common.Address]struct{}, len(ids)),
	}
	for _, id := range ids {
		if id == (common.Address{}) {
			continue
		}
		r.insert(id)
	}
	return r
}

// Add 加入成员，已存在的成员跳过；任一成员为零地址则整体拒绝，名单不变
//
// 返回实际新加入的成员。
func (r *ValidatorRegistry) Add(ids []common.Address) ([]common.Address, error) {
	for i, id := range ids {
		if id == (common.Address{}) {
			return nil, types.ErrInvalidIdentity.WithDetail("validator at index %d is the zero address", i)
		}
	}

	added := make([]common.Address, 0, len(ids))
	for _, id := range ids {
		if r.insert(id) {
			added = append(added, id)
		}
	}
	return added, nil
}

// Remove 移除成员，不存在的成员静默跳过；返回实际移除的成员
func (r *ValidatorRegistry) Remove(ids []common.Address) []common.Address {
	drop := make(map[common.Address]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := r.index[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return nil
	}

	removed := make([]common.Address, 0, len(drop))
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := drop[id]; ok {
			removed = append(removed, id)
			delete(r.index, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}

// List 返回成员副本（加入顺序）
func (r *ValidatorRegistry) List() []common.Address {
	out := make([]common.Address, len(r.order))
	copy(out, r.order)
	return out
}

// Size 成员数
func (r *ValidatorRegistry) Size() int {
	return len(r.order)
}

// Contains 是否为成员
func (r *ValidatorRegistry) Contains(id common.Address) bool {
	_, ok := r.index[id]
	return ok
}

// Clone 深拷贝
func (r *ValidatorRegistry) Clone() *ValidatorRegistry {
	return NewValidatorRegistry(r.order...)
}

func (r *ValidatorRegistry) insert(id common.Address) bool {
	if _, ok := r.index[id]; ok {
		return false
	}
	r.index[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}
