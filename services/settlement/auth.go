package settlement

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
)

// requirement 操作的调用前置条件，可按位组合
type requirement uint8

const (
	requireOwner requirement = 1 << iota
	requireValidator
	requireNotPaused
)

// authorize 统一的调用方与系统状态检查，调用方需持有锁
//
// 检查顺序：所有者 → 验证者 → 未暂停。
func (e *Engine) authorize(caller common.Address, req requirement) error {
	if req&requireOwner != 0 && caller != e.state.owner {
		return types.ErrNotOwner.WithDetail("caller %s", caller.Hex())
	}
	if req&requireValidator != 0 && !e.state.validators.Contains(caller) {
		return types.ErrOnlyValidator.WithDetail("caller %s", caller.Hex())
	}
	if req&requireNotPaused != 0 && e.state.paused {
		return types.ErrSystemPaused
	}
	return nil
}
