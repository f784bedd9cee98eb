package settlement

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/services/quorum"
	"github.com/weisyn/bridge-go/types"
)

// AddValidators 加入验证者（已存在者跳过，任一零地址整体拒绝）
func (e *Engine) AddValidators(ctx context.Context, caller common.Address, ids []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, requireOwner); err != nil {
		return err
	}

	next := e.state.validators.Clone()
	added, err := next.Add(ids)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		return nil
	}
	return e.replaceValidators(next, added, nil)
}

// RemoveValidators 移除验证者（不存在者静默跳过）
func (e *Engine) RemoveValidators(ctx context.Context, caller common.Address, ids []common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, requireOwner); err != nil {
		return err
	}

	next := e.state.validators.Clone()
	removed := next.Remove(ids)
	if len(removed) == 0 {
		return nil
	}
	return e.replaceValidators(next, nil, removed)
}

func (e *Engine) replaceValidators(next *ValidatorRegistry, added, removed []common.Address) error {
	cs := &ChangeSet{Validators: next.List(), ValidatorsChanged: true}
	if err := e.commit(cs); err != nil {
		return err
	}
	e.metrics.SetRosterSize(next.Size())
	e.logger.Info("validators changed", "added", len(added), "removed", len(removed), "size", next.Size())
	e.publish(types.TopicValidatorsChanged, validatorsChangedEvent(added, removed, next.Size()))
	return nil
}

// SetSupportedToken 启用或停用代币
func (e *Engine) SetSupportedToken(ctx context.Context, caller, token common.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, requireOwner); err != nil {
		return err
	}

	next := e.state.tokens.Clone()
	changed, err := next.SetSupported(token, enabled)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := e.commit(&ChangeSet{Tokens: next.List(), TokensChanged: true}); err != nil {
		return err
	}
	e.logger.Info("token support changed", "token", token.Hex(), "enabled", enabled)
	e.publish(types.TopicTokenChanged, tokenChangedEvent(token, enabled))
	return nil
}

// Pause 暂停存入、结算与提取
func (e *Engine) Pause(ctx context.Context, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, requireOwner|requireNotPaused); err != nil {
		return err
	}
	return e.setPaused(caller, true)
}

// Unpause 恢复
func (e *Engine) Unpause(ctx context.Context, caller common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, requireOwner); err != nil {
		return err
	}
	if !e.state.paused {
		return types.ErrNotPaused
	}
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller common.Address, paused bool) error {
	if err := e.commit(&ChangeSet{Paused: &paused}); err != nil {
		return err
	}
	topic := types.TopicUnpaused
	if paused {
		topic = types.TopicPaused
	}
	e.logger.Info("pause state changed", "paused", paused, "by", caller.Hex())
	e.publish(topic, accountEvent(caller))
	return nil
}

// TransferOwnership 转移所有权
func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(caller, requireOwner); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return types.ErrInvalidOwner
	}

	previous := e.state.owner
	if err := e.commit(&ChangeSet{Owner: &newOwner}); err != nil {
		return err
	}
	e.logger.Info("ownership transferred", "previous", previous.Hex(), "next", newOwner.Hex())
	e.publish(types.TopicOwnershipTransferred, ownershipEvent(previous, newOwner))
	return nil
}

// SetQuorumPolicy 热更新法定人数策略（不持久化，以配置文件为准）
func (e *Engine) SetQuorumPolicy(policy quorum.Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.verifier.Policy()
	if err := e.verifier.SetPolicy(policy); err != nil {
		return err
	}
	e.logger.Info("quorum policy updated", "previous", previous.String(), "next", policy.String())
	return nil
}
