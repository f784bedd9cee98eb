package settlement

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// EventSink 事件接收方
//
// Publish 在引擎写锁内按提交顺序调用，实现不得阻塞。
type EventSink interface {
	Publish(ev *types.Event)
}

// EventSinkFunc 函数形式的 EventSink
type EventSinkFunc func(ev *types.Event)

// Publish 实现 EventSink
func (f EventSinkFunc) Publish(ev *types.Event) { f(ev) }

type nopSink struct{}

func (nopSink) Publish(*types.Event) {}

// publish 分配序号并投递事件，调用方需持有写锁
func (e *Engine) publish(topic string, data map[string]interface{}) {
	e.sequence++
	e.sink.Publish(&types.Event{
		Sequence:  e.sequence,
		Topic:     topic,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      data,
	})
}

func depositEvent(token, depositor common.Address, amount *uint256.Int) map[string]interface{} {
	return map[string]interface{}{
		"token":     token.Hex(),
		"depositor": depositor.Hex(),
		"amount":    amount.Dec(),
	}
}

func batchSettledEvent(b *types.Batch, total *uint256.Int, signers []common.Address) map[string]interface{} {
	return map[string]interface{}{
		"batchId":    b.ID.Dec(),
		"token":      b.Token.Hex(),
		"recipients": utils.FormatAddresses(b.Recipients),
		"amounts":    utils.FormatAmounts(b.Amounts),
		"total":      total.Dec(),
		"signers":    utils.FormatAddresses(signers),
	}
}

func withdrawalEvent(token, to common.Address, amount *uint256.Int) map[string]interface{} {
	return map[string]interface{}{
		"token":  token.Hex(),
		"to":     to.Hex(),
		"amount": amount.Dec(),
	}
}

func validatorsChangedEvent(added, removed []common.Address, size int) map[string]interface{} {
	return map[string]interface{}{
		"added":   utils.FormatAddresses(added),
		"removed": utils.FormatAddresses(removed),
		"size":    size,
	}
}

func tokenChangedEvent(token common.Address, enabled bool) map[string]interface{} {
	return map[string]interface{}{
		"token":   token.Hex(),
		"enabled": enabled,
	}
}

func accountEvent(account common.Address) map[string]interface{} {
	return map[string]interface{}{
		"account": account.Hex(),
	}
}

func ownershipEvent(previous, next common.Address) map[string]interface{} {
	return map[string]interface{}{
		"previousOwner": previous.Hex(),
		"newOwner":      next.Hex(),
	}
}
