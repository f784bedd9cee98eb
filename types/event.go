package types

// 事件主题
const (
	TopicDeposit              = "deposit"
	TopicBatchSettled         = "batch_settled"
	TopicWithdrawal           = "withdrawal"
	TopicValidatorsChanged    = "validators_changed"
	TopicTokenChanged         = "token_changed"
	TopicPaused               = "paused"
	TopicUnpaused             = "unpaused"
	TopicOwnershipTransferred = "ownership_transferred"
)

// Event 状态变更事件
//
// Data 中的地址为 EIP-55 十六进制字符串，金额为十进制字符串
type Event struct {
	Sequence  uint64                 `json:"sequence"`
	Topic     string                 `json:"topic"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// EventFilter 事件过滤器，Topics 为空表示订阅全部主题
type EventFilter struct {
	Topics []string `json:"topics,omitempty"`
}

// Match 判断事件是否满足过滤条件
func (f *EventFilter) Match(ev *Event) bool {
	if f == nil || len(f.Topics) == 0 {
		return true
	}
	for _, topic := range f.Topics {
		if topic == ev.Topic {
			return true
		}
	}
	return false
}
