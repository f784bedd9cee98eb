package settlement

import "github.com/weisyn/bridge-go/types"

// BatchReplayGuard 已结算批次集合，只增不减
type BatchReplayGuard struct {
	seen map[types.BatchKey]struct{}
}

// NewBatchReplayGuard 创建空集合
func NewBatchReplayGuard() *BatchReplayGuard {
	return &BatchReplayGuard{seen: make(map[types.BatchKey]struct{})}
}

// Seen 批次是否已结算
func (g *BatchReplayGuard) Seen(key types.BatchKey) bool {
	_, ok := g.seen[key]
	return ok
}

// Record 记录批次，已存在时返回 false
func (g *BatchReplayGuard) Record(key types.BatchKey) bool {
	if g.Seen(key) {
		return false
	}
	g.seen[key] = struct{}{}
	return true
}

// Len 已结算批次数
func (g *BatchReplayGuard) Len() int {
	return len(g.seen)
}

// Keys 导出全部批次键（无序）
func (g *BatchReplayGuard) Keys() []types.BatchKey {
	keys := make([]types.BatchKey, 0, len(g.seen))
	for k := range g.seen {
		keys = append(keys, k)
	}
	return keys
}
