package quorum

import (
	"context"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/bridge-go/types"
	"github.com/weisyn/bridge-go/utils"
)

// defaultRecoverConcurrency 签名恢复并发数
const defaultRecoverConcurrency = 8

// Roster 验证者名单的只读视图
type Roster interface {
	Contains(id common.Address) bool
	Size() int
}

// Result 法定人数校验结果
type Result struct {
	// Signers 有效且去重后的签名者，按签名首次出现顺序排列
	Signers []common.Address
	// Ignored 恢复出的地址不在名单中的签名数
	Ignored int
	// Duplicates 重复签名者的签名数
	Duplicates int
	// Required 通过所需的最少签名者数
	Required int
	// RosterSize 校验时的名单人数
	RosterSize int
}

// Verifier 法定人数校验器
type Verifier struct {
	mu          sync.RWMutex
	policy      Policy
	concurrency int
}

// NewVerifier 创建校验器
func NewVerifier(policy Policy) (*Verifier, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{
		policy:      policy,
		concurrency: defaultRecoverConcurrency,
	}, nil
}

// Policy 返回当前策略
func (v *Verifier) Policy() Policy {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.policy
}

// SetPolicy 替换策略（配置热加载）
func (v *Verifier) SetPolicy(policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	v.policy = policy
	v.mu.Unlock()
	return nil
}

// Verify 校验签名集合是否对 hash 达到法定人数
//
// **流程**：
// 1. 名单人数低于 MinRoster 直接拒绝（RosterTooSmall）
// 2. 对每个签名独立恢复签名者（并发，任一签名格式非法则整体拒绝）
// 3. 丢弃不在名单中的签名者
// 4. 按签名者去重
// 5. 不同签名者数严格超过策略比例才通过（QuorumNotMet）
//
// 结果只取决于有效签名者集合，与签名顺序无关。
func (v *Verifier) Verify(ctx context.Context, hash common.Hash, signatures [][]byte, roster Roster) (*Result, error) {
	policy := v.Policy()
	size := roster.Size()

	// 1. 名单下限
	if size < policy.MinRoster {
		return nil, types.ErrRosterTooSmall.WithDetails(map[string]interface{}{
			"roster":    size,
			"minRoster": policy.MinRoster,
		}, "roster has %d validators, at least %d required", size, policy.MinRoster)
	}

	// 2. 恢复签名者
	recovered, err := utils.ParallelExecute(ctx, signatures, func(_ context.Context, sig []byte) (common.Address, error) {
		return Recover(hash, sig)
	}, v.concurrency)
	if err != nil {
		return nil, fmt.Errorf("recover signers: %w", err)
	}

	// 3-4. 名单过滤 + 去重
	result := &Result{
		Signers:    make([]common.Address, 0, len(recovered)),
		Required:   policy.Threshold(size),
		RosterSize: size,
	}
	seen := mapset.NewThreadUnsafeSet()
	for _, signer := range recovered {
		if !roster.Contains(signer) {
			result.Ignored++
			continue
		}
		if !seen.Add(signer) {
			result.Duplicates++
			continue
		}
		result.Signers = append(result.Signers, signer)
	}

	// 5. 法定人数
	if !policy.Met(len(result.Signers), size) {
		return result, types.ErrQuorumNotMet.WithDetails(map[string]interface{}{
			"signers":    len(result.Signers),
			"required":   result.Required,
			"roster":     size,
			"ignored":    result.Ignored,
			"duplicates": result.Duplicates,
		}, "%d of %d validators signed, %d required", len(result.Signers), size, result.Required)
	}

	return result, nil
}
