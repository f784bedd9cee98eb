package utils

import (
	"context"
	"fmt"
	"sync"
)

// BatchConfig 批量操作配置
type BatchConfig struct {
	// BatchSize 批量大小
	BatchSize int
	// Concurrency 并发数量
	Concurrency int
	// OnProgress 进度回调函数
	OnProgress func(progress BatchProgress)
}

// BatchProgress 批量操作进度
type BatchProgress struct {
	// Completed 已完成数量
	Completed int
	// Total 总数量
	Total int
	// Percentage 进度百分比（0-100）
	Percentage int
	// Success 成功数量
	Success int
	// Failed 失败数量
	Failed int
}

// DefaultBatchConfig 返回默认批量配置
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:   50,
		Concurrency: 5,
	}
}

// BatchQueryResult 批量查询结果
//
// Results 与输入一一对应（按索引），失败项保持零值并记录在 Errors 中
type BatchQueryResult[R any] struct {
	Results []R
	Errors  []BatchError
	Total   int
	Success int
	Failed  int
}

// BatchError 批量操作错误
type BatchError struct {
	// Index 项目索引
	Index int
	// Error 错误信息
	Error error
}

// BatchQuery 批量查询
//
// 对一组输入分批并发调用查询函数，结果按输入顺序返回
//
// 示例：
//
//	accounts := []common.Address{a1, a2, a3}
//	res, err := BatchQuery(ctx, accounts, func(ctx context.Context, acct common.Address, index int) (*uint256.Int, error) {
//	    return bridgeClient.GetAvailableBalance(ctx, token, acct)
//	}, DefaultBatchConfig())
func BatchQuery[T any, R any](
	ctx context.Context,
	items []T,
	queryFn func(ctx context.Context, item T, index int) (R, error),
	config *BatchConfig,
) (*BatchQueryResult[R], error) {
	cfg := DefaultBatchConfig()
	if config != nil {
		*cfg = *config
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	result := &BatchQueryResult[R]{
		Results: make([]R, len(items)),
		Errors:  make([]BatchError, 0),
		Total:   len(items),
	}

	var mu sync.Mutex
	completed := 0

	record := func(idx int, value R, err error) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if err != nil {
			result.Errors = append(result.Errors, BatchError{Index: idx, Error: err})
			result.Failed++
		} else {
			result.Results[idx] = value
			result.Success++
		}
		if cfg.OnProgress != nil {
			cfg.OnProgress(BatchProgress{
				Completed:  completed,
				Total:      len(items),
				Percentage: completed * 100 / len(items),
				Success:    result.Success,
				Failed:     result.Failed,
			})
		}
	}

	for batchIdx, batch := range batchArray(items, cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, cfg.Concurrency)

		for i, item := range batch {
			wg.Add(1)
			go func(idx int, batchItem T) {
				defer wg.Done()

				// 获取信号量
				sem <- struct{}{}
				defer func() { <-sem }()

				value, err := queryFn(ctx, batchItem, idx)
				record(idx, value, err)
			}(batchIdx*cfg.BatchSize+i, item)
		}

		wg.Wait()
	}

	return result, nil
}

// batchArray 将数组分批次处理
func batchArray[T any](array []T, batchSize int) [][]T {
	batches := make([][]T, 0, (len(array)+batchSize-1)/max(batchSize, 1))
	for i := 0; i < len(array); i += batchSize {
		end := min(i+batchSize, len(array))
		batches = append(batches, array[i:end])
	}
	return batches
}

// ParallelExecute 并行执行多个操作
//
// 对一组输入并发执行操作函数，限制并发数量。结果按输入顺序返回；
// 任一项失败时返回索引最小的那个错误，保证多次执行结果一致。
//
// 示例：
//
//	signers, err := ParallelExecute(ctx, signatures, func(ctx context.Context, sig []byte) (common.Address, error) {
//	    return quorum.Recover(hash, sig)
//	}, 8)
func ParallelExecute[T any, R any](
	ctx context.Context,
	items []T,
	executeFn func(ctx context.Context, item T) (R, error),
	concurrency int,
) ([]R, error) {
	if concurrency <= 0 {
		concurrency = 5
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	// 小规模输入直接串行执行
	if len(items) <= 1 || concurrency == 1 {
		for i, item := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := executeFn(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			results[i] = r
		}
		return results, nil
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, item := range items {
		wg.Add(1)
		go func(index int, batchItem T) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[index] = err
				return
			}
			results[index], errs[index] = executeFn(ctx, batchItem)
		}(i, item)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	return results, nil
}
