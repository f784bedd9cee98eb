package utils

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchQuery(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		items  []int
		config *BatchConfig
	}{
		{
			name:   "empty items",
			items:  []int{},
			config: DefaultBatchConfig(),
		},
		{
			name:   "nil config",
			items:  []int{1, 2, 3},
			config: nil,
		},
		{
			name:  "uneven batches",
			items: []int{1, 2, 3, 4, 5, 6, 7},
			config: &BatchConfig{
				BatchSize:   3,
				Concurrency: 2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := BatchQuery(ctx, tt.items, func(ctx context.Context, item int, index int) (int, error) {
				// 打乱完成顺序，结果仍需按输入索引排列
				time.Sleep(time.Duration(len(tt.items)-index) * time.Millisecond)
				return item * 10, nil
			}, tt.config)
			if err != nil {
				t.Fatalf("BatchQuery() error = %v", err)
			}

			if result.Total != len(tt.items) || result.Success != len(tt.items) {
				t.Errorf("BatchQuery() Total/Success = %d/%d, want %d", result.Total, result.Success, len(tt.items))
			}
			for i, v := range result.Results {
				if v != tt.items[i]*10 {
					t.Errorf("BatchQuery() Results[%d] = %d, want %d", i, v, tt.items[i]*10)
				}
			}
		})
	}
}

func TestBatchQuery_Progress(t *testing.T) {
	var calls int32
	var last BatchProgress
	_, err := BatchQuery(context.Background(), []int{1, 2, 3, 4, 5}, func(ctx context.Context, item int, index int) (int, error) {
		if item == 4 {
			return 0, errors.New("unreachable node")
		}
		return item, nil
	}, &BatchConfig{
		BatchSize:   2,
		Concurrency: 1,
		OnProgress: func(p BatchProgress) {
			atomic.AddInt32(&calls, 1)
			last = p
		},
	})
	if err != nil {
		t.Fatalf("BatchQuery() error = %v", err)
	}
	if atomic.LoadInt32(&calls) != 5 {
		t.Errorf("OnProgress called %d times, want 5", calls)
	}
	if last.Completed != 5 || last.Percentage != 100 || last.Success != 4 || last.Failed != 1 {
		t.Errorf("final progress = %+v", last)
	}
}

func TestBatchQuery_WithErrors(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	result, err := BatchQuery(context.Background(), items, func(ctx context.Context, item int, index int) (int, error) {
		if item == 3 {
			return 0, errors.New("test error")
		}
		return item * 2, nil
	}, DefaultBatchConfig())
	if err != nil {
		t.Fatalf("BatchQuery() error = %v, want nil", err)
	}

	if result.Success != 4 || result.Failed != 1 {
		t.Errorf("BatchQuery() Success/Failed = %d/%d, want 4/1", result.Success, result.Failed)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 2 {
		t.Errorf("BatchQuery() Errors = %+v, want one error at index 2", result.Errors)
	}
	if result.Results[2] != 0 {
		t.Errorf("BatchQuery() failed slot = %d, want zero value", result.Results[2])
	}
}

func TestBatchQuery_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BatchQuery(ctx, []int{1, 2, 3}, func(ctx context.Context, item int, index int) (int, error) {
		return item, nil
	}, DefaultBatchConfig())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("BatchQuery() error = %v, want context.Canceled", err)
	}
}

func TestParallelExecute(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		items       []int
		concurrency int
	}{
		{name: "empty items", items: []int{}, concurrency: 5},
		{name: "single item", items: []int{1}, concurrency: 5},
		{name: "serial", items: []int{1, 2, 3}, concurrency: 1},
		{name: "more items than workers", items: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, concurrency: 3},
		{name: "default concurrency", items: []int{4, 5, 6}, concurrency: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := ParallelExecute(ctx, tt.items, func(ctx context.Context, item int) (int, error) {
				return item * 2, nil
			}, tt.concurrency)
			if err != nil {
				t.Fatalf("ParallelExecute() error = %v", err)
			}
			if len(results) != len(tt.items) {
				t.Fatalf("ParallelExecute() got %d results, want %d", len(results), len(tt.items))
			}
			for i, r := range results {
				if r != tt.items[i]*2 {
					t.Errorf("ParallelExecute() results[%d] = %d, want %d", i, r, tt.items[i]*2)
				}
			}
		})
	}
}

func TestParallelExecute_LowestIndexErrorWins(t *testing.T) {
	errLow := errors.New("low")
	errHigh := errors.New("high")

	for run := 0; run < 20; run++ {
		_, err := ParallelExecute(context.Background(), []int{0, 1, 2, 3, 4, 5}, func(ctx context.Context, item int) (int, error) {
			switch item {
			case 2:
				time.Sleep(2 * time.Millisecond)
				return 0, errLow
			case 5:
				return 0, errHigh
			}
			return item, nil
		}, 6)
		if !errors.Is(err, errLow) {
			t.Fatalf("run %d: ParallelExecute() error = %v, want %v", run, err, errLow)
		}
		if !strings.HasPrefix(err.Error(), "item 2:") {
			t.Fatalf("run %d: error %q lacks index prefix", run, err)
		}
	}
}

func TestBatchArray(t *testing.T) {
	tests := []struct {
		name        string
		array       []int
		batchSize   int
		wantBatches int
	}{
		{name: "empty array", array: []int{}, batchSize: 5, wantBatches: 0},
		{name: "single batch", array: []int{1, 2, 3}, batchSize: 5, wantBatches: 1},
		{name: "multiple batches", array: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, batchSize: 3, wantBatches: 4},
		{name: "exact multiple", array: []int{1, 2, 3, 4}, batchSize: 2, wantBatches: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := batchArray(tt.array, tt.batchSize)
			if len(batches) != tt.wantBatches {
				t.Errorf("batchArray() got %d batches, want %d", len(batches), tt.wantBatches)
			}
			total := 0
			for _, batch := range batches {
				total += len(batch)
			}
			if total != len(tt.array) {
				t.Errorf("batchArray() total length = %d, want %d", total, len(tt.array))
			}
		})
	}
}

func BenchmarkParallelExecute(b *testing.B) {
	ctx := context.Background()
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ParallelExecute(ctx, items, func(ctx context.Context, item int) (int, error) {
			return item * 2, nil
		}, 8)
	}
}
