// Package metrics Prometheus 指标：结算引擎业务指标与 JSON-RPC 请求指标
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/weisyn/bridge-go/services/settlement"
)

// Namespace 指标命名空间
const Namespace = "bridge"

// batchSizeBuckets 批次收款人数分桶
var batchSizeBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// requestDurationBuckets 请求耗时分桶（秒）
var requestDurationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 5}

type contextKey int

const requestTimestampKey contextKey = iota

var _ settlement.Metrics = (*Recorder)(nil)

// Recorder 指标记录器，实现 settlement.Metrics
type Recorder struct {
	settlements *prometheus.CounterVec
	deposits    *prometheus.CounterVec
	withdrawals *prometheus.CounterVec
	batchSize   prometheus.Histogram
	validators  prometheus.Gauge

	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

// New 创建记录器并注册到 registerer
func New(registerer prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "settlements_total",
			Help:      "Batch settlement attempts by result",
		}, []string{"result"}),
		deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deposits_total",
			Help:      "Collateral deposit attempts by result",
		}, []string{"result"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "withdrawals_total",
			Help:      "Withdrawal attempts by result",
		}, []string{"result"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_size",
			Help:      "Number of recipients in settled batches",
			Buckets:   batchSizeBuckets,
		}),
		validators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "validators",
			Help:      "Current validator roster size",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "JSON-RPC request duration",
			Buckets:   requestDurationBuckets,
		}, []string{"method"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rpc_request_errors_total",
			Help:      "JSON-RPC requests that returned an error",
		}, []string{"method"}),
	}

	err := errors.Join(
		registerer.Register(r.settlements),
		registerer.Register(r.deposits),
		registerer.Register(r.withdrawals),
		registerer.Register(r.batchSize),
		registerer.Register(r.validators),
		registerer.Register(r.requestDuration),
		registerer.Register(r.requestErrors),
	)
	return r, err
}

// ObserveSettlement 记录一次批次结算
func (r *Recorder) ObserveSettlement(result string, recipients int) {
	r.settlements.WithLabelValues(result).Inc()
	if result == settlement.ResultOK {
		r.batchSize.Observe(float64(recipients))
	}
}

// ObserveDeposit 记录一次存入
func (r *Recorder) ObserveDeposit(result string) {
	r.deposits.WithLabelValues(result).Inc()
}

// ObserveWithdrawal 记录一次提取
func (r *Recorder) ObserveWithdrawal(result string) {
	r.withdrawals.WithLabelValues(result).Inc()
}

// SetRosterSize 更新验证者人数
func (r *Recorder) SetRosterSize(n int) {
	r.validators.Set(float64(n))
}

// InterceptRequest gorilla/rpc 请求前钩子，记录开始时间
func (r *Recorder) InterceptRequest(i *rpc.RequestInfo) *http.Request {
	ctx := context.WithValue(i.Request.Context(), requestTimestampKey, time.Now())
	return i.Request.WithContext(ctx)
}

// AfterRequest gorilla/rpc 请求后钩子，记录耗时与错误
func (r *Recorder) AfterRequest(i *rpc.RequestInfo) {
	start, ok := i.Request.Context().Value(requestTimestampKey).(time.Time)
	if !ok {
		return
	}
	r.requestDuration.WithLabelValues(i.Method).Observe(time.Since(start).Seconds())
	if i.Error != nil {
		r.requestErrors.WithLabelValues(i.Method).Inc()
	}
}
