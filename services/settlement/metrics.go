package settlement

// Metrics 引擎指标接口，result 为 "ok" 或错误码
type Metrics interface {
	ObserveSettlement(result string, recipients int)
	ObserveDeposit(result string)
	ObserveWithdrawal(result string)
	SetRosterSize(n int)
}

// ResultOK 操作成功时的 result 标签
const ResultOK = "ok"

type nopMetrics struct{}

func (nopMetrics) ObserveSettlement(string, int) {}
func (nopMetrics) ObserveDeposit(string)         {}
func (nopMetrics) ObserveWithdrawal(string)      {}
func (nopMetrics) SetRosterSize(int)             {}
