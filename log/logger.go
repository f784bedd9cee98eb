// Package log 节点与引擎共用的结构化日志接口
package log

// Logger 日志接口
//
// args 为交替出现的键值对：Info("batch settled", "batchId", id, "signers", n)
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// With 返回携带固定字段的子日志器
	With(args ...interface{}) Logger
}
