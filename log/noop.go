package log

type noop struct{}

// Nop 丢弃所有日志
func Nop() Logger { return noop{} }

func (noop) Debug(string, ...interface{}) {}
func (noop) Info(string, ...interface{})  {}
func (noop) Warn(string, ...interface{})  {}
func (noop) Error(string, ...interface{}) {}
func (n noop) With(...interface{}) Logger { return n }
