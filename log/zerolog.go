package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// 输出格式
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// ZerologAdapter 基于 zerolog 的 Logger 实现
type ZerologAdapter struct {
	logger zerolog.Logger
}

// New 按级别与格式创建日志器，w 为 nil 时输出到 stderr
func New(level, format string, w io.Writer) (*ZerologAdapter, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var out io.Writer
	switch strings.ToLower(format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case FormatJSON:
		out = w
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &ZerologAdapter{logger: logger}, nil
}

// NewZerologAdapterWithLogger 包装已有的 zerolog.Logger
func NewZerologAdapterWithLogger(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Debug(msg string, args ...interface{}) {
	emit(z.logger.Debug(), msg, args)
}

func (z *ZerologAdapter) Info(msg string, args ...interface{}) {
	emit(z.logger.Info(), msg, args)
}

func (z *ZerologAdapter) Warn(msg string, args ...interface{}) {
	emit(z.logger.Warn(), msg, args)
}

func (z *ZerologAdapter) Error(msg string, args ...interface{}) {
	emit(z.logger.Error(), msg, args)
}

// With 返回携带固定字段的子日志器
func (z *ZerologAdapter) With(args ...interface{}) Logger {
	return &ZerologAdapter{logger: z.logger.With().Fields(normalize(args)).Logger()}
}

// Logger 返回底层 zerolog.Logger
func (z *ZerologAdapter) Logger() zerolog.Logger {
	return z.logger
}

func emit(event *zerolog.Event, msg string, args []interface{}) {
	if event == nil {
		return
	}
	if len(args) > 0 {
		event = event.Fields(normalize(args))
	}
	event.Msg(msg)
}

// normalize 保证键值对成对出现，缺失的值以 "MISSING" 补齐
func normalize(args []interface{}) []interface{} {
	if len(args)%2 == 0 {
		return args
	}
	out := make([]interface{}, len(args)+1)
	copy(out, args)
	out[len(args)] = "MISSING"
	return out
}
