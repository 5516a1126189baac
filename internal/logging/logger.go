// Package logging 统一的 logr 日志入口，底层使用 zap
package logging

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 日志详细级别，与 -v 参数对应
const (
	DEFAULT = 2
	VERBOSE = 3
	DEBUG   = 4
	TRACE   = 5
)

// New 创建 logr.Logger；verbosity 越大输出越详细
func New(verbosity int, development bool) (logr.Logger, error) {
	if verbosity < 0 {
		return logr.Discard(), fmt.Errorf("日志级别必须 >= 0: %d", verbosity)
	}

	var cfg uberzap.Config
	if development {
		cfg = uberzap.NewDevelopmentConfig()
	} else {
		cfg = uberzap.NewProductionConfig()
		cfg.Sampling = nil
	}
	// logr 的 V(n) 对应 zap 的 level -n
	cfg.Level = uberzap.NewAtomicLevelAt(zapcore.Level(int8(-verbosity)))

	zl, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), fmt.Errorf("创建 zap logger 失败: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// NewTestLogger 测试用的开发模式 logger，输出全部级别
func NewTestLogger() logr.Logger {
	logger, err := New(TRACE, true)
	if err != nil {
		return logr.Discard()
	}
	return logger
}
