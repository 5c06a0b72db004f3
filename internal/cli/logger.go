package cli

import (
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLevel maps a config log level to a zap level. logr's V(n) logs at
// zap level -n, so debug opens V(1) and V(2).
func zapLevel(level string, verbose int) zapcore.Level {
	var l zapcore.Level

	switch level {
	case "debug":
		l = -2
	case "warn":
		l = zapcore.WarnLevel
	case "error":
		l = zapcore.ErrorLevel
	default:
		l = zapcore.InfoLevel
	}

	return l - zapcore.Level(verbose)
}

// newLogger returns a console logger writing to w.
func newLogger(w io.Writer, level zapcore.Level) (logr.Logger, func()) {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)

	zapLog := zap.New(core)

	return zapr.NewLogger(zapLog), func() { _ = zapLog.Sync() }
}
