package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide structured logger. It is a no-op logger until InitLogger runs,
// so packages can log from tests without setup.
var Log = zap.NewNop()

// InitLogger builds the process logger. Debug mode switches to the human-readable
// development encoder; otherwise JSON is written to stdout.
func InitLogger(level string, debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	Log = l.Named("marketscout")
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}
