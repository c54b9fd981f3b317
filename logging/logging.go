// Package logging builds the process logger. zap is the structured logger of
// the service, hertz's hlog writes to the same sink.
package logging

import (
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and the destination of logs.
type Options struct {
	Level      string // zap level name, info when empty or unknown
	FileName   string // stderr when empty
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
	JSON       bool
}

// Setup installs the global zap logger and aligns hlog on it. The returned
// function flushes buffered logs.
func Setup(o Options, hertzLevel hlog.Level) (*zap.Logger, func()) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(o.Level)); err != nil || o.Level == "" {
		level = zapcore.InfoLevel
	}

	ws, sync := writer(o)
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if o.JSON || o.FileName != "" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	logger := zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller())
	zap.ReplaceGlobals(logger)

	hlog.SetOutput(ws)
	hlog.SetLevel(hertzLevel)

	return logger, func() {
		_ = logger.Sync()
		sync()
	}
}

// writer returns the log sink, a buffered rotating file when a file name is set.
func writer(o Options) (zapcore.WriteSyncer, func()) {
	if o.FileName == "" {
		return zapcore.Lock(os.Stderr), func() {}
	}
	buffered := &zapcore.BufferedWriteSyncer{
		WS: zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.FileName,
			MaxSize:    o.MaxSize,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAge,
		}),
		FlushInterval: time.Minute,
	}
	return buffered, func() { _ = buffered.Stop() }
}
