// Package log provides category-scoped structured logging for actaflow.
//
// The TUI owns stdout and stderr, so log output goes to a rotating file
// under the actaflow home directory. Call Init once at startup; before
// Init (and in tests) logging is a no-op.
package log

import (
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category labels a log line with the subsystem that produced it.
type Category string

const (
	CatAPI      Category = "api"
	CatStream   Category = "stream"
	CatWorkflow Category = "workflow"
	CatChat     Category = "chat"
	CatDB       Category = "db"
	CatUI       Category = "ui"
)

var (
	mu     sync.RWMutex
	logger *zap.SugaredLogger
)

// Init configures the global logger to write to logs/actaflow.log inside
// dir, rotating at 10 MB and keeping 3 old files. Debug enables the
// debug level; otherwise info is the floor.
func Init(dir string, debug bool) error {
	sink := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "logs", "actaflow.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		Compress:   true,
	}

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(sink),
		level,
	)

	mu.Lock()
	logger = zap.New(core).Sugar()
	mu.Unlock()
	return nil
}

// Close flushes any buffered log entries.
func Close() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message with key-value pairs.
func Debug(cat Category, msg string, keysAndValues ...any) {
	if l := get(); l != nil {
		l.Debugw(msg, append([]any{"cat", string(cat)}, keysAndValues...)...)
	}
}

// Info logs an info message with key-value pairs.
func Info(cat Category, msg string, keysAndValues ...any) {
	if l := get(); l != nil {
		l.Infow(msg, append([]any{"cat", string(cat)}, keysAndValues...)...)
	}
}

// Warn logs a warning with key-value pairs.
func Warn(cat Category, msg string, keysAndValues ...any) {
	if l := get(); l != nil {
		l.Warnw(msg, append([]any{"cat", string(cat)}, keysAndValues...)...)
	}
}

// ErrorErr logs an error value alongside a message and key-value pairs.
func ErrorErr(cat Category, msg string, err error, keysAndValues ...any) {
	if l := get(); l != nil {
		kvs := append([]any{"cat", string(cat), "error", err}, keysAndValues...)
		l.Errorw(msg, kvs...)
	}
}
