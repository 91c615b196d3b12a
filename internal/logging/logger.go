// Package logging wraps go.uber.org/zap behind the same small, leveled
// logging surface the teacher's hand-rolled logger exposed (Info/Warn/Error/
// Debug + formatted variants), so every call site in the pipeline reads the
// way the original file-maintenance call sites did, while output is real
// structured logging: JSON to a daily-rolling file, or console encoding to
// stdout in -no-logs mode.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Settings controls where logs go and at what level.
//
// Modes:
//   - NoLogs=true  => console-only (stdout), human-readable console encoding.
//   - NoLogs=false => JSON logs written to a daily file under LogDir.
type Settings struct {
	NoLogs bool
	LogDir string
	Debug  bool
}

// Logger is the shared logging facade threaded by constructor injection
// into the scanner and every stage worker pool. It is safe for concurrent
// use by multiple goroutines, the same guarantee the teacher's
// mutex-guarded Logger made.
type Logger struct {
	sugar *zap.SugaredLogger
	core  *zap.Logger
}

// New builds a Logger from settings. If file logging is enabled, LogDir is
// created eagerly so permission problems are caught at startup rather than
// on the first log write, mirroring the teacher's fail-fast posture for
// scheduled/unattended runs.
func New(settings Settings) (*Logger, error) {
	level := zapcore.InfoLevel
	if settings.Debug {
		level = zapcore.DebugLevel
	}

	var core zapcore.Core
	if settings.NoLogs {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), level)
	} else {
		if settings.LogDir == "" {
			return nil, fmt.Errorf("log dir is empty (settings.LogDir)")
		}
		if err := os.MkdirAll(settings.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}

		logFile := filepath.Join(settings.LogDir, fmt.Sprintf("pipeline_%s.log", time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}

		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "ts"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), level)
	}

	zapLogger := zap.New(core)
	return &Logger{sugar: zapLogger.Sugar(), core: zapLogger}, nil
}

// With returns a child Logger with the given structured key/value pairs
// attached to every subsequent log line. Stages use this to attach taskId,
// stage name, and path fields once per task instead of repeating them in
// every message.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...), core: l.core}
}

func (l *Logger) Debug(msg string) { l.sugar.Debug(msg) }
func (l *Logger) Info(msg string)  { l.sugar.Info(msg) }
func (l *Logger) Warn(msg string)  { l.sugar.Warn(msg) }
func (l *Logger) Error(msg string) { l.sugar.Error(msg) }

func (l *Logger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Fatalf logs the message and exits the process with code 1. Use only for
// unrecoverable startup failures; deferred cleanup will not run.
func (l *Logger) Fatalf(format string, args ...any) {
	l.sugar.Errorf(format, args...)
	_ = l.Sync()
	os.Exit(1)
}

// Sync flushes any buffered log entries. Call before process exit.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
