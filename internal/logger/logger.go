// Package logger provides leveled printf-style logging on top of zap.
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity. Trace sits below zap's debug level.
type Level int8

const (
	TraceLevel Level = iota - 2
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
	PanicLevel
)

var (
	mu      sync.RWMutex
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	current = InfoLevel
	sugar   = newSugar()
)

func newSugar() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = nil
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	return zap.New(core).Sugar()
}

// ParseLevel converts a level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	case "panic":
		return PanicLevel, nil
	}
	return InfoLevel, fmt.Errorf("invalid log level %q (want trace, debug, info, warn, error, fatal, panic)", s)
}

// SetLevel changes the minimum level that gets written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	current = l
	level.SetLevel(l.zap())
}

func (l Level) zap() zapcore.Level {
	switch l {
	case TraceLevel, DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case FatalLevel:
		return zapcore.FatalLevel
	case PanicLevel:
		return zapcore.PanicLevel
	}
	return zapcore.InfoLevel
}

// GetLevel returns the active level.
func GetLevel() Level {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetLogger replaces the backing zap logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	sugar = l.Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Trace(format string, args ...any) {
	if GetLevel() > TraceLevel {
		return
	}
	get().Debugf("[TRACE] "+format, args...)
}

func Debug(format string, args ...any) { get().Debugf(format, args...) }
func Info(format string, args ...any)  { get().Infof(format, args...) }
func Warn(format string, args ...any)  { get().Warnf(format, args...) }
func Error(format string, args ...any) { get().Errorf(format, args...) }

// Sync flushes buffered entries.
func Sync() {
	_ = get().Sync()
}
