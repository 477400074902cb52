package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zap.Logger to provide structured, leveled logging.
type Logger struct {
	*zap.Logger
}

// FileOutput configures an optional rotating log file alongside stdout.
type FileOutput struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a new logger with the given level ("debug", "info", "warn",
// "error") and encoding ("json" or "console"). When file is non-nil, log
// entries are additionally written to a size-rotated file.
func New(level, encoding string, file *FileOutput) (*Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch encoding {
	case "console":
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl),
	}
	if file != nil && file.Path != "" {
		rotated := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotated), lvl))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return &Logger{zl}, nil
}

// NewNop returns a no-op logger, useful in tests.
func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// DebugContext logs a debug message; the context is accepted so call sites
// can hand it through uniformly even though zap itself does not consume it.
func (l *Logger) DebugContext(_ context.Context, msg string, fields ...zap.Field) {
	l.Debug(msg, fields...)
}

// InfoContext logs an info message with a context parameter.
func (l *Logger) InfoContext(_ context.Context, msg string, fields ...zap.Field) {
	l.Info(msg, fields...)
}

// StringField creates a zap string field.
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField creates a zap int field.
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Float64Field creates a zap float64 field.
func Float64Field(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}

// ErrorField creates a zap error field.
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}
