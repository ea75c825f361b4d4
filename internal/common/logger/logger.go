package logger

import (
	"os"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	service string
	z       *zap.Logger
}

// New builds a JSON logger for service at info level.
func New(service string) *Logger {
	return NewWithLevel(service, "info")
}

func NewWithLevel(service, level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.StacktraceKey = ""
	cfg.OutputPaths = []string{"stdout"}
	cfg.Sampling = nil
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{
		service: service,
		z:       z.With(zap.String("service", service), zap.String("hostname", hostname())),
	}
}

// FromZap wraps an existing zap logger, mostly for tests with an observer core.
func FromZap(service string, z *zap.Logger) *Logger {
	return &Logger{service: service, z: z.With(zap.String("service", service))}
}

// Nop discards everything.
func Nop() *Logger { return &Logger{service: "nop", z: zap.NewNop()} }

// With returns a child logger that adds fields to every entry.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{service: l.service, z: l.z.With(toZap(fields)...)}
}

func (l *Logger) Info(action string, fields map[string]any) {
	l.z.Info(action, append(toZap(fields), zap.String("action", action))...)
}

func (l *Logger) Debug(action string, fields map[string]any) {
	l.z.Debug(action, append(toZap(fields), zap.String("action", action))...)
}

func (l *Logger) Warn(action string, fields map[string]any) {
	l.z.Warn(action, append(toZap(fields), zap.String("action", action))...)
}

func (l *Logger) Error(action string, err error, fields map[string]any) {
	l.z.Error(action, append(toZap(fields), zap.String("action", action), zap.Error(err))...)
}

func (l *Logger) Sync() { _ = l.z.Sync() }

func toZap(fields map[string]any) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys)+2)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func hostname() string { h, _ := os.Hostname(); return h }
