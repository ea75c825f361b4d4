package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldsAndActionAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{service: "order-service", z: zap.New(core)}

	l.With(map[string]any{"request_id": "r-1"}).Info("order_created", map[string]any{"order_id": int64(5)})
	l.Error("publish_failed", errors.New("nack"), nil)

	entries := logs.All()
	assert.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "order_created", first["action"])
	assert.Equal(t, "r-1", first["request_id"])
	assert.Equal(t, int64(5), first["order_id"])

	second := entries[1].ContextMap()
	assert.Equal(t, "nack", second["error"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestNopDoesNotPanic(t *testing.T) {
	l := Nop()
	l.Debug("x", nil)
	l.Warn("y", map[string]any{"a": 1})
	l.Sync()
}
