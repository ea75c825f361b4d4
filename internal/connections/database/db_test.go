package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"neocafe/internal/common/logger"
	"neocafe/internal/config"
)

// unreachable points at a closed local port so every ping is refused.
func unreachable() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "cafe",
		Database: "neocafe",
		SSLMode:  "disable",
		MaxConns: 4,
	}
}

func TestPolicyFallsBackToDefaults(t *testing.T) {
	assert.Equal(t, retryPolicy{attempts: 10, delay: 2 * time.Second, ping: 5 * time.Second}, policyOf(config.DatabaseConfig{}))

	cfg := config.DatabaseConfig{ConnectAttempts: 3, RetryDelay: time.Millisecond, PingTimeout: time.Second}
	assert.Equal(t, retryPolicy{attempts: 3, delay: time.Millisecond, ping: time.Second}, policyOf(cfg))
}

func TestConnectDBGivesUpAfterConfiguredAttempts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := unreachable()
	cfg.ConnectAttempts = 2
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.PingTimeout = time.Second

	db, err := ConnectDB(context.Background(), cfg, logger.FromZap("test", zap.New(core)))
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unreachable after 2 attempts")

	failed := logs.FilterMessage("db_ping_failed").All()
	require.Len(t, failed, 1, "the last attempt is reported by the error, not the log")
	assert.Equal(t, int64(4), failed[0].ContextMap()["max_conns"])
	assert.Equal(t, "10ms", failed[0].ContextMap()["retry_in"])
}

func TestConnectDBStopsWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := unreachable()
	cfg.RetryDelay = time.Minute

	start := time.Now()
	_, err := ConnectDB(ctx, cfg, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}
