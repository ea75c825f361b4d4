package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
database:
  host: db.local
  user: cafe
  password: secret
  database: neocafe
rabbitmq:
  host: mq.local
  user: guest
  password: guest
bonus:
  cashback_rate: 0.1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
	assert.Equal(t, "/", cfg.RabbitMQ.VHost)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.1", cfg.Bonus.Rate().String())
	assert.Equal(t, 10, cfg.Database.ConnectAttempts)
	assert.Equal(t, 5*time.Second, cfg.Database.PingTimeout)
	assert.Equal(t, "host=db.local port=5432 user=cafe password=secret dbname=neocafe sslmode=disable", cfg.Database.DSN())
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "override")
	t.Setenv("HTTP_PORT", "8081")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Database.Host)
	assert.Equal(t, 8081, cfg.Server.Port)
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	_, err := Load(writeConfig(t, "database:\n  host: x\n"))
	assert.EqualError(t, err, "database config incomplete")
}

func TestValidateCashbackRate(t *testing.T) {
	cfg := Default()
	cfg.Database = DatabaseConfig{Host: "h", User: "u", Database: "d"}
	cfg.RabbitMQ = RabbitMQConfig{Host: "h", User: "u"}
	cfg.Bonus.CashbackRate = 1.5

	assert.Error(t, cfg.Validate())
}

func TestDatabaseRetrySettingsFromFile(t *testing.T) {
	t.Setenv("POSTGRES_CONNECT_ATTEMPTS", "3")
	body := `
database:
  host: db.local
  user: cafe
  database: neocafe
  retry_delay: 250ms
  ping_timeout: 1s
  conn_max_lifetime: 1h
rabbitmq:
  host: mq.local
  user: guest
`
	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Database.ConnectAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.RetryDelay)
	assert.Equal(t, time.Second, cfg.Database.PingTimeout)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
}

func TestValidateRejectsNegativeRetrySettings(t *testing.T) {
	cfg := Default()
	cfg.Database.Host, cfg.Database.User, cfg.Database.Database = "h", "u", "d"
	cfg.RabbitMQ = RabbitMQConfig{Host: "h", User: "u"}
	cfg.Database.RetryDelay = -time.Second

	assert.EqualError(t, cfg.Validate(), "database retry settings cannot be negative")
}
