package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config хранит все параметры приложения
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Server   ServerConfig   `yaml:"server"`
	Bonus    BonusConfig    `yaml:"bonus"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`

	// ConnectAttempts bounds how many times the first ping is tried at startup.
	ConnectAttempts int           `yaml:"connect_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"tls"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type BonusConfig struct {
	// CashbackRate is the share of a completed order's total credited back to the client.
	CashbackRate float64 `yaml:"cashback_rate"`
}

func (b BonusConfig) Rate() decimal.Decimal { return decimal.NewFromFloat(b.CashbackRate) }

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxConns:        10,
			ConnectAttempts: 10,
			RetryDelay:      2 * time.Second,
			PingTimeout:     5 * time.Second,
			ConnMaxLifetime: 30 * time.Minute,
		},
		RabbitMQ: RabbitMQConfig{Port: 5672, VHost: "/"},
		Server:   ServerConfig{Port: 3000},
		Bonus:    BonusConfig{CashbackRate: 0.05},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and applies env overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't open the configuration file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
		return errors.New("database config incomplete")
	}
	if c.Database.ConnectAttempts < 0 || c.Database.RetryDelay < 0 || c.Database.PingTimeout < 0 {
		return errors.New("database retry settings cannot be negative")
	}
	if c.RabbitMQ.Host == "" || c.RabbitMQ.User == "" {
		return errors.New("rabbitmq config incomplete")
	}
	if c.Bonus.CashbackRate < 0 || c.Bonus.CashbackRate > 1 {
		return fmt.Errorf("bonus.cashback_rate must be within [0, 1], got %v", c.Bonus.CashbackRate)
	}
	return nil
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

func applyEnv(c *Config) {
	setString(&c.Database.Host, "POSTGRES_HOST")
	setInt(&c.Database.Port, "POSTGRES_PORT")
	setString(&c.Database.User, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.Database, "POSTGRES_DBNAME")
	setInt(&c.Database.ConnectAttempts, "POSTGRES_CONNECT_ATTEMPTS")
	setString(&c.RabbitMQ.Host, "RABBITMQ_HOST")
	setInt(&c.RabbitMQ.Port, "RABBITMQ_PORT")
	setString(&c.RabbitMQ.User, "RABBITMQ_USER")
	setString(&c.RabbitMQ.Password, "RABBITMQ_PASSWORD")
	setString(&c.RabbitMQ.VHost, "RABBITMQ_VHOST")
	setInt(&c.Server.Port, "HTTP_PORT")
	setString(&c.Log.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
