package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"neocafe/internal/common/logger"
	"neocafe/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// retryPolicy is the startup ping schedule; zero config values fall back to
// the defaults so a hand-built DatabaseConfig still connects.
type retryPolicy struct {
	attempts int
	delay    time.Duration
	ping     time.Duration
}

func policyOf(cfg config.DatabaseConfig) retryPolicy {
	p := retryPolicy{attempts: cfg.ConnectAttempts, delay: cfg.RetryDelay, ping: cfg.PingTimeout}
	if p.attempts <= 0 {
		p.attempts = 10
	}
	if p.delay <= 0 {
		p.delay = 2 * time.Second
	}
	if p.ping <= 0 {
		p.ping = 5 * time.Second
	}
	return p
}

// ConnectDB opens the pgx pool sized by cfg and pings it until postgres
// answers. The pool is opened once; only the ping is retried.
func ConnectDB(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*sql.DB, error) {
	if log == nil {
		log = logger.Nop()
	}
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid database dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetMaxIdleConns(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	p := policyOf(cfg)
	fields := map[string]any{"host": cfg.Host, "database": cfg.Database, "max_conns": cfg.MaxConns}
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, p.ping)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			log.With(fields).Info("db_connected", map[string]any{"attempt": attempt})
			return db, nil
		}
		if attempt == p.attempts {
			break
		}
		log.With(fields).Warn("db_ping_failed", map[string]any{
			"attempt":  attempt,
			"of":       p.attempts,
			"retry_in": p.delay.String(),
			"error":    err.Error(),
		})
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("db connect canceled after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		}
	}

	_ = db.Close()
	return nil, fmt.Errorf("database %s unreachable after %d attempts: %w", cfg.Host, p.attempts, err)
}
