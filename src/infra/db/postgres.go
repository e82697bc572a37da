// Package db owns the PostgreSQL pool and the embedded schema migrations.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"postcontest/src/infra/config"
)

// Postgres wraps the pgx pool shared by the repository and the migrator.
type Postgres struct {
	Pool *pgxpool.Pool
	log  *slog.Logger
}

// New opens the pool and waits until the database answers a ping. Sessions
// run in UTC so round windows compare the same way in SQL and in Go.
func New(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "postcontest"

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := waitForPing(ctx, pool, cfg, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("database connection established",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Name,
		"max_conns", poolCfg.MaxConns,
	)

	return &Postgres{Pool: pool, log: log}, nil
}

// waitForPing retries with a doubling pause so a database container that is
// still starting does not fail the service.
func waitForPing(ctx context.Context, pool *pgxpool.Pool, cfg config.DatabaseConfig, log *slog.Logger) error {
	attempts := max(cfg.ConnectAttempts, 1)
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pause := 250 * time.Millisecond

	var err error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		log.Warn("database not ready", "attempt", i, "retry_in", pause, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to ping database: %w", ctx.Err())
		case <-time.After(pause):
		}
		pause *= 2
	}
	return fmt.Errorf("failed to ping database after %d attempts: %w", attempts, err)
}

// Close releases the pool. Safe to call once during shutdown.
func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		p.log.Info("database connection closed")
	}
}

// Health implements ports.ExternalService.
func (p *Postgres) Health(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}
