// Package db opens the SQL backends the store runs on: postgres for
// deployments, sqlite for single-node and local runs.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open dispatches on driver name. The returned handle is already pinged.
func Open(ctx context.Context, driver, dsn string, cfg Config) (*sql.DB, error) {
	switch driver {
	case "postgres":
		return OpenPostgres(ctx, dsn, cfg)
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}

func ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}
