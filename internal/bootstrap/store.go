// Package bootstrap opens the configured order store.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/clock"
	"github.com/rl1809/order-placement/internal/config"
	"github.com/rl1809/order-placement/internal/port"
	"github.com/rl1809/order-placement/internal/seed"
	"github.com/rl1809/order-placement/migrations"
)

// OpenStore connects to the store named by cfg.Driver and applies migrations.
// The memory store always starts with the demo catalogue; database stores are
// reseeded only when reseed is set. The returned func releases the connections.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, reseed bool) (port.DatabaseRepository, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory store with demo catalogue")
		return storage.NewMemoryAdapter(clock.NewSystem(), seed.Products()...), func() {}, nil
	case config.DriverMySQL:
		return openMySQL(ctx, cfg, logger, reseed)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger, reseed)
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger, reseed bool) (port.DatabaseRepository, func(), error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrations.ApplyPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if reseed {
		if err := seed.Postgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	logger.Info("connected to postgres", "max_conns", cfg.MaxConns, "lock_rows", cfg.LockRows)

	adapter := storage.NewPostgresAdapter(pool,
		storage.WithRowLocks(cfg.LockRows),
		storage.WithIsolationLevel(cfg.IsolationLevel),
	)
	return adapter, pool.Close, nil
}

func openMySQL(ctx context.Context, cfg *config.Config, logger *slog.Logger, reseed bool) (port.DatabaseRepository, func(), error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(max(cfg.MaxConns/2, 1))
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping mysql: %w", err)
	}
	if err := migrations.ApplyMySQL(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	if reseed {
		if err := seed.MySQL(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
	}
	logger.Info("connected to mysql", "max_conns", cfg.MaxConns, "lock_rows", cfg.LockRows)

	adapter := storage.NewMySQLAdapter(db, cfg.LockRows, storage.SQLIsolationLevel(cfg.IsolationLevel))
	return adapter, func() { db.Close() }, nil
}
