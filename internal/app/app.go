// Package app assembles the runtime shared by the binaries: configuration,
// logging, the database pool and the domain services on top of it.
package app

import (
	"context"
	"fmt"
	"time"

	"sitetrack/internal/config"
	"sitetrack/internal/infrastructure/storage/postgres"
	"sitetrack/pkg/logger"
)

// Runtime holds process-wide infrastructure.
type Runtime struct {
	Config    *config.Config
	Log       *logger.Logger
	Location  *time.Location
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
}

// Init loads configuration from path (empty searches the default
// locations), sets up the default logger and connects to PostgreSQL.
// Migrations are applied when database.auto_migrate is set.
func Init(ctx context.Context, path, component string) (*Runtime, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.WithComponent(component)
	logger.SetDefault(log)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:               cfg.Database.DSN,
		MaxConns:          cfg.Database.MaxConns,
		MinConns:          cfg.Database.MinConns,
		MaxConnLifetime:   cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod: time.Minute,
		ApplicationName:   "sitetrack-" + component,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	rt := &Runtime{
		Config:    cfg,
		Log:       log,
		Location:  loc,
		Pool:      pool,
		TxManager: postgres.NewTxManager(pool),
	}

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	log.Infow("runtime initialised",
		"env", cfg.App.Env,
		"timezone", loc.String(),
		"auto_migrate", cfg.Database.AutoMigrate,
	)
	return rt, nil
}

// Close releases the pool and flushes the logger.
func (r *Runtime) Close() {
	r.Pool.Close()
	_ = r.Log.Sync()
}
