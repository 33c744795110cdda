// Package main is the entry point for the sitetrack background worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"sitetrack/internal/app"
	"sitetrack/internal/infrastructure/cache"
	"sitetrack/internal/infrastructure/storage/postgres"
	"sitetrack/internal/worker"
	"sitetrack/pkg/logger"
	"sitetrack/pkg/metrics"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := app.Init(ctx, configPath, "worker")
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config
	log := rt.Log

	services, err := app.NewServices(ctx, rt, nil)
	if err != nil {
		return err
	}
	defer services.Close()

	idempotency := postgres.NewIdempotencyStore(rt.TxManager, 24*time.Hour)

	jobs := []worker.Job{
		{
			Name:     "refresh_token_cleanup",
			Interval: cfg.Worker.TokenCleanupInterval,
			Run: func(ctx context.Context) (int64, error) {
				return services.Auth.CleanupExpiredTokens(ctx, cfg.Worker.TokenRetention)
			},
		},
		{
			Name:     "idempotency_cleanup",
			Interval: cfg.Worker.TokenCleanupInterval,
			Run:      idempotency.CleanupExpired,
		},
		{
			Name:     "pool_stats",
			Interval: cfg.Worker.PoolStatsInterval,
			Run: func(ctx context.Context) (int64, error) {
				rt.Pool.LogStats(ctx)
				return 0, nil
			},
		},
	}

	if cfg.Events.Enabled {
		relay := postgres.NewOutboxRelay(rt.TxManager, cfg.Events.RelayBatchSize, eventHandler(services.Cache))
		jobs = append(jobs,
			worker.Job{Name: "outbox_relay", Interval: cfg.Events.RelayInterval, Run: relay.ProcessBatch},
			worker.Job{
				Name:     "outbox_purge",
				Interval: cfg.Worker.TokenCleanupInterval,
				Run: func(ctx context.Context) (int64, error) {
					return relay.PurgePublished(ctx, cfg.Events.Retention)
				},
			},
		)
	}

	var observer worker.Observer
	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		observer = metrics.NewJobs(registry)

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Infow("worker metrics listening", "port", cfg.App.Port, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Info("worker started")
	worker.NewScheduler(log, observer, jobs...).Run(ctx)
	log.Info("worker stopped")
	return nil
}

// eventHandler publishes ledger events on Redis when it is configured and
// writes them to the log otherwise.
func eventHandler(client *cache.Client) postgres.OutboxHandler {
	if client != nil {
		return cache.NewEventPublisher(client)
	}
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		logger.Info(ctx, "ledger event",
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"payload", string(msg.Payload),
		)
		return nil
	})
}
