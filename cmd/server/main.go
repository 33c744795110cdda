// Package main is the entry point for the sitetrack API server.
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"sitetrack/internal/app"
	v1 "sitetrack/internal/infrastructure/http/v1"
	"sitetrack/internal/infrastructure/storage/postgres"
	"sitetrack/pkg/metrics"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	rt, err := app.Init(ctx, configPath, "server")
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config
	log := rt.Log

	log.Infow("starting sitetrack server", "version", version)

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	// A typed nil registry must not reach NewServices.
	var reg prometheus.Registerer
	if registry != nil {
		reg = registry
	}
	services, err := app.NewServices(ctx, rt, reg)
	if err != nil {
		return err
	}
	defer services.Close()

	if boot := cfg.Auth.BootstrapAdmin; boot.Email != "" {
		created, err := services.Auth.EnsureBootstrapAdmin(ctx, boot.Email, boot.Password, boot.FullName)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.Infow("bootstrap admin created", "email", boot.Email)
		}
	}

	routerCfg := v1.RouterConfig{
		Logger:            log,
		JWTValidator:      services.JWT,
		AuthService:       services.Auth,
		ProjectService:    services.Projects,
		EmployeeService:   services.Employees,
		AttendanceService: services.Attendance,
		MaterialService:   services.Materials,
		Audit:             services.Audit,
		Idempotency:       postgres.NewIdempotencyStore(rt.TxManager, 24*time.Hour),
		Database:          rt.Pool,
		Location:          rt.Location,
		Version:           version,
		Debug:             cfg.Log.Development,
	}
	if services.Cache != nil {
		routerCfg.CachePing = services.Cache.Ping
	}
	if registry != nil {
		routerCfg.HTTPMetrics = metrics.NewHTTP(registry)
		routerCfg.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      v1.NewRouter(routerCfg),
		ReadTimeout:  cfg.App.ReadTimeout,
		WriteTimeout: cfg.App.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server listening", "port", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case sig := <-quit:
		log.Infow("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
