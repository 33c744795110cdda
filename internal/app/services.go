package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	corenumerator "sitetrack/internal/core/numerator"
	"sitetrack/internal/domain/attendance"
	"sitetrack/internal/domain/auth"
	"sitetrack/internal/domain/employees"
	"sitetrack/internal/domain/materials"
	"sitetrack/internal/domain/projects"
	"sitetrack/internal/infrastructure/cache"
	"sitetrack/internal/infrastructure/numerator"
	"sitetrack/internal/infrastructure/storage/postgres"
	"sitetrack/internal/infrastructure/storage/postgres/attendance_repo"
	"sitetrack/internal/infrastructure/storage/postgres/auth_repo"
	"sitetrack/internal/infrastructure/storage/postgres/catalog_repo"
	"sitetrack/internal/infrastructure/storage/postgres/material_repo"
	"sitetrack/pkg/metrics"
)

// Services is the wired domain layer.
type Services struct {
	Auth       *auth.Service
	JWT        *auth.JWTService
	Projects   *projects.Service
	Employees  *employees.Service
	Attendance *attendance.Service
	Materials  *materials.Service
	Audit      *postgres.AuditService

	// Cache is nil when Redis is not configured
	Cache *cache.Client
}

// Close releases the Redis client.
func (s *Services) Close() {
	if s.Cache != nil {
		_ = s.Cache.Close()
	}
}

// NewServices builds repositories and services. reg receives consumption
// metrics; nil leaves them unregistered.
func NewServices(ctx context.Context, rt *Runtime, reg prometheus.Registerer) (*Services, error) {
	cfg := rt.Config
	txm := rt.TxManager

	audit, err := postgres.NewAuditService(txm)
	if err != nil {
		return nil, err
	}

	projectService := projects.NewService(catalog_repo.NewProjectRepo(txm), txm)
	employeeService := employees.NewService(catalog_repo.NewEmployeeRepo(txm), projectService, txm)
	if cfg.Numbering.AutoCode {
		strategy := corenumerator.StrategyStrict
		if cfg.Numbering.Strategy == "cached" {
			strategy = corenumerator.StrategyCached
		}
		codes := numerator.New(txm, strategy, cfg.Numbering.RangeSize)
		projectService.SetCodeGenerator(codes)
		employeeService.SetCodeGenerator(codes)
	}
	attendanceService := attendance.NewService(attendance_repo.NewRepo(txm), employeeService, projectService, rt.Location)

	eligibility, err := materials.NewEligibility(cfg.Materials.ConsumePolicy, cfg.Materials.ConsumeRule)
	if err != nil {
		return nil, fmt.Errorf("materials policy: %w", err)
	}
	materialService := materials.NewService(material_repo.NewBatchRepo(txm), projectService, txm, materials.ServiceConfig{
		Eligibility: eligibility,
		Location:    rt.Location,
	})
	materialService.SetAuditor(audit)
	if cfg.Events.Enabled {
		materialService.SetEventPublisher(postgres.NewOutboxPublisher(txm))
	}
	if reg != nil {
		materialService.SetObserver(metrics.NewInventory(reg))
	}

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	if cfg.Auth.JWTIssuer != "" {
		jwtConfig.Issuer = cfg.Auth.JWTIssuer
	}
	if cfg.Auth.AccessTokenTTL > 0 {
		jwtConfig.AccessTokenTTL = cfg.Auth.AccessTokenTTL
	}
	jwtService := auth.NewJWTService(jwtConfig)

	authConfig := auth.DefaultServiceConfig()
	if cfg.Auth.MaxLoginAttempts > 0 {
		authConfig.MaxLoginAttempts = cfg.Auth.MaxLoginAttempts
	}
	if cfg.Auth.LockDuration > 0 {
		authConfig.LockDuration = cfg.Auth.LockDuration
	}
	if cfg.Auth.RefreshTokenTTL > 0 {
		authConfig.RefreshTokenTTL = cfg.Auth.RefreshTokenTTL
	}
	authConfig.OTP = auth.OTPConfig{
		Enabled:     cfg.Auth.OTP.Enabled,
		Length:      cfg.Auth.OTP.Length,
		TTL:         cfg.Auth.OTP.TTL,
		MaxAttempts: cfg.Auth.OTP.MaxAttempts,
	}
	authService := auth.NewService(auth_repo.NewUserRepo(txm), auth_repo.NewTokenRepo(txm), txm, jwtService, authConfig)

	svc := &Services{
		Auth:       authService,
		JWT:        jwtService,
		Projects:   projectService,
		Employees:  employeeService,
		Attendance: attendanceService,
		Materials:  materialService,
		Audit:      audit,
	}

	if cfg.Redis.Enabled() {
		client, err := cache.New(ctx, cache.Config{
			URL:      cfg.Redis.URL,
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		svc.Cache = client
	}

	if cfg.Auth.OTP.Enabled {
		codes, err := auth.NewCodeGenerator(cfg.Auth.OTP.Generator, cfg.Auth.OTP.FixedCode)
		if err != nil {
			svc.Close()
			return nil, err
		}
		var store auth.OTPStore = auth.NewMemoryOTPStore()
		if svc.Cache != nil {
			store = cache.NewOTPStore(svc.Cache)
		}
		authService.SetOTP(store, codes, auth.LogSender{})
		rt.Log.Infow("one-time login codes enabled", "generator", cfg.Auth.OTP.Generator, "redis", svc.Cache != nil)
	}

	return svc, nil
}
