package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/qna-gateway/config"
	"github.com/upb/qna-gateway/internal/observability"
	"github.com/upb/qna-gateway/middleware"
	"github.com/upb/qna-gateway/repositories"
	"github.com/upb/qna-gateway/repositories/postgres"
	"github.com/upb/qna-gateway/services/audit"
	"github.com/upb/qna-gateway/services/providers"
	"github.com/upb/qna-gateway/services/providers/gemini"
	"github.com/upb/qna-gateway/services/providers/groq"
	"github.com/upb/qna-gateway/services/qna"
	"github.com/upb/qna-gateway/services/routing"
)

// auditStopTimeout bounds how long Close waits for pending ask records
const auditStopTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB
	Redis  *redis.Client

	// Metrics
	MetricsRegistry *prometheus.Registry
	Metrics         *observability.Metrics

	// Routing core
	ProviderRegistry *providers.Registry
	Cooldown         routing.CooldownTracker
	Router           *routing.Router

	// Audit trail, nil when no database is configured
	AskRecords repositories.AskRecordRepository
	Audit      *audit.Service

	// Services
	QnA *qna.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		deps.closeQuietly()
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initCooldown(ctx, cfg); err != nil {
		deps.closeQuietly()
		return nil, fmt.Errorf("failed to initialize cooldown tracker: %w", err)
	}

	deps.Router = routing.NewRouter(deps.ProviderRegistry, deps.Cooldown, cfg.RouterConfig(), logger, deps.Metrics)

	if err := deps.initAudit(); err != nil {
		deps.closeQuietly()
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	deps.initServices()
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Strings("order", providerStrings(routing.Resolve(deps.Router.Config()))),
		zap.Bool("audit", deps.Audit != nil),
		zap.Bool("shared_cooldown", deps.Redis != nil))
	return deps, nil
}

// initMetrics creates a private registry so tests can build several Dependencies
func (d *Dependencies) initMetrics() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.MetricsRegistry = reg
	d.Metrics = observability.NewMetrics(reg)
}

// initDatabase opens PostgreSQL and bootstraps the audit schema when a DSN is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Info("DATABASE_URL not set, audit trail disabled")
		return nil
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		d.DB = nil
		return err
	}

	d.Logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))
	return nil
}

// initProviders builds the adapter registry, wrapping the fault-injection target when set
func (d *Dependencies) initProviders(cfg *config.Config) error {
	builder := providers.NewRegistryBuilder().
		WithProviderBuilder(providers.Groq, groq.Build).
		WithProviderBuilder(providers.Gemini, gemini.Build)

	if cfg.Router.ForceFail != "" {
		target, err := providers.ParseProviderID(cfg.Router.ForceFail)
		if err != nil {
			return err
		}
		builder.WithWrapper(providers.FaultInjectionFor(target))
		d.Logger.Warn("fault injection armed", zap.String("provider", string(target)))
	}

	registry, err := builder.Build(cfg.ProviderConfigs())
	if err != nil {
		return err
	}

	credentialed := 0
	for _, id := range providers.Known {
		p, err := registry.GetProvider(id)
		if err != nil {
			continue
		}
		if p.Config().HasCredential() {
			credentialed++
		} else {
			d.Logger.Warn("provider has no API key", zap.String("provider", string(id)))
		}
	}
	if credentialed == 0 {
		d.Logger.Warn("no answer provider has credentials configured")
	}

	d.ProviderRegistry = registry
	return nil
}

// initCooldown shares cooldowns through redis when REDIS_URL is set
func (d *Dependencies) initCooldown(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.URL == "" {
		d.Cooldown = routing.NewMemoryCooldown()
		return nil
	}

	rdb, err := routing.ConnectRedis(ctx, cfg.Redis.URL, cfg.Redis.Password)
	if err != nil {
		return err
	}
	d.Redis = rdb
	d.Cooldown = routing.NewRedisCooldown(rdb, d.Logger)
	d.Logger.Info("redis cooldown tracker connected")
	return nil
}

// initAudit starts the asynchronous ask record writer
func (d *Dependencies) initAudit() error {
	if d.DB == nil {
		return nil
	}

	d.AskRecords = postgres.NewAskRecordRepository(d.DB, d.Logger)
	svc := audit.NewService(d.AskRecords, d.Logger, audit.DefaultConfig())
	if err := svc.Start(); err != nil {
		return err
	}
	d.Audit = svc
	return nil
}

func (d *Dependencies) initServices() {
	var recorder qna.Recorder
	if d.Audit != nil {
		recorder = d.Audit
	}
	d.QnA = qna.NewService(d.Router, recorder, d.Logger)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("API_JWT_SECRET not set, /api/v1 is unauthenticated")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token auth enabled")
}

// HealthChecker returns the database checker, or nil when the audit trail is disabled
func (d *Dependencies) HealthChecker() repositories.HealthChecker {
	if d.DB == nil {
		return nil
	}
	return d.DB
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	timeout := auditStopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		} else {
			d.Logger.Info("redis connection closed")
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// closeQuietly releases whatever was opened before a failed init step
func (d *Dependencies) closeQuietly() {
	if d.Audit != nil {
		_ = d.Audit.Stop(auditStopTimeout)
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

func providerStrings(ids []providers.ProviderID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
