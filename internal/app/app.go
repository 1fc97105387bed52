package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/lifedash-auth/internal/auth"
	"github.com/utafrali/lifedash-auth/internal/config"
	"github.com/utafrali/lifedash-auth/internal/event"
	handler "github.com/utafrali/lifedash-auth/internal/handler/http"
	"github.com/utafrali/lifedash-auth/internal/ratelimit"
	"github.com/utafrali/lifedash-auth/internal/repository"
	"github.com/utafrali/lifedash-auth/internal/repository/memory"
	"github.com/utafrali/lifedash-auth/internal/repository/postgres"
	"github.com/utafrali/lifedash-auth/internal/service"
	"github.com/utafrali/lifedash-auth/migrations"
	"github.com/utafrali/lifedash-auth/pkg/database"
	"github.com/utafrali/lifedash-auth/pkg/health"
	pkgkafka "github.com/utafrali/lifedash-auth/pkg/kafka"
	"github.com/utafrali/lifedash-auth/pkg/tracing"
)

const serviceName = "auth"

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	memLimiter     *ratelimit.MemoryLimiter
	router         http.Handler
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
// Partially built resources are released when a later step fails.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     cfg.OTelSampleRate,
		Insecure:       cfg.OTelInsecure,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	healthHandler := health.NewHandler()

	// Credential store.
	var users repository.UserRepository
	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("using in-memory credential store; accounts are lost on restart")
		users = memory.NewUserRepository()
	default:
		pgCfg := cfg.Postgres()
		a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)
		if err = database.RegisterPoolMetrics(registry, a.pool, serviceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}

		if cfg.RunMigrationsOnStart {
			if err = database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("database migrations completed")
		}

		tracer := database.NewQueryTracer(cfg.SlowQueryThreshold(), logger)
		users = postgres.NewUserRepository(a.pool, tracer)
		healthHandler.RegisterCritical("postgres", a.pool.Ping)
	}

	// Rate limiting.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		if cfg.RedisEnabled {
			a.redis, err = database.NewRedisClient(ctx, cfg.Redis())
			if err != nil {
				return nil, fmt.Errorf("connect to redis: %w", err)
			}
			logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
			limiter = ratelimit.NewRedisLimiter(a.redis, "ratelimit:auth", cfg.RateLimitBurst, cfg.RateLimitWindow)
			healthHandler.RegisterOptional("redis", func(ctx context.Context) error {
				return a.redis.Ping(ctx).Err()
			})
		} else {
			a.memLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)
			limiter = a.memLimiter
		}
	}

	// Auth events.
	var publisher event.Publisher = event.NopPublisher{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = event.NewKafkaPublisher(a.producer, logger)
		healthHandler.RegisterOptional("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	hasher, err := auth.NewPasswordHasher(auth.DefaultArgon2Params())
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry, cfg.JWTIssuer)
	metrics := service.NewMetrics(registry)
	userService := service.NewUserService(users, hasher, jwtManager, publisher, metrics, logger, service.Options{
		AdminEmails: cfg.AdminEmails,
		AutoLogin:   cfg.AutoLoginOnRegister,
	})

	a.router = handler.NewRouter(handler.Dependencies{
		Service:  userService,
		Health:   healthHandler,
		Limiter:  limiter,
		Metrics:  metrics,
		Registry: registry,
		Logger:   logger,
	}, handler.RouterConfig{
		Environment:          cfg.Environment,
		CORSAllowedOrigins:   cfg.CORSAllowedOrigins,
		TrustProxyHeaders:    cfg.TrustProxyHeaders,
		UserListRequireAdmin: cfg.UserListRequireAdmin,
		PprofEnabled:         cfg.PprofEnabled,
		PprofAllowedCIDRs:    cfg.PprofAllowedCIDRs,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           a.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	if a.memLimiter != nil {
		go a.memLimiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.release()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans of drained requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error
	if a.httpServer != nil {
		httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer httpCancel()
		if err := a.httpServer.Shutdown(httpCtx); err != nil {
			a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.release(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// release closes everything except the HTTP server.
func (a *App) release() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errors.Join(errs...)
}
