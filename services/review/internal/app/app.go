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
	"github.com/redis/go-redis/v9"

	"github.com/moroccoguide/platform/pkg/auth"
	"github.com/moroccoguide/platform/pkg/database"
	"github.com/moroccoguide/platform/pkg/health"
	pkgkafka "github.com/moroccoguide/platform/pkg/kafka"
	"github.com/moroccoguide/platform/pkg/middleware"
	"github.com/moroccoguide/platform/pkg/tracing"
	"github.com/moroccoguide/platform/services/review/internal/config"
	"github.com/moroccoguide/platform/services/review/internal/event"
	handler "github.com/moroccoguide/platform/services/review/internal/handler/http"
	"github.com/moroccoguide/platform/services/review/internal/idempotency"
	"github.com/moroccoguide/platform/services/review/internal/repository"
	"github.com/moroccoguide/platform/services/review/internal/repository/breaker"
	"github.com/moroccoguide/platform/services/review/internal/repository/memory"
	"github.com/moroccoguide/platform/services/review/internal/repository/postgres"
	"github.com/moroccoguide/platform/services/review/internal/service"
	"github.com/moroccoguide/platform/services/review/migrations"
)

const (
	serviceName    = "review"
	serviceVersion = "0.1.0"

	// Only used when minting tokens in tests and tooling; validation ignores it.
	accessTokenExpiry = 15 * time.Minute
)

// App wires together all dependencies and runs the review service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	publisher      pkgkafka.Publisher
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	repo, err := a.initStore(ctx, healthHandler)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	idem := a.initIdempotency(ctx, healthHandler)

	// Initialize Kafka producer.
	if cfg.KafkaEnabled {
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
		a.publisher = producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		a.publisher = pkgkafka.NoopPublisher{}
		logger.Info("kafka disabled, review events are dropped")
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, accessTokenExpiry)
	eventProducer := event.NewProducer(a.publisher, logger)
	reviewService := service.NewReviewService(repo, eventProducer, logger)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	a.stopBackground = stopBackground

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(bgCtx, handler.RouterConfig{
		ReviewService:  reviewService,
		Idempotency:    idem,
		TokenValidator: jwtManager.Validator(),
		Health:         healthHandler,
		Logger:         logger,
		CORS:           corsCfg,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		SubmitRPS:      cfg.SubmitRPS,
		SubmitBurst:    cfg.SubmitBurst,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// initStore opens the configured review store and registers its health checks.
func (a *App) initStore(ctx context.Context, healthHandler *health.Handler) (repository.ReviewRepository, error) {
	cfg, logger := a.cfg, a.logger

	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory review store, data is lost on restart")
		return memory.NewReviewRepository(), nil
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.PostgresConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)
	}

	breakerCfg := breaker.DefaultConfig("review-store")
	breakerCfg.FailureRatio = cfg.BreakerFailureRatio
	breakerCfg.MinRequests = cfg.BreakerMinRequests
	breakerCfg.Timeout = cfg.BreakerOpenTimeout
	guarded := breaker.New(postgres.NewReviewRepository(pool), breakerCfg, logger)

	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("store_breaker", guarded.Ping)

	return guarded, nil
}

// initIdempotency connects to Redis. Failure only disables Idempotency-Key
// replay; the service still starts.
func (a *App) initIdempotency(ctx context.Context, healthHandler *health.Handler) handler.IdempotencyStore {
	cfg, logger := a.cfg, a.logger
	if !cfg.IdempotencyEnabled {
		logger.Info("idempotency keys disabled")
		return nil
	}

	client, err := database.NewRedisClient(ctx, cfg.RedisConfig())
	if err != nil {
		logger.Warn("redis unavailable, idempotency keys disabled",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
		return nil
	}
	a.redis = client
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	store := idempotency.NewStore(client, cfg.IdempotencyTTL)
	healthHandler.RegisterNonCritical("redis", store.Ping)
	return store
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Background workers
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer, Redis client, PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Stop rate limiter cleanup.
	if a.stopBackground != nil {
		a.stopBackground()
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close clients.
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
