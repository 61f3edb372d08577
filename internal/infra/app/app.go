package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/toolhub/admin-gate/internal/core/port"
	"github.com/toolhub/admin-gate/internal/infra/config"
	"github.com/toolhub/admin-gate/internal/infra/database"
	kafkainfra "github.com/toolhub/admin-gate/internal/infra/kafka"
	"github.com/toolhub/admin-gate/internal/infra/logger"
	"github.com/toolhub/admin-gate/internal/infra/notify"
	redisinfra "github.com/toolhub/admin-gate/internal/infra/redis"
	"github.com/toolhub/admin-gate/internal/infra/security"
	"github.com/toolhub/admin-gate/internal/infra/telemetry"
	postgresrepo "github.com/toolhub/admin-gate/internal/repository/postgres"
	redisrepo "github.com/toolhub/admin-gate/internal/repository/redis"
	"github.com/toolhub/admin-gate/internal/transport/http/middleware"
	"github.com/toolhub/admin-gate/internal/transport/http/routes"
	"github.com/toolhub/admin-gate/internal/usecase"
)

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	redis   *redisinfra.Client
	tracing *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tracing, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	secrets, err := security.NewStaticSecretStore(
		cfg.Admin.Identity,
		cfg.Admin.Secret,
		cfg.Admin.SecurityCode,
		cfg.Admin.OTPSalt,
	)
	if err != nil {
		return nil, fmt.Errorf("init secret store: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	verificationStore := redisrepo.NewVerificationRepository(redisClient.Client(), cfg.Redis.VerificationPrefix)
	adminSessionStore := redisrepo.NewAdminSessionRepository(redisClient.Client(), cfg.Redis.AdminSessionPrefix)
	auditRepo := postgresrepo.NewAuditRepository(pool)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var deliverer port.CodeDeliverer
	if cfg.Verification.DevDeliveryLog {
		log.Warn("one-time codes are routed to the log, do not use in production")
		deliverer = notify.NewLoggingDeliverer(log)
	} else {
		smtpDeliverer, err := notify.NewSMTPDeliverer(cfg.SMTP)
		if err != nil {
			_ = redisClient.Close()
			pool.Close()
			return nil, fmt.Errorf("init smtp deliverer: %w", err)
		}
		deliverer = smtpDeliverer
	}

	metrics, err := telemetry.NewGateMetrics(nil)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	sessionService, err := usecase.NewAdminSessionService(
		cfg.AdminSession.SigningKey,
		cfg.App.Name,
		cfg.AdminSession.TTL,
		adminSessionStore,
		eventPublisher,
		log,
	)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init admin session service: %w", err)
	}
	sessionService.WithMetrics(metrics)

	verificationService, err := usecase.NewVerificationService(
		secrets,
		verificationStore,
		deliverer,
		sessionService,
		eventPublisher,
		auditRepo,
		log,
	)
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init verification service: %w", err)
	}
	verificationService.WithStepTTL(cfg.Verification.StepTTL)
	verificationService.WithCodeLength(cfg.Verification.CodeLength)
	verificationService.WithResendCooldown(cfg.Verification.ResendCooldown)
	verificationService.WithDeliveryTimeout(cfg.Verification.DeliveryTimeout)
	verificationService.WithMetrics(metrics)

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: "gate:rate-limit",
		TTL:       rateLimitWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:       cfg,
		Logger:       log,
		RateLimiter:  rateLimiter,
		HTTPMetrics:  httpMetrics,
		Verification: verificationService,
		Sessions:     sessionService,
		Audit:        auditRepo,
		Database:     pool,
		Cache:        redisClient,
	})

	return &Application{
		cfg:     cfg,
		engine:  engine,
		logger:  log,
		pool:    pool,
		redis:   redisClient,
		tracing: tracing,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("shutdown tracer provider", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting admin gate API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
