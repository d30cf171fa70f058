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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/triage-ai-platform/internal/api/router"
	"github.com/wolfman30/triage-ai-platform/internal/app/bootstrap"
	"github.com/wolfman30/triage-ai-platform/internal/compliance"
	appconfig "github.com/wolfman30/triage-ai-platform/internal/config"
	"github.com/wolfman30/triage-ai-platform/internal/consultation"
	httpmiddleware "github.com/wolfman30/triage-ai-platform/internal/http/middleware"
	"github.com/wolfman30/triage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/triage-ai-platform/internal/triage"
	"github.com/wolfman30/triage-ai-platform/internal/voiceagent"
	"github.com/wolfman30/triage-ai-platform/pkg/logging"
)

func main() {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg, err := appconfig.Init()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting triage-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, &cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.SummaryTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// app owns the HTTP handler and everything that must be released on exit.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// storage is the persistence wiring chosen for this process.
type storage struct {
	consultations consultation.Store
	profiles      consultation.ProfileDirectory
	audit         *compliance.AuditService
	consent       *compliance.ConsentStore
	health        map[string]router.HealthCheck
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}

	store, err := setupStorage(ctx, cfg, logger, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	var metricsHandler http.Handler
	var triageMetrics *metrics.TriageMetrics
	if cfg.MetricsEnabled {
		metricsHandler, triageMetrics = setupMetrics()
	}

	var awsCfg *aws.Config
	if needsAWS(cfg) {
		loaded, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}

	model, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(func() { _ = model.Close() })

	opts := triage.Options{
		Metrics:          triageMetrics,
		Logger:           logger.WithComponent("triage"),
		ReconcileTimeout: cfg.ReconcileTimeout,
	}
	if store.audit != nil {
		opts.Auditor = store.audit
	}
	sender := bootstrap.BuildEmailSender(cfg, awsCfg, logger)
	if alerter := bootstrap.BuildUrgentAlerter(cfg, sender, triageMetrics, logger); alerter != nil {
		opts.Notifier = alerter
	}
	if redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true); redisClient != nil {
		a.onClose(func() { _ = redisClient.Close() })
		opts.Idempotency = triage.NewRedisIdempotencyStore(redisClient, cfg.IdempotencyTTL)
		store.health["redis"] = redisHealth(redisClient)
	}

	orchestrator := triage.NewOrchestrator(store.consultations, bootstrap.BuildSummarizer(cfg, model, triageMetrics, logger), opts)

	var statusAuditor consultation.StatusAuditor
	if store.audit != nil {
		statusAuditor = store.audit
	}

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	a.onClose(limiter.Stop)

	voiceClient := voiceagent.NewClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsAgentID, cfg.ElevenLabsBaseURL)
	if !voiceClient.Configured() {
		logger.Warn("voice agent not configured; signed-url endpoint will return 503")
	}

	routerCfg := &router.Config{
		Logger:              logger,
		AuthSecret:          cfg.AuthJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimiter:         limiter,
		MetricsHandler:      metricsHandler,
		HealthChecks:        store.health,
		TriageHandler:       triage.NewHandler(orchestrator, store.profiles, logger.WithComponent("triage")),
		ConsultationHandler: consultation.NewHandler(store.consultations, store.profiles, statusAuditor, triageMetrics, logger.WithComponent("consultation")),
		VoiceHandler:        voiceagent.NewHandler(voiceClient, logger.WithComponent("voice")),
	}
	if store.consent != nil {
		routerCfg.ConsentHandler = compliance.NewConsentHandler(store.consent, store.audit, logger.WithComponent("consent"))
		routerCfg.ConsentChecker = store.consent
		routerCfg.AuditHandler = compliance.NewAuditHandler(store.audit, logger.WithComponent("audit"))
	}

	a.handler = router.New(routerCfg)
	return a, nil
}

// setupStorage connects Postgres. Without DATABASE_URL only development runs
// are allowed, backed by in-memory stores and without the consent gate.
func setupStorage(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, a *app) (*storage, error) {
	pool, err := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		if !cfg.IsDevelopment() {
			return nil, errors.New("DATABASE_URL is required outside development")
		}
		logger.Warn("DATABASE_URL not set; using in-memory consultations without consent or audit")
		return &storage{
			consultations: consultation.NewMemoryStore(),
			profiles:      devProfiles{},
			health:        map[string]router.HealthCheck{},
		}, nil
	}
	a.onClose(pool.Close)

	servicePool := pool
	if cfg.DatabaseServiceURL != "" && cfg.DatabaseServiceURL != cfg.DatabaseURL {
		servicePool, err = bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseServiceURL, logger)
		if err != nil {
			return nil, fmt.Errorf("service connection: %w", err)
		}
		a.onClose(servicePool.Close)
	}

	sqlDB := bootstrap.SQLFromPool(servicePool)
	a.onClose(func() { _ = sqlDB.Close() })

	return &storage{
		consultations: consultation.NewPostgresStore(pool, servicePool),
		profiles:      consultation.NewPostgresProfiles(pool),
		audit:         compliance.NewAuditService(sqlDB),
		consent:       compliance.NewConsentStore(sqlDB),
		health:        map[string]router.HealthCheck{"postgres": postgresHealth(pool)},
	}, nil
}

func setupMetrics() (http.Handler, *metrics.TriageMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewTriageMetrics(reg)
}

func needsAWS(cfg *appconfig.Config) bool {
	return (cfg.LLMProvider == appconfig.ProviderBedrock && cfg.BedrockModelID != "") || cfg.EmailProvider == "ses"
}

func postgresHealth(pool *pgxpool.Pool) router.HealthCheck {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func redisHealth(client *redis.Client) router.HealthCheck {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// devProfiles treats the identity user id as the profile id. Local runs only.
type devProfiles struct{}

func (devProfiles) PatientIDForUser(_ context.Context, userID string) (string, error) {
	return userID, nil
}

func (devProfiles) DoctorIDForUser(_ context.Context, userID string) (string, error) {
	return userID, nil
}
