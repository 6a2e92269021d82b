// Package main is the entry point for the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/snapquest/api/internal/api"
	"github.com/snapquest/api/internal/audit"
	"github.com/snapquest/api/internal/auth"
	"github.com/snapquest/api/internal/config"
	"github.com/snapquest/api/internal/db"
	"github.com/snapquest/api/internal/health"
	"github.com/snapquest/api/internal/idempotency"
	"github.com/snapquest/api/internal/image"
	"github.com/snapquest/api/internal/judge"
	"github.com/snapquest/api/internal/middleware"
	"github.com/snapquest/api/internal/specialist"
	"github.com/snapquest/api/internal/storage"
	"github.com/snapquest/api/internal/submission"
	"github.com/snapquest/api/internal/tracing"
	"github.com/snapquest/api/internal/upload"
	"github.com/snapquest/api/internal/verify"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to YAML config file (env vars take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("SnapQuest API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	// Tracing is opt-in via environment; the rest of config lives in the
	// config package but tracing stays deploy-specific.
	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "snapquest-api",
		Enabled:      os.Getenv("TRACING_ENABLED") == "true",
		Environment:  cfg.Env,
		ExporterType: os.Getenv("TRACING_EXPORTER"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		SamplingRate: 0.1,
		InsecureMode: cfg.Env == "development",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := conn.PingContext(pingCtx); err != nil {
		pingCancel()
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	pingCancel()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
	}

	// Metrics registry. Every subsystem registers its collectors here and
	// promhttp serves them on /metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	verifyMetrics := verify.NewMetrics()
	if err := verifyMetrics.Register(registry); err != nil {
		logger.Error("failed to register verification metrics", "error", err)
		os.Exit(1)
	}
	specialistMetrics := specialist.NewMetrics()
	if err := specialistMetrics.Register(registry); err != nil {
		logger.Error("failed to register specialist metrics", "error", err)
		os.Exit(1)
	}

	// Repositories.
	submissionRepo := submission.NewPostgresRepository(conn)
	socialRepo := submission.NewPostgresSocialRepository(conn)
	outcomeRepo := verify.NewPostgresOutcomeRepository(conn)
	auditRepo := audit.NewPostgresRepository(conn)

	// Object storage is optional; without it rejected submissions keep
	// their photos and the pipeline runs without image bytes.
	var store *storage.Service
	var uploads *upload.Service
	if cfg.R2BucketName != "" {
		store, err = storage.NewService(storage.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			Logger:          logger,
		})
		if err != nil {
			logger.Error("failed to initialize storage", "error", err)
			os.Exit(1)
		}

		uploads, err = upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to initialize upload service", "error", err)
			os.Exit(1)
		}
	}

	lifecycleCfg := submission.ControllerConfig{
		Submissions: submissionRepo,
		Social:      socialRepo,
		Outcomes:    outcomeRepo,
		Audit:       auditRepo,
		Logger:      logger,
	}
	if store != nil {
		lifecycleCfg.Storage = store
		renderer, err := image.NewRenderer(store, image.DefaultDisplayConfig(), logger)
		if err != nil {
			logger.Error("failed to initialize display renderer", "error", err)
			os.Exit(1)
		}
		lifecycleCfg.Display = renderer
	}
	controller, err := submission.NewController(lifecycleCfg)
	if err != nil {
		logger.Error("failed to initialize lifecycle controller", "error", err)
		os.Exit(1)
	}

	// The vision judge is optional; without an API key the pipeline runs
	// heuristic-only and holds everything for manual review.
	var judgeClient *judge.Client
	if cfg.GeminiAPIKey != "" {
		judgeClient, err = judge.NewClient(judge.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			Timeout: time.Duration(cfg.JudgeTimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Error("failed to initialize judge client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no judge API key configured, running heuristic-only")
	}

	var weights *verify.Weights
	if cfg.WeightsFilePath != "" {
		weights, err = verify.LoadCalibration(cfg.WeightsFilePath)
		if err != nil {
			logger.Error("failed to load calibration weights", "path", cfg.WeightsFilePath, "error", err)
			os.Exit(1)
		}
	}

	verifyCfg := verify.ServiceConfig{
		Outcomes:          outcomeRepo,
		Audit:             auditRepo,
		Lifecycle:         controller,
		Weights:           weights,
		FenceRadiusMeters: cfg.GeofenceRadiusMeters,
		JudgeTimeout:      time.Duration(cfg.JudgeTimeoutSeconds) * time.Second,
		Logger:            logger,
		Metrics:           verifyMetrics,
	}
	if store != nil {
		verifyCfg.Fetcher = store
	}
	if judgeClient != nil {
		verifyCfg.Judge = judgeClient
	}
	verifier, err := verify.NewService(verifyCfg)
	if err != nil {
		logger.Error("failed to initialize verification service", "error", err)
		os.Exit(1)
	}

	specialistCfg := specialist.ServiceConfig{
		Outcomes:    outcomeRepo,
		Submissions: submissionRepo,
		Timeout:     time.Duration(cfg.JudgeTimeoutSeconds) * time.Second,
		Logger:      logger,
		Metrics:     specialistMetrics,
	}
	if store != nil {
		specialistCfg.Fetcher = store
	}
	if judgeClient != nil {
		specialistCfg.Analyzer = judgeClient
	}
	if cfg.DeepfakeAPIURL != "" {
		deepfake, err := specialist.NewDeepfakeClient(specialist.DeepfakeClientConfig{
			APIKey:   cfg.DeepfakeAPIKey,
			Endpoint: cfg.DeepfakeAPIURL,
		})
		if err != nil {
			logger.Error("failed to initialize deepfake client", "error", err)
			os.Exit(1)
		}
		specialistCfg.Deepfake = deepfake
	}
	specialistSvc, err := specialist.NewService(specialistCfg)
	if err != nil {
		logger.Error("failed to initialize specialist service", "error", err)
		os.Exit(1)
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	// Judge-backed routes are rate limited per user, backed by Redis when
	// available so limits hold across replicas.
	var limitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient)
	}
	verifyLimiter := middleware.RateLimiter(limitStore, middleware.DefaultVerifyLimit(), middleware.UserKeyFunc(), httpMetrics)

	healthCfg := api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(conn),
		MetricsEnabled: true,
	}
	if redisClient != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(redisClient)
	}

	routerCfg := api.RouterConfig{
		Submissions:    api.NewSubmissionHandlers(submissionRepo, socialRepo),
		Verify:         api.NewVerifyHandlers(verifier, submissionRepo, outcomeRepo),
		Override:       api.NewOverrideHandlers(controller),
		Audit:          api.NewAuditHandlers(auditRepo),
		Specialist:     api.NewSpecialistHandlers(specialistSvc),
		Health:         api.NewHealthHandlers(healthCfg),
		Validator:      jwtService,
		VerifyLimiter:  verifyLimiter,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	if uploads != nil {
		routerCfg.Uploads = api.NewUploadHandlers(uploads)
	}
	router := api.NewRouter(routerCfg)

	// Submission creation is the one retried-by-clients write, so it gets
	// idempotency key support.
	idempotencyRepo := idempotency.NewInMemoryRepository()
	cleanupStop := make(chan struct{})
	go idempotency.RunPeriodicCleanup(idempotencyRepo, time.Hour, 24*time.Hour, cleanupStop)

	handler := middleware.IdempotencyMiddleware(idempotencyRepo, map[string]bool{
		"/submissions": true,
	})(router)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		handler = middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   strings.Split(origins, ","),
			AllowCredentials: true,
			MaxAge:           3600,
		})(handler)
	}

	if tracer.IsEnabled() {
		handler = middleware.Tracing("snapquest-api")(handler)
	}

	if cfg.Env == "development" {
		handler = middleware.Profiling(middleware.ProfilingConfig{
			Enabled:     true,
			Environment: cfg.Env,
		})(handler)
	}

	// Apply middleware: RequestID -> Logging -> HTTPMetrics
	handler = middleware.RequestID(middleware.Logging(logger)(middleware.HTTPMetrics(httpMetrics)(handler)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}
