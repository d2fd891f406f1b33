// Package main is the entrypoint for the MyAPI server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Iurilui616/APICHARLENO/internal/audit"
	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/cache"
	"github.com/Iurilui616/APICHARLENO/internal/config"
	"github.com/Iurilui616/APICHARLENO/internal/handler"
	"github.com/Iurilui616/APICHARLENO/internal/metrics"
	"github.com/Iurilui616/APICHARLENO/internal/middleware"
	"github.com/Iurilui616/APICHARLENO/internal/repository"
	"github.com/Iurilui616/APICHARLENO/internal/server"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize auth and instrumentation
	issuer := auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL)
	recorder := metrics.NewInMemory()

	// Audit pipeline: publisher feeds the Redis stream, worker drains it
	// into Postgres.
	var events handler.EventSink
	var worker *audit.Worker
	if cfg.AuditEnabled {
		events = audit.NewPublisher(cacheClient.Client(), logger, recorder)
		consumerID := "api-" + uuid.NewString()[:8]
		worker = audit.NewWorker(cacheClient.Client(), repo, logger, consumerID, recorder)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("audit worker exited", slog.String("error", err.Error()))
			}
		}()
	}

	// Initialize handlers
	h := handler.New(handler.Config{
		Logger:    logger,
		Users:     repo,
		Items:     repo,
		Issuer:    issuer,
		Events:    events,
		Metrics:   recorder,
		Snapshots: recorder,
		Audits:    repo,
		StaticKey: cfg.APIKey,
	})
	healthHandler := handler.NewHealthHandler(logger, handler.HealthDeps{
		Postgres: repo,
		Redis:    cacheClient,
	})

	// Setup router
	r := setupRouter(h, healthHandler, issuer, repo, cacheClient, events, recorder, cfg, logger)

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Workers registered first shut down last, after the listener drains.
	if worker != nil {
		srv.OnShutdown("audit-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"audit_enabled", cfg.AuditEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	issuer *auth.TokenIssuer,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	events handler.EventSink,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	// Public endpoints
	r.Get("/", h.Root)
	r.Get("/info", h.Info)
	r.Get("/health", healthHandler.Health)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:     logger,
		Cache:      cacheClient,
		APIEnabled: cfg.RateLimitAPIEnabled,
		IPEnabled:  cfg.RateLimitIPEnabled,
		IPRPS:      cfg.RateLimitIPRPS,
		IPBurst:    cfg.RateLimitIPBurst,
	}

	// Credential endpoints are IP rate limited to slow brute forcing
	r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/login", h.Login)
	r.With(middleware.RateLimitIP(rateLimitCfg)).Post("/register", h.Register)

	// JWT-protected endpoints
	jwtCfg := middleware.JWTAuthConfig{
		Logger: logger,
		Issuer: issuer,
	}
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtCfg))
		r.Get("/protected", h.Protected)
		r.Get("/me", h.Me)
		r.Get("/profile", h.Profile)
	})

	// API-key-protected endpoints
	apiKeyCfg := middleware.APIKeyAuthConfig{
		Logger:    logger,
		Keys:      repo,
		Cache:     cacheClient,
		StaticKey: cfg.APIKey,
		Events:    events,
		Metrics:   recorder,
	}
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(apiKeyCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		r.With(middleware.RequireRead()).Get("/protected", h.APIProtected)
		r.With(middleware.RequireRead()).Get("/data", h.ListData)
		r.With(middleware.RequireWrite()).Post("/data", h.CreateData)
		r.With(middleware.RequireRead()).Get("/stats", h.Stats)
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
