// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/internal/cart"
	"github.com/palenque-digital/conversational-platform/internal/config"
	"github.com/palenque-digital/conversational-platform/internal/gateway"
	"github.com/palenque-digital/conversational-platform/internal/handler"
	"github.com/palenque-digital/conversational-platform/internal/intent"
	"github.com/palenque-digital/conversational-platform/internal/llm"
	"github.com/palenque-digital/conversational-platform/internal/middleware"
	"github.com/palenque-digital/conversational-platform/internal/notify"
	"github.com/palenque-digital/conversational-platform/internal/orchestrator"
	"github.com/palenque-digital/conversational-platform/internal/prompt"
	"github.com/palenque-digital/conversational-platform/internal/store"
	"github.com/palenque-digital/conversational-platform/pkg/logger"
	"github.com/palenque-digital/conversational-platform/pkg/tracing"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")
	ctx := context.Background()

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "conversational-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Storage: Postgres in any real deployment, in-memory for local runs
	// without a DATABASE_URL.
	var (
		st store.Store
		db *store.Postgres
	)
	if cfg.DatabaseURL != "" {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			log.Error("database migration failed", zap.Error(err))
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to create database pool", zap.Error(err))
			os.Exit(1)
		}
		defer pool.Close()
		db = store.NewPostgres(pool)
		st = db
	} else {
		log.Warn("no DATABASE_URL configured, using in-memory store")
		st = store.NewMemory()
	}

	// Webhook fast-path dedupe is optional; the store is the correctness
	// layer either way.
	var tracker handler.Deduper
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("invalid REDIS_URL", zap.Error(err))
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		tracker = gateway.NewProcessedTracker(rdb, cfg.DedupeTTL, log)
	}

	var publisher *notify.Publisher
	if cfg.NATSURL != "" {
		publisher, err = notify.Connect(ctx, notify.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer publisher.Close()
	} else {
		log.Warn("no NATS_URL configured, operator notifications disabled")
	}

	llmClient, err := llm.NewClient(llm.Provider(cfg.DefaultLLM), llmAPIKey(cfg))
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	dispatcher := notify.NewDispatcher(cfg.BackgroundTaskTimeout, log)
	defer dispatcher.Wait()

	var notifier orchestrator.Notifier
	if publisher != nil {
		notifier = publisher
	}

	sender := gateway.NewSender(cfg.GatewayBaseURL, cfg.GatewayAPIKey, log)
	orch := orchestrator.New(
		st,
		intent.NewClassifier(llmClient, cfg.LLMModel, log),
		cart.NewAccumulator(st, log),
		llmClient,
		cfg.LLMModel,
		sender,
		notifier,
		log,
	)
	session := orchestrator.NewSession(
		llmClient,
		cfg.LLMModel,
		prompt.NewBuilder(prompt.DefaultConfig()),
		st,
		notifier,
		dispatcher,
		log,
	)

	var dbPinger handler.Pinger
	if db != nil {
		dbPinger = db
	}
	var busChecker handler.ConnChecker
	if publisher != nil {
		busChecker = publisher
	}
	healthHandler := handler.NewHealthHandler(dbPinger, busChecker)
	webhookHandler := handler.NewWebhookHandler(orch, tracker, st, log)
	widgetHandler := handler.NewWidgetHandler(session, cfg.LLMModel, log)
	operatorHandler := handler.NewOperatorHandler(st, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Gateway webhooks; the gateway authenticates with its API key, not JWT.
	r.Route("/webhooks/gateway", func(r chi.Router) {
		r.Post("/inbound", webhookHandler.Inbound)
		r.Post("/status", webhookHandler.Status)
	})

	// Public widget endpoint, rate limited per session.
	r.Route("/api/v1/widget", func(r chi.Router) {
		r.Use(middleware.WidgetRateLimit(cfg.WidgetRateRequests, cfg.WidgetRateWindow))
		r.Post("/chat", widgetHandler.Chat)
	})

	// Operator read API.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/conversations", operatorHandler.ListConversations)
		r.Get("/conversations/{id}/messages", operatorHandler.ConversationMessages)
		r.Get("/leads/{address}", operatorHandler.Lead)
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

func llmAPIKey(cfg *config.Config) string {
	if llm.Provider(cfg.DefaultLLM) == llm.ProviderOpenAI {
		return cfg.OpenAIAPIKey
	}
	return cfg.AnthropicAPIKey
}
