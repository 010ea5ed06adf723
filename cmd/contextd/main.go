package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/snipara/contextd/internal/config"
	dbRedis "github.com/snipara/contextd/internal/db/redis"
	"github.com/snipara/contextd/internal/domain"
	logpkg "github.com/snipara/contextd/internal/logger"
	"github.com/snipara/contextd/internal/metrics"
	ratelimitrepo "github.com/snipara/contextd/internal/repository/ratelimit"
	searchrepo "github.com/snipara/contextd/internal/repository/search"
	sectionrepo "github.com/snipara/contextd/internal/repository/section"
	"github.com/snipara/contextd/internal/tokens"
	chiTransport "github.com/snipara/contextd/internal/transport/chi"
	openaiEmb "github.com/snipara/contextd/internal/transport/openai"
	embeddinguc "github.com/snipara/contextd/internal/usecase/embedding"
	healthuc "github.com/snipara/contextd/internal/usecase/health"
	indexuc "github.com/snipara/contextd/internal/usecase/index"
	ratelimituc "github.com/snipara/contextd/internal/usecase/ratelimit"
	retrievaluc "github.com/snipara/contextd/internal/usecase/retrieval"
	semanticuc "github.com/snipara/contextd/internal/usecase/semantic"
	"github.com/snipara/contextd/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting contextd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()

	// Embedders. The large model serves every persisted vector and the
	// precomputed query path; its absence is fatal for readiness. The
	// small model serves only on-the-fly scoring; its absence degrades
	// that path to lexical-only.
	largeDoc := buildEmbedder(cfg.Embedding.Provider, cfg.Embedding.Large, "", logger)
	largeQuery := buildEmbedder(cfg.Embedding.Provider, cfg.Embedding.Large,
		cfg.Embedding.Large.QueryInstruction, logger)

	startupCtx, cancelStartup := context.WithTimeout(ctx, 15*time.Second)
	if err := probeEmbedder(startupCtx, largeDoc); err != nil {
		cancelStartup()
		logger.Fatal("Large embedding model unavailable", zap.Error(err))
	}

	var smallQuery domain.Embedder
	if cfg.Embedding.Small.Model != "" {
		candidate := buildEmbedder(cfg.Embedding.Provider, cfg.Embedding.Small,
			cfg.Embedding.Small.QueryInstruction, logger)
		if err := probeEmbedder(startupCtx, candidate); err != nil {
			logger.Warn("Small embedding model unavailable, on-the-fly scoring degraded to lexical-only",
				zap.Error(err))
		} else {
			smallQuery = candidate
		}
	}
	cancelStartup()
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider.Name),
		zap.String("large_model", cfg.Embedding.Large.Model),
		zap.Bool("small_available", smallQuery != nil),
	)

	provider := embeddinguc.NewProvider(
		largeDoc, cfg.Embedding.Large.Dimensions,
		smallQuery, cfg.Embedding.Small.Dimensions,
	)

	pool, err := embeddinguc.NewPool(cfg.Embedding.PoolSize, logger)
	if err != nil {
		logger.Fatal("Failed to create inference pool", zap.Error(err))
	}
	defer pool.Release()

	// Repositories
	sectionRepo := sectionrepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Large.Dimensions).
		WithHNSW(sectionrepo.HNSWConfig{
			M:           cfg.Retrieval.HNSWM,
			EFConstruct: cfg.Retrieval.HNSWEFConstruct,
		})
	searchRepo := searchrepo.New(store, cfg.Storage.KeyPrefix)
	counterStore := ratelimitrepo.New(store, cfg.Storage.KeyPrefix)

	// Use case services
	scorer := semanticuc.NewScorer(searchRepo, pool, largeQuery, smallQuery,
		cfg.Retrieval.KNNTopK, logger)
	retrievalSvc := retrievaluc.NewService(sectionRepo, scorer, logger)
	ingestSvc := indexuc.NewService(sectionRepo, pool, largeDoc,
		tokens.NewCounter(""), logger)
	limiter := ratelimituc.New(counterStore,
		time.Duration(cfg.RateLimit.WindowSec)*time.Second,
		int64(cfg.RateLimit.MaxRequests), logger)
	healthSvc := healthuc.New(store, provider)

	server := chiTransport.NewServer(retrievalSvc, ingestSvc, healthSvc)

	apiKeys := make(map[string]string, len(cfg.Auth.Keys))
	for _, k := range cfg.Auth.Keys {
		apiKeys[k.Key] = k.Tier
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(apiKeys))
	r.Use(chiTransport.RateLimitMiddleware(limiter))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Instrumented -> Instruction.
func buildEmbedder(
	provCfg config.ProviderConfig,
	modelCfg config.ModelConfig,
	instruction string,
	logger *zap.Logger,
) domain.Embedder {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      modelCfg.Model,
		Dimensions: modelCfg.Dimensions,
		Provider:   provCfg.Name,
		Logger:     logger,
	})

	var embedder domain.Embedder = embeddinguc.NewInstrumentedEmbedder(
		base, provCfg.Name, modelCfg.Model, logger,
	)

	// Instruction prefix goes outermost so every query carries it.
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// probeEmbedder verifies a model answers before the server is marked ready.
func probeEmbedder(ctx context.Context, e domain.Embedder) error {
	if hc, ok := e.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line -- one line per request
			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
