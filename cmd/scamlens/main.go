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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/config"
	"github.com/scamlens/scamlens/internal/db"
	dbRedis "github.com/scamlens/scamlens/internal/db/redis"
	"github.com/scamlens/scamlens/internal/domain"
	logpkg "github.com/scamlens/scamlens/internal/logger"
	"github.com/scamlens/scamlens/internal/metrics"
	docrepo "github.com/scamlens/scamlens/internal/repository/document"
	"github.com/scamlens/scamlens/internal/repository/embcache"
	searchrepo "github.com/scamlens/scamlens/internal/repository/search"
	chiTransport "github.com/scamlens/scamlens/internal/transport/chi"
	ollamaBackend "github.com/scamlens/scamlens/internal/transport/ollama"
	openaiTransport "github.com/scamlens/scamlens/internal/transport/openai"
	classifyuc "github.com/scamlens/scamlens/internal/usecase/classify"
	corpusuc "github.com/scamlens/scamlens/internal/usecase/corpus"
	embeddinguc "github.com/scamlens/scamlens/internal/usecase/embedding"
	healthuc "github.com/scamlens/scamlens/internal/usecase/health"
	llmuc "github.com/scamlens/scamlens/internal/usecase/llm"
	retrieveuc "github.com/scamlens/scamlens/internal/usecase/retrieve"
	seeduc "github.com/scamlens/scamlens/internal/usecase/seed"
	"github.com/scamlens/scamlens/internal/version"
)

func main() {
	_ = godotenv.Load()

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

	logger.Info("Starting scamlens API server",
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

	metrics.Register()

	if err := docrepo.EnsureIndex(ctx, store, cfg.Embedding.Dimensions, docrepo.HNSWConfig{
		M:           cfg.Database.HNSWM,
		EFConstruct: cfg.Database.HNSWEFConstruct,
	}); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

	embedder := buildEmbedder(&cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	orchestrator := buildBackends(&cfg, logger)

	backendCheckers := make([]healthuc.BackendChecker, 0, len(cfg.Backends))
	for _, b := range orchestrator.Backends() {
		backendCheckers = append(backendCheckers, b)
	}

	docRepo := docrepo.New(store)
	searchRepo := searchrepo.New(store)

	retriever := retrieveuc.New(embedder, searchRepo, retrieveuc.Config{
		TopK:             cfg.Retrieval.TopK,
		MinSimilarity:    cfg.Retrieval.MinSimilarity,
		OversampleFactor: cfg.Retrieval.Oversample,
	}, logger)

	classifySvc := classifyuc.New(retriever, orchestrator, classifyuc.Config{
		MaxConcurrent:     cfg.Classify.MaxConcurrent,
		PromptBudgetBytes: cfg.Classify.PromptBudgetByte,
	}, logger)

	loader := seeduc.New(embedder, docRepo, seeduc.Config{
		CorpusPath:       cfg.Seed.CorpusPath,
		ManifestDir:      cfg.Seed.ManifestDir,
		BatchSize:        cfg.Seed.BatchSize,
		CheckpointEvery:  cfg.Seed.CheckpointEvery,
		FailureThreshold: cfg.Seed.FailureThreshold,
		StoreRetries:     cfg.Seed.StoreRetries,
	}, logger)

	corpusSvc := corpusuc.New(embedder, docRepo, logger)

	healthSvc := healthuc.New(store, newEmbeddingHealthChecker(embedder), backendCheckers)

	server := chiTransport.NewServer(classifySvc, corpusSvc, loader, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

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

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> DimensionChecked -> Instrumented.
func buildEmbedder(cfg *config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	cached := embcache.New(
		base, store, cfg.Embedding.Model,
		time.Duration(cfg.Embedding.CacheTTLh)*time.Hour,
		metrics.EmbeddingCacheTotal, logger,
	)

	checked := embeddinguc.NewDimensionChecked(cached, cfg.Embedding.Dimensions)

	return embeddinguc.NewInstrumented(checked, cfg.Embedding.Provider, cfg.Embedding.Model, logger)
}

// buildBackends wires the model backend chain in config order.
func buildBackends(cfg *config.Config, logger *zap.Logger) *llmuc.Orchestrator {
	orchestrator := llmuc.NewOrchestrator(logger)

	for _, bc := range cfg.Backends {
		var backend llmuc.Backend
		switch bc.Kind {
		case "ollama":
			backend = ollamaBackend.New(&ollamaBackend.Config{
				Name:    bc.Name,
				BaseURL: bc.BaseURL,
				Model:   bc.Model,
				Logger:  logger,
			})
		case "openai":
			backend = openaiTransport.NewChatBackend(&openaiTransport.ChatConfig{
				Name:    bc.Name,
				APIKey:  bc.APIKey,
				BaseURL: bc.BaseURL,
				Model:   bc.Model,
				Logger:  logger,
			})
		default:
			logger.Fatal("Unknown backend kind", zap.String("kind", bc.Kind), zap.String("name", bc.Name))
		}

		orchestrator.Add(backend, llmuc.BackendOptions{
			Timeout: time.Duration(bc.TimeoutSec) * time.Second,
			Retries: *bc.Retries,
		})
		logger.Info("Backend registered",
			zap.String("name", bc.Name),
			zap.String("kind", bc.Kind),
			zap.String("model", bc.Model),
		)
	}

	return orchestrator
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
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

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
