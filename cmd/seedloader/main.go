// Command seedloader ingests the labeled example corpus into the vector
// store and exits. Interrupted runs resume from the on-disk manifest.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/scamlens/scamlens/internal/config"
	dbRedis "github.com/scamlens/scamlens/internal/db/redis"
	"github.com/scamlens/scamlens/internal/domain"
	logpkg "github.com/scamlens/scamlens/internal/logger"
	"github.com/scamlens/scamlens/internal/metrics"
	docrepo "github.com/scamlens/scamlens/internal/repository/document"
	"github.com/scamlens/scamlens/internal/repository/embcache"
	openaiTransport "github.com/scamlens/scamlens/internal/transport/openai"
	embeddinguc "github.com/scamlens/scamlens/internal/usecase/embedding"
	seeduc "github.com/scamlens/scamlens/internal/usecase/seed"
	"github.com/scamlens/scamlens/internal/version"
)

func main() {
	_ = godotenv.Load()

	corpusPath := flag.String("corpus", "", "path to the JSONL corpus (overrides config)")
	manifestDir := flag.String("manifest-dir", "", "directory for the resume manifest (overrides config)")
	recreateIndex := flag.Bool("recreate-index", false, "drop and recreate the vector index before loading")
	flag.Parse()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *corpusPath != "" {
		cfg.Seed.CorpusPath = *corpusPath
	}
	if *manifestDir != "" {
		cfg.Seed.ManifestDir = *manifestDir
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting seed loader",
		zap.String("version", version.Version),
		zap.String("corpus", cfg.Seed.CorpusPath),
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}

	metrics.Register()

	hnsw := docrepo.HNSWConfig{
		M:           cfg.Database.HNSWM,
		EFConstruct: cfg.Database.HNSWEFConstruct,
	}
	if *recreateIndex {
		logger.Info("Recreating vector index", zap.Int("dimensions", cfg.Embedding.Dimensions))
		if err := docrepo.RecreateIndex(ctx, store, cfg.Embedding.Dimensions, hnsw); err != nil {
			logger.Fatal("Failed to recreate vector index", zap.Error(err))
		}
	} else if err := docrepo.EnsureIndex(ctx, store, cfg.Embedding.Dimensions, hnsw); err != nil {
		logger.Fatal("Failed to ensure vector index", zap.Error(err))
	}

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
	embedder := embeddinguc.NewDimensionChecked(cached, cfg.Embedding.Dimensions)

	docRepo := docrepo.New(store)

	loader := seeduc.New(embedder, docRepo, seeduc.Config{
		CorpusPath:       cfg.Seed.CorpusPath,
		ManifestDir:      cfg.Seed.ManifestDir,
		BatchSize:        cfg.Seed.BatchSize,
		CheckpointEvery:  cfg.Seed.CheckpointEvery,
		FailureThreshold: cfg.Seed.FailureThreshold,
		StoreRetries:     cfg.Seed.StoreRetries,
	}, logger)

	report, err := loader.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSeedPartialFailure):
		logger.Error("Seed load finished with partial failure",
			zap.Int("failed", report.Failed),
			zap.Int("total", report.TotalRecords),
			zap.Strings("failed_ids", report.FailedIDs),
		)
		os.Exit(1)
	default:
		logger.Fatal("Seed load failed", zap.Error(err))
	}

	indexed, err := docRepo.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count indexed documents", zap.Error(err))
	}

	logger.Info("Corpus ingested",
		zap.Int("loaded", report.NewlyLoaded),
		zap.Int("present", report.AlreadyPresent),
		zap.Int("failed", report.Failed),
		zap.Int("indexed_total", indexed),
		zap.Duration("elapsed", report.Elapsed),
	)
}
