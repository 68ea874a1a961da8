package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagrec/internal/config"
	"github.com/kailas-cloud/tagrec/internal/db"
	"github.com/kailas-cloud/tagrec/internal/db/bolt"
	dbRedis "github.com/kailas-cloud/tagrec/internal/db/redis"
	"github.com/kailas-cloud/tagrec/internal/db/sqlite"
	"github.com/kailas-cloud/tagrec/internal/domain"
	"github.com/kailas-cloud/tagrec/internal/encoder/hashing"
	logpkg "github.com/kailas-cloud/tagrec/internal/logger"
	"github.com/kailas-cloud/tagrec/internal/metrics"
	"github.com/kailas-cloud/tagrec/internal/repository/embcache"
	recordrepo "github.com/kailas-cloud/tagrec/internal/repository/record"
	"github.com/kailas-cloud/tagrec/internal/repository/vectorindex"
	vocabrepo "github.com/kailas-cloud/tagrec/internal/repository/vocabulary"
	chiTransport "github.com/kailas-cloud/tagrec/internal/transport/chi"
	"github.com/kailas-cloud/tagrec/internal/transport/gemini"
	openaiTransport "github.com/kailas-cloud/tagrec/internal/transport/openai"
	analyzeuc "github.com/kailas-cloud/tagrec/internal/usecase/analyze"
	embeddinguc "github.com/kailas-cloud/tagrec/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/tagrec/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/tagrec/internal/usecase/indexing"
	reasoninguc "github.com/kailas-cloud/tagrec/internal/usecase/reasoning"
	recommenduc "github.com/kailas-cloud/tagrec/internal/usecase/recommend"
	"github.com/kailas-cloud/tagrec/internal/version"
)

const embeddingCacheBucket = "emb_cache"

// index is what the services need from a vector index backend.
type index interface {
	indexinguc.Index
	recommenduc.Index
	Ping(ctx context.Context) error
}

// kv backs the embedding cache.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

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

	logger.Info("Starting tagrec API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.String("encoder", cfg.Encoder.Provider),
		zap.String("reasoning", cfg.Reasoning.Provider),
	)

	ctx := context.Background()
	metrics.Register()

	// Record store
	if err := ensureDir(cfg.Records.Path); err != nil {
		logger.Fatal("Failed to prepare records directory", zap.Error(err))
	}
	conn, err := sqlite.Open(ctx, cfg.Records.Path) // migrates
	if err != nil {
		logger.Fatal("Failed to open record store", zap.Error(err))
	}
	defer func() { _ = conn.Close() }()
	records := recordrepo.New(conn)
	logger.Info("Opened record store", zap.String("path", cfg.Records.Path))

	vocab, err := vocabrepo.Load(ctx, vocabrepo.Source(cfg.Vocabulary.Source), cfg.Vocabulary.Path, records)
	if err != nil {
		logger.Fatal("Failed to load vocabulary", zap.Error(err))
	}
	logger.Info("Loaded vocabulary", zap.Int("tags", vocab.Len()))

	// Vector index backend; the embedding cache shares its storage
	var (
		idx   index
		cache kv
	)
	space, base := buildEncoder(&cfg.Encoder, logger)
	switch cfg.Index.Driver {
	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Database.Addrs,
			Password:   cfg.Database.Password,
			ClientName: "tagrec",
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

		algo, err := db.ParseVectorAlgorithm(cfg.Index.Algorithm)
		if err != nil {
			logger.Fatal("Invalid index algorithm", zap.Error(err))
		}
		idx = vectorindex.NewRedis(store, cfg.Index.Collection, space, vectorindex.RedisOptions{
			KeyPrefix:      cfg.Index.KeyPrefix,
			Algorithm:      algo,
			M:              cfg.Index.HNSWM,
			EFConstruction: cfg.Index.HNSWEFConstruct,
		})
		cache = store
	default:
		if err := ensureDir(cfg.Index.Path); err != nil {
			logger.Fatal("Failed to prepare index directory", zap.Error(err))
		}
		store, err := bolt.Open(cfg.Index.Path, 5*time.Second)
		if err != nil {
			logger.Fatal("Failed to open index file", zap.Error(err))
		}
		defer func() { _ = store.Close() }()

		idx = vectorindex.NewBolt(store, cfg.Index.Collection, space)
		cache = bolt.NewKV(store, embeddingCacheBucket)
	}

	if stale, err := idx.Stale(ctx); err != nil {
		logger.Warn("Could not read index fingerprint", zap.Error(err))
	} else if stale {
		logger.Warn("Vector index was built with a different encoder, rebuild required",
			zap.String("model", space.Model), zap.Int("dimensions", space.Dimensions))
	}

	// Encoder chain: provider -> cache -> instrumented
	var embedder domain.Embedder = base
	if cfg.Encoder.Cache {
		embedder = embcache.New(embedder, space, cache, metrics.EmbeddingCacheTotal, logger)
	}
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Encoder.Provider, space, logger)
	logger.Info("Encoder created",
		zap.String("provider", cfg.Encoder.Provider),
		zap.String("model", space.Model),
		zap.Int("dimensions", space.Dimensions),
		zap.Bool("cache", cfg.Encoder.Cache),
	)

	reasoner := buildReasoner(ctx, &cfg.Reasoning, logger)

	// Use case services
	recommendSvc := recommenduc.New(embedder, idx, records, recommenduc.Config{
		DefaultTopK:   cfg.Recommend.DefaultTopK,
		MaxTopK:       cfg.Recommend.MaxTopK,
		MinSimilarity: *cfg.Recommend.MinSimilarity,
	})
	analyzeSvc := analyzeuc.New(reasoner, recommendSvc, records, records, vocab, analyzeuc.Config{
		VerifyMaxTokens:         cfg.Reasoning.VerifyMaxTokens,
		ContentMaxTokens:        cfg.Reasoning.RecommendMaxTokens,
		HistoricalTopK:          cfg.Recommend.HistoricalTopK,
		HistoricalMinSimilarity: *cfg.Recommend.HistoricalMinSimilarity,
	})
	indexingSvc := indexinguc.New(idx, records, embedder, cfg.Index.MaxBatchSize)

	healthSvc := healthuc.New(
		healthuc.Component{Name: "records", Checker: healthuc.Ping(records)},
		healthuc.Component{Name: "vector_index", Checker: healthuc.Ping(idx)},
		healthuc.Component{Name: "encoder", Checker: encoderChecker(base)},
		healthuc.Component{Name: "reasoning", Checker: reasoner, Optional: true},
	)

	server := chiTransport.NewServer(recommendSvc, analyzeSvc, indexingSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.Recoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.RequestLogger(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

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

// buildEncoder returns the base provider and the embedding space it produces.
func buildEncoder(cfg *config.EncoderConfig, logger *zap.Logger) (domain.EmbeddingSpace, domain.Embedder) {
	if cfg.Provider == config.EncoderOpenAI {
		e := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     logger,
		})
		return e.Space(), e
	}
	e := hashing.New(cfg.Dimensions)
	return e.Space(), e
}

// buildReasoner wires the configured completion provider. A missing API key
// yields a client that reports every call as not configured.
func buildReasoner(ctx context.Context, cfg *config.ReasoningConfig, logger *zap.Logger) *reasoninguc.Client {
	rc := reasoninguc.Config{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Configured: cfg.APIKey != "",
		Timeout:    time.Duration(cfg.TimeoutSec) * time.Second,
	}
	if !rc.Configured {
		logger.Warn("Reasoning provider has no API key, model passes will be skipped",
			zap.String("provider", cfg.Provider))
		return reasoninguc.New(nil, rc, logger)
	}

	var provider reasoninguc.Provider
	switch cfg.Provider {
	case config.ReasoningGemini:
		c, err := gemini.NewCompleter(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			logger.Fatal("Failed to create gemini client", zap.Error(err))
		}
		provider = c
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Provider == config.ReasoningGLM {
			baseURL = openaiTransport.GLMBaseURL
		}
		provider = openaiTransport.NewCompleter(openaiTransport.CompleterConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	}

	logger.Info("Reasoning client created",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
	)
	return reasoninguc.New(provider, rc, logger)
}

// encoderChecker probes the base provider when it supports health checks.
func encoderChecker(e domain.Embedder) healthuc.Checker {
	return healthuc.CheckerFunc(func(ctx context.Context) error {
		if hc, ok := e.(domain.HealthChecker); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				return fmt.Errorf("encoder health check: %w", err)
			}
		}
		return nil
	})
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
