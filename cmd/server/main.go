package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalcache "github.com/pravnik/pravnik/internal/cache"
	"github.com/pravnik/pravnik/internal/corpus"
	"github.com/pravnik/pravnik/internal/feedback"
	"github.com/pravnik/pravnik/internal/search"
	"github.com/pravnik/pravnik/internal/server"
	"github.com/pravnik/pravnik/pkg/clock"
	"github.com/pravnik/pravnik/pkg/config"
	"github.com/pravnik/pravnik/pkg/health"
	"github.com/pravnik/pravnik/pkg/kafka"
	"github.com/pravnik/pravnik/pkg/logger"
	"github.com/pravnik/pravnik/pkg/metrics"
	"github.com/pravnik/pravnik/pkg/middleware"
	pkgpostgres "github.com/pravnik/pravnik/pkg/postgres"
	pkgredis "github.com/pravnik/pravnik/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting pravnik", "port", cfg.Server.Port, "corpus_source", cfg.Corpus.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	clk := clock.Real{}

	var provider corpus.Provider
	var pgClient *pkgpostgres.Client
	switch cfg.Corpus.Source {
	case "postgres":
		pgClient, err = pkgpostgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		provider = corpus.NewPostgresProvider(pgClient)
		slog.Info("article source: postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	default:
		provider = corpus.NewFileProvider(cfg.Corpus.Path)
		slog.Info("article source: file", "path", cfg.Corpus.Path)
	}

	var redisClient *pkgredis.Client
	var durable internalcache.DurableStore
	switch cfg.Cache.Durable {
	case "redis":
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, durable cache tier disabled", "error", err)
		} else {
			defer redisClient.Close()
			durable = internalcache.NewRedisStore(redisClient)
			slog.Info("durable cache tier: redis", "addr", cfg.Redis.Addr)
		}
	case "file":
		store, err := internalcache.NewFileStore(cfg.Cache.DataDir, 0)
		if err != nil {
			slog.Error("failed to open cache directory", "error", err)
			os.Exit(1)
		}
		durable = store
		slog.Info("durable cache tier: file", "dir", cfg.Cache.DataDir)
	default:
		slog.Info("durable cache tier disabled")
	}

	tiered := internalcache.New(internalcache.Config{
		MaxMemoryEntries:  cfg.Cache.MaxMemoryEntries,
		DefaultTTL:        cfg.Cache.DefaultTTL,
		CompressThreshold: cfg.Cache.CompressThreshold,
		SweepInterval:     cfg.Cache.SweepInterval,
	}, durable, clk, m)
	tiered.StartSweeper(ctx)

	engine := search.NewEngine(provider, clk, search.Config{
		MaxResults:     cfg.Search.MaxResults,
		MinRelevance:   cfg.Search.MinRelevance,
		FuzzyThreshold: cfg.Search.FuzzyThreshold,
		FuzzyTimeout:   cfg.Search.FuzzyTimeout,
		QueryCacheSize: cfg.Search.QueryCacheSize,
		MaxSuggestions: cfg.Search.MaxSuggestions,
	}, m)
	if err := engine.BuildIndex(ctx); err != nil {
		slog.Error("initial index build failed", "error", err)
		os.Exit(1)
	}

	ranker := feedback.NewRanker(feedback.Config{
		DefaultBoost:  cfg.Feedback.DefaultBoost,
		MaxScore:      cfg.Feedback.MaxScore,
		DecayInterval: cfg.Feedback.DecayInterval,
		DecayFactor:   cfg.Feedback.DecayFactor,
	}, clk)
	if durable != nil {
		store := feedback.NewStore(durable, cfg.Feedback.StateKey)
		loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := store.Load(loadCtx, ranker); err != nil {
			slog.Warn("could not restore feedback state", "error", err)
		}
		cancel()
		store.StartAutoSave(ctx, ranker, 5*time.Minute)
	}

	var collector *feedback.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FeedbackEvents)
		defer producer.Close()
		collector = feedback.NewCollector(producer, 10000, m)
		collector.Start(ctx)
		defer collector.Close()

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.FeedbackEvents, feedback.HandleEvent(ranker, m))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("feedback consumer error", "error", err)
			}
		}()
		slog.Info("feedback pipeline started", "topic", cfg.Kafka.Topics.FeedbackEvents)
	}

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := engine.Stats()
		if stats.DocumentCount > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d articles indexed", stats.DocumentCount),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "index is empty"}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := server.New(engine, ranker, collector, tiered, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggest", h.Suggest)
	mux.HandleFunc("GET /api/v1/articles/{id}", h.Article)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/feedback", h.Feedback)
	mux.HandleFunc("POST /api/v1/reindex", h.Reindex)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("pravnik listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("pravnik stopped")
}
