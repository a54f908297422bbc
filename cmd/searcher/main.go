package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/postingsource"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/registry"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/internal/searcher/stopper"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("search service stopped")
}

// databaseOptions maps the search settings onto database options.
func databaseOptions(sc config.SearchConfig) ([]search.Option, error) {
	weighting, err := ranker.New(sc.Weighting, sc.BM25K1, sc.BM25B)
	if err != nil {
		return nil, err
	}
	orComb, err := executor.ParseCombiner(sc.OrCombiner)
	if err != nil {
		return nil, err
	}
	andComb, err := executor.ParseCombiner(sc.AndCombiner)
	if err != nil {
		return nil, err
	}
	op, err := parser.ParseOperator(sc.DefaultOperator)
	if err != nil {
		return nil, err
	}
	policy, err := parser.ParseStopwordPolicy(sc.StopwordPolicy)
	if err != nil {
		return nil, err
	}
	return []search.Option{
		search.WithWeighting(weighting),
		search.WithCombiners(orComb, andComb),
		search.WithDefaultOperator(op),
		search.WithStopwordPolicy(policy),
		search.WithMaxWildcardExpansion(sc.MaxWildcardExpansion),
	}, nil
}

func run(cfg *config.Config) error {
	slog.Info("starting search service", "port", cfg.Server.Port, "database", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	opts, err := databaseOptions(cfg.Search)
	if err != nil {
		return fmt.Errorf("invalid search config: %w", err)
	}
	flags, err := parser.ParseFlags(cfg.Search.DefaultFlags...)
	if err != nil {
		return fmt.Errorf("invalid search config: %w", err)
	}
	boost, err := postingsource.ParseTransform(cfg.Search.BoostTransform)
	if err != nil {
		return fmt.Errorf("invalid search config: %w", err)
	}

	reg, err := registry.New(cfg.Database.Path, func(path string) (*search.Database, error) {
		return search.Open(path, opts...)
	}, m)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer reg.Close()

	checker := health.NewChecker()
	checker.Register("database", health.DatabaseCheck(reg.Current))

	var pg *postgres.Client
	if cfg.Postgres.Enabled {
		pg, err = postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, stopword table and stats snapshots disabled", "error", err)
		} else {
			defer pg.Close()
			checker.Register("postgres", health.PingCheck(pg.Ping, false))
		}
	}

	stopwords := stopper.New(cfg.Stopwords.Words...)
	if pg != nil && cfg.Stopwords.PostgresTable != "" {
		n, err := stopper.LoadPostgres(ctx, pg.DB, cfg.Stopwords.PostgresTable, stopwords)
		if err != nil {
			slog.Warn("loading stopwords from postgres failed", "table", cfg.Stopwords.PostgresTable, "error", err)
		} else {
			slog.Info("stopwords loaded", "table", cfg.Stopwords.PostgresTable, "count", n)
		}
	}
	stopwords.Freeze()

	var queryCache *cache.Cache
	if cfg.Cache.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, pkgredis.IsNilError, cfg.Cache, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		publisher = producer
	}
	agg := analytics.NewAggregator()
	collector := analytics.NewCollector(publisher, agg, m, analytics.CollectorConfig{
		BufferSize:    cfg.Analytics.BufferSize,
		BatchSize:     cfg.Analytics.BatchSize,
		FlushInterval: cfg.Analytics.FlushInterval,
	})
	collector.Start(ctx)
	defer collector.Close()

	reg.OnSwap(func(ctx context.Context, db *search.Database) {
		if queryCache != nil {
			if n, err := queryCache.Invalidate(ctx); err != nil {
				slog.Warn("cache invalidation after reload failed", "error", err)
			} else {
				slog.Info("cache invalidated after reload", "keys", n)
			}
		}
		collector.Track(analytics.ReloadEvent{
			Type:      analytics.EventReload,
			Path:      db.Path(),
			Documents: db.DocCount(),
			Timestamp: time.Now().UTC(),
		})
	})

	h := handler.New(reg, queryCache, collector, m, handler.Config{
		DefaultLimit:   cfg.Search.DefaultLimit,
		MaxResults:     cfg.Search.MaxResults,
		DefaultFlags:   flags,
		BoostTransform: boost,
		Stopwords:      stopwords,
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics/stats", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.Metrics(m)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst, m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, registry.HandleIndexComplete(reg))
		defer consumer.Close()
		g.Go(func() error { return consumer.Start(gctx) })
		slog.Info("watching for new databases",
			"topic", cfg.Kafka.Topics.IndexComplete,
			"brokers", strings.Join(cfg.Kafka.Brokers, ","),
		)
	}

	if pg != nil {
		store := aggregator.NewStore(pg.DB)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Warn("stats snapshots disabled", "error", err)
		} else {
			g.Go(func() error {
				aggregator.RunPeriodic(gctx, store, agg, cfg.Analytics.SnapshotInterval)
				return nil
			})
		}
	}

	return g.Wait()
}
