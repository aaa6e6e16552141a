package main

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carscout/internal/api"
	"carscout/internal/config"
	"carscout/internal/fetch"
	"carscout/internal/monitoring"
	"carscout/internal/parser"
	"carscout/internal/reconciler"
	"carscout/internal/selector"
	"carscout/internal/sitemap"
	"carscout/internal/storage/postgres"
	"carscout/internal/translator"
	"carscout/internal/trigger"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	monitoring.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	listingStore := postgres.NewListingStore(pool, cfg.UpsertBatchSize)
	failureStore := postgres.NewFailureStore(pool)

	client := fetch.NewClient(fetch.Options{
		ConnectTimeout: cfg.ConnectTimeout(),
		ReadTimeout:    cfg.ReadTimeout(),
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase(),
		BackoffJitter:  cfg.BackoffJitter(),
		RequestDelay:   cfg.RequestDelay(),
		TargetDomain:   hostOf(cfg.BaseURL),
	}, logger)

	discoverer, err := sitemap.NewDiscoverer(client, sitemap.Options{
		BaseURL:         cfg.BaseURL,
		RobotsURL:       cfg.RobotsURL,
		DefaultIndexURL: cfg.SitemapIndexURL,
		MaxSitemaps:     cfg.MaxSitemaps,
		URLsPerSitemap:  cfg.URLsPerSitemap,
		PoolSize:        cfg.PoolSize,
		Concurrency:     cfg.Concurrency,
		BatchPause:      cfg.BatchPause(),
	}, logger)
	if err != nil {
		logger.Fatal("failed to build sitemap discoverer", zap.Error(err))
	}

	tr := translator.New()
	pageParser := parser.New(tr, cfg.SourceName, cfg.JPYToRUBRate, logger)
	sel := selector.New(client, pageParser, selector.Options{
		MaxListings:  cfg.MaxListings,
		PerMakeLimit: cfg.PerMakeLimit,
		Concurrency:  cfg.Concurrency,
		BatchPause:   cfg.BatchPause(),
	}, logger)

	rec := reconciler.New(cfg, discoverer, sel, client, pageParser, tr, listingStore, failureStore, logger)

	server := api.NewServer(":"+cfg.ServerPort, api.Deps{
		Pool:     pool,
		Redis:    redisClient,
		Listings: listingStore,
		Source:   cfg.SourceName,
		Logger:   logger,
	})
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("ops server stopped", zap.Error(err))
		}
	}()

	consumer := trigger.NewConsumer(redisClient, logger)
	go consumer.Run(ctx)

	logger.Info("worker started",
		zap.String("source", cfg.SourceName),
		zap.Bool("run_once", cfg.RunOnce),
		zap.Duration("interval", cfg.Interval()))

	runErr := rec.Run(ctx, consumer.Wake())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown failed", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("worker exited with error", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// hostOf returns the bare registrable host so the fetch client's
// www-toggle fallback matches both host variants.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
