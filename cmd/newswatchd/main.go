// Package main wires together the newswatch crawl engine daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/newswatch/newswatch/internal/api"
	"github.com/newswatch/newswatch/internal/archive"
	"github.com/newswatch/newswatch/internal/capacity"
	"github.com/newswatch/newswatch/internal/clock/system"
	"github.com/newswatch/newswatch/internal/config"
	"github.com/newswatch/newswatch/internal/core"
	"github.com/newswatch/newswatch/internal/dedup"
	"github.com/newswatch/newswatch/internal/dispatch"
	"github.com/newswatch/newswatch/internal/executor"
	"github.com/newswatch/newswatch/internal/extract"
	"github.com/newswatch/newswatch/internal/id/uuid"
	"github.com/newswatch/newswatch/internal/logging"
	pubsubpublisher "github.com/newswatch/newswatch/internal/publisher/pubsub"
	"github.com/newswatch/newswatch/internal/ratelimit"
	"github.com/newswatch/newswatch/internal/scanner"
	"github.com/newswatch/newswatch/internal/search/googlenews"
	"github.com/newswatch/newswatch/internal/store/memory"
	"github.com/newswatch/newswatch/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clock := system.New()
	idGen := uuid.New()

	var (
		categories core.CategoryStore
		jobs       core.JobStore
		articles   core.ArticleStore
		ready      func(ctx context.Context) error
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
			MinConns: int32(cfg.DB.MinConns),
		})
		if err != nil {
			return fmt.Errorf("init postgres: %w", err)
		}
		defer pool.Close()
		categories = postgres.NewCategoryStore(pool)
		jobs = postgres.NewJobStore(pool)
		articles = postgres.NewArticleStore(pool)
		ready = pool.Ping
		logger.Info("postgres stores initialized")
	} else {
		categories = memory.NewCategoryStore()
		jobs = memory.NewJobStore()
		articles = memory.NewArticleStore()
		logger.Warn("db.dsn not set, using in-memory stores")
	}

	var cache core.DedupCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = client.Close()
		}()
		cache = dedup.NewRedisCache(client, time.Duration(cfg.Redis.TTLMinutes)*time.Minute)
		logger.Info("redis dedup cache initialized", zap.String("addr", cfg.Redis.Addr))
	} else {
		cache = dedup.NewMemoryCache(time.Duration(cfg.Redis.TTLMinutes)*time.Minute, clock)
		logger.Warn("redis.addr not set, using in-process dedup cache")
	}
	index := dedup.NewIndex(articles, cache, logger.Named("dedup"))

	var blobs core.BlobStore
	switch {
	case cfg.Archive.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("init gcs client: %w", err)
		}
		defer func() {
			_ = client.Close()
		}()
		blobs, err = archive.NewGCS(client, cfg.Archive.GCSBucket, cfg.Archive.Prefix)
		if err != nil {
			return fmt.Errorf("init gcs archive: %w", err)
		}
		logger.Info("gcs archive initialized", zap.String("bucket", cfg.Archive.GCSBucket))
	case cfg.Archive.LocalDir != "":
		var err error
		blobs, err = archive.NewLocal(cfg.Archive.LocalDir, cfg.Archive.Prefix)
		if err != nil {
			return fmt.Errorf("init local archive: %w", err)
		}
		logger.Info("local archive initialized", zap.String("dir", cfg.Archive.LocalDir))
	default:
		logger.Info("archiving disabled")
	}

	var events core.Publisher
	if cfg.PubSub.ProjectID != "" {
		client, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		defer func() {
			_ = client.Close()
		}()
		pub := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
		defer pub.Stop()
		events = pub
		logger.Info("pubsub publisher initialized", zap.String("topic", cfg.PubSub.TopicName))
	} else {
		logger.Info("event publishing disabled")
	}

	guard := capacity.New(categories, clock)
	dispatcher := dispatch.New(jobs, clock, logger.Named("dispatch"))
	scan := scanner.New(categories, jobs, guard, idGen, logger.Named("scanner"),
		cfg.Scheduler.DefaultMaxRetries)

	search := googlenews.New(googlenews.Config{
		UserAgent:         cfg.Search.UserAgent,
		Language:          cfg.Search.Language,
		Country:           cfg.Search.Country,
		Timeout:           time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
		Burst:             cfg.Search.Burst,
	}, logger.Named("search"))

	extractor := extract.New(extract.Config{
		UserAgent: cfg.Extractor.UserAgent,
		Timeout:   time.Duration(cfg.Extractor.TimeoutSeconds) * time.Second,
	}, logger.Named("extract"))

	pool := executor.NewPool(executor.Deps{
		Source:     dispatcher,
		Jobs:       jobs,
		Categories: categories,
		Search:     search,
		Extractor:  extractor,
		Index:      index,
		Limiter: ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Search.RequestsPerSecond,
			DefaultBurst: cfg.Search.Burst,
		}),
		Archive:   blobs,
		Publisher: events,
		Retry:     core.NewExponentialRetryPolicy(),
		IDs:       idGen,
		Clock:     clock,
		Logger:    logger.Named("executor"),
	}, executor.Options{
		Workers:      cfg.Workers.Count,
		IdlePoll:     cfg.IdlePoll(),
		BreakerLimit: cfg.Workers.BreakerLimit,
		ThrottleBase: time.Duration(cfg.Workers.ThrottleBaseMs) * time.Millisecond,
		Topic:        cfg.PubSub.TopicName,
	})

	// Overlapping scan passes are skipped rather than queued; the due-claim is
	// idempotent anyway, this just avoids useless store round-trips.
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", cfg.ScanInterval()), func() {
		if _, err := scan.Scan(ctx, clock.Now()); err != nil {
			logger.Error("scan pass failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule scanner: %w", err)
	}

	apiServer := api.NewServer(api.Deps{
		Categories: categories,
		Jobs:       jobs,
		Dispatcher: dispatcher,
		Capacity:   guard,
		IDs:        idGen,
		Clock:      clock,
		Logger:     logger.Named("api"),
		Ready:      ready,
	}, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler.Start()
	poolDone := make(chan struct{})
	go func() {
		logger.Info("worker pool started", zap.Int("workers", cfg.Workers.Count))
		pool.Run(ctx)
		close(poolDone)
	}()
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	<-poolDone
	logger.Info("shutdown complete")
	return nil
}
