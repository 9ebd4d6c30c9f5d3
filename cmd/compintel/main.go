// Package main wires together the price intelligence service binary.
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

	pubsubclient "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/rategrid/compintel/internal/api"
	"github.com/rategrid/compintel/internal/clock/system"
	"github.com/rategrid/compintel/internal/config"
	"github.com/rategrid/compintel/internal/dispatcher"
	"github.com/rategrid/compintel/internal/extract"
	"github.com/rategrid/compintel/internal/hash/sha256"
	"github.com/rategrid/compintel/internal/id/uuid"
	"github.com/rategrid/compintel/internal/logging"
	"github.com/rategrid/compintel/internal/metrics"
	"github.com/rategrid/compintel/internal/pricing"
	memorypublisher "github.com/rategrid/compintel/internal/publisher/memory"
	pubsubpublisher "github.com/rategrid/compintel/internal/publisher/pubsub"
	queueMemory "github.com/rategrid/compintel/internal/queue/memory"
	"github.com/rategrid/compintel/internal/render"
	"github.com/rategrid/compintel/internal/storage/gcs"
	"github.com/rategrid/compintel/internal/storage/local"
	memoryStorage "github.com/rategrid/compintel/internal/storage/memory"
	"github.com/rategrid/compintel/internal/storage/postgres"
	"github.com/rategrid/compintel/internal/worker"
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
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	jobStore := memoryStorage.NewJobStore()
	queue := queueMemory.NewQueue(cfg.Scraper.QueueDepth)
	hasher := sha256.New()
	clock := system.New()
	idGen := uuid.New()

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	var publisher pricing.Publisher = memorypublisher.New()
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsubclient.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("pubsub client close failed", zap.Error(cerr))
			}
		}()
		pub := pubsubpublisher.New(client)
		defer pub.Stop()
		publisher = pub
	}

	var archive worker.SummaryArchiver
	if cfg.DB.DSN != "" {
		store, err := postgres.NewSummaryStore(ctx, postgres.SummaryStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("summary store init failed", zap.Error(err))
		}
		defer store.Close()
		archive = store
	}

	policy := pricing.NewPolicyChecker(
		pricing.NewHTTPRobotsFetcher(cfg.Scraper.UserAgent),
		logger.Named("robots"),
	)
	proxies := pricing.NewProxyPool(cfg.Proxy.Endpoints)

	var sessions pricing.RendererFactory
	switch cfg.Render.Backend {
	case "static":
		sessions = render.NewStaticFactory(render.StaticConfig{UserAgent: cfg.Scraper.UserAgent})
	default:
		sessions = render.NewChromedpFactory(render.ChromedpConfig{
			UserAgent: cfg.Scraper.UserAgent,
			DomainQPS: cfg.Scraper.DomainQPS,
		}, logger.Named("render"))
	}

	scraper := pricing.NewScraper(
		policy,
		proxies,
		sessions,
		extract.New(logger.Named("extract")),
		pricing.ScraperConfig{
			NavTimeout:    cfg.NavTimeout(),
			RequireProxy:  cfg.Scraper.RequireProxy,
			RespectRobots: cfg.Scraper.RespectRobots,
		},
		logger.Named("scraper"),
	)

	workerCfg := worker.Config{
		ContentType: cfg.Storage.ContentType,
		BlobPrefix:  cfg.Storage.Prefix,
		Topic:       cfg.PubSub.TopicName,
	}

	var workers []*worker.Worker
	for i := 0; i < cfg.Scraper.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			blobStore,
			publisher,
			hasher,
			clock,
			scraper,
			archive,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(jobStore, dispatch, idGen, clock, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Scraper.Concurrency))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

func buildBlobStore(ctx context.Context, cfg config.Config) (pricing.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		return memoryStorage.NewBlobStore(), nil
	}
}
