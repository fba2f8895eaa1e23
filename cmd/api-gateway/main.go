package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncats/biggim-gateway/pkg/archive"
	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/common/config"
	"github.com/ncats/biggim-gateway/pkg/common/database"
	"github.com/ncats/biggim-gateway/pkg/common/kafka"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/gateway/httpclient"
	"github.com/ncats/biggim-gateway/pkg/gateway/middleware"
	"github.com/ncats/biggim-gateway/pkg/gateway/routes"
	"github.com/ncats/biggim-gateway/pkg/interactions"
	"github.com/ncats/biggim-gateway/pkg/normalizer"
	"github.com/ncats/biggim-gateway/pkg/observability/tracing"
	"github.com/ncats/biggim-gateway/pkg/reference"
	"github.com/ncats/biggim-gateway/pkg/reshape"
)

func main() {
	logger.Init()
	cfg := config.Load()

	shutdownTracing, err := tracing.Init(context.Background(), cfg)
	if err != nil {
		logger.Log.WithError(err).Warn("Tracing not available, continuing without it")
	}

	tables, err := reference.Load(cfg.TissueSynonymsPath, cfg.ColumnMetadataPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load reference tables")
	}
	logger.Log.WithFields(map[string]interface{}{
		"tissues": len(tables.Tissues),
		"columns": len(tables.Columns),
	}).Info("Reference tables loaded")

	client := biggim.NewClient(cfg.BigGIMBaseURL, httpclient.New(cfg.UpstreamTimeout))
	poller := biggim.NewPoller(client,
		biggim.WithInterval(cfg.PollInterval),
		biggim.WithMaxWait(cfg.PollMaxWait),
		biggim.WithMaxAttempts(cfg.PollMaxAttempts),
	)

	var opts []interactions.Option
	if cfg.RedisEnabled() {
		redisClient := database.OpenRedis(cfg)
		defer redisClient.Close()
		opts = append(opts, interactions.WithCache(interactions.NewRedisCache(redisClient, cfg.ResultCacheTTL)))
	}
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		opts = append(opts, interactions.WithEvents(producer))
	}
	if cfg.ArchiveEnabled() {
		archiver, err := archive.NewS3Archiver(context.Background(), cfg.ArchiveRegion, cfg.ArchiveBucket, cfg.ArchivePrefix)
		if err != nil {
			logger.Log.WithError(err).Warn("Result archive not configured, running without it")
		} else {
			opts = append(opts, interactions.WithArchiver(archiver))
		}
	}
	service := interactions.NewService(poller, reshape.New(tables.Columns, client), opts...)

	router := routes.NewRouter(routes.Gateway{
		Service:  cfg.ServiceName,
		Upstream: client,
		Tissues:  normalizer.NewTissueResolver(tables.Tissues),
		Queries:  service,
	})

	// Middleware
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.Tracing(cfg.ServiceName))
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      routes.WithCORS(router),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.ServerHost,
			"port":     cfg.ServerPort,
			"upstream": cfg.BigGIMBaseURL,
		}).Info("BigGIM gateway started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down BigGIM gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			logger.Log.WithError(err).Warn("Failed to flush traces")
		}
	}

	logger.Log.Info("BigGIM gateway stopped")
}
