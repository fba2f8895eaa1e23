package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/ncats/biggim-gateway/pkg/common/config"
	"github.com/ncats/biggim-gateway/pkg/common/database"
	"github.com/ncats/biggim-gateway/pkg/common/kafka"
	"github.com/ncats/biggim-gateway/pkg/common/logger"
	"github.com/ncats/biggim-gateway/pkg/gateway/middleware"
	"github.com/ncats/biggim-gateway/pkg/jobs"
)

func main() {
	logger.Init()
	cfg := config.Load()

	if !cfg.KafkaEnabled() {
		logger.Log.Fatal("KAFKA_BROKERS must be set for the query auditor")
	}

	db, err := database.OpenPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	repo := jobs.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate audit log")
	}
	service := jobs.NewService(repo, cfg.JobRetention)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retention cleanup
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))
	if _, err := scheduler.AddFunc(cfg.JobCleanupSchedule, func() { service.Cleanup(ctx) }); err != nil {
		logger.Log.WithError(err).WithField("schedule", cfg.JobCleanupSchedule).Fatal("Invalid cleanup schedule")
	}
	scheduler.Start()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	consumed := make(chan error, 1)
	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"topic": cfg.KafkaTopic,
			"group": cfg.KafkaGroupID,
		}).Info("Consuming query events")
		consumed <- consumer.Consume(ctx, service.HandleEvent)
	}()

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	jobs.NewHandler(repo).Register(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AuditorPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithField("port", cfg.AuditorPort).Info("Query auditor started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-consumed:
		logger.Log.WithError(err).Error("Event consumer stopped")
	}

	logger.Log.Info("Shutting down query auditor...")
	cancel()
	<-scheduler.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	if err := consumer.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close consumer")
	}

	logger.Log.Info("Query auditor stopped")
}
