package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/handler"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/messaging"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/outbox"
	"github.com/AchilleasB/courierman/parcel-service/internal/config"
)

func main() {
	cfg, err := config.LoadRelayConfig()
	if err != nil {
		log.Fatalf("relay: failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("relay: failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("component", "outbox-relay"))

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	// The relay's circuit breaker validates the connection on first use.

	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.ParcelQueueName, logger)
	if err != nil {
		logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer broker.Close()
	logger.Info("connected to rabbitmq", zap.String("queue", cfg.ParcelQueueName))

	relayWorker := outbox.NewRelay(db, cfg.DatabaseURL, broker, logger)

	healthServer := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           handler.NewWorkerHealthHandler("outbox-relay", relayWorker).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting health check server", zap.String("addr", cfg.HealthAddr))
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		if err := relayWorker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		logger.Error("relay worker failed, shutting down", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health server", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
