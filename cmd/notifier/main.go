package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/handler"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/mailer"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/messaging"
	"github.com/AchilleasB/courierman/parcel-service/internal/config"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/services"
)

func main() {
	cfg, err := config.LoadNotifierConfig()
	if err != nil {
		log.Fatalf("notifier: failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("notifier: failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("component", "notifier"))

	smtp, err := mailer.NewMailer(mailer.Settings{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	if err != nil {
		logger.Fatal("invalid SMTP settings", zap.Error(err))
	}

	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.ParcelQueueName, logger)
	if err != nil {
		logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer broker.Close()

	notifications := services.NewNotificationService(smtp, logger)

	healthServer := &http.Server{
		Addr:              cfg.HealthAddr,
		Handler:           handler.NewWorkerHealthHandler("notifier", broker).Routes(),
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
		if err := broker.Consume(ctx, "notifier", notifications.HandleParcelEvent); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		logger.Error("consumer stopped, shutting down", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down health server", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
