package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/cache"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/handler"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/metrics"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/middleware"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/repository"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/router"
	"github.com/AchilleasB/courierman/parcel-service/internal/adapters/security"
	"github.com/AchilleasB/courierman/parcel-service/internal/config"
	"github.com/AchilleasB/courierman/parcel-service/internal/core/services"
	"github.com/AchilleasB/courierman/parcel-service/internal/migrations"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := config.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to reach database", zap.Error(err))
	}

	if cfg.RunMigrations {
		if err := migrations.Run(ctx, db); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("database migrations applied")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	// Redis only accelerates auth; the API starts without it.
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing in degraded mode", zap.Error(err))
	}

	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	tokens, err := security.NewJWTIssuer([]byte(cfg.JWTSecret), cfg.TokenTTL)
	if err != nil {
		logger.Fatal("failed to create token issuer", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(db)
	parcelRepo := repository.NewParcelRepository(db)
	versionCache := cache.NewCredentialVersionCache(redisClient, cfg.CredentialCacheTTL, logger)

	userService := services.NewUserService(userRepo, hasher, tokens, versionCache)
	parcelService := services.NewParcelService(parcelRepo)

	trustedProxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		logger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	m := metrics.New()

	apiHandler := router.New(router.Dependencies{
		Auth:           handler.NewAuthHandler(userService, logger),
		Users:          handler.NewUserHandler(userService, logger),
		Parcels:        handler.NewParcelHandler(parcelService, m, logger),
		Health:         handler.NewHealthHandler(db, redisClient, cfg.AppVersion),
		Authenticator:  middleware.NewAuthMiddleware(tokens, userService, logger),
		Metrics:        m,
		Logger:         logger,
		RateLimitStore: redisClient,
		RateLimit: middleware.RateLimitConfig{
			Limit:         cfg.AuthRateLimit,
			Window:        cfg.AuthRateWindow,
			BlockDuration: cfg.AuthRateBlock,
			KeyPrefix:     "rl:auth",
			OnLimited:     m.ObserveRateLimited,
		},
		TrustedProxies: trustedProxies,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		logger.Error("server error, shutting down", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
