package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pos_checkout/api"
	"pos_checkout/internal/backend"
	"pos_checkout/internal/cache"
	"pos_checkout/internal/checkout"
	"pos_checkout/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(fmt.Errorf("error creating logger: %v", err))
	}
	defer logger.Sync()

	backendAPI := backend.NewAPI(backend.Options{
		BaseURL:     cfg.BackendURL,
		Timeout:     cfg.BackendTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, logger)
	defer backendAPI.Close()

	clientCache := newClientCache(cfg, logger)

	checkoutService := checkout.NewService(checkout.NewLocalStorage(), backendAPI, clientCache, logger)
	defer checkoutService.Close()

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.InitRoutes(r, checkoutService, logger)

	logger.Info("starting terminal server",
		zap.String("port", cfg.HTTPPort),
		zap.String("backend_url", cfg.BackendURL))
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		logger.Error("error trying to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Development() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newClientCache shares client records through Redis when REDIS_ADDR is set
// and falls back to a per-process cache otherwise.
func newClientCache(cfg *config.Config, logger *zap.Logger) cache.ClientCache {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(cfg.ClientCacheTTL, nil)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory client cache",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = rdb.Close()
		return cache.NewMemoryCache(cfg.ClientCacheTTL, nil)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisCache(rdb, cfg.ClientCacheTTL)
}
