package main

import (
	"context"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/ariefcatur/go-shop-orders/internal/statuscache"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.ServiceName+"-statuscache", cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &statuscache.Service{
		Cache:       &redisx.StatusCache{RDB: rdb},
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-statuscache",
		Log:         logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.StatusCacheGroup, orders.Topics, cfg.StatusCacheWorkers, logger)
	logger.Info("status cache consumer started",
		zap.String("group", cfg.StatusCacheGroup), zap.Strings("topics", orders.Topics), zap.Int("workers", cfg.StatusCacheWorkers))
	if err := cons.Start(ctx, svc.HandleEvent); err != nil && ctx.Err() == nil {
		logger.Error("consumer exit", zap.Error(err))
	}
	logger.Info("status cache consumer stopped")
}
