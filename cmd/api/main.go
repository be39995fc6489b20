package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-shop-orders/internal/cart"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/outbox"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/ariefcatur/go-shop-orders/internal/reports"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: cfg.PGMaxConns, LockTimeout: cfg.PGLockTimeout})
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka, hanya dipakai relay outbox
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer func() {
		if err := prod.Close(); err != nil {
			logger.Warn("kafka producer close", zap.Error(err))
		}
	}()

	shop := metrics.NewShop(prometheus.DefaultRegisterer)
	ledger := &inventory.Ledger{Metrics: shop}
	orderSvc := &orders.Service{DB: db, Ledger: ledger, Metrics: shop, Log: logger, ServiceName: cfg.ServiceName}

	router := httpx.NewRouter(logger, metrics.NewServerMetrics(prometheus.DefaultRegisterer, cfg.ServiceName))
	httpx.Handlers{
		Catalog: &httpx.CatalogHandler{Catalog: &catalog.Service{DB: db, Ledger: ledger, Log: logger}},
		Cart:    &httpx.CartHandler{Cart: &cart.Store{DB: db, Metrics: shop, Log: logger}},
		Orders: &httpx.OrdersHandler{
			Orders: orderSvc,
			Reader: &orders.Repo{DB: db},
			Idem:   &redisx.Idempotency{RDB: rdb},
			Cache:  &redisx.StatusCache{RDB: rdb},
		},
		Reports: &httpx.ReportsHandler{Reports: &reports.Service{DB: db}},
	}.Mount(router)

	relay := &outbox.Relay{
		DB:       db,
		Pub:      prod,
		Batch:    cfg.OutboxBatch,
		Interval: cfg.OutboxInterval,
		Metrics:  shop,
		Log:      logger.Named("outbox"),
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("exit", zap.Error(err))
	}
}
