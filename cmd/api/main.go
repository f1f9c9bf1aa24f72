package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tiendago/storefront/internal/catalog"
	"github.com/tiendago/storefront/internal/config"
	"github.com/tiendago/storefront/internal/httpx"
	"github.com/tiendago/storefront/internal/inventory"
	kafkax "github.com/tiendago/storefront/internal/kafka"
	"github.com/tiendago/storefront/internal/metrics"
	"github.com/tiendago/storefront/internal/orders"
	"github.com/tiendago/storefront/internal/postgres"
	"github.com/tiendago/storefront/internal/redisx"
)

func newLogger(env string) *zap.Logger {
	if env == "production" || env == "prod" {
		l, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("logger: %v", err)
		}
		return l
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return l
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pubs := orders.Publishers{
		Created:       kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger),
		Cancelled:     kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, logger),
		StatusChanged: kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 1024, logger),
		StockRejected: kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockRejected, 1024, logger),
	}
	producers := []*kafkax.Producer{pubs.Created, pubs.Cancelled, pubs.StatusChanged, pubs.StockRejected}
	for _, p := range producers {
		p.Start(ctx)
	}

	catalogStore := &catalog.PGStore{DB: db}
	orderStore := &orders.PGStore{DB: db}
	m := metrics.New("api")

	svc := &orders.Service{
		Orders:      orderStore,
		Engine:      inventory.NewEngine(catalogStore, logger),
		Resolver:    &orders.Resolver{Catalog: catalogStore, Refs: &orders.PGRefStore{DB: db}},
		Events:      pubs,
		Metrics:     m,
		Log:         logger,
		ServiceName: cfg.ServiceName,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Svc:     svc,
		Catalog: catalogStore,
		Redis:   rdb,
		Metrics: m,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close() // close inbox -> flush & close writer
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
