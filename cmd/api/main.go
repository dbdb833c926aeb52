package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/memstore"
	"github.com/ariefcatur/go-shop-orders/internal/notify"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store orders.Store
	switch cfg.Store {
	case config.StoreMemory:
		mem := memstore.New()
		seedDemoCatalog(mem)
		store = mem
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, 0)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatal("db migrate", zap.Error(err))
		}
		store = postgres.NewStore(db)
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log.Named("kafka"))
	prod.Start()

	svc, err := orders.NewService(orders.ServiceDeps{
		Store:         store,
		Notifier:      notify.NewKafkaSink(prod, cfg.ServiceName),
		Logger:        log.Named("orders"),
		NotifyTimeout: cfg.NotifyTimeout,
	})
	if err != nil {
		log.Fatal("orders service", zap.Error(err))
	}

	router := httpx.NewRouter(log.Named("http"), cfg.RequestTimeout)
	h := &httpx.Handler{Orders: svc, Log: log.Named("http")}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable; idempotency keys and status cache disabled", zap.Error(err))
	} else {
		h.Idem = redisx.NewIdempotency(rdb)
		h.Status = redisx.NewStatusCache(rdb)
	}
	h.Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()
	prod.WaitClosed()
}

// seedDemoCatalog gives the in-memory store something to order.
func seedDemoCatalog(s *memstore.Store) {
	for _, p := range []orders.Product{
		{ID: "prod-mug", SKU: "MUG-001", Name: "Ceramic Mug", PriceCents: 1000, Quantity: 50},
		{ID: "prod-tea", SKU: "TEA-001", Name: "Green Tea 100g", PriceCents: 500, Quantity: 100},
		{ID: "prod-kettle", SKU: "KET-001", Name: "Kettle", PriceCents: 4500, Quantity: 5},
	} {
		s.PutProduct(p)
	}
}
