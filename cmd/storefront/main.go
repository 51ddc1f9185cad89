package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/furniture-store/internal/auth"
	cartapp "github.com/dmehra2102/furniture-store/internal/cart/application"
	carthttp "github.com/dmehra2102/furniture-store/internal/cart/infrastructure/http"
	cartpg "github.com/dmehra2102/furniture-store/internal/cart/infrastructure/postgres"
	catalogpg "github.com/dmehra2102/furniture-store/internal/catalog/infrastructure/postgres"
	checkoutapp "github.com/dmehra2102/furniture-store/internal/checkout/application"
	checkouthttp "github.com/dmehra2102/furniture-store/internal/checkout/infrastructure/http"
	checkoutpg "github.com/dmehra2102/furniture-store/internal/checkout/infrastructure/postgres"
	inventoryapp "github.com/dmehra2102/furniture-store/internal/inventory/application"
	inventorypg "github.com/dmehra2102/furniture-store/internal/inventory/infrastructure/postgres"
	orderapp "github.com/dmehra2102/furniture-store/internal/order/application"
	orderhttp "github.com/dmehra2102/furniture-store/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/furniture-store/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/furniture-store/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/furniture-store/internal/payment/application"
	"github.com/dmehra2102/furniture-store/internal/payment/infrastructure/gateway"
	paymenthttp "github.com/dmehra2102/furniture-store/internal/payment/infrastructure/http"
	paymentpg "github.com/dmehra2102/furniture-store/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/furniture-store/internal/pricing"
	"github.com/dmehra2102/furniture-store/pkg/config"
	"github.com/dmehra2102/furniture-store/pkg/idempotency"
	"github.com/dmehra2102/furniture-store/pkg/logging"
	"github.com/dmehra2102/furniture-store/pkg/outbox"
	"github.com/dmehra2102/furniture-store/pkg/postgres"
	"github.com/dmehra2102/furniture-store/pkg/shutdown"
	"github.com/dmehra2102/furniture-store/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	log := logging.New(cfg.LogLevel)
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, "storefront", cfg.OTelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Postgres
	pool, err := postgres.Connect(ctx, cfg.PGURL, log)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	tx := postgres.NewTransactor(log, pool)

	// Redis backs request idempotency
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	// Kafka producer
	writer := orderkafka.NewWriter(cfg.KafkaBrokers)
	defer writer.Close()

	// Outbox
	events := outbox.NewPostgresStore(log, pool)
	dispatch := outbox.NewDispatcher(log, writer, cfg.OrderEventsTopic)
	host, _ := os.Hostname()
	relay := outbox.NewRelay(log, events, dispatch, "storefront-"+host)

	// Services
	catalog := catalogpg.NewRepository(log, pool)
	stock := inventoryapp.NewReconciler(log, inventorypg.NewRepository(log, pool))
	carts := cartapp.NewService(log, cartpg.NewRepository(log, pool), catalog, tx)
	sessions := checkoutapp.NewService(log, checkoutpg.NewRepository(log, pool), carts, catalog, pricing.StaticCoupons(cfg.Coupons), cfg.SessionTTL)
	sweeper := checkoutapp.NewSweeper(log, sessions, cfg.SessionSweepInterval)

	orderRepo := orderpg.NewRepository(log, pool)
	paymentRepo := paymentpg.NewRepository(log, pool)

	orders := orderapp.NewService(log, orderapp.Deps{
		Repo:      orderRepo,
		Sessions:  sessions,
		Carts:     carts,
		Catalog:   catalog,
		Inventory: stock,
		Payments:  paymentRepo,
		Events:    events,
		Tx:        tx,
		Currency:  cfg.Currency,
	})
	payments := paymentapp.NewService(log, paymentapp.Deps{
		Repo:     paymentRepo,
		Orders:   orderRepo,
		Gateway:  gateway.NewClient(log, cfg.GatewayURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout),
		Events:   events,
		Tx:       tx,
		Currency: cfg.Currency,
		Timeout:  cfg.GatewayTimeout,
	})

	// HTTP
	idempotent := idempotency.NewMiddleware(log, rdb, cfg.IdempotencyTTL).Handler(auth.UserID)
	paymentHandler := paymenthttp.NewHandler(log, payments, idempotent)
	orderHandler := orderhttp.NewHandler(log, orders, idempotent, paymentHandler.StatusByOrder)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(log))
		r.Mount("/cart", carthttp.NewHandler(log, carts).Routes())
		r.Mount("/checkout/sessions", checkouthttp.NewHandler(log, sessions).Routes())
		r.Mount("/orders", orderHandler.Routes())
		r.Mount("/payments", paymentHandler.Routes())
		r.Route("/admin/orders", func(r chi.Router) {
			r.Use(auth.RequireAdmin(log))
			r.Mount("/", orderHandler.AdminRoutes())
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 10*time.Second,
	}

	// Run relay
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Purge expired checkout sessions
	go func() {
		if err := sweeper.Run(ctx); err != nil {
			log.Error("session sweeper stopped with error", "err", err)
		}
	}()

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("storefront shutdown complete")
}
