package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/app"
	"github.com/Pain0402/CoolStyle/services/api/internal/auth"
	"github.com/Pain0402/CoolStyle/services/api/internal/catalog"
	"github.com/Pain0402/CoolStyle/services/api/internal/clock"
	"github.com/Pain0402/CoolStyle/services/api/internal/config"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
	"github.com/Pain0402/CoolStyle/services/api/internal/observability"
	"github.com/Pain0402/CoolStyle/services/api/internal/payment"
	"github.com/Pain0402/CoolStyle/services/api/internal/storage/memory"
	"github.com/Pain0402/CoolStyle/services/api/internal/storage/postgres"
	transporthttp "github.com/Pain0402/CoolStyle/services/api/internal/transport/http"
	"github.com/Pain0402/CoolStyle/services/api/migrations"
)

type backend struct {
	orders  app.OrderRepository
	admin   app.AdminRepository
	catalog catalog.Reader
	ready   transporthttp.Pinger
	close   func()
}

func runServe(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	products := store.catalog
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		products = catalog.NewCachedReader(products, client,
			catalog.WithTTL(cfg.CatalogCacheTTL),
			catalog.WithCacheLogger(logger),
		)
		logger.Info("catalog cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	clk := clock.NewSystem()
	orders := app.NewOrderService(store.orders, products, clk, app.WithCatalogTimeout(cfg.CatalogTimeout))
	reconciler := app.NewReconciler(store.orders, clk, app.WithReconcilerLogger(logger))
	admin := app.NewAdminService(store.admin, clk)

	signer := payment.NewSigner(cfg.Gateway.Secret)
	links := payment.NewLinkBuilder(signer, cfg.Gateway.PayURL, cfg.Gateway.ReturnURL, clk)

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, authentication disabled and admin routes are open")
	}

	handler := transporthttp.NewRouter(transporthttp.RouterConfig{
		Orders: transporthttp.NewOrderHandler(orders, app.NewPaymentService(orders, links), reconciler, signer,
			transporthttp.RedirectTargets{
				Success: cfg.Gateway.SuccessURL,
				Failure: cfg.Gateway.FailureURL,
			}),
		Admin:       transporthttp.NewAdminHandler(admin, orders),
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		Verifier:    verifier,
		Ready:       store.ready,
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	logger.Info("api listening", zap.String("addr", server.Addr), zap.String("storage", cfg.StorageDriver))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
	return nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("using in-memory storage, orders are lost on restart")
		store := memory.NewStore()
		return &backend{
			orders:  store,
			admin:   store,
			catalog: memory.NewCatalog(demoProducts()...),
			close:   func() {},
		}, nil
	}

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := migrations.ApplyWithLogger(startupCtx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &backend{
		orders:  postgres.NewOrderRepository(pool),
		admin:   postgres.NewAdminRepository(pool),
		catalog: catalog.NewPostgresReader(pool),
		ready:   pool,
		close:   pool.Close,
	}, nil
}

// demoProducts seeds the in-memory catalog so the storefront has something to sell.
func demoProducts() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Basic Tee", SKU: "basic-tee", Price: decimal.NewFromInt(199000)},
		{
			ID: 2, Name: "Oversized Hoodie", SKU: "oversized-hoodie", Price: decimal.NewFromInt(450000),
			Variants: []domain.ProductVariant{
				{ID: 21, SKU: "oversized-hoodie-black-m", ColorName: "Black", Size: "M"},
				{ID: 22, SKU: "oversized-hoodie-black-xl", ColorName: "Black", Size: "XL", PriceModifier: decimal.NewFromInt(30000)},
			},
		},
		{ID: 3, Name: "Cargo Pants", SKU: "cargo-pants", Price: decimal.NewFromInt(520000)},
	}
}
