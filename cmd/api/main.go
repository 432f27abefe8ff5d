package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jvaldes/stockhold/internal/app"
	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/config"
	"github.com/jvaldes/stockhold/internal/storage/postgres"
	"github.com/jvaldes/stockhold/internal/storage/rediscache"
	transporthttp "github.com/jvaldes/stockhold/internal/transport/http"
	"github.com/jvaldes/stockhold/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("db ping")
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startupCtx).Err(); err != nil {
		// The cache is best effort; the service runs without it.
		log.Warn().Err(err).Msg("redis unreachable, availability cache degraded")
	}
	cache := rediscache.New(redisClient)

	clk := clock.NewSystem()
	stockSvc := app.NewStockService(postgres.NewStockRepository(pool), cache, clk, log,
		app.WithHoldTTL(cfg.HoldTTL),
		app.WithCacheTTL(cfg.CacheTTL),
	)
	orderSvc := app.NewOrderService(postgres.NewOrderRepository(pool), cache, clk, log)
	webhookSvc := app.NewWebhookService(postgres.NewWebhookRepository(pool), orderSvc, clk, log)
	catalogSvc := app.NewCatalogService(postgres.NewProductRepository(pool), clk)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/products", transporthttp.HandleProducts(catalogSvc))
	mux.Handle("/products/", transporthttp.HandleProductByID(catalogSvc, stockSvc))
	mux.Handle("/holds", transporthttp.HandleCreateHold(stockSvc))
	mux.Handle("/orders", transporthttp.HandleCreateOrder(orderSvc))
	mux.Handle("/webhooks/payment", transporthttp.HandlePaymentWebhook(webhookSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), log)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	log.Info().Str("port", cfg.Port).Msg("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
		}
	case <-stopCtx.Done():
		log.Info().Msg("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}
