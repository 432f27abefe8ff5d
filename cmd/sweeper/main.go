// The sweeper reclaims stock from holds whose reservation window passed
// without an order. It is the external periodic trigger for the expiry
// sweep: run it from cron with -interval 0, or leave it running on its own
// timer.
package main

import (
	"context"
	"flag"
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
	"github.com/jvaldes/stockhold/migrations"
)

func main() {
	interval := flag.Duration("interval", 0, "run the sweep every interval; 0 sweeps once and exits")
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Str("service", "sweeper").Logger()

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

	svc := app.NewExpiryService(
		postgres.NewHoldRepository(pool),
		rediscache.New(redisClient),
		clock.NewSystem(),
		log,
		app.WithSweepBatchSize(cfg.SweepBatchSize),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runSweep(ctx, svc, log)
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-ticker.C:
			runSweep(ctx, svc, log)
		}
	}
}

func runSweep(ctx context.Context, svc *app.ExpiryService, log zerolog.Logger) {
	reclaimed, err := svc.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Int("reclaimed", reclaimed).Msg("sweep failed")
		return
	}
	log.Info().Int("reclaimed", reclaimed).Msg("sweep complete")
}
