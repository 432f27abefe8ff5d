package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/domain"
)

type ExpiryRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListExpiredHolds(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.Hold, error)
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	MarkHoldUsed(ctx context.Context, holdID string) error
}

// ExpiryService reclaims stock from holds whose deadline passed without an
// order. It is a best-effort reclaimer: each hold is handled in its own
// transaction with a re-check under the hold row lock, and a failing hold is
// simply retried on the next run.
type ExpiryService struct {
	repo      ExpiryRepository
	cache     AvailabilityCache
	clock     clock.Clock
	log       zerolog.Logger
	batchSize int
}

const defaultSweepBatchSize = 100

func NewExpiryService(repo ExpiryRepository, cache AvailabilityCache, clk clock.Clock, log zerolog.Logger, opts ...ExpiryServiceOption) *ExpiryService {
	svc := &ExpiryService{
		repo:      repo,
		cache:     cache,
		clock:     clk,
		log:       log,
		batchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ExpiryServiceOption func(*ExpiryService)

// WithSweepBatchSize overrides how many candidates each scan page holds.
func WithSweepBatchSize(n int) ExpiryServiceOption {
	return func(s *ExpiryService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Sweep scans expired unused holds in bounded batches and reclaims each one
// that still qualifies under its row lock. Returns the number of holds
// reclaimed in this run.
func (s *ExpiryService) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	reclaimed := 0
	afterID := ""

	for {
		batch, err := s.repo.ListExpiredHolds(ctx, now, afterID, s.batchSize)
		if err != nil {
			return reclaimed, err
		}
		if len(batch) == 0 {
			break
		}

		for _, candidate := range batch {
			// Keyset cursor: a hold that keeps failing cannot wedge the run.
			afterID = candidate.ID

			ok, err := s.reclaim(ctx, candidate.ID)
			if err != nil {
				s.log.Error().Err(err).Str("hold_id", candidate.ID).Msg("error processing expired hold")
				continue
			}
			if ok {
				reclaimed++
			}
		}

		if len(batch) < s.batchSize {
			break
		}
	}

	s.log.Info().Int("reclaimed", reclaimed).Msg("expiry sweep finished")
	return reclaimed, nil
}

// reclaim re-locks the hold and re-checks both sweep conditions, defending
// against an order creation racing the scan. Reports whether this call
// performed the reclamation.
func (s *ExpiryService) reclaim(ctx context.Context, holdID string) (bool, error) {
	var done bool
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			if errors.Is(err, domain.ErrHoldNotFound) {
				return nil
			}
			return err
		}
		if hold.IsUsed || !hold.IsExpired(s.clock.Now()) {
			return nil
		}

		if err := s.repo.MarkHoldUsed(txCtx, holdID); err != nil {
			return err
		}
		invalidateAvailability(txCtx, s.cache, s.log, hold.ProductID)
		done = true

		s.log.Info().
			Str("hold_id", holdID).
			Str("product_id", hold.ProductID).
			Int("quantity", hold.Quantity).
			Msg("expired hold reclaimed")
		return nil
	})
	return done, err
}
