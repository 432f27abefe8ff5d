package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jvaldes/stockhold/internal/clock"
	"github.com/jvaldes/stockhold/internal/domain"
)

type WebhookRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindWebhookByKey(ctx context.Context, idempotencyKey string) (*domain.PaymentWebhook, error)
	CreateWebhook(ctx context.Context, webhook domain.PaymentWebhook) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// OrderFinalizer drives the terminal order transitions on behalf of webhook
// ingestion. The calls run inside the ingestion transaction via the
// transaction carried in ctx.
type OrderFinalizer interface {
	MarkAsPaid(ctx context.Context, orderID string) error
	Cancel(ctx context.Context, orderID string) error
}

// WebhookService ingests payment notifications exactly once per idempotency
// key. The persisted record is itself the guarantee: the unique-key
// constraint rejects concurrent duplicate inserts, forcing a racing
// duplicate onto the already-processed branch.
type WebhookService struct {
	repo   WebhookRepository
	orders OrderFinalizer
	clock  clock.Clock
	log    zerolog.Logger
	newID  func() string
}

func NewWebhookService(repo WebhookRepository, orders OrderFinalizer, clk clock.Clock, log zerolog.Logger, opts ...WebhookServiceOption) *WebhookService {
	svc := &WebhookService{
		repo:   repo,
		orders: orders,
		clock:  clk,
		log:    log,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type WebhookServiceOption func(*WebhookService)

// WithWebhookIDGenerator overrides webhook record id generation.
func WithWebhookIDGenerator(fn func() string) WebhookServiceOption {
	return func(s *WebhookService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

type IngestInput struct {
	IdempotencyKey string
	Status         domain.WebhookStatus
	OrderID        *string
	Payload        json.RawMessage
}

type IngestResult struct {
	AlreadyProcessed bool
	Webhook          domain.PaymentWebhook
}

// Ingest records the notification and, when its order exists and is still
// pending, settles it. A delivery whose key is already recorded changes
// nothing and reports the stored record, no matter how often it repeats.
func (s *WebhookService) Ingest(ctx context.Context, in IngestInput) (IngestResult, error) {
	if in.IdempotencyKey == "" {
		return IngestResult{}, domain.ErrIdempotencyKeyRequired
	}
	if in.Status != domain.WebhookStatusSuccess && in.Status != domain.WebhookStatusFailed {
		return IngestResult{}, domain.ErrInvalidWebhookStatus
	}

	now := s.clock.Now()
	var result IngestResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindWebhookByKey(txCtx, in.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			s.log.Info().
				Str("idempotency_key", in.IdempotencyKey).
				Str("existing_status", string(existing.Status)).
				Msg("duplicate webhook detected")
			result = IngestResult{AlreadyProcessed: true, Webhook: *existing}
			return nil
		}

		webhook := domain.PaymentWebhook{
			ID:             s.newID(),
			IdempotencyKey: in.IdempotencyKey,
			OrderID:        in.OrderID,
			Status:         in.Status,
			Payload:        in.Payload,
			CreatedAt:      now,
		}
		if err := s.repo.CreateWebhook(txCtx, webhook); err != nil {
			// A concurrent delivery with the same key won the insert race;
			// re-read so the retry resolves to the stored record.
			if errors.Is(err, domain.ErrDuplicateWebhook) {
				stored, err := s.repo.FindWebhookByKey(txCtx, in.IdempotencyKey)
				if err != nil {
					return err
				}
				if stored != nil {
					result = IngestResult{AlreadyProcessed: true, Webhook: *stored}
					return nil
				}
			}
			return err
		}

		if in.OrderID != nil {
			if err := s.settleOrder(txCtx, *in.OrderID, in.Status, in.IdempotencyKey); err != nil {
				return err
			}
		}

		result = IngestResult{Webhook: webhook}
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	return result, nil
}

func (s *WebhookService) settleOrder(ctx context.Context, orderID string, status domain.WebhookStatus, key string) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		// The notification raced ahead of order creation; the stored record
		// is replayed once the order appears.
		s.log.Info().
			Str("idempotency_key", key).
			Str("order_id", orderID).
			Msg("webhook received before order creation")
		return nil
	}
	if !order.IsPending() {
		return nil
	}

	switch status {
	case domain.WebhookStatusSuccess:
		return s.orders.MarkAsPaid(ctx, orderID)
	case domain.WebhookStatusFailed:
		if err := s.orders.Cancel(ctx, orderID); err != nil {
			return err
		}
		s.log.Info().
			Str("order_id", orderID).
			Str("idempotency_key", key).
			Msg("order cancelled via webhook")
	}
	return nil
}
