package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/order"
)

// OrderLoader loads a materialized order.
type OrderLoader interface {
	Get(ctx context.Context, id uuid.UUID) (order.Order, error)
}

// ConfirmationProcessor renders and sends order confirmations.
type ConfirmationProcessor struct {
	Orders  OrderLoader
	Email   common.EmailSender
	Metrics *obs.CommerceMetrics
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (p *ConfirmationProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload OrderConfirmationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		p.Metrics.Confirmation("invalid")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	logger := p.Logger.With().Str("task", t.Type()).Str("order_id", payload.OrderID.String()).Logger()

	o, err := p.Orders.Get(ctx, payload.OrderID)
	if errors.Is(err, order.ErrNotFound) {
		p.Metrics.Confirmation("not_found")
		logger.Warn().Msg("confirmation_order_missing")
		return fmt.Errorf("order %s: %w", payload.OrderID, asynq.SkipRetry)
	}
	if err != nil {
		p.Metrics.Confirmation("error")
		return fmt.Errorf("load order: %w", err)
	}
	if o.Email == "" {
		p.Metrics.Confirmation("no_recipient")
		logger.Info().Msg("confirmation_skipped_no_email")
		return nil
	}

	confirmation := order.RenderConfirmation(o)
	if err := p.Email.Send(o.Email, confirmation.Subject(), confirmation.PlainText()); err != nil {
		p.Metrics.Confirmation("error")
		return fmt.Errorf("send confirmation: %w", err)
	}
	p.Metrics.Confirmation("sent")
	logger.Info().Str("total", confirmation.Summary.Total).Msg("confirmation_sent")
	return nil
}

// NewServeMux registers every task handler.
func NewServeMux(confirmations *ConfirmationProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeOrderConfirmation, confirmations)
	return mux
}
