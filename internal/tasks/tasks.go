// Package tasks defines the background jobs exchanged between the API and the
// worker over asynq.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeOrderConfirmation sends the order confirmation email.
const TypeOrderConfirmation = "order:confirmation"

// OrderConfirmationPayload identifies the order to confirm.
type OrderConfirmationPayload struct {
	OrderID uuid.UUID `json:"orderId"`
}

// NewOrderConfirmationTask builds the task for orderID.
func NewOrderConfirmationTask(orderID uuid.UUID) (*asynq.Task, error) {
	raw, err := json.Marshal(OrderConfirmationPayload{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeOrderConfirmation, raw), nil
}

// Client is the subset of *asynq.Client used by Enqueuer.
type Client interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes tasks with the configured queue and retry policy.
type Enqueuer struct {
	Client   Client
	Queue    string
	MaxRetry int
	// Retention keeps completed task ids around so duplicate enqueues are rejected.
	Retention time.Duration
}

// EnqueueOrderConfirmation schedules the confirmation for orderID. Enqueuing
// the same order twice is not an error.
func (e Enqueuer) EnqueueOrderConfirmation(ctx context.Context, orderID uuid.UUID) error {
	if e.Client == nil {
		return errors.New("tasks: client not configured")
	}
	task, err := NewOrderConfirmationTask(orderID)
	if err != nil {
		return fmt.Errorf("build confirmation task: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID(TypeOrderConfirmation + ":" + orderID.String()),
		asynq.MaxRetry(e.maxRetry()),
	}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeOrderConfirmation, err)
	}
	return nil
}

func (e Enqueuer) maxRetry() int {
	if e.MaxRetry <= 0 {
		return 5
	}
	return e.MaxRetry
}
