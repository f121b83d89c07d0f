package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/obs"
	"github.com/noah-isme/backend-sneakers/internal/order"
	"github.com/noah-isme/backend-sneakers/internal/pricing"
)

type recordingClient struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (c *recordingClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	c.opts = append(c.opts, opts)
	return &asynq.TaskInfo{ID: "1", Queue: "default"}, nil
}

func TestEnqueueOrderConfirmation(t *testing.T) {
	client := &recordingClient{}
	enq := Enqueuer{Client: client, Queue: "orders", MaxRetry: 3}
	id := uuid.New()

	require.NoError(t, enq.EnqueueOrderConfirmation(context.Background(), id))
	require.Len(t, client.tasks, 1)
	require.Equal(t, TypeOrderConfirmation, client.tasks[0].Type())

	var payload OrderConfirmationPayload
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &payload))
	require.Equal(t, id, payload.OrderID)

	kinds := map[asynq.OptionType]any{}
	for _, opt := range client.opts[0] {
		kinds[opt.Type()] = opt.Value()
	}
	require.Equal(t, "orders", kinds[asynq.QueueOpt])
	require.Equal(t, 3, kinds[asynq.MaxRetryOpt])
	require.Equal(t, TypeOrderConfirmation+":"+id.String(), kinds[asynq.TaskIDOpt])
}

func TestEnqueueTreatsDuplicatesAsSuccess(t *testing.T) {
	enq := Enqueuer{Client: &recordingClient{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, enq.EnqueueOrderConfirmation(context.Background(), uuid.New()))

	enq = Enqueuer{Client: &recordingClient{err: errors.New("redis down")}}
	require.Error(t, enq.EnqueueOrderConfirmation(context.Background(), uuid.New()))

	require.Error(t, Enqueuer{}.EnqueueOrderConfirmation(context.Background(), uuid.New()))
}

type orderMap map[uuid.UUID]order.Order

func (m orderMap) Get(_ context.Context, id uuid.UUID) (order.Order, error) {
	o, ok := m[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return o, nil
}

func newProcessor(orders orderMap) (*ConfirmationProcessor, *common.InMemoryEmail, *obs.CommerceMetrics) {
	mailer := &common.InMemoryEmail{}
	metrics := obs.NewCommerceMetrics("test", prometheus.NewRegistry())
	return &ConfirmationProcessor{Orders: orders, Email: mailer, Metrics: metrics, Logger: zerolog.Nop()}, mailer, metrics
}

func TestConfirmationProcessorSendsEmail(t *testing.T) {
	id := uuid.New()
	discount := int64(275)
	orders := orderMap{id: {
		ID:       id,
		UserID:   "u-1",
		Email:    "buyer@example.com",
		Status:   order.StatusPendingPayment,
		Currency: pricing.DefaultCurrency,
		Totals:   pricing.Totals{TotalBasePrice: 1099, TotalDiscount: &discount, TotalFinalPrice: 824, TotalQuantity: 1},
		Summary:  pricing.Summary{Subtotal: 1099, Discount: 275, Total: 824},
		Items: []order.Item{{
			Position: 1, ProductName: "Runner Pro", UnitBasePrice: 1099, Quantity: 1,
			Discount:  &pricing.Discount{Type: pricing.DiscountPercentage, Value: 25, Active: true},
			Breakdown: pricing.PriceBreakdown{BasePrice: 1099, DiscountAmount: &discount, FinalPrice: 824},
		}},
	}}
	proc, mailer, metrics := newProcessor(orders)
	task, err := NewOrderConfirmationTask(id)
	require.NoError(t, err)

	require.NoError(t, proc.ProcessTask(context.Background(), task))
	require.Len(t, mailer.Outbox, 1)
	require.Equal(t, "buyer@example.com", mailer.Outbox[0].To)
	require.Contains(t, mailer.Outbox[0].Body, "(-$2.75, 25% off) -> $8.24")
	require.Contains(t, mailer.Outbox[0].Body, "Total: $8.24")
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ConfirmationTotal.WithLabelValues("sent")))
}

func TestConfirmationProcessorSkipsMissingOrders(t *testing.T) {
	proc, mailer, _ := newProcessor(orderMap{})
	task, err := NewOrderConfirmationTask(uuid.New())
	require.NoError(t, err)

	err = proc.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, mailer.Outbox)

	err = proc.ProcessTask(context.Background(), asynq.NewTask(TypeOrderConfirmation, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestConfirmationProcessorWithoutRecipient(t *testing.T) {
	id := uuid.New()
	proc, mailer, _ := newProcessor(orderMap{id: {ID: id, UserID: "u-1", Currency: pricing.DefaultCurrency}})
	task, err := NewOrderConfirmationTask(id)
	require.NoError(t, err)
	require.NoError(t, proc.ProcessTask(context.Background(), task))
	require.Empty(t, mailer.Outbox)
}

func TestServeMuxRoutesConfirmation(t *testing.T) {
	proc, _, _ := newProcessor(orderMap{})
	mux := NewServeMux(proc)
	task, err := NewOrderConfirmationTask(uuid.New())
	require.NoError(t, err)
	require.ErrorIs(t, mux.ProcessTask(context.Background(), task), asynq.SkipRetry)
}
