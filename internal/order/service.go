// Package order serves materialized orders. Orders are written by checkout;
// this package only reads them and moves them through their lifecycle.
package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-sneakers/internal/common"
	"github.com/noah-isme/backend-sneakers/internal/rbac"
)

// Service implements order reads and status changes.
type Service struct {
	Store  Store
	Tx     TxRunner
	Policy rbac.Policy
}

// ListOwn returns the caller's orders, newest first.
func (s *Service) ListOwn(ctx context.Context, userID string, limit, offset int) ([]Order, int, error) {
	return s.Store.ListByUser(ctx, userID, limit, offset)
}

// ListAll returns every order, optionally filtered by status.
func (s *Service) ListAll(ctx context.Context, status Status, limit, offset int) ([]Order, int, error) {
	if status != "" && rank(status) < -1 {
		return nil, 0, common.BadRequest("unsupported status", nil)
	}
	return s.Store.ListAll(ctx, status, limit, offset)
}

// Get loads an order the principal may read. Orders the caller may not see
// are reported as missing.
func (s *Service) Get(ctx context.Context, principal rbac.Principal, id uuid.UUID) (Order, error) {
	o, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !s.Policy.Can(principal, rbac.ActionRead, rbac.SubjectOrder, map[string]any{"userId": o.UserID}) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// Confirmation renders an order the principal may read.
func (s *Service) Confirmation(ctx context.Context, principal rbac.Principal, id uuid.UUID) (Confirmation, error) {
	o, err := s.Get(ctx, principal, id)
	if err != nil {
		return Confirmation{}, err
	}
	return RenderConfirmation(o), nil
}

// Cancel cancels one of the caller's unpaid orders and returns its stock.
func (s *Service) Cancel(ctx context.Context, userID string, id uuid.UUID) error {
	return s.Tx.InTx(ctx, func(store Store) error {
		o, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return ErrNotFound
		}
		if o.Status != StatusPendingPayment {
			return fmt.Errorf("only pending orders can be canceled: %w", ErrInvalidState)
		}
		if err := store.SetStatus(ctx, id, StatusPendingPayment, StatusCanceled); err != nil {
			return err
		}
		return store.RestoreStock(ctx, o.Items)
	})
}

// Advance moves an order forward through fulfilment. Moving to an equal or
// earlier state is rejected; cancellation is only possible before shipping.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, target Status) error {
	if !isAdminTarget(target) {
		return common.BadRequest("unsupported status", nil)
	}
	return s.Tx.InTx(ctx, func(store Store) error {
		o, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		if target == StatusCanceled {
			if o.Status != StatusPendingPayment && o.Status != StatusPaid && o.Status != StatusPacked {
				return ErrInvalidState
			}
			if err := store.SetStatus(ctx, id, o.Status, target); err != nil {
				return err
			}
			return store.RestoreStock(ctx, o.Items)
		}
		if rank(o.Status) < 0 || rank(o.Status) >= rank(target) {
			return ErrInvalidState
		}
		return store.SetStatus(ctx, id, o.Status, target)
	})
}

func isAdminTarget(status Status) bool {
	switch status {
	case StatusPaid, StatusPacked, StatusShipped, StatusDelivered, StatusCanceled:
		return true
	}
	return false
}

func rank(status Status) int {
	switch status {
	case StatusPendingPayment:
		return 0
	case StatusPaid:
		return 1
	case StatusPacked:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	case StatusCanceled:
		return -1
	default:
		return -2
	}
}

// MapError converts package errors into AppErrors.
func MapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("order not found", err)
	case errors.Is(err, ErrInvalidState):
		return common.NewAppError("INVALID_STATE", "order status transition not allowed", http.StatusConflict, err)
	case common.IsAppError(err):
		return err
	default:
		return fmt.Errorf("order: %w", err)
	}
}
