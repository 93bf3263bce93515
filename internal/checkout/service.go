// Package checkout turns carts into orders and reacts to the payment
// collaborator's single "payment succeeded for order O" event. The wire
// shape of the upstream gateway never reaches this package.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/pgstore"
	"github.com/xfarydz/rydstore-backend/internal/pricing"
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentApplyFailed means the payment was confirmed but the
	// inventory mutation could not be applied. Fatal to the order, not
	// to the process: the order is flagged for manual reconciliation.
	ErrPaymentApplyFailed = errors.New("failed to apply confirmed payment")
)

// Store is the order persistence and the atomic payment-apply
// transaction. Implemented by pgstore.Client.
type Store interface {
	GetCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ExecutePaymentSuccess(ctx context.Context, orderID string, paidAt time.Time) (*models.Order, error)
	MarkOrderNeedsReconciliation(ctx context.Context, orderID string) error
}

// Service handles checkout initiation and payment confirmation.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a new checkout service
func NewService(store Store) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder snapshots the user's cart into a pending order with
// freshly computed totals. The cart itself is untouched until payment
// succeeds.
func (s *Service) CreateOrder(ctx context.Context, userID string) (*models.Order, error) {
	lines, err := s.store.GetCartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	totals := pricing.ComputeTotals(lines)
	order := &models.Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Lines:       lines,
		Subtotal:    totals.Subtotal,
		ShippingFee: totals.ShippingFee,
		Total:       totals.Total,
		Status:      models.OrderStatusPending,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// ConfirmPayment applies a confirmed payment: every product on the
// order is marked sold and the buyer's cart is cleared, atomically. If
// the apply fails, the order is flagged for manual reconciliation and
// ErrPaymentApplyFailed is returned; the confirmation is never dropped
// silently.
func (s *Service) ConfirmPayment(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.ExecutePaymentSuccess(ctx, orderID, s.now())
	if err == nil {
		return order, nil
	}
	if errors.Is(err, pgstore.ErrOrderNotFound) || errors.Is(err, pgstore.ErrOrderNotPending) {
		// Nothing was confirmed against a live pending order; there is
		// no inventory state to reconcile.
		return nil, err
	}

	if flagErr := s.store.MarkOrderNeedsReconciliation(ctx, orderID); flagErr != nil {
		fmt.Printf("[CHECKOUT] failed to flag order %s for reconciliation: %v\n", orderID, flagErr)
	}
	return nil, fmt.Errorf("%w: %v", ErrPaymentApplyFailed, err)
}
