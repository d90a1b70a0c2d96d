package guard

import (
	"context"
	"errors"
	"fmt"

	"card-gateway/models"
	"card-gateway/store"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrNotOrderOwner    = errors.New("caller does not own order")
	ErrOrderAlreadyPaid = errors.New("order is not payable")
	ErrAmountMismatch   = errors.New("amount does not match order total")
)

// Guard fails closed before any ledger write or gateway call.
type Guard struct {
	orders store.OrderStore
}

// New returns a Guard reading from orders.
func New(orders store.OrderStore) *Guard {
	return &Guard{orders: orders}
}

// Check loads the order and rejects the attempt if the caller does not own
// it, it is no longer payable, or the amount differs from its total. An
// order with a successful ledger row is not payable even while unpaid.
// Ownership is checked first so a stranger learns nothing about the order.
func (g *Guard) Check(ctx context.Context, callerID, orderRef string, amount int64) (*models.Order, error) {
	order, err := g.load(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if callerID == "" || order.UserID != callerID {
		return nil, ErrNotOrderOwner
	}
	if err := g.payable(ctx, order); err != nil {
		return nil, err
	}
	if order.TotalAmount != amount {
		return nil, ErrAmountMismatch
	}
	return order, nil
}

// Recheck re-reads the order status just before the ledger write. It narrows
// the window for two attempts on one order; settlement uniqueness closes it.
func (g *Guard) Recheck(ctx context.Context, orderID string) error {
	order, err := g.load(ctx, orderID)
	if err != nil {
		return err
	}
	return g.payable(ctx, order)
}

func (g *Guard) payable(ctx context.Context, order *models.Order) error {
	if order.Status != models.OrderUnpaid {
		return ErrOrderAlreadyPaid
	}
	charged, err := g.orders.HasSuccessfulTransaction(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("check ledger: %w", err)
	}
	if charged {
		return ErrOrderAlreadyPaid
	}
	return nil
}

func (g *Guard) load(ctx context.Context, id string) (*models.Order, error) {
	order, err := g.orders.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return order, nil
}
