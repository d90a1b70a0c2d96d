package store

import (
	"context"
	"errors"

	"card-gateway/models"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicate      = errors.New("duplicate record")
	ErrNotPending     = errors.New("transaction is not pending")
	ErrAlreadySettled = errors.New("order already settled")
)

// OrderStore reads orders and whether one has already been charged.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// HasSuccessfulTransaction reports whether any ledger row for the order
	// reached success, settled or not.
	HasSuccessfulTransaction(ctx context.Context, orderID string) (bool, error)
}

// LedgerStore persists transaction records.
type LedgerStore interface {
	InsertTransaction(ctx context.Context, rec *models.TransactionRecord) error
	// CompleteTransaction applies the terminal fields of upd only if the row
	// is still pending, returning ErrNotPending otherwise.
	CompleteTransaction(ctx context.Context, token string, upd *models.TransactionRecord) error
	GetTransaction(ctx context.Context, token string) (*models.TransactionRecord, error)
}

// Settler marks an order paid. A second settlement for the same order
// returns ErrAlreadySettled.
type Settler interface {
	Settle(ctx context.Context, s *models.Settlement) error
}

// Store is the full backing store used by the service.
type Store interface {
	OrderStore
	LedgerStore
	Settler
	Ping(ctx context.Context) error
	Close() error
}
