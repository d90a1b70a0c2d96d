package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"card-gateway/models"
	"card-gateway/store"
)

var (
	ErrAlreadyCompleted = errors.New("ledger: transaction already completed")
	ErrNotTerminal      = errors.New("ledger: outcome status is not terminal")
)

// Ledger records one row per authorization attempt and moves it from pending
// to a terminal status exactly once.
type Ledger struct {
	store    store.LedgerStore
	now      func() time.Time
	newToken func() string
}

// New returns a Ledger over s that issues UUID tokens.
func New(s store.LedgerStore) *Ledger {
	return &Ledger{
		store:    s,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
}

// BeginInput identifies the attempt being opened.
type BeginInput struct {
	OrderID      string
	UserID       string
	Amount       int64
	CurrencyCode int
}

// Outcome is the terminal state of an attempt. Request and Response are
// sanitised before they are stored.
type Outcome struct {
	Status               models.TransactionStatus
	Attempt              models.AttemptOutcome
	GatewayTransactionID string
	ResponseCode         string
	ResponseMessage      string
	SignatureVerified    bool
	MismatchReason       string
	Request              map[string]string
	Response             map[string]string
	// RawResponse is kept, redacted and truncated, when Response is nil.
	RawResponse []byte
}

// Begin writes a pending record and returns its idempotency token. The
// token is sent to the gateway as transactionUnique.
func (l *Ledger) Begin(ctx context.Context, in BeginInput) (string, error) {
	token := l.newToken()
	rec := &models.TransactionRecord{
		Token:        token,
		OrderID:      in.OrderID,
		UserID:       in.UserID,
		Amount:       in.Amount,
		CurrencyCode: in.CurrencyCode,
		Status:       models.TxPending,
	}
	if err := l.store.InsertTransaction(ctx, rec); err != nil {
		return "", fmt.Errorf("ledger begin: %w", err)
	}
	return token, nil
}

// Complete moves a pending record to its terminal status. A second call for
// the same token returns ErrAlreadyCompleted and changes nothing.
func (l *Ledger) Complete(ctx context.Context, token string, out Outcome) error {
	if !out.Status.Terminal() {
		return ErrNotTerminal
	}

	now := l.now()
	upd := &models.TransactionRecord{
		Status:            out.Status,
		Outcome:           out.Attempt,
		ResponseCode:      out.ResponseCode,
		ResponseMessage:   truncate(out.ResponseMessage, 255),
		SignatureVerified: out.SignatureVerified,
		RequestPayload:    toJSON(SanitizeFields(out.Request)),
		CompletedAt:       &now,
	}
	if out.GatewayTransactionID != "" {
		id := out.GatewayTransactionID
		upd.GatewayTransactionID = &id
	}
	if out.MismatchReason != "" {
		reason := out.MismatchReason
		upd.SignatureMismatchReason = &reason
	}
	switch {
	case out.Response != nil:
		upd.ResponsePayload = toJSON(SanitizeFields(out.Response))
	case len(out.RawResponse) > 0:
		upd.ResponsePayload = toJSON(map[string]string{"raw": SanitizeRaw(out.RawResponse)})
	}

	err := l.store.CompleteTransaction(ctx, token, upd)
	if errors.Is(err, store.ErrNotPending) {
		return ErrAlreadyCompleted
	}
	if err != nil {
		return fmt.Errorf("ledger complete: %w", err)
	}
	return nil
}

// Get returns the record for a token.
func (l *Ledger) Get(ctx context.Context, token string) (*models.TransactionRecord, error) {
	return l.store.GetTransaction(ctx, token)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
