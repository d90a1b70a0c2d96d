package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"gorm.io/datatypes"
)

// OrderStatus is the lifecycle state of an order owned by the shop.
type OrderStatus string

const (
	OrderUnpaid    OrderStatus = "unpaid"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is read-only to the adapter; only the settlement step marks it paid.
type Order struct {
	ID           string      `gorm:"primaryKey;size:64"`
	UserID       string      `gorm:"size:64;not null;index"`
	Status       OrderStatus `gorm:"size:16;not null"`
	TotalAmount  int64       `gorm:"not null"`
	CurrencyCode int         `gorm:"not null"`
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Order) TableName() string { return "orders" }

// TransactionStatus is the ledger lifecycle state.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxSuccess   TransactionStatus = "success"
	TxFailed    TransactionStatus = "failed"
	TxAmbiguous TransactionStatus = "ambiguous"
)

// Terminal reports whether no further transition can happen.
func (s TransactionStatus) Terminal() bool {
	return s == TxSuccess || s == TxFailed || s == TxAmbiguous
}

// AttemptOutcome is where an authorization attempt ended up.
type AttemptOutcome string

const (
	OutcomeVerifiedSuccess   AttemptOutcome = "VERIFIED_SUCCESS"
	OutcomeVerifiedFailed    AttemptOutcome = "VERIFIED_FAILED"
	OutcomeUnverifiedSuccess AttemptOutcome = "UNVERIFIED_SUCCESS"
	OutcomeUnverifiedFailed  AttemptOutcome = "UNVERIFIED_FAILED"
	OutcomeTransportError    AttemptOutcome = "TRANSPORT_ERROR"
	OutcomeLocalFailure      AttemptOutcome = "LOCAL_FAILURE"
)

// TransactionRecord is one authorization attempt, keyed by its idempotency token.
type TransactionRecord struct {
	Token                   string            `gorm:"primaryKey;size:36"`
	OrderID                 string            `gorm:"size:64;not null;index"`
	UserID                  string            `gorm:"size:64;not null;index"`
	Amount                  int64             `gorm:"not null"`
	CurrencyCode            int               `gorm:"not null"`
	Status                  TransactionStatus `gorm:"size:16;not null;index"`
	Outcome                 AttemptOutcome    `gorm:"size:32"`
	GatewayTransactionID    *string           `gorm:"size:128"`
	ResponseCode            string            `gorm:"size:16"`
	ResponseMessage         string            `gorm:"size:255"`
	SignatureVerified       bool              `gorm:"not null;default:false"`
	SignatureMismatchReason *string           `gorm:"size:64"`
	RequestPayload          datatypes.JSON
	ResponsePayload         datatypes.JSON
	CreatedAt               time.Time
	UpdatedAt               time.Time
	CompletedAt             *time.Time
}

func (TransactionRecord) TableName() string { return "card_transactions" }

// Settlement marks an order as paid by a specific attempt. OrderID is unique.
type Settlement struct {
	ID                   string `gorm:"primaryKey;size:36"`
	OrderID              string `gorm:"size:64;not null;uniqueIndex"`
	Token                string `gorm:"size:36;not null"`
	GatewayTransactionID string `gorm:"size:128"`
	Amount               int64  `gorm:"not null"`
	CreatedAt            time.Time
}

func (Settlement) TableName() string { return "order_settlements" }

// FlexString accepts a JSON string or number, so "07" and 7 both bind.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if v == nil {
		*f = ""
		return nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }

// AuthorizeRequest is the inbound JSON body.
type AuthorizeRequest struct {
	Amount          int64      `json:"amount" binding:"required,gt=0"`
	CurrencyCode    int        `json:"currencyCode" binding:"required,gt=0,lte=999"`
	OrderRef        string     `json:"orderRef" binding:"required,max=64"`
	CustomerEmail   string     `json:"customerEmail" binding:"omitempty,email,max=254"`
	CustomerName    string     `json:"customerName" binding:"omitempty,max=128"`
	CardNumber      FlexString `json:"cardNumber" binding:"required"`
	CardExpiryMonth FlexString `json:"cardExpiryMonth" binding:"required"`
	CardExpiryYear  FlexString `json:"cardExpiryYear" binding:"required"`
	CardCVV         FlexString `json:"cardCVV" binding:"required"`
}

// AuthorizeResponse is returned to the caller for every outcome.
type AuthorizeResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transactionID,omitempty"`
	OrderRef      string `json:"orderRef,omitempty"`
	Message       string `json:"message,omitempty"`
	ResponseCode  string `json:"responseCode,omitempty"`
}
