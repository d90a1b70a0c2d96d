package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"card-gateway/models"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu           sync.Mutex
	orders       map[string]models.Order
	transactions map[string]models.TransactionRecord
	settlements  map[string]models.Settlement
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		orders:       make(map[string]models.Order),
		transactions: make(map[string]models.TransactionRecord),
		settlements:  make(map[string]models.Settlement),
	}
}

// PutOrder inserts or replaces an order.
func (m *Memory) PutOrder(o models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

// GetOrder returns a copy of the order or ErrNotFound.
func (m *Memory) GetOrder(_ context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

// InsertTransaction stores a new record; a reused token is ErrDuplicate.
func (m *Memory) InsertTransaction(_ context.Context, rec *models.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[rec.Token]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	m.transactions[rec.Token] = cloneRecord(*rec)
	return nil
}

// CompleteTransaction applies upd only while the record is pending.
func (m *Memory) CompleteTransaction(_ context.Context, token string, upd *models.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.transactions[token]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != models.TxPending {
		return ErrNotPending
	}

	cur.Status = upd.Status
	cur.Outcome = upd.Outcome
	cur.GatewayTransactionID = upd.GatewayTransactionID
	cur.ResponseCode = upd.ResponseCode
	cur.ResponseMessage = upd.ResponseMessage
	cur.SignatureVerified = upd.SignatureVerified
	cur.SignatureMismatchReason = upd.SignatureMismatchReason
	cur.RequestPayload = upd.RequestPayload
	cur.ResponsePayload = upd.ResponsePayload
	cur.CompletedAt = upd.CompletedAt
	cur.UpdatedAt = time.Now().UTC()
	m.transactions[token] = cloneRecord(cur)
	return nil
}

// GetTransaction returns a copy of the record or ErrNotFound.
func (m *Memory) GetTransaction(_ context.Context, token string) (*models.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.transactions[token]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

// HasSuccessfulTransaction reports whether any record for the order succeeded.
func (m *Memory) HasSuccessfulTransaction(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.transactions {
		if rec.OrderID == orderID && rec.Status == models.TxSuccess {
			return true, nil
		}
	}
	return false, nil
}

// Transactions returns every record for an order, oldest first.
func (m *Memory) Transactions(orderID string) []models.TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TransactionRecord
	for _, rec := range m.transactions {
		if rec.OrderID == orderID {
			out = append(out, cloneRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Settle records the settlement and marks the order paid, once per order.
func (m *Memory) Settle(_ context.Context, s *models.Settlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settlements[s.OrderID]; ok {
		return ErrAlreadySettled
	}
	o, ok := m.orders[s.OrderID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	m.settlements[s.OrderID] = *s
	o.Status = models.OrderPaid
	o.PaidAt = &now
	m.orders[o.ID] = o
	return nil
}

// Settlement returns the settlement row for an order.
func (m *Memory) Settlement(orderID string) (models.Settlement, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settlements[orderID]
	return s, ok
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *Memory) Close() error { return nil }

func cloneRecord(r models.TransactionRecord) models.TransactionRecord {
	if r.RequestPayload != nil {
		r.RequestPayload = append([]byte(nil), r.RequestPayload...)
	}
	if r.ResponsePayload != nil {
		r.ResponsePayload = append([]byte(nil), r.ResponsePayload...)
	}
	return r
}
