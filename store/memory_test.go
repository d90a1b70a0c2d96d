package store

import (
	"context"
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-gateway/models"
)

func TestMemory_OrderNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_CompleteOnlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.InsertTransaction(ctx, &models.TransactionRecord{Token: "t1", OrderID: "o1", Status: models.TxPending}))
	assert.ErrorIs(t, m.InsertTransaction(ctx, &models.TransactionRecord{Token: "t1"}), ErrDuplicate)

	require.NoError(t, m.CompleteTransaction(ctx, "t1", &models.TransactionRecord{Status: models.TxFailed, ResponseCode: "5"}))
	err := m.CompleteTransaction(ctx, "t1", &models.TransactionRecord{Status: models.TxSuccess, ResponseCode: "0"})
	assert.ErrorIs(t, err, ErrNotPending)

	rec, err := m.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, rec.Status)
	assert.Equal(t, "5", rec.ResponseCode)

	assert.ErrorIs(t, m.CompleteTransaction(ctx, "nope", &models.TransactionRecord{Status: models.TxFailed}), ErrNotFound)
}

func TestMemory_SettleUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.PutOrder(models.Order{ID: "o1", UserID: "u1", Status: models.OrderUnpaid, TotalAmount: 1000})

	require.NoError(t, m.Settle(ctx, &models.Settlement{ID: "s1", OrderID: "o1", Token: "t1"}))
	assert.ErrorIs(t, m.Settle(ctx, &models.Settlement{ID: "s2", OrderID: "o1", Token: "t2"}), ErrAlreadySettled)

	o, err := m.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, o.Status)
	assert.NotNil(t, o.PaidAt)

	s, ok := m.Settlement("o1")
	require.True(t, ok)
	assert.Equal(t, "t1", s.Token)
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(&mysql.MySQLError{Number: 1062}))
	assert.True(t, isDuplicate(&pq.Error{Code: "23505"}))
	assert.False(t, isDuplicate(&pq.Error{Code: "23503"}))
	assert.False(t, isDuplicate(errors.New("boom")))
	assert.False(t, isDuplicate(nil))
}
