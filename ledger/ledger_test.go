package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"card-gateway/models"
	"card-gateway/store"
)

func begin(t *testing.T, l *Ledger) string {
	t.Helper()
	token, err := l.Begin(context.Background(), BeginInput{OrderID: "o1", UserID: "u1", Amount: 1000, CurrencyCode: 826})
	require.NoError(t, err)
	return token
}

func TestBegin_DistinctTokens(t *testing.T) {
	l := New(store.NewMemory())
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok := begin(t, l)
		require.False(t, seen[tok], "token reused: %s", tok)
		seen[tok] = true
	}
}

func TestBegin_WritesPending(t *testing.T) {
	l := New(store.NewMemory())
	tok := begin(t, l)

	rec, err := l.Get(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, models.TxPending, rec.Status)
	assert.Equal(t, int64(1000), rec.Amount)
	assert.Nil(t, rec.CompletedAt)
}

func TestComplete_ExactlyOnce(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory())
	tok := begin(t, l)

	require.NoError(t, l.Complete(ctx, tok, Outcome{
		Status:               models.TxSuccess,
		Attempt:              models.OutcomeVerifiedSuccess,
		GatewayTransactionID: "gw-1",
		ResponseCode:         "0",
		SignatureVerified:    true,
	}))

	err := l.Complete(ctx, tok, Outcome{Status: models.TxFailed, ResponseCode: "5"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	rec, err := l.Get(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, models.TxSuccess, rec.Status)
	assert.Equal(t, "0", rec.ResponseCode)
	require.NotNil(t, rec.GatewayTransactionID)
	assert.Equal(t, "gw-1", *rec.GatewayTransactionID)
	assert.NotNil(t, rec.CompletedAt)
}

func TestComplete_RejectsPendingOutcome(t *testing.T) {
	l := New(store.NewMemory())
	tok := begin(t, l)
	assert.ErrorIs(t, l.Complete(context.Background(), tok, Outcome{Status: models.TxPending}), ErrNotTerminal)
}

func TestComplete_AmbiguousIsDistinctFromFailed(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory())
	tok := begin(t, l)

	require.NoError(t, l.Complete(ctx, tok, Outcome{Status: models.TxAmbiguous, Attempt: models.OutcomeTransportError}))
	rec, err := l.Get(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, models.TxAmbiguous, rec.Status)
	assert.NotEqual(t, models.TxFailed, rec.Status)
	assert.Nil(t, rec.GatewayTransactionID)
}

func TestComplete_SanitizesPayloads(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory())
	tok := begin(t, l)

	require.NoError(t, l.Complete(ctx, tok, Outcome{
		Status:         models.TxFailed,
		Attempt:        models.OutcomeUnverifiedFailed,
		ResponseCode:   "65551",
		MismatchReason: "signature mismatch",
		Request: map[string]string{
			"cardNumber": "4012001037141112",
			"cardCVV":    "083",
			"amount":     "1000",
		},
		Response: map[string]string{"responseCode": "65551", "cardNumber": "4012001037141112"},
	}))

	rec, err := l.Get(ctx, tok)
	require.NoError(t, err)

	var req map[string]string
	require.NoError(t, json.Unmarshal(rec.RequestPayload, &req))
	assert.Equal(t, "4012********1112", req["cardNumber"])
	assert.NotContains(t, req, "cardCVV")
	assert.Equal(t, "1000", req["amount"])
	assert.NotContains(t, string(rec.RequestPayload), "083")

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.ResponsePayload, &resp))
	assert.Equal(t, "4012********1112", resp["cardNumber"])

	require.NotNil(t, rec.SignatureMismatchReason)
	assert.Equal(t, "signature mismatch", *rec.SignatureMismatchReason)
	assert.False(t, rec.SignatureVerified)
}

func TestComplete_RawResponseRedacted(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory())
	tok := begin(t, l)

	require.NoError(t, l.Complete(ctx, tok, Outcome{
		Status:      models.TxAmbiguous,
		Attempt:     models.OutcomeUnverifiedFailed,
		RawResponse: []byte("garbage&cardCVV=123&cardNumber=4012001037141112"),
	}))

	rec, err := l.Get(ctx, tok)
	require.NoError(t, err)
	assert.NotContains(t, string(rec.ResponsePayload), "cardCVV")
	assert.Contains(t, string(rec.ResponsePayload), "4012********1112")
}
