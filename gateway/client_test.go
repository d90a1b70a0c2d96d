package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendReturnsRawBytes(t *testing.T) {
	want := SignResponse(sampleResponse(), testSecret)
	var gotBody url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody, _ = url.ParseQuery(string(b))
		_, _ = w.Write(want)
	}))
	defer srv.Close()

	req := SignRequest(Fields{"merchantID": "100001", "amount": "1000"}, testSecret)
	raw, err := NewClient(srv.URL, time.Second).Send(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, want, raw)
	assert.Equal(t, req.Signature, gotBody.Get("signature"))
	assert.Equal(t, "1000", gotBody.Get("amount"))
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, 50*time.Millisecond).Send(context.Background(), SignRequest(Fields{"a": "1"}, testSecret))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout())
}

func TestClient_ServerErrorIsTransportError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Send(context.Background(), SignRequest(Fields{"a": "1"}, testSecret))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.False(t, te.Timeout())
	assert.Equal(t, 1, calls, "no retry")
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	_, err := NewClient(endpoint, time.Second).Send(context.Background(), SignRequest(Fields{"a": "1"}, testSecret))

	var te *TransportError
	assert.True(t, errors.As(err, &te))
}
