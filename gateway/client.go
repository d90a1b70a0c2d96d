package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"card-gateway/logging"
	"card-gateway/monitoring"
)

const maxResponseBytes = 64 << 10

// TransportError means no trustworthy response was obtained. The charge may
// still have gone through on the gateway's side.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway transport: http status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the call ran out of time.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Client posts signed requests to the gateway's direct endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a client with a bounded per-call timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// Send makes exactly one POST and returns the raw response bytes untouched.
// It never retries.
func (c *Client) Send(ctx context.Context, req SignedRequest) ([]byte, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("external.service", "card-gateway"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(req.Encode()))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger := logging.WithTraceContext(span)
	logger.Debug("Sending gateway request",
		zap.Int("field_count", len(req.Fields)),
		zap.String("signature_preview", DigestPreview(req.Signature)),
	)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	duration := time.Since(start).Seconds()
	if err != nil {
		c.record(ctx, duration, "error")
		span.SetAttributes(attribute.String("external.status", "error"))
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.record(ctx, duration, strconv.Itoa(resp.StatusCode))
		span.SetAttributes(
			attribute.Int("external.status_code", resp.StatusCode),
			attribute.String("external.status", "failed"),
		)
		return nil, &TransportError{StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record(ctx, duration, "error")
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	c.record(ctx, duration, "ok")
	span.SetAttributes(attribute.String("external.status", "ok"))
	return raw, nil
}

func (c *Client) record(ctx context.Context, seconds float64, status string) {
	monitoring.GatewayCallDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("status", status)),
	)
}
