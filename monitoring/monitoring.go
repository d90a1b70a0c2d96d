package monitoring

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"card-gateway/logging"
)

var (
	AuthorizationCounter     metric.Int64Counter
	AuthorizationAmount      metric.Int64Histogram
	SignatureMismatchCounter metric.Int64Counter
	GatewayCallDuration      metric.Float64Histogram
	HTTPServerDuration       metric.Float64Histogram
)

func init() {
	// Instruments are usable before InitMeter runs; they just record nothing.
	if err := createInstruments(noop.NewMeterProvider().Meter("card-gateway")); err != nil {
		panic(err)
	}
}

// InitTracer installs a tracer provider. With an empty endpoint spans are
// created but never exported.
func InitTracer(serviceName, endpoint string) (*sdktrace.TracerProvider, trace.Tracer, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if endpoint != "" {
		exporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	logging.Info("Tracing initialized", zap.String("service_name", serviceName), zap.Bool("export", endpoint != ""))
	return tp, tp.Tracer(serviceName), nil
}

// InitMeter installs a meter provider with a Prometheus reader and, when an
// endpoint is given, an OTLP periodic reader. The returned handler serves the
// Prometheus scrape endpoint.
func InitMeter(serviceName, endpoint string) (*sdkmetric.MeterProvider, http.Handler, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	}
	if endpoint != "" {
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	if err := createInstruments(mp.Meter(serviceName)); err != nil {
		return nil, nil, err
	}

	logging.Info("Metrics initialized", zap.String("endpoint", endpoint))
	return mp, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func createInstruments(meter metric.Meter) error {
	var err error

	AuthorizationCounter, err = meter.Int64Counter(
		"card_authorizations_total",
		metric.WithDescription("Card authorization attempts by outcome and ledger status"),
	)
	if err != nil {
		return err
	}

	AuthorizationAmount, err = meter.Int64Histogram(
		"card_authorization_amount_minor",
		metric.WithDescription("Approved authorization amounts in minor currency units"),
	)
	if err != nil {
		return err
	}

	SignatureMismatchCounter, err = meter.Int64Counter(
		"card_signature_mismatches_total",
		metric.WithDescription("Gateway responses whose signature did not verify"),
	)
	if err != nil {
		return err
	}

	GatewayCallDuration, err = meter.Float64Histogram(
		"gateway_call_duration_seconds",
		metric.WithDescription("Duration of card gateway calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	HTTPServerDuration, err = meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP server request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}
