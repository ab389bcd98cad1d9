// Package telemetry initializes OpenTelemetry tracing and metrics exporters
// and defines the instruments the simulation driver records into.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Shutdown combines multiple shutdown functions.
type Shutdown func(ctx context.Context) error

// Init configures the global OpenTelemetry tracer and meter providers.
// If endpoint is empty, OTEL is disabled and no-op providers are used.
// Returns a shutdown function that must be called during graceful shutdown.
func Init(ctx context.Context, endpoint, serviceName, version string, insecure bool) (Shutdown, error) {
	if endpoint == "" {
		return func(ctx context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	// Trace exporter.
	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
	}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
	}
	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp,
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	// Metric exporter.
	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(endpoint),
	}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExp,
				sdkmetric.WithInterval(15*time.Second),
			),
		),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	shutdown := func(ctx context.Context) error {
		var firstErr error
		if err := tp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := mp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr
	}

	return shutdown, nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Instruments are the counters and histograms the driver records per native
// callback invocation. With no exporter configured they are no-ops.
type Instruments struct {
	Callbacks        metric.Int64Counter     // per calling point
	StateUpdates     metric.Int64Counter     // full refreshes of the time-series store
	ActuatorWrites   metric.Int64Counter     // accepted setpoint write-backs
	ActuationErrors  metric.Int64Counter     // skipped writes from malformed actuation output
	CallbackDuration metric.Float64Histogram // seconds spent inside user callbacks
}

// NewInstruments creates the driver instruments on the global meter.
func NewInstruments() (*Instruments, error) {
	m := Meter("github.com/buildsim/emsgo")

	callbacks, err := m.Int64Counter("emsgo.callbacks",
		metric.WithDescription("Native callback invocations, by calling point."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: callbacks counter: %w", err)
	}
	updates, err := m.Int64Counter("emsgo.state_updates",
		metric.WithDescription("Full state refreshes into the time-series store."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: state updates counter: %w", err)
	}
	writes, err := m.Int64Counter("emsgo.actuator_writes",
		metric.WithDescription("Accepted actuator setpoint write-backs."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: actuator writes counter: %w", err)
	}
	actErrs, err := m.Int64Counter("emsgo.actuation_errors",
		metric.WithDescription("Actuator writes skipped due to malformed actuation output."))
	if err != nil {
		return nil, fmt.Errorf("telemetry: actuation errors counter: %w", err)
	}
	dur, err := m.Float64Histogram("emsgo.callback_duration",
		metric.WithDescription("Seconds spent inside user callback code."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: callback duration histogram: %w", err)
	}

	return &Instruments{
		Callbacks:        callbacks,
		StateUpdates:     updates,
		ActuatorWrites:   writes,
		ActuationErrors:  actErrs,
		CallbackDuration: dur,
	}, nil
}
