// Package telemetry implements SPEC_FULL.md §4.14: a Bundle constructed
// once per engine carrying a structured logger, an OpenTelemetry meter
// backed by a Prometheus exporter, and a tracer, wired into counters
// for the engine's own components (page pool, MCS locks, array
// storage, partitioner). No component requires telemetry to function
// correctly; a disabled Bundle is all no-ops. Grounded on the pack's
// pkg/telemetry OpenTelemetry+Prometheus setup.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Config holds everything needed to build a Bundle (SPEC_FULL.md §6
// "telemetry.Config").
type Config struct {
	Enabled        bool
	ServiceName    string
	PrometheusPort int
	LogLevel       string
	LogFormat      string
}

// Counters are the engine-specific instruments SPEC_FULL.md §4.14
// names: "counters for page-pool grabs/releases/exhaustion, MCS lock
// acquisitions and wait counts, array lookups, partitioner rebalances."
type Counters struct {
	PagePoolGrabs         metric.Int64Counter
	PagePoolReleases      metric.Int64Counter
	PagePoolExhaustions   metric.Int64Counter
	McsLockAcquisitions   metric.Int64Counter
	McsLockWaitIterations metric.Int64Counter
	ArrayLookups          metric.Int64Counter
	PartitionerRebalances metric.Int64Counter
}

// Bundle is the engine-wide telemetry surface threaded into every
// component that can fail or block.
type Bundle struct {
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Meter    metric.Meter
	Counters Counters

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// New builds a Bundle from config. A disabled config yields a Bundle
// with a no-op tracer/meter and counters that silently discard every
// increment, so callers never need to branch on whether telemetry is on.
func New(config Config, logCfg LogConfig) (*Bundle, error) {
	logger, err := newLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building logger: %w", err)
	}

	if !config.Enabled {
		b := &Bundle{
			Logger: logger,
			Tracer: nooptrace.NewTracerProvider().Tracer(""),
			Meter:  noop.NewMeterProvider().Meter(""),
		}
		b.Counters = mustBuildCounters(b.Meter)
		return b, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(config.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: building prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	go func() {
		addr := fmt.Sprintf(":%d", config.PrometheusPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			otel.Handle(fmt.Errorf("telemetry: prometheus http server failed: %w", err))
		}
	}()

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	tracer := tracerProvider.Tracer(config.ServiceName)
	meter := meterProvider.Meter(config.ServiceName)

	b := &Bundle{
		Logger:         logger,
		Tracer:         tracer,
		Meter:          meter,
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
	}
	b.Counters, err = buildCounters(meter)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building counters: %w", err)
	}
	return b, nil
}

// NewNop builds a disabled Bundle, for callers (mainly tests) that need
// a Bundle to satisfy a constructor but have no interest in its output.
// The stdout write syncer a disabled logger falls back to never fails,
// so this cannot return an error worth propagating.
func NewNop() *Bundle {
	b, err := New(Config{Enabled: false}, LogConfig{Level: "info", Format: "json", OutputFile: "stdout"})
	if err != nil {
		panic(err)
	}
	return b
}

func mustBuildCounters(m metric.Meter) Counters {
	c, err := buildCounters(m)
	if err != nil {
		// The no-op meter never fails to create an instrument.
		panic(err)
	}
	return c
}

func buildCounters(m metric.Meter) (Counters, error) {
	var c Counters
	var err error
	if c.PagePoolGrabs, err = m.Int64Counter("page_pool.grabs"); err != nil {
		return c, err
	}
	if c.PagePoolReleases, err = m.Int64Counter("page_pool.releases"); err != nil {
		return c, err
	}
	if c.PagePoolExhaustions, err = m.Int64Counter("page_pool.exhaustions"); err != nil {
		return c, err
	}
	if c.McsLockAcquisitions, err = m.Int64Counter("mcs.lock_acquisitions"); err != nil {
		return c, err
	}
	if c.McsLockWaitIterations, err = m.Int64Counter("mcs.lock_wait_iterations"); err != nil {
		return c, err
	}
	if c.ArrayLookups, err = m.Int64Counter("array.lookups"); err != nil {
		return c, err
	}
	if c.PartitionerRebalances, err = m.Int64Counter("array.partitioner_rebalances"); err != nil {
		return c, err
	}
	return c, nil
}

// Shutdown flushes and stops the tracer/meter providers, if any were
// started (a disabled Bundle has none, and this is then a no-op).
func (b *Bundle) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if b.tracerProvider != nil {
		if err := b.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutting down tracer provider: %w", err)
		}
	}
	if b.meterProvider != nil {
		if err := b.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutting down meter provider: %w", err)
		}
	}
	return nil
}
