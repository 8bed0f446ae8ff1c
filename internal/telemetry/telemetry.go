// Package telemetry exports traces and conference metrics over OTLP gRPC.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Conference/internal/config"
	"github.com/dkeye/Conference/internal/media"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials/insecure"
)

const meterName = "github.com/dkeye/Conference"

type Telemetry struct {
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	config         config.TelemetryConfig
}

// New installs global tracer and meter providers. With telemetry disabled it
// returns an instance whose Shutdown does nothing; the global providers stay
// no-op.
func New(ctx context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	if !cfg.Enabled || cfg.ExporterURL == "" {
		log.Info().Str("module", "telemetry").Msg("telemetry disabled or no exporter URL provided")
		return &Telemetry{config: cfg}, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	)
	endpoint := cleanEndpoint(cfg.ExporterURL)

	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SamplingRatio)),
	)
	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, readerOpts...)),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().Str("module", "telemetry").
		Str("service", cfg.ServiceName).
		Str("endpoint", endpoint).
		Float64("sampling_ratio", cfg.SamplingRatio).
		Msg("telemetry initialized")

	return &Telemetry{tracerProvider: tp, meterProvider: mp, config: cfg}, nil
}

func cleanEndpoint(url string) string {
	for _, prefix := range []string{"grpc://", "http://", "https://"} {
		url = strings.TrimPrefix(url, prefix)
	}
	return url
}

func (t *Telemetry) IsEnabled() bool {
	return t.config.Enabled && t.tracerProvider != nil
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Metrics records room, participant and consumer counts. It satisfies
// app.Recorder.
type Metrics struct {
	rooms          metric.Int64UpDownCounter
	participants   metric.Int64UpDownCounter
	consumers      metric.Int64Counter
	engineFailures metric.Int64Counter
}

// NewMetrics builds the instruments from mp. Pass otel.GetMeterProvider() to
// use whatever New installed.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	var (
		m   Metrics
		err error
	)
	if m.rooms, err = meter.Int64UpDownCounter("conference_rooms_open",
		metric.WithDescription("Rooms with at least one participant"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("rooms counter: %w", err)
	}
	if m.participants, err = meter.Int64UpDownCounter("conference_participants",
		metric.WithDescription("Participants joined across all rooms"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("participants counter: %w", err)
	}
	if m.consumers, err = meter.Int64Counter("conference_consumers_created_total",
		metric.WithDescription("Consumers created by fan-out"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("consumers counter: %w", err)
	}
	if m.engineFailures, err = meter.Int64Counter("conference_engine_failures_total",
		metric.WithDescription("Media engine operations that failed"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("engine failures counter: %w", err)
	}
	return &m, nil
}

func (m *Metrics) RoomOpened(ctx context.Context)        { m.rooms.Add(ctx, 1) }
func (m *Metrics) RoomClosed(ctx context.Context)        { m.rooms.Add(ctx, -1) }
func (m *Metrics) ParticipantJoined(ctx context.Context) { m.participants.Add(ctx, 1) }
func (m *Metrics) ParticipantLeft(ctx context.Context)   { m.participants.Add(ctx, -1) }

func (m *Metrics) ConsumerCreated(ctx context.Context, kind media.Kind) {
	m.consumers.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m *Metrics) EngineFailure(ctx context.Context, op string) {
	m.engineFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
