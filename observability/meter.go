package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/datapipe/logger"
)

// MeterName is the instrumentation scope used for pipeline instruments.
const MeterName = "github.com/kbukum/datapipe"

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds the instruments an iterator reports to.
// All methods are safe on a nil receiver.
type PipelineMetrics struct {
	delivered          metric.Int64Counter
	recordErrors       metric.Int64Counter
	skipped            metric.Int64Counter
	streamFailures     metric.Int64Counter
	checkpointSaved    metric.Int64Counter
	checkpointRestored metric.Int64Counter
	checkpointDuration metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	delivered, err := meter.Int64Counter("pipeline.records.delivered",
		metric.WithDescription("Records delivered to the consumer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.records.delivered counter: %w", err)
	}

	recordErrors, err := meter.Int64Counter("pipeline.records.errors",
		metric.WithDescription("Record errors by stage and code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.records.errors counter: %w", err)
	}

	skipped, err := meter.Int64Counter("pipeline.records.skipped",
		metric.WithDescription("Record errors dropped under the skip policy"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.records.skipped counter: %w", err)
	}

	streamFailures, err := meter.Int64Counter("pipeline.stream.failures",
		metric.WithDescription("Iterators terminated by a stream error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.stream.failures counter: %w", err)
	}

	checkpointSaved, err := meter.Int64Counter("pipeline.checkpoints.saved",
		metric.WithDescription("Checkpoints captured"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.checkpoints.saved counter: %w", err)
	}

	checkpointRestored, err := meter.Int64Counter("pipeline.checkpoints.restored",
		metric.WithDescription("Iterators restored from a checkpoint"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.checkpoints.restored counter: %w", err)
	}

	checkpointDuration, err := meter.Float64Histogram("pipeline.checkpoint.duration",
		metric.WithDescription("Duration of checkpoint capture in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.checkpoint.duration histogram: %w", err)
	}

	return &PipelineMetrics{
		delivered:          delivered,
		recordErrors:       recordErrors,
		skipped:            skipped,
		streamFailures:     streamFailures,
		checkpointSaved:    checkpointSaved,
		checkpointRestored: checkpointRestored,
		checkpointDuration: checkpointDuration,
	}, nil
}

// RecordDelivered counts one record handed to the consumer.
func (m *PipelineMetrics) RecordDelivered(ctx context.Context, pipeline string) {
	if m == nil {
		return
	}
	m.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("pipeline", pipeline)))
}

// RecordError counts one record error raised by stage.
func (m *PipelineMetrics) RecordError(ctx context.Context, stage, code string) {
	if m == nil {
		return
	}
	m.recordErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("code", code),
	))
}

// RecordSkipped counts one record error dropped by the skip policy.
func (m *PipelineMetrics) RecordSkipped(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// StreamFailure counts one iterator terminated by a stream error.
func (m *PipelineMetrics) StreamFailure(ctx context.Context, stage, code string) {
	if m == nil {
		return
	}
	m.streamFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("code", code),
	))
}

// CheckpointSaved records one checkpoint capture and how long it took.
func (m *PipelineMetrics) CheckpointSaved(ctx context.Context, stages int, duration time.Duration) {
	if m == nil {
		return
	}
	m.checkpointSaved.Add(ctx, 1)
	m.checkpointDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Int("stages", stages),
	))
}

// CheckpointRestored counts one iterator restored from a checkpoint.
func (m *PipelineMetrics) CheckpointRestored(ctx context.Context) {
	if m == nil {
		return
	}
	m.checkpointRestored.Add(ctx, 1)
}
