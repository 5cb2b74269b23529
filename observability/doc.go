// Package observability wires OpenTelemetry metrics and tracing into the
// data pipeline engine.
//
// InitMeter and InitTracer install OTLP/HTTP exporters as the global
// providers. PipelineMetrics holds the counters an Iterator reports to:
// records delivered, record errors, records skipped under the skip policy,
// stream failures and checkpoint saves/restores. A nil *PipelineMetrics is
// valid and records nothing.
//
// # Usage
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("trainer"))
//	defer mp.Shutdown(ctx)
//	m, err := observability.NewPipelineMetrics(observability.Meter("datapipe"))
//	it := p.Iter(ctx, pipeline.WithMetrics(m))
package observability
