// Package telemetry wires OpenTelemetry export for ragd.
//
// It owns the TracerProvider, MeterProvider, and LoggerProvider lifecycle:
// OTLP exporters over gRPC or HTTP/protobuf, trace sampling, periodic
// metric export, and graceful shutdown. Telemetry failures never crash the
// process; a provider that fails to initialize degrades to a no-op and the
// instance reports itself degraded.
//
// Instrumentation scopes follow the ragd.<area> convention:
//
//	tracer := tel.Tracer("ragd.agent")
//	meter := tel.Meter("ragd.reranker")
//
// Telemetry is disabled by default; enable it in config when an OTLP
// collector is available.
package telemetry
