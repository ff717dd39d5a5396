// Package telemetry provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for the conclave engine.
//
// Logging wraps zerolog with component child loggers and domain field
// helpers. Metrics cover the proposal lifecycle (created, voted, performed
// by outcome) and codec failures, served over a standard promhttp endpoint.
// Tracing supports stdout and OTLP gRPC exporters with parent-based
// sampling.
package telemetry
