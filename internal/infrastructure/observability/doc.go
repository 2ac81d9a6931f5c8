// Package observability wires the engine's three telemetry pillars,
// structured logs, traces, and Prometheus metrics, scoped to an
// in-process engine with no HTTP transport or AWS-specific pieces:
//
//   - logger.go builds the zap.Logger used throughout the services layer.
//   - tracing.go builds an OpenTelemetry TracerProvider with environment-
//     scaled sampling and wraps ports.MemoryRepository with tracing spans.
//   - metrics_repository.go wraps ports.MemoryRepository with Prometheus
//     duration/outcome metrics (see pkg/observability for the registry).
//   - propagation.go carries trace and tenant context across the gap
//     between a synchronous operation and the domain event it raises.
//   - span_attributes.go centralizes the attribute sets every span uses
//     for a Memory, Pattern, or Entity so call sites don't reinvent keys.
package observability
