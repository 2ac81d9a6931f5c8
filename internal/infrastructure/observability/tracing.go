package observability

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"hippos/internal/domain/ids"
	"hippos/internal/domain/memory"
	"hippos/internal/ports"
)

// TracerProvider wraps an OpenTelemetry tracer provider with resource
// attribution and environment-scaled sampling. It registers no span
// exporter by default: the engine runs in-process with no required
// collector, so spans are recorded but nothing is shipped over the
// wire unless the caller attaches one via TracingConfig.SpanProcessors.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// TracingConfig configures the tracer provider.
type TracingConfig struct {
	ServiceName string
	Environment string
	SampleRate  float64

	// SpanProcessors are attached to the provider in registration order.
	// Leave nil to run with sampling and context propagation only.
	SpanProcessors []sdktrace.SpanProcessor
}

// InitTracing initializes distributed tracing with environment-scaled
// sampling and host resource attribution.
func InitTracing(config TracingConfig) (*TracerProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "hippos"
	}
	if config.SampleRate == 0 {
		config.SampleRate = defaultSampleRate(config.Environment)
	}

	res, err := buildResource(config)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(buildSampler(config)),
	}
	for _, sp := range config.SpanProcessors {
		opts = append(opts, sdktrace.WithSpanProcessor(sp))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: tp,
		tracer:   tp.Tracer(config.ServiceName),
		config:   config,
	}, nil
}

func buildResource(config TracingConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		attribute.String("deployment.environment", config.Environment),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, semconv.HostName(hostname))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

func buildSampler(config TracingConfig) sdktrace.Sampler {
	switch config.Environment {
	case "production":
		return sdktrace.TraceIDRatioBased(config.SampleRate)
	case "staging":
		return sdktrace.TraceIDRatioBased(0.25)
	default:
		return sdktrace.AlwaysSample()
	}
}

func defaultSampleRate(environment string) float64 {
	switch environment {
	case "production":
		return 0.05
	case "staging":
		return 0.25
	default:
		return 1.0
	}
}

// Shutdown flushes and stops the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.provider.Shutdown(ctx)
}

// Tracer returns the provider's pre-configured tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSpan starts a span named op under the provider's tracer.
func (tp *TracerProvider) StartSpan(ctx context.Context, op string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, op, opts...)
}

// TraceMemoryRepository wraps a ports.MemoryRepository so every call
// opens a span tagged with its tenant.
func TraceMemoryRepository(repo ports.MemoryRepository, tracer trace.Tracer) ports.MemoryRepository {
	return &tracedMemoryRepository{inner: repo, tracer: tracer}
}

type tracedMemoryRepository struct {
	inner  ports.MemoryRepository
	tracer trace.Tracer
}

func (r *tracedMemoryRepository) span(ctx context.Context, op string, tenantID ids.TenantID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String("tenant.id", tenantID.String())}, attrs...)
	return r.tracer.Start(ctx, "memory_repository."+op, trace.WithAttributes(all...))
}

func (r *tracedMemoryRepository) Create(ctx context.Context, m *memory.Memory) error {
	ctx, span := r.span(ctx, "create", m.TenantID())
	defer span.End()
	err := r.inner.Create(ctx, m)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *tracedMemoryRepository) Get(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) (*memory.Memory, error) {
	ctx, span := r.span(ctx, "get", tenantID, attribute.String("memory.id", id.String()))
	defer span.End()
	m, err := r.inner.Get(ctx, tenantID, id)
	if err != nil {
		span.RecordError(err)
	}
	return m, err
}

func (r *tracedMemoryRepository) Update(ctx context.Context, m *memory.Memory) error {
	ctx, span := r.span(ctx, "update", m.TenantID(), attribute.String("memory.id", m.ID().String()))
	defer span.End()
	err := r.inner.Update(ctx, m)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *tracedMemoryRepository) Delete(ctx context.Context, tenantID ids.TenantID, id ids.MemoryID) error {
	ctx, span := r.span(ctx, "delete", tenantID, attribute.String("memory.id", id.String()))
	defer span.End()
	err := r.inner.Delete(ctx, tenantID, id)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *tracedMemoryRepository) List(ctx context.Context, tenantID ids.TenantID, userID string, opts ports.ListOptions) ([]*memory.Memory, error) {
	ctx, span := r.span(ctx, "list", tenantID, attribute.String("user.id", userID))
	defer span.End()
	list, err := r.inner.List(ctx, tenantID, userID, opts)
	if err != nil {
		span.RecordError(err)
	}
	return list, err
}

func (r *tracedMemoryRepository) Count(ctx context.Context, tenantID ids.TenantID) (int, error) {
	ctx, span := r.span(ctx, "count", tenantID)
	defer span.End()
	n, err := r.inner.Count(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
	}
	return n, err
}

func (r *tracedMemoryRepository) FindBySourceID(ctx context.Context, tenantID ids.TenantID, userID, sourceID string) (*memory.Memory, error) {
	ctx, span := r.span(ctx, "find_by_source_id", tenantID, attribute.String("user.id", userID))
	defer span.End()
	m, err := r.inner.FindBySourceID(ctx, tenantID, userID, sourceID)
	if err != nil {
		span.RecordError(err)
	}
	return m, err
}

func (r *tracedMemoryRepository) FindActive(ctx context.Context, tenantID ids.TenantID, userID string) ([]*memory.Memory, error) {
	ctx, span := r.span(ctx, "find_active", tenantID, attribute.String("user.id", userID))
	defer span.End()
	list, err := r.inner.FindActive(ctx, tenantID, userID)
	if err != nil {
		span.RecordError(err)
	}
	return list, err
}

func (r *tracedMemoryRepository) FindPendingReindex(ctx context.Context, tenantID ids.TenantID) ([]*memory.Memory, error) {
	ctx, span := r.span(ctx, "find_pending_reindex", tenantID)
	defer span.End()
	list, err := r.inner.FindPendingReindex(ctx, tenantID)
	if err != nil {
		span.RecordError(err)
	}
	return list, err
}

func (r *tracedMemoryRepository) FindExpired(ctx context.Context, tenantID ids.TenantID, asOf time.Time) ([]*memory.Memory, error) {
	ctx, span := r.span(ctx, "find_expired", tenantID)
	defer span.End()
	list, err := r.inner.FindExpired(ctx, tenantID, asOf)
	if err != nil {
		span.RecordError(err)
	}
	return list, err
}
