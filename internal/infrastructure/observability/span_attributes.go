package observability

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hippos/internal/domain/entity"
	"hippos/internal/domain/memory"
	"hippos/internal/domain/pattern"
)

// SpanAttributes provides the engine's common attribute sets, so every
// service records the same fields for the same kind of aggregate
// instead of each call site inventing its own key names.
type SpanAttributes struct{}

func NewSpanAttributes() *SpanAttributes {
	return &SpanAttributes{}
}

func (s *SpanAttributes) TenantAttributes(tenantID, userID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("tenant.id", tenantID),
		attribute.String("user.id", userID),
	}
}

func (s *SpanAttributes) MemoryAttributes(m *memory.Memory) []attribute.KeyValue {
	if m == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("memory.id", m.ID().String()),
		attribute.String("memory.tenant_id", m.TenantID().String()),
		attribute.Int("memory.version", m.Version()),
		attribute.Float64("memory.importance", m.Importance()),
		attribute.String("memory.status", string(m.Status())),
	}
}

func (s *SpanAttributes) PatternAttributes(p *pattern.Pattern) []attribute.KeyValue {
	if p == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("pattern.id", p.ID().String()),
		attribute.String("pattern.kind", string(p.Kind())),
		attribute.Int("pattern.version", p.Version()),
		attribute.Float64("pattern.confidence", p.Confidence()),
	}
}

func (s *SpanAttributes) EntityAttributes(e *entity.Entity) []attribute.KeyValue {
	if e == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("entity.id", e.ID().String()),
		attribute.String("entity.kind", string(e.Kind())),
		attribute.Int("entity.mention_count", e.MentionCount()),
	}
}

// OperationAttributes returns attributes for a named business operation,
// flattening its metadata map onto "operation.<key>" attributes.
func (s *SpanAttributes) OperationAttributes(operation string, metadata map[string]any) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("operation.type", operation),
	}
	for key, value := range metadata {
		attrs = append(attrs, toAttribute(fmt.Sprintf("operation.%s", key), value))
	}
	return attrs
}

// QueryAttributes returns attributes for a recall or list query.
func (s *SpanAttributes) QueryAttributes(queryType string, params map[string]any) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("query.type", queryType)}
	for key, value := range params {
		attrs = append(attrs, toAttribute(fmt.Sprintf("query.param.%s", key), value))
	}
	return attrs
}

func (s *SpanAttributes) CacheAttributes(operation, key string, hit bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("cache.operation", operation),
		attribute.String("cache.key", key),
		attribute.Bool("cache.hit", hit),
	}
}

func (s *SpanAttributes) ErrorAttributes(err error, errorType string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String("error.type", errorType),
		attribute.String("error.message", err.Error()),
	}
}

func (s *SpanAttributes) PerformanceAttributes(duration time.Duration, itemCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Float64("performance.duration_ms", float64(duration.Milliseconds())),
		attribute.Int("performance.item_count", itemCount),
	}
	if itemCount > 0 && duration > 0 {
		attrs = append(attrs, attribute.Float64("performance.items_per_second", float64(itemCount)/duration.Seconds()))
	}
	return attrs
}

func (s *SpanAttributes) CircuitBreakerAttributes(state string, failureCount, successCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("circuit_breaker.state", state),
		attribute.Int("circuit_breaker.failure_count", failureCount),
		attribute.Int("circuit_breaker.success_count", successCount),
	}
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Time:
		return attribute.String(key, v.Format(time.RFC3339))
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// SetSpanAttributes attaches each attribute set to span in order.
func SetSpanAttributes(span trace.Span, attrSets ...[]attribute.KeyValue) {
	for _, attrs := range attrSets {
		span.SetAttributes(attrs...)
	}
}

// RecordSpanError records err on span with a human-readable description.
func RecordSpanError(span trace.Span, err error, description string) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("error.description", description)))
}

// AddSpanEvent adds a point-in-time event to span with scalar attributes.
func AddSpanEvent(span trace.Span, eventName string, attrs map[string]any) {
	if !span.IsRecording() {
		return
	}
	eventAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for key, value := range attrs {
		eventAttrs = append(eventAttrs, toAttribute(key, value))
	}
	span.AddEvent(eventName, trace.WithAttributes(eventAttrs...))
}
