package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"hippos/internal/domain/events"
)

// TraceContextKey namespaces values stored in context for trace propagation.
type TraceContextKey string

const (
	TenantIDKey TraceContextKey = "trace.tenant_id"
	UserIDKey   TraceContextKey = "trace.user_id"
)

// TracePropagator carries trace context across the boundary between a
// synchronous request and the domain events it raises, so a handler
// processing an event later (e.g. the integrator's periodic sweep) can
// link its span back to the operation that created the event.
type TracePropagator struct {
	propagator propagation.TextMapPropagator
}

// NewTracePropagator builds a W3C Trace Context + Baggage propagator
// and registers it as the process-wide default.
func NewTracePropagator() *TracePropagator {
	propagator := propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
	otel.SetTextMapPropagator(propagator)
	return &TracePropagator{propagator: propagator}
}

// InjectEventContext captures the current trace into a carrier map
// suitable for attaching to a domain event before it's handed to
// asynchronous subscribers.
func (p *TracePropagator) InjectEventContext(ctx context.Context, event events.DomainEvent) map[string]string {
	carrier := make(propagation.MapCarrier)
	p.propagator.Inject(ctx, carrier)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		carrier["event.trace_id"] = span.SpanContext().TraceID().String()
		carrier["event.span_id"] = span.SpanContext().SpanID().String()
		carrier["event.type"] = event.EventType()
		carrier["event.occurred_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if tenantID := ctx.Value(TenantIDKey); tenantID != nil {
		carrier["tenant.id"] = fmt.Sprintf("%v", tenantID)
	}
	return carrier
}

// ExtractEventContext restores a context carrying the trace and tenant
// metadata a carrier map was built from, for use inside an event handler.
func (p *TracePropagator) ExtractEventContext(parentCtx context.Context, carrierData map[string]string) context.Context {
	carrier := propagation.MapCarrier(carrierData)
	ctx := p.propagator.Extract(parentCtx, carrier)
	if tenantID, ok := carrierData["tenant.id"]; ok {
		ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	}
	return ctx
}

// StartEventSpan starts a child span for processing event, tagged with
// its type and a marker that it's running on the async handler path
// rather than inline with the operation that raised it.
func StartEventSpan(ctx context.Context, tracer trace.Tracer, event events.DomainEvent) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "event."+event.EventType(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("event.type", event.EventType()),
			attribute.String("processing.mode", "async"),
		),
	)
	if tenantID := ctx.Value(TenantIDKey); tenantID != nil {
		span.SetAttributes(attribute.String("tenant.id", fmt.Sprintf("%v", tenantID)))
	}
	return ctx, span
}

// EnvelopeToJSON marshals an event alongside its trace carrier, for
// handing to a durable queue implementation in a future transport.
func EnvelopeToJSON(ctx context.Context, event events.DomainEvent) ([]byte, error) {
	wrapper := struct {
		Event        events.DomainEvent `json:"event"`
		TraceContext map[string]string  `json:"trace_context"`
	}{
		Event:        event,
		TraceContext: make(map[string]string),
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(wrapper.TraceContext))
	return json.Marshal(wrapper)
}

// BaggageManager threads cross-cutting identifiers (tenant, user)
// through trace baggage so they survive a hop across goroutines without
// needing to be re-derived at every layer.
type BaggageManager struct{}

func (b *BaggageManager) SetTenantContext(ctx context.Context, tenantID, userID string) context.Context {
	members := make([]baggage.Member, 0, 2)
	if tenantID != "" {
		if m, err := baggage.NewMember("tenant.id", tenantID); err == nil {
			members = append(members, m)
		}
	}
	if userID != "" {
		if m, err := baggage.NewMember("user.id", userID); err == nil {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return ctx
	}
	bag, err := baggage.New(members...)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

func (b *BaggageManager) GetTenantContext(ctx context.Context) (tenantID, userID string) {
	bag := baggage.FromContext(ctx)
	if member := bag.Member("tenant.id"); member.Key() != "" {
		tenantID = member.Value()
	}
	if member := bag.Member("user.id"); member.Key() != "" {
		userID = member.Value()
	}
	return tenantID, userID
}
