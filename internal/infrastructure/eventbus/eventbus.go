// Package eventbus is a best-effort, in-process publish/subscribe
// implementation of ports.EventPublisher. Delivery is fire-and-forget:
// a handler error is logged, never propagated to the publisher, since
// domain-event subscription is an optional observer, not a
// transactional participant.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"hippos/internal/domain/events"
)

// Handler processes a single domain event.
type Handler interface {
	Handle(ctx context.Context, event events.DomainEvent) error
	CanHandle(eventType string) bool
}

// HandlerFunc adapts a plain function to Handler for a fixed event type.
type HandlerFunc struct {
	EventType string
	Fn        func(ctx context.Context, event events.DomainEvent) error
}

func (h HandlerFunc) CanHandle(eventType string) bool { return h.EventType == eventType }
func (h HandlerFunc) Handle(ctx context.Context, event events.DomainEvent) error {
	return h.Fn(ctx, event)
}

// Bus is the in-process event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *zap.Logger
}

// New creates an empty Bus. logger may be nil, in which case a no-op
// logger is used.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// Subscribe registers a handler. Handlers are invoked synchronously, in
// registration order, on every Publish call.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers event to every handler that can handle its type.
// Handler errors are logged at Warn and otherwise swallowed: a
// subscriber failing to process an event must never fail the operation
// that raised it.
func (b *Bus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if !h.CanHandle(event.EventType()) {
			continue
		}
		if err := h.Handle(ctx, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_type", event.EventType()),
				zap.Error(err))
		}
	}
	return nil
}

// PublishBatch delivers each event in order via Publish.
func (b *Bus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, e := range batch {
		if err := b.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
