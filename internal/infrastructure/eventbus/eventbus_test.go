package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hippos/internal/domain/events"
)

func TestPublishDeliversOnlyMatchingHandlers(t *testing.T) {
	bus := New(nil)
	var got []events.DomainEvent

	bus.Subscribe(HandlerFunc{
		EventType: events.TypeMemoryCreated,
		Fn: func(_ context.Context, e events.DomainEvent) error {
			got = append(got, e)
			return nil
		},
	})
	bus.Subscribe(HandlerFunc{
		EventType: events.TypePatternCreated,
		Fn: func(_ context.Context, e events.DomainEvent) error {
			t.Fatal("should not receive memory.created")
			return nil
		},
	})

	e := events.NewMemoryCreated("t1", "mem-1", time.Now())
	require.NoError(t, bus.Publish(context.Background(), e))
	require.Len(t, got, 1)
	assert.Equal(t, events.TypeMemoryCreated, got[0].EventType())
}

func TestPublishSwallowsHandlerErrors(t *testing.T) {
	bus := New(nil)
	bus.Subscribe(HandlerFunc{
		EventType: events.TypeMemoryCreated,
		Fn: func(_ context.Context, _ events.DomainEvent) error {
			return assert.AnError
		},
	})

	err := bus.Publish(context.Background(), events.NewMemoryCreated("t1", "mem-1", time.Now()))
	assert.NoError(t, err)
}

func TestPublishBatchDeliversAllInOrder(t *testing.T) {
	bus := New(nil)
	var order []string
	bus.Subscribe(HandlerFunc{
		EventType: events.TypeMemoryCreated,
		Fn: func(_ context.Context, e events.DomainEvent) error {
			order = append(order, e.(events.MemoryCreated).MemoryID)
			return nil
		},
	})

	batch := []events.DomainEvent{
		events.NewMemoryCreated("t1", "mem-1", time.Now()),
		events.NewMemoryCreated("t1", "mem-2", time.Now()),
	}
	require.NoError(t, bus.PublishBatch(context.Background(), batch))
	assert.Equal(t, []string{"mem-1", "mem-2"}, order)
}
