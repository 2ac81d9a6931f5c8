package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "hippos/pkg/errors"
)

func TestCallPassesThroughSuccess(t *testing.T) {
	b := New(DefaultConfig("test"), nil)
	err := b.Call(context.Background(), func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestCallMapsDeadlineExceededToTimeout(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.PerCallDeadline = 10 * time.Millisecond
	b := New(cfg, nil)

	err := b.Call(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.True(t, pkgerrors.IsTimeout(err))
}

func TestCallOpensAfterRepeatedFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	cfg.Interval = time.Minute
	cfg.Timeout = time.Minute
	b := New(cfg, nil)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_ = b.Call(context.Background(), func(ctx context.Context) error {
			return boom
		})
	}

	err := b.Call(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.True(t, pkgerrors.IsBackend(err))
}
