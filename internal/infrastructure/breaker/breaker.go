// Package breaker wraps outbound calls to repositories, indices, and
// embedding providers with a gobreaker circuit breaker and a per-call
// deadline, guarding arbitrary Go calls rather than only HTTP handlers.
package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	pkgerrors "hippos/pkg/errors"
)

// Config configures a Breaker: failure-rate thresholds plus a
// reusable per-call deadline wrapper for any outbound call.
type Config struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
	PerCallDeadline  time.Duration
}

// DefaultConfig returns sensible defaults for a named outbound
// collaborator (e.g. "vector-index", "embedding-provider").
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
		PerCallDeadline:  5 * time.Second,
	}
}

// Breaker guards a single outbound collaborator.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	cfg    Config
	logger *zap.Logger
}

// New creates a Breaker from cfg. logger may be nil.
func New(cfg Config, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{cfg: cfg, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return b
}

// Call executes fn under the circuit breaker and a per-call deadline
// derived from ctx. A deadline-exceeded failure maps to a Timeout error;
// an open/too-many-requests breaker state maps to a Backend error so
// callers can distinguish "outbound collaborator is unhealthy" from
// "this specific call failed"; a context cancellation maps to Cancelled
// and is never surfaced as a failure to the caller that requested it.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx := ctx
	var cancel context.CancelFunc
	if b.cfg.PerCallDeadline > 0 {
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.PerCallDeadline)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(callCtx)
	})
	if err == nil {
		return nil
	}

	switch err {
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		return pkgerrors.NewBackend(b.cfg.Name+" circuit breaker open", err)
	}

	if callCtx.Err() == context.DeadlineExceeded {
		return pkgerrors.NewTimeout(b.cfg.Name+" call exceeded deadline", err)
	}
	if callCtx.Err() == context.Canceled {
		return pkgerrors.NewCancelled(b.cfg.Name + " call cancelled")
	}
	return err
}
