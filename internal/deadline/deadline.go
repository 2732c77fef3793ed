// Package deadline bounds blocking operations with a timeout whose expiry
// cancels the operation instead of abandoning it.
package deadline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"chistes/app/internal/apperror"
)

const (
	DefaultShort     = 3 * time.Second
	DefaultMedium    = 8 * time.Second
	DefaultProvider  = 10 * time.Second
	DefaultAggregate = 15 * time.Second
)

// Policy groups the timeouts applied per endpoint category.
type Policy struct {
	Short     time.Duration
	Medium    time.Duration
	Provider  time.Duration
	Aggregate time.Duration
}

// DefaultPolicy returns the stock timeouts.
func DefaultPolicy() Policy {
	return Policy{
		Short:     DefaultShort,
		Medium:    DefaultMedium,
		Provider:  DefaultProvider,
		Aggregate: DefaultAggregate,
	}
}

// WithDefaults fills zero durations from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Short <= 0 {
		p.Short = d.Short
	}
	if p.Medium <= 0 {
		p.Medium = d.Medium
	}
	if p.Provider <= 0 {
		p.Provider = d.Provider
	}
	if p.Aggregate <= 0 {
		p.Aggregate = d.Aggregate
	}
	return p
}

type result[T any] struct {
	value T
	err   error
}

// Run executes op with a context that expires after timeout. If the deadline
// passes before op returns, Run returns a Timeout error immediately; op's
// context is cancelled at that point so well-behaved operations stop too.
// Cancellation of the parent context yields a Canceled error.
func Run[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if op == nil {
		return zero, eris.New("operation is required")
	}
	if timeout <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		value, err := op(opCtx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && opCtx.Err() != nil && ctx.Err() == nil && !classified(res.err) {
			// The operation surfaced our own deadline as a raw context error.
			return zero, timeoutError(timeout).WithCause(res.err)
		}
		return res.value, res.err
	case <-opCtx.Done():
		if parentErr := ctx.Err(); parentErr != nil {
			return zero, apperror.New(apperror.KindCanceled, "Solicitud cancelada", "El cliente canceló la solicitud").WithCause(parentErr)
		}
		return zero, timeoutError(timeout).WithCause(opCtx.Err())
	}
}

// Do is Run for operations without a result value.
func Do(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if op == nil {
		return eris.New("operation is required")
	}
	_, err := Run(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func timeoutError(timeout time.Duration) *apperror.Error {
	return apperror.Timeout("Timeout de la operación", "La operación tardó demasiado en completarse").
		With("limite_ms", timeout.Milliseconds())
}

func classified(err error) bool {
	_, ok := apperror.As(err)
	return ok
}
