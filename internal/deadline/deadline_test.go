package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chistes/app/internal/apperror"
)

func TestRunReturnsResultBeforeDeadline(t *testing.T) {
	t.Parallel()

	value, err := Run(context.Background(), time.Second, func(context.Context) (int, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestRunPropagatesOperationError(t *testing.T) {
	t.Parallel()

	want := apperror.NotFound("Chiste no encontrado", "missing")
	_, err := Run(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, want
	})

	assert.ErrorIs(t, err, want)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}

func TestRunTimesOutAndCancelsOperation(t *testing.T) {
	t.Parallel()

	cancelled := make(chan struct{})
	start := time.Now()

	_, err := Run(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		// Ignore the cancellation for a while to prove Run does not wait.
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})

	require.Error(t, err)
	assert.Equal(t, apperror.KindTimeout, apperror.KindOf(err))
	assert.Less(t, time.Since(start), 150*time.Millisecond)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("expected the operation context to be cancelled")
	}
}

func TestRunMapsRawDeadlineErrorToTimeout(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.Equal(t, apperror.KindTimeout, apperror.KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunReportsParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, time.Second, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return 0, nil
	})

	assert.Equal(t, apperror.KindCanceled, apperror.KindOf(err))
}

func TestDoWithoutTimeoutRunsInline(t *testing.T) {
	t.Parallel()

	called := false
	err := Do(context.Background(), 0, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestPolicyWithDefaults(t *testing.T) {
	t.Parallel()

	policy := Policy{Medium: time.Second}.WithDefaults()

	assert.Equal(t, DefaultShort, policy.Short)
	assert.Equal(t, time.Second, policy.Medium)
	assert.Equal(t, DefaultProvider, policy.Provider)
	assert.Equal(t, DefaultAggregate, policy.Aggregate)
}
