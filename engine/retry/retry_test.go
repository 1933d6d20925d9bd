package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		InitialDelay: time.Millisecond,
		Multiplier:   2,
		Cap:          10 * time.Millisecond,
		Jitter:       false,
		MaxElapsed:   200 * time.Millisecond,
		MaxRetries:   5,
	}
}

func TestDoSucceedsEventually(t *testing.T) {
	t.Run("Should retry a retryable error until it succeeds", func(t *testing.T) {
		attempts := 0
		err := retry.Do(context.Background(), testPolicy(), "test-call", func(_ context.Context) error {
			attempts++
			if attempts < 3 {
				return core.NewError(core.ErrInference, "transient", nil)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	t.Run("Should not retry a non-retryable error", func(t *testing.T) {
		attempts := 0
		err := retry.Do(context.Background(), testPolicy(), "test-call", func(_ context.Context) error {
			attempts++
			return core.NewError(core.ErrConfig, "bad config", nil)
		})
		assert.Error(t, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestDoExhaustsRetries(t *testing.T) {
	t.Run("Should give up after the configured max retries", func(t *testing.T) {
		attempts := 0
		err := retry.Do(context.Background(), testPolicy(), "test-call", func(_ context.Context) error {
			attempts++
			return core.NewError(core.ErrProvider, "always fails", nil)
		})
		assert.Error(t, err)
		assert.LessOrEqual(t, attempts, 6)
	})
}

func TestLimiterRegistry(t *testing.T) {
	t.Run("Should acquire and release without blocking under the concurrency cap", func(t *testing.T) {
		registry := retry.NewLimiterRegistry()
		release, err := registry.Acquire(context.Background(), "openai", retry.LimiterSettings{Concurrency: 2})
		require.NoError(t, err)
		release()

		snapshots := registry.Metrics()
		require.Len(t, snapshots, 1)
		assert.Equal(t, "openai", snapshots[0].Provider)
		assert.Equal(t, int64(1), snapshots[0].TotalRequests)
	})

	t.Run("Should respect context cancellation while waiting", func(t *testing.T) {
		registry := retry.NewLimiterRegistry()
		release, err := registry.Acquire(context.Background(), "anthropic", retry.LimiterSettings{Concurrency: 1})
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = registry.Acquire(ctx, "anthropic", retry.LimiterSettings{Concurrency: 1})
		assert.Error(t, err)
	})
}
