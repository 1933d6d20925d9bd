package executor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/executor"
	"github.com/fmf/pipeline/engine/telemetry"
	"github.com/fmf/pipeline/pkg/config"
)

func units(n int) []core.ExecutionUnit {
	out := make([]core.ExecutionUnit, n)
	for i := range out {
		out[i] = core.ExecutionUnit{UnitID: fmt.Sprintf("u%d", i)}
	}
	return out
}

func TestExecutorRunPreservesOrder(t *testing.T) {
	t.Run("Should return results in the original unit order under concurrency", func(t *testing.T) {
		ex := executor.New(config.ExecutorConfig{Concurrency: 4, ContinueOnError: true}, telemetry.NewRegistry(), nil)
		results, anyFailed, err := ex.Run(context.Background(), "step-1", units(20), func(_ context.Context, u core.ExecutionUnit) (core.StepResult, error) {
			return core.StepResult{Value: u.UnitID}, nil
		})
		require.NoError(t, err)
		assert.False(t, anyFailed)
		require.Len(t, results, 20)
		for i, r := range results {
			assert.Equal(t, fmt.Sprintf("u%d", i), r.UnitID)
		}
	})
}

func TestExecutorContinueOnError(t *testing.T) {
	t.Run("Should keep running every unit when continue_on_error is true", func(t *testing.T) {
		ex := executor.New(config.ExecutorConfig{Concurrency: 2, ContinueOnError: true}, telemetry.NewRegistry(), nil)
		results, anyFailed, err := ex.Run(context.Background(), "step-1", units(5), func(_ context.Context, u core.ExecutionUnit) (core.StepResult, error) {
			if u.UnitID == "u2" {
				return core.StepResult{}, core.NewError(core.ErrInference, "boom", nil)
			}
			return core.StepResult{Value: u.UnitID}, nil
		})
		require.NoError(t, err)
		assert.True(t, anyFailed)
		require.Len(t, results, 5)
		assert.Error(t, results[2].Err)
		assert.NoError(t, results[0].Err)
	})

	t.Run("Should abort the run on first failure when continue_on_error is false", func(t *testing.T) {
		ex := executor.New(config.ExecutorConfig{Concurrency: 1, ContinueOnError: false}, telemetry.NewRegistry(), nil)
		_, _, err := ex.Run(context.Background(), "step-1", units(5), func(_ context.Context, u core.ExecutionUnit) (core.StepResult, error) {
			if u.UnitID == "u1" {
				return core.StepResult{}, core.NewError(core.ErrInference, "boom", nil)
			}
			return core.StepResult{Value: u.UnitID}, nil
		})
		assert.Error(t, err)
	})
}
