package core_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fmf/pipeline/engine/core"
)

func TestPipelineError(t *testing.T) {
	t.Run("Should include unit and step scope in the message", func(t *testing.T) {
		err := core.NewError(core.ErrInference, "provider timed out", nil).WithUnit("u1").WithStep("s1")
		assert.Contains(t, err.Error(), "u1")
		assert.Contains(t, err.Error(), "s1")
	})

	t.Run("Should classify inference and provider errors as retryable", func(t *testing.T) {
		assert.True(t, core.NewError(core.ErrInference, "x", nil).IsRetryable())
		assert.True(t, core.NewError(core.ErrProvider, "x", nil).IsRetryable())
		assert.False(t, core.NewError(core.ErrConfig, "x", nil).IsRetryable())
	})

	t.Run("Should unwrap to the underlying cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := core.NewError(core.ErrProcessing, "wrapped", cause)
		assert.ErrorIs(t, err, cause)
	})
}
