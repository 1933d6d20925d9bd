package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/core"
)

func TestStableJSONBytes(t *testing.T) {
	t.Run("Should produce identical bytes regardless of map construction order", func(t *testing.T) {
		a := map[string]any{"b": 1, "a": 2, "c": []any{1, 2, 3}}
		b := map[string]any{"c": []any{1, 2, 3}, "a": 2, "b": 1}
		bytesA, err := core.StableJSONBytes(a)
		require.NoError(t, err)
		bytesB, err := core.StableJSONBytes(b)
		require.NoError(t, err)
		assert.Equal(t, string(bytesA), string(bytesB))
	})
}

func TestETagFromAny(t *testing.T) {
	t.Run("Should change when the underlying value changes", func(t *testing.T) {
		tag1, err := core.ETagFromAny(map[string]any{"x": 1}, core.HashAlgoBlake2b)
		require.NoError(t, err)
		tag2, err := core.ETagFromAny(map[string]any{"x": 2}, core.HashAlgoBlake2b)
		require.NoError(t, err)
		assert.NotEqual(t, tag1, tag2)
	})
}
