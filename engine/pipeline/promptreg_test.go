package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/pipeline"
)

func TestPromptRegistry(t *testing.T) {
	t.Run("Should return a stable hash for the same id, version and text", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		first, err := r.Register("summarize", "v1", "Summarize: ${chunk.text}")
		require.NoError(t, err)
		second, err := r.Register("summarize", "v1", "Summarize: ${chunk.text}")
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Should reject re-registering an id/version with different content", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		_, err := r.Register("summarize", "v1", "first version")
		require.NoError(t, err)
		_, err = r.Register("summarize", "v1", "second version")
		assert.Error(t, err)
	})

	t.Run("Should treat distinct versions of the same id independently", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		_, err := r.Register("summarize", "v1", "first version")
		require.NoError(t, err)
		_, err = r.Register("summarize", "v2", "second version")
		require.NoError(t, err)
		text, ok := r.Resolve("summarize#v2")
		require.True(t, ok)
		assert.Equal(t, "second version", text)
	})

	t.Run("Should resolve previously registered text by prompt_id#version", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		_, err := r.Register("summarize", "v1", "Summarize: ${chunk.text}")
		require.NoError(t, err)
		text, ok := r.Resolve("summarize#v1")
		require.True(t, ok)
		assert.Equal(t, "Summarize: ${chunk.text}", text)
	})

	t.Run("Should report false for an unregistered reference", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		_, ok := r.Resolve("missing#v1")
		assert.False(t, ok)
	})
}

func TestResolvePromptTemplate(t *testing.T) {
	t.Run("Should use the literal text after an inline: prefix", func(t *testing.T) {
		text, err := pipeline.ResolvePromptTemplate("inline: Echo: ${row.text}", nil)
		require.NoError(t, err)
		assert.Equal(t, "Echo: ${row.text}", text)
	})

	t.Run("Should look up a bare prompt_id#version reference in the registry", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		_, err := r.Register("summarize", "v1", "Summarize: ${chunk.text}")
		require.NoError(t, err)
		text, err := pipeline.ResolvePromptTemplate("summarize#v1", r)
		require.NoError(t, err)
		assert.Equal(t, "Summarize: ${chunk.text}", text)
	})

	t.Run("Should fall back to literal text when no registry is configured", func(t *testing.T) {
		text, err := pipeline.ResolvePromptTemplate("summarize#v1", nil)
		require.NoError(t, err)
		assert.Equal(t, "summarize#v1", text)
	})

	t.Run("Should fall back to literal text for an unknown registry reference", func(t *testing.T) {
		r := pipeline.NewPromptRegistry(core.HashAlgoBlake2b)
		text, err := pipeline.ResolvePromptTemplate("summarize#v1", r)
		require.NoError(t, err)
		assert.Equal(t, "summarize#v1", text)
	})

	t.Run("Should treat plain template text with no reference shape as literal", func(t *testing.T) {
		text, err := pipeline.ResolvePromptTemplate("${chunk.text}", nil)
		require.NoError(t, err)
		assert.Equal(t, "${chunk.text}", text)
	})
}
