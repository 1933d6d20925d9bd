package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/template"
)

func TestRenderDottedPath(t *testing.T) {
	t.Run("Should resolve a simple dotted path", func(t *testing.T) {
		ctx := template.Context{"chunk": map[string]any{"text": "hello world"}}
		out, err := template.Render("Summarize: ${chunk.text}", ctx)
		require.NoError(t, err)
		assert.Equal(t, "Summarize: hello world", out)
	})

	t.Run("Should pass through literal text with no expressions", func(t *testing.T) {
		out, err := template.Render("no templates here", template.Context{})
		require.NoError(t, err)
		assert.Equal(t, "no templates here", out)
	})

	t.Run("Should error on an unresolved path", func(t *testing.T) {
		_, err := template.Render("${missing.path}", template.Context{})
		assert.Error(t, err)
	})
}

func TestRenderDefaultValue(t *testing.T) {
	t.Run("Should substitute the default when the path is missing", func(t *testing.T) {
		out, err := template.Render(`${missing.path | "fallback"}`, template.Context{})
		require.NoError(t, err)
		assert.Equal(t, "fallback", out)
	})

	t.Run("Should ignore the default when the path resolves", func(t *testing.T) {
		ctx := template.Context{"chunk": map[string]any{"text": "hello"}}
		out, err := template.Render(`${chunk.text | "fallback"}`, ctx)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("Should not treat a separator inside join() as a default pipe", func(t *testing.T) {
		ctx := template.Context{"rows": map[string]any{"values": []any{"x", "y"}}}
		out, err := template.Render(`${join(rows.values, "|")}`, ctx)
		require.NoError(t, err)
		assert.Equal(t, "x|y", out)
	})
}

func TestRenderStarFlattening(t *testing.T) {
	t.Run("Should join a list with newlines when the path ends in *", func(t *testing.T) {
		ctx := template.Context{"group": map[string]any{"source_uris": []any{"a.png", "b.png"}}}
		out, err := template.Render("${group.source_uris.*}", ctx)
		require.NoError(t, err)
		assert.Equal(t, "a.png\nb.png", out)
	})
}

func TestRenderJoin(t *testing.T) {
	t.Run("Should join a resolved list using the given separator", func(t *testing.T) {
		ctx := template.Context{"rows": map[string]any{"values": []any{"x", "y", "z"}}}
		out, err := template.Render(`${join(rows.values, ", ")}`, ctx)
		require.NoError(t, err)
		assert.Equal(t, "x, y, z", out)
	})
}

func TestLimitJoined(t *testing.T) {
	t.Run("Should truncate and mark text beyond the char limit", func(t *testing.T) {
		out := template.LimitJoined("abcdefgh", 4)
		assert.Equal(t, "abcd\n… [truncated]", out)
	})

	t.Run("Should leave text under the limit untouched", func(t *testing.T) {
		assert.Equal(t, "short", template.LimitJoined("short", 100))
	})
}

func TestJoinValues(t *testing.T) {
	t.Run("Should note how many items were dropped past the max", func(t *testing.T) {
		out := template.JoinValues([]string{"a", "b", "c"}, ",", 2)
		assert.Equal(t, "a,b\n… [+1 more]", out)
	})
}
