package artifact_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/artifact"
)

func TestWriteFile(t *testing.T) {
	t.Run("Should atomically write a file that can be read back", func(t *testing.T) {
		dir := t.TempDir()
		w := artifact.NewWriter(dir)
		require.NoError(t, w.WriteFile("docs/a.json", []byte(`{"a":1}`)))

		data, err := os.ReadFile(filepath.Join(dir, "docs/a.json"))
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(data))
	})

	t.Run("Should leave no temp file behind after a successful write", func(t *testing.T) {
		dir := t.TempDir()
		w := artifact.NewWriter(dir)
		require.NoError(t, w.WriteFile("out.txt", []byte("hello")))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp-")
		}
	})
}

func TestAppendLine(t *testing.T) {
	t.Run("Should append multiple lines in order", func(t *testing.T) {
		dir := t.TempDir()
		w := artifact.NewWriter(dir)
		require.NoError(t, w.AppendLine("outputs.jsonl", []byte(`{"a":1}`)))
		require.NoError(t, w.AppendLine("outputs.jsonl", []byte(`{"a":2}`)))

		data, err := os.ReadFile(filepath.Join(dir, "outputs.jsonl"))
		require.NoError(t, err)
		assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", string(data))
	})
}
