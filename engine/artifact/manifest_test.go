package artifact_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/artifact"
)

func TestManifest(t *testing.T) {
	t.Run("Should index chunk ids, blob ids and row counts per document", func(t *testing.T) {
		m := artifact.NewManifest()
		m.AddDocument("doc_1", []string{"doc_1_ch_a", "doc_1_ch_b"}, nil, 0)
		m.AddDocument("doc_2", nil, []string{"blob_x"}, 3)

		data, err := m.MarshalManifestJSON()
		require.NoError(t, err)

		var decoded map[string]map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		doc1 := decoded["documents"]["doc_1"].(map[string]any)
		assert.Len(t, doc1["chunk_ids"], 2)
		doc2 := decoded["documents"]["doc_2"].(map[string]any)
		assert.EqualValues(t, 3, doc2["row_count"])
	})

	t.Run("Should merge repeated additions for the same document id", func(t *testing.T) {
		m := artifact.NewManifest()
		m.AddDocument("doc_1", []string{"doc_1_ch_a"}, nil, 0)
		m.AddDocument("doc_1", []string{"doc_1_ch_b"}, nil, 0)
		assert.Len(t, m.Documents["doc_1"].ChunkIDs, 2)
	})
}
