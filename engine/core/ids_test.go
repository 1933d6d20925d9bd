package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/core"
)

func TestDocumentID(t *testing.T) {
	t.Run("Should be deterministic for identical inputs", func(t *testing.T) {
		modified := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		id1, err := core.DocumentID(core.HashAlgoBlake2b, "file:///a.txt", []byte("hello"), &modified, "text/plain", 5)
		require.NoError(t, err)
		id2, err := core.DocumentID(core.HashAlgoBlake2b, "file:///a.txt", []byte("hello"), &modified, "text/plain", 5)
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
		assert.Contains(t, id1, "doc_")
	})

	t.Run("Should differ when source content differs", func(t *testing.T) {
		id1, err := core.DocumentID(core.HashAlgoBlake2b, "file:///a.txt", []byte("hello"), nil, "text/plain", 5)
		require.NoError(t, err)
		id2, err := core.DocumentID(core.HashAlgoBlake2b, "file:///a.txt", []byte("world"), nil, "text/plain", 5)
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)
	})

	t.Run("Should support the xxh64 algorithm", func(t *testing.T) {
		id, err := core.DocumentID(core.HashAlgoXXH64, "file:///a.txt", []byte("hello"), nil, "text/plain", 5)
		require.NoError(t, err)
		assert.Contains(t, id, "doc_")
	})

	t.Run("Should be unaffected by source URI or modification time", func(t *testing.T) {
		modified := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		other := time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)
		id1, err := core.DocumentID(core.HashAlgoBlake2b, "file:///a.txt", []byte("hello"), &modified, "text/plain", 5)
		require.NoError(t, err)
		id2, err := core.DocumentID(core.HashAlgoBlake2b, "https://example.com/b.txt", []byte("hello"), &other, "text/plain", 5)
		require.NoError(t, err)
		assert.Equal(t, id1, id2)
	})
}

func TestChunkAndBlobID(t *testing.T) {
	t.Run("Should scope chunk ids by document, byte offset and payload", func(t *testing.T) {
		chunkID, err := core.ChunkID(core.HashAlgoBlake2b, "doc_abc", 0, []byte("first chunk"))
		require.NoError(t, err)
		assert.Contains(t, chunkID, "doc_abc_ch_")

		otherIndex, err := core.ChunkID(core.HashAlgoBlake2b, "doc_abc", 1, []byte("first chunk"))
		require.NoError(t, err)
		assert.NotEqual(t, chunkID, otherIndex)
	})

	t.Run("Should scope blob ids by document, media type and payload", func(t *testing.T) {
		blobID, err := core.BlobID(core.HashAlgoBlake2b, "doc_abc", "image/png", []byte{0x01, 0x02})
		require.NoError(t, err)
		assert.Contains(t, blobID, "blob_")
	})
}

func TestNormalizeText(t *testing.T) {
	t.Run("Should strip a leading BOM and normalize line endings", func(t *testing.T) {
		normalized := core.NormalizeText("\ufeffhello\r\nworld\r!")
		assert.Equal(t, "hello\nworld\n!", string(normalized))
	})
}
