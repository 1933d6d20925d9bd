package iterator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/iterator"
)

func TestIterRows(t *testing.T) {
	t.Run("Should parse CSV rows keyed by header", func(t *testing.T) {
		csv := "name,age\nalice,30\nbob,25\n"
		rows, err := iterator.IterRows(strings.NewReader(csv), iterator.RowOptions{})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "alice", rows[0].Fields["name"])
		assert.Equal(t, "25", rows[1].Fields["age"])
	})

	t.Run("Should deduplicate blank and repeated headers", func(t *testing.T) {
		csv := "name,,name\na,b,c\n"
		rows, err := iterator.IterRows(strings.NewReader(csv), iterator.RowOptions{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "a", rows[0].Fields["name"])
		assert.Equal(t, "b", rows[0].Fields["col"])
		assert.Equal(t, "c", rows[0].Fields["name__1"])
	})

	t.Run("Should project columns when PassThrough is set", func(t *testing.T) {
		csv := "name,age,country\nalice,30,us\n"
		rows, err := iterator.IterRows(strings.NewReader(csv), iterator.RowOptions{PassThrough: []string{"name"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		_, hasAge := rows[0].Fields["age"]
		assert.False(t, hasAge)
		assert.Equal(t, "alice", rows[0].Fields["name"])
	})

	t.Run("Should derive row.text from TextColumn even when it is excluded from PassThrough", func(t *testing.T) {
		csv := "id,comment\n1,ok\n2,bad\n"
		rows, err := iterator.IterRows(strings.NewReader(csv), iterator.RowOptions{
			TextColumn:  "comment",
			PassThrough: []string{"id"},
		})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		_, hasComment := rows[0].Fields["comment"]
		assert.False(t, hasComment)
		assert.Equal(t, "ok", rows[0].Text)
		assert.Equal(t, "bad", rows[1].Text)
	})
}

func TestRowText(t *testing.T) {
	t.Run("Should join multiple text columns with a space", func(t *testing.T) {
		row := core.Row{Fields: map[string]string{"first": "Jane", "last": "Doe"}}
		assert.Equal(t, "Jane Doe", iterator.RowText(row, "first last"))
	})

	t.Run("Should return a single column directly", func(t *testing.T) {
		row := core.Row{Fields: map[string]string{"body": "hello"}}
		assert.Equal(t, "hello", iterator.RowText(row, "body"))
	})
}
