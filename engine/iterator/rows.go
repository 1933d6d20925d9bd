package iterator

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/fmf/pipeline/engine/core"
)

// RowOptions configures IterRows.
type RowOptions struct {
	// TextColumn names the column (or columns, space-joined) whose
	// content becomes the row's primary text for template binding. It
	// is resolved independently of PassThrough: row.text is always
	// derived from it even when the underlying column isn't echoed
	// into row.values.
	TextColumn string
	// PassThrough, when non-nil, restricts row.values to this column
	// list; nil keeps every column.
	PassThrough []string
	// SourceURI and Filename are stamped onto every returned row,
	// identifying which resource it came from.
	SourceURI string
	Filename  string
}

// IterRows reads CSV data and returns one core.Row per data row, with
// headers cleaned (duplicates get a numeric suffix, blanks become
// "col"). Every column is available to derive row.text via TextColumn
// before row.values is projected down to PassThrough, so excluding a
// column from pass-through never makes it unreachable as text.
func IterRows(r io.Reader, opts RowOptions) ([]core.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headers = cleanHeaders(headers)

	var rows []core.Row
	index := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", index, err)
		}
		allFields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i >= len(record) {
				continue
			}
			allFields[h] = record[i]
		}
		text := RowText(core.Row{Fields: allFields}, opts.TextColumn)

		fields := make(map[string]string, len(allFields))
		for h, v := range allFields {
			if keepColumn(h, opts.PassThrough) {
				fields[h] = v
			}
		}
		rows = append(rows, core.Row{
			Index:     index,
			Fields:    fields,
			Text:      text,
			SourceURI: opts.SourceURI,
			Filename:  opts.Filename,
		})
		index++
	}
	return rows, nil
}

func keepColumn(name string, passThrough []string) bool {
	if passThrough == nil {
		return true
	}
	for _, col := range passThrough {
		if col == name {
			return true
		}
	}
	return false
}

// cleanHeaders normalizes raw CSV header cells: blanks become "col", and
// duplicate names get a "__N" suffix so every header is unique and safe
// to use as a map key.
func cleanHeaders(raw []string) []string {
	seen := map[string]int{}
	out := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "col"
		}
		count := seen[name]
		seen[name] = count + 1
		if count > 0 {
			name = fmt.Sprintf("%s__%d", name, count)
		}
		out[i] = name
	}
	return out
}

// RowText resolves the bindable text for a row per TextColumn: a single
// column name returns that column's value; a space-separated list of
// names joins their values with a space.
func RowText(row core.Row, textColumn string) string {
	if textColumn == "" {
		return ""
	}
	cols := strings.Fields(textColumn)
	if len(cols) == 1 {
		return row.Fields[cols[0]]
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		if v, ok := row.Fields[c]; ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
