package serialize

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
)

// Format selects the on-disk shape of a step's collected outputs.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// Record is one output row: the unit id plus its named output value.
type Record struct {
	UnitID string
	Fields map[string]any
}

// ToJSONL renders records as newline-delimited JSON objects, one per
// line, each carrying unit_id alongside the output fields.
func ToJSONL(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		row := map[string]any{"unit_id": r.UnitID}
		for k, v := range r.Fields {
			row[k] = v
		}
		line, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", r.UnitID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ToCSV renders records as CSV with a stable column order: "unit_id"
// first, then every other field name sorted alphabetically so the
// header is deterministic across runs with the same field set.
func ToCSV(records []Record) ([]byte, error) {
	columns := map[string]bool{}
	for _, r := range records {
		for k := range r.Fields {
			columns[k] = true
		}
	}
	extra := make([]string, 0, len(columns))
	for k := range columns {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	header := append([]string{"unit_id"}, extra...)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		row := make([]string, len(header))
		row[0] = r.UnitID
		for i, col := range extra {
			row[i+1] = stringifyField(r.Fields[col])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %s: %w", r.UnitID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func stringifyField(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	default:
		data, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprintf("%v", vv)
		}
		return string(data)
	}
}
