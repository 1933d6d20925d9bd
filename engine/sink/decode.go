package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeJSONLUnitRows parses a JSONL payload (one object per line, each
// carrying a "unit_id" field) into stagedRow entries ready for a
// database sink's staging insert.
func decodeJSONLUnitRows(data []byte) ([]stagedRow, error) {
	var rows []stagedRow
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var decoded map[string]any
		if err := json.Unmarshal(line, &decoded); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		unitID, _ := decoded["unit_id"].(string)
		if unitID == "" {
			return nil, fmt.Errorf("line %d: missing unit_id", lineNo)
		}
		rows = append(rows, stagedRow{unitID: unitID, payload: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return rows, nil
}
