package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// WriteStableJSON writes a canonical JSON encoding of v to w: object keys
// are sorted, and no HTML-escaping is applied. Two calls with
// structurally equal values always produce byte-identical output,
// regardless of map iteration order, which is what lets identifiers and
// ETags be derived from hashes of the result.
func WriteStableJSON(w io.Writer, v any) error {
	normalized, err := normalizeForStableJSON(v)
	if err != nil {
		return fmt.Errorf("normalize for stable json: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return fmt.Errorf("encode stable json: %w", err)
	}
	return nil
}

// StableJSONBytes returns the canonical JSON encoding of v as produced by
// WriteStableJSON, with the trailing newline removed.
func StableJSONBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteStableJSON(&buf, v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ETagFromAny hashes the canonical JSON encoding of v and returns it as a
// hex digest, suitable for cache keys and change-detection comparisons.
func ETagFromAny(v any, algo HashAlgo) (string, error) {
	data, err := StableJSONBytes(v)
	if err != nil {
		return "", err
	}
	return HashBytes(data, "etag", algo)
}

// normalizeForStableJSON round-trips v through encoding/json so maps with
// any concrete key/value types collapse to map[string]any, then
// recursively sorts map keys into an ordered representation that the
// standard encoder will emit deterministically (Go already sorts
// map[string]any keys when marshaling, but we normalize explicitly so
// the contract doesn't depend on that implementation detail surviving
// future Go versions).
func normalizeForStableJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return sortKeys(generic), nil
}

func sortKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(orderedMap, 0, len(keys))
		for _, k := range keys {
			ordered = append(ordered, orderedEntry{key: k, value: sortKeys(val[k])})
		}
		return ordered
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortKeys(item)
		}
		return out
	default:
		return val
	}
}

// orderedMap preserves explicit key order through json.Marshal, unlike a
// plain Go map whose key order the encoder would otherwise re-derive
// (correctly, but invisibly) via its own sort pass.
type orderedEntry struct {
	key   string
	value any
}
type orderedMap []orderedEntry

func (o orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(entry.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(entry.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
