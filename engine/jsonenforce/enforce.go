package jsonenforce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/schema"
)

// Outcome is the result of running a completion's text through the
// parse/validate/repair loop.
type Outcome struct {
	Value    any
	Attempts int
	RawText  string
}

// RepairFunc re-invokes the model with feedback about why its last
// output didn't parse or validate, returning the new raw text.
type RepairFunc func(ctx context.Context, previousText string, feedback string) (string, error)

// Enforce parses rawText as JSON (first strictly, then by scanning for
// the first balanced JSON object if strict parsing fails), validates it
// against outputSchema when one is set, and retries via repair up to
// maxRetries times when either step fails.
func Enforce(
	ctx context.Context,
	rawText string,
	outputSchema schema.Schema,
	maxRetries int,
	repair RepairFunc,
) (Outcome, error) {
	text := rawText
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		value, parseErr := parseJSON(text)
		if parseErr == nil {
			if outputSchema == nil {
				return Outcome{Value: value, Attempts: attempt + 1, RawText: text}, nil
			}
			if _, validateErr := outputSchema.Validate(ctx, value); validateErr == nil {
				return Outcome{Value: value, Attempts: attempt + 1, RawText: text}, nil
			} else {
				lastErr = validateErr
			}
		} else {
			lastErr = parseErr
		}

		if attempt == maxRetries || repair == nil {
			break
		}
		feedback := buildFeedback(lastErr)
		repaired, err := repair(ctx, text, feedback)
		if err != nil {
			return Outcome{}, core.NewError(core.ErrInference, "repair call failed", err)
		}
		text = repaired
	}
	return Outcome{}, core.NewError(core.ErrProcessing, fmt.Sprintf("could not obtain valid JSON output: %v", lastErr), lastErr)
}

func buildFeedback(cause error) string {
	return fmt.Sprintf(
		"Your previous response was not valid JSON matching the required schema (%v). "+
			"Respond again with only a single JSON object, no surrounding text.",
		cause,
	)
}

// parseJSON tries strict unmarshal first, then falls back to scanning
// the text for the first balanced top-level JSON object/array, which
// tolerates models that wrap their answer in prose or code fences.
func parseJSON(text string) (any, error) {
	var strict any
	if err := json.Unmarshal([]byte(text), &strict); err == nil {
		return strict, nil
	}
	extracted, ok := ExtractJSONValue(text)
	if !ok {
		return nil, fmt.Errorf("no valid JSON object found in output")
	}
	var value any
	if err := json.Unmarshal([]byte(extracted), &value); err != nil {
		return nil, fmt.Errorf("extracted JSON did not parse: %w", err)
	}
	return value, nil
}

// ExtractJSONValue scans text for the first balanced {...} or [...]
// span, correctly accounting for nested brackets and quoted strings
// (including escaped quotes), and returns it verbatim. This recovers
// well-formed JSON a model embedded inside explanatory prose or a
// fenced code block.
func ExtractJSONValue(text string) (string, bool) {
	start := -1
	var openChar, closeChar byte
	for i := 0; i < len(text); i++ {
		if text[i] == '{' || text[i] == '[' {
			start = i
			openChar = text[i]
			if openChar == '{' {
				closeChar = '}'
			} else {
				closeChar = ']'
			}
			break
		}
	}
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
