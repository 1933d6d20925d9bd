package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fmf/pipeline/engine/core"
)

// Context is the binding environment a template expression is resolved
// against: nested maps and slices built from the current unit, its
// document, retrieval results, and step outputs so far.
type Context map[string]any

// ErrMissingKey is returned when a dotted path cannot be resolved and no
// default was supplied; callers decide whether that should fail the
// step or substitute an empty string.
type ErrMissingKey struct {
	Path string
}

func (e *ErrMissingKey) Error() string {
	return fmt.Sprintf("template: unresolved path %q", e.Path)
}

// Render interpolates every `${...}` expression found in tmpl against
// ctx and returns the resulting string. Literal text outside `${...}`
// is passed through unchanged. Unlike Go's text/template, this grammar
// only recognizes the forms described by Resolve and Join below;
// anything else inside `${...}` is resolved as a plain dotted path.
func Render(tmpl string, ctx Context) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.Index(tmpl[i:], "${")
		if start == -1 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		out.WriteString(tmpl[i:start])
		end := matchingBrace(tmpl, start+2)
		if end == -1 {
			out.WriteString(tmpl[start:])
			break
		}
		expr := tmpl[start+2 : end]
		value, err := Resolve(expr, ctx)
		if err != nil {
			return "", err
		}
		out.WriteString(stringifyValue(value))
		i = end + 1
	}
	return out.String(), nil
}

// matchingBrace finds the index of the `}` that closes the `{` assumed
// to have just been opened at openIdx-1 (i.e. this scans for the first
// unescaped `}` since the grammar does not support nested `${...}`
// expressions).
func matchingBrace(s string, from int) int {
	idx := strings.IndexByte(s[from:], '}')
	if idx == -1 {
		return -1
	}
	return from + idx
}

// Resolve evaluates a single `${...}` body (without the surrounding
// braces) against ctx. It recognizes one function form, `join(path,
// "sep")`, an optional trailing `| "default"` fallback for a missing
// path, and otherwise treats the whole expression as a dotted path into
// ctx, special-casing a trailing `*` segment to flatten and join a
// list.
func Resolve(expr string, ctx Context) (any, error) {
	expr = strings.TrimSpace(expr)
	if pipeIdx := findDefaultPipe(expr); pipeIdx != -1 {
		inner := strings.TrimSpace(expr[:pipeIdx])
		fallback := unquoteDefault(strings.TrimSpace(expr[pipeIdx+1:]))
		value, err := resolveExpr(inner, ctx)
		if err != nil {
			var missing *ErrMissingKey
			if errors.As(err, &missing) {
				return fallback, nil
			}
			return nil, err
		}
		return value, nil
	}
	return resolveExpr(expr, ctx)
}

func resolveExpr(expr string, ctx Context) (any, error) {
	if strings.HasPrefix(expr, "join(") && strings.HasSuffix(expr, ")") {
		return resolveJoin(expr[len("join(") : len(expr)-1], ctx)
	}
	return resolvePath(expr, ctx)
}

// findDefaultPipe returns the index of the top-level `|` introducing a
// default-value fallback, or -1 if there is none. A `|` inside a quoted
// string (e.g. a join() separator argument) is not top-level.
func findDefaultPipe(expr string) int {
	var inQuote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inQuote = c
		case '|':
			return i
		}
	}
	return -1
}

// unquoteDefault strips a single layer of matching quotes from a
// default-value literal, leaving bare literals untouched.
func unquoteDefault(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func resolveJoin(inner string, ctx Context) (any, error) {
	// The separator is split off at the last comma outside quotes, so a
	// quoted separator may itself contain a comma.
	lastComma := -1
	var inQuote byte
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inQuote = c
		case ',':
			lastComma = i
		}
	}
	if lastComma == -1 {
		return nil, fmt.Errorf("template: join() requires a separator argument: join(%s)", inner)
	}
	argExpr := strings.TrimSpace(inner[:lastComma])
	sep := strings.Trim(strings.TrimSpace(inner[lastComma+1:]), `"'`)

	value, err := Resolve(argExpr, ctx)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = stringifyValue(item)
		}
		return strings.Join(parts, sep), nil
	case []string:
		return strings.Join(v, sep), nil
	case string:
		return strings.Join(strings.Split(v, "\n"), sep), nil
	default:
		return stringifyValue(v), nil
	}
}

// resolvePath walks ctx by dot-separated segments. A "*" segment
// expects the current value to be a list and flattens it by joining its
// stringified elements with newlines before continuing (there is
// nothing further to walk past a "*", so it must be the final segment).
func resolvePath(path string, ctx Context) (any, error) {
	segments := strings.Split(path, ".")
	var current any = map[string]any(ctx)
	for idx, seg := range segments {
		if seg == "*" {
			list, ok := asList(current)
			if !ok {
				return nil, &ErrMissingKey{Path: path}
			}
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = stringifyValue(item)
			}
			current = strings.Join(parts, "\n")
			if idx != len(segments)-1 {
				return nil, fmt.Errorf("template: \"*\" must be the final path segment in %q", path)
			}
			continue
		}
		next, ok := lookup(current, seg)
		if !ok {
			return nil, &ErrMissingKey{Path: path}
		}
		current = next
	}
	if list, ok := asList(current); ok {
		parts := make([]string, len(list))
		for i, item := range list {
			parts[i] = stringifyValue(item)
		}
		return strings.Join(parts, "\n"), nil
	}
	return current, nil
}

func lookup(current any, key string) (any, bool) {
	switch v := current.(type) {
	case map[string]any:
		val, ok := v[key]
		return val, ok
	case Context:
		val, ok := v[key]
		return val, ok
	default:
		return nil, false
	}
}

func asList(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func stringifyValue(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case fmt.Stringer:
		return vv.String()
	default:
		bytes, err := core.StableJSONBytes(vv)
		if err != nil {
			return fmt.Sprintf("%v", vv)
		}
		return string(bytes)
	}
}
