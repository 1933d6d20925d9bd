package core

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces any matched secret-shaped substring.
const RedactedPlaceholder = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]+`),
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|password)\s*[=:]\s*["']?[a-z0-9._\-]{6,}["']?`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{16,}`),
	regexp.MustCompile(`ghp_[a-zA-Z0-9]{30,}`),
	regexp.MustCompile(`xox[baprs]-[a-zA-Z0-9-]{10,}`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	regexp.MustCompile(`(?i)[a-z][a-z0-9+.\-]*://[^:\s]+:[^@\s]+@`),
}

var sensitiveHeaderNames = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
	"set-cookie":    true,
	"proxy-authorization": true,
}

// RedactString applies every known secret pattern to s and returns the
// redacted result. It is best-effort: it catches common credential
// shapes (bearer tokens, API keys, JWTs, connection strings) but is not
// a substitute for never logging raw secrets in the first place.
func RedactString(s string) string {
	out := s
	for _, pattern := range sensitivePatterns {
		out = pattern.ReplaceAllString(out, RedactedPlaceholder)
	}
	return out
}

// RedactError returns an error whose message has been passed through
// RedactString, preserving the original error for errors.Is/As via
// unwrapping.
func RedactError(err error) error {
	if err == nil {
		return nil
	}
	return &redactedError{msg: RedactString(err.Error()), cause: err}
}

type redactedError struct {
	msg   string
	cause error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.cause }

// RedactHeaders returns a copy of headers with sensitive header values
// replaced; header name matching is case-insensitive.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSensitiveHeader(k) {
			out[k] = RedactedPlaceholder
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveHeader(name string) bool {
	return sensitiveHeaderNames[strings.ToLower(name)]
}
