package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fmf/pipeline/engine/core"
)

// PromptRegistry maps a content-hashed prompt_id#version reference to
// the template text it names, letting a step declare prompt_ref instead
// of inlining prompt_template so large or shared prompts aren't
// duplicated across steps. Registration is idempotent: registering
// identical text twice under the same id/version is a no-op, while
// registering different text under an already-used id/version is
// rejected, since that would silently change what a previously-recorded
// reference pointed at.
type PromptRegistry struct {
	mu       sync.RWMutex
	byRef    map[string]string
	hashAlgo core.HashAlgo
}

func NewPromptRegistry(hashAlgo core.HashAlgo) *PromptRegistry {
	return &PromptRegistry{byRef: make(map[string]string), hashAlgo: hashAlgo}
}

func refKey(id, version string) string {
	return id + "#" + version
}

// Register stores text under id/version, returning its content hash.
func (r *PromptRegistry) Register(id, version, text string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := refKey(id, version)
	if existing, ok := r.byRef[ref]; ok && existing != text {
		return "", fmt.Errorf("prompt_ref %q already registered with different content", ref)
	}
	r.byRef[ref] = text
	digest, err := core.HashBytes([]byte(text), "prompt:"+ref, r.hashAlgo)
	if err != nil {
		return "", fmt.Errorf("hash prompt %q: %w", ref, err)
	}
	return digest, nil
}

// Resolve returns the prompt text registered under ref, a
// "prompt_id#version" string.
func (r *PromptRegistry) Resolve(ref string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	text, ok := r.byRef[ref]
	return text, ok
}

// inlinePrefix marks a Step.prompt_template value as literal template
// text rather than a prompt_id#version registry reference.
const inlinePrefix = "inline:"

// ResolvePromptTemplate returns the literal template text for a step's
// declared prompt_template. Text after a leading "inline:" prefix is
// always used as-is apart from trimming surrounding whitespace. A bare value shaped like "prompt_id#version",
// with no inline prefix, is looked up in registry; anything else
// (including plain template text with no reference form) is used
// verbatim, so existing inline prompts need no prefix to keep working.
func ResolvePromptTemplate(promptTemplate string, registry *PromptRegistry) (string, error) {
	if rest, ok := strings.CutPrefix(promptTemplate, inlinePrefix); ok {
		return strings.TrimSpace(rest), nil
	}
	if registry != nil && looksLikePromptRef(promptTemplate) {
		if text, ok := registry.Resolve(promptTemplate); ok {
			return text, nil
		}
	}
	return promptTemplate, nil
}

// looksLikePromptRef reports whether s has the "id#version" shape a
// registry reference takes, as opposed to literal template text (which
// may itself contain "#" inside a comment or value, but never as a
// single bare id#version token with no template syntax).
func looksLikePromptRef(s string) bool {
	if strings.ContainsAny(s, "${}\n ") {
		return false
	}
	id, version, found := strings.Cut(s, "#")
	return found && id != "" && version != ""
}
