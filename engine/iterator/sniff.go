package iterator

import (
	"github.com/gabriel-vasile/mimetype"
)

// DetectContentType sniffs payload's MIME type, used when a fetched
// resource doesn't carry a trustworthy Content-Type header (e.g. a
// local file read straight off disk).
func DetectContentType(payload []byte) string {
	return mimetype.Detect(payload).String()
}

// IsTextLike reports whether the detected MIME type should be routed to
// the chunking path rather than treated as a binary blob.
func IsTextLike(contentType string) bool {
	detected := mimetype.Lookup(contentType)
	if detected == nil {
		return false
	}
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
