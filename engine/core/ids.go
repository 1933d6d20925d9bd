package core

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// HashAlgo selects the digest family used to derive content-addressed
// identifiers. Blake2b is the default; xxh64 trades collision resistance
// for speed on very large corpora.
type HashAlgo string

const (
	HashAlgoBlake2b HashAlgo = "blake2b"
	HashAlgoXXH64   HashAlgo = "xxh64"
)

// blake2bDigestSize mirrors the 16-byte digest used upstream: enough to
// make collisions practically impossible for a single run's identifiers
// while keeping ids short.
const blake2bDigestSize = 16

// NormalizeText canonicalizes text: strips a leading UTF-8 BOM, applies
// NFC normalization, and rewrites CRLF/CR line endings to LF. DocumentID,
// ChunkID and BlobID do not apply it themselves; they hash their payload
// bytes exactly as given.
func NormalizeText(text string) []byte {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return []byte(text)
}

// HashBytes computes a namespaced digest of data using algo (defaulting
// to blake2b when algo is empty). The namespace is prepended to the
// payload before hashing so callers can derive distinct ids for distinct
// semantic roles from the same bytes.
func HashBytes(data []byte, namespace string, algo HashAlgo) (string, error) {
	if algo == "" {
		algo = HashAlgoBlake2b
	}
	payload := append([]byte(namespace), data...)
	switch algo {
	case HashAlgoXXH64:
		sum := xxhash.Sum64(payload)
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(sum >> (8 * (7 - i)))
		}
		return hex.EncodeToString(buf), nil
	case HashAlgoBlake2b:
		h, err := blake2b.New(blake2bDigestSize, nil)
		if err != nil {
			return "", fmt.Errorf("init blake2b: %w", err)
		}
		if _, err := h.Write(payload); err != nil {
			return "", fmt.Errorf("write blake2b payload: %w", err)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		return "", NewError(ErrConfig, fmt.Sprintf("unsupported hash algorithm %q", algo), nil)
	}
}

// UTCNowISO formats t as an ISO-8601 UTC timestamp, the same shape used
// for run metadata and document modification times.
func UTCNowISO(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// DocumentID derives a stable identifier for a source document from its
// content alone: mime and length scope the digest, but the payload
// itself is what determines it. sourceURI and modifiedAt are accepted
// for callers that want them logged or carried alongside the id, but
// deliberately play no part in the hash — two fetches of identical
// bytes must resolve to the same document id even if they came from a
// different URI or reported a different modification time.
func DocumentID(
	algo HashAlgo,
	sourceURI string,
	payload []byte,
	modifiedAt *time.Time,
	contentType string,
	contentLength int,
) (string, error) {
	namespace := fmt.Sprintf("mime=%s|len=%d", contentType, contentLength)
	digest, err := HashBytes(payload, namespace, algo)
	if err != nil {
		return "", err
	}
	return "doc_" + digest, nil
}

// ChunkID derives a stable identifier for a chunk of a document, scoped
// by the document's id, the chunk's byte offset within the document's
// canonical text, and its payload length.
func ChunkID(algo HashAlgo, documentID string, offset int, payload []byte) (string, error) {
	namespace := fmt.Sprintf("%s|%d|len=%d", documentID, offset, len(payload))
	digest, err := HashBytes(payload, namespace, algo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_ch_%s", documentID, digest[:12]), nil
}

// BlobID derives a stable identifier for a binary attachment (e.g. an
// image) belonging to a document.
func BlobID(algo HashAlgo, documentID, mediaType string, payload []byte) (string, error) {
	namespace := fmt.Sprintf("%s|%s|len=%d", documentID, mediaType, len(payload))
	digest, err := HashBytes(payload, namespace, algo)
	if err != nil {
		return "", err
	}
	return "blob_" + digest[:12], nil
}
