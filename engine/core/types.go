package core

import "time"

// Resource identifies a single input the pipeline was pointed at, before
// it has been fetched or parsed: a file path, glob match, or connector
// URI.
type Resource struct {
	URI         string
	ContentType string
}

// Document is a fetched, decoded source: either free text (for chunking)
// or tabular rows (for row iteration), plus any associated blobs.
type Document struct {
	ID            string
	SourceURI     string
	ContentType   string
	ContentLength int
	ModifiedAt    *time.Time
	Text          string
	Rows          []Row
	Blobs         []Blob
}

// Row is one record from a tabular source (CSV today; the contract
// leaves room for columnar formats). Fields holds the pass-through
// columns only; Text is derived independently from the configured
// text column(s) and is always populated regardless of what pass_through
// echoes.
type Row struct {
	Index     int
	Fields    map[string]string
	Text      string
	SourceURI string
	Filename  string
}

// Blob is a binary attachment belonging to a Document, such as an image
// extracted alongside its surrounding text.
type Blob struct {
	ID        string
	MediaType string
	Payload   []byte
	SourceURI string
}

// Chunk is one unit of split text from a Document, carrying enough
// context to be replayed deterministically. Offset is the chunk's byte
// position within the document's canonical text, used by ChunkID so
// ids are content-and-position derived rather than order-derived.
type Chunk struct {
	ID             string
	DocumentID     string
	Index          int
	Text           string
	SourceURI      string
	Offset         int
	TokensEstimate int
	Metadata       map[string]string
}

// ImageGroup bundles the Document's blobs when a step needs them
// attached together instead of one at a time.
type ImageGroup struct {
	DocumentID string
	SourceURIs []string
	Blobs      []Blob
}

// ExecutionUnit is one item dispatched through a pipeline step: exactly
// one of Chunk, Row, or ImageGroup is populated, matching the iterator
// mode the step was configured with.
type ExecutionUnit struct {
	UnitID     string
	Chunk      *Chunk
	Row        *Row
	ImageGroup *ImageGroup
}

// Usage reports token accounting for a single inference call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// InferenceTelemetry records how a dispatched inference call actually
// ran: which mode was selected, whether it fell back, and basic timing.
type InferenceTelemetry struct {
	RequestedMode  string
	SelectedMode   string
	FallbackReason string
	TimeToFirstByteMS int64
	LatencyMS         int64
	ChunkCount        int
	TokensOut         *int
	Retries           int
}

// Completion is the normalized result of one inference call.
type Completion struct {
	Text     string
	Usage    Usage
	Telemetry InferenceTelemetry
}

// StepResult is what the executor records for one (unit, step) pair
// after it finishes, whatever the outcome.
type StepResult struct {
	UnitID     string
	StepID     string
	OutputName string
	Value      any
	Err        error
	Attempts   int
}
