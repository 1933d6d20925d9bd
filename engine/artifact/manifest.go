package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// RunRecord is the top-level run.yaml, written once when the finished
// run is persisted: the resolved configuration plus a summary of what
// happened, human-readable and diffable.
type RunRecord struct {
	RunID      string            `yaml:"run_id"`
	StartedAt  string            `yaml:"started_at"`
	FinishedAt string            `yaml:"finished_at,omitempty"`
	Status     string            `yaml:"status"`
	Steps      []StepSummary     `yaml:"steps"`
	Config     map[string]any    `yaml:"config,omitempty"`
}

// StepSummary reports one step's aggregate outcome for the run record.
type StepSummary struct {
	StepID    string `yaml:"step_id"`
	Succeeded int    `yaml:"succeeded"`
	Failed    int    `yaml:"failed"`
	Retried   int    `yaml:"retried"`
}

// Manifest is manifest.json: for every document the run processed, the
// chunk/blob ids derived from it and, for row-iterated documents, how
// many rows it contributed. Downstream tooling walks this instead of
// re-deriving chunk/row counts from docs.jsonl and chunks.jsonl.
type Manifest struct {
	Documents map[string]ManifestDocument `json:"documents"`
}

// ManifestDocument is one entry in Manifest.Documents.
type ManifestDocument struct {
	ChunkIDs []string `json:"chunk_ids,omitempty"`
	BlobIDs  []string `json:"blob_ids,omitempty"`
	RowCount int      `json:"row_count,omitempty"`
}

// NewManifest returns an empty Manifest ready for documents to be added.
func NewManifest() *Manifest {
	return &Manifest{Documents: make(map[string]ManifestDocument)}
}

// AddDocument records doc's chunk/blob ids and row count, merging into
// an existing entry for the same document id (re-running a later step
// over a previously manifested document extends rather than clobbers).
func (m *Manifest) AddDocument(docID string, chunkIDs, blobIDs []string, rowCount int) {
	entry := m.Documents[docID]
	entry.ChunkIDs = append(entry.ChunkIDs, chunkIDs...)
	entry.BlobIDs = append(entry.BlobIDs, blobIDs...)
	entry.RowCount += rowCount
	m.Documents[docID] = entry
}

func NewRunRecord(runID string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		RunID:     runID,
		StartedAt: startedAt.UTC().Format(time.RFC3339),
		Status:    "running",
	}
}

func (r *RunRecord) Finish(finishedAt time.Time, status string) {
	r.FinishedAt = finishedAt.UTC().Format(time.RFC3339)
	r.Status = status
}

// MarshalYAML renders the record for writing to run.yaml.
func (r *RunRecord) MarshalYAML() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal run record: %w", err)
	}
	return data, nil
}

// MarshalManifestJSON renders the manifest for writing to manifest.json.
func (m *Manifest) MarshalManifestJSON() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}
