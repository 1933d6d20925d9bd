package retrieval

import "context"

// TextResult is one retrieved passage of text, with a similarity score
// relative to the query.
type TextResult struct {
	SourceURI string
	Text      string
	Score     float64
}

// ImageResult is one retrieved image reference, with a similarity score
// relative to the query.
type ImageResult struct {
	SourceURI string
	MediaType string
	Score     float64
}

// Result bundles everything a retrieval call returned for one query.
type Result struct {
	Query  string
	Texts  []TextResult
	Images []ImageResult
}

// Pipeline is the contract a retrieval backend implements: given a
// query and separate text/image result caps, return the most relevant
// passages/images. Implementations range from the in-process TF-cosine
// Reference to a remote vector database.
type Pipeline interface {
	Retrieve(ctx context.Context, query string, topKText, topKImages int) (Result, error)
}

// Registry resolves a named retrieval pipeline, since a run may
// configure more than one (e.g. one per document collection).
type Registry interface {
	Pipeline(name string) (Pipeline, bool)
}

type mapRegistry map[string]Pipeline

// NewRegistry builds a Registry from a name-to-pipeline map.
func NewRegistry(pipelines map[string]Pipeline) Registry {
	return mapRegistry(pipelines)
}

func (r mapRegistry) Pipeline(name string) (Pipeline, bool) {
	p, ok := r[name]
	return p, ok
}
