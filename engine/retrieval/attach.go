package retrieval

import (
	"context"
	"fmt"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/template"
)

const (
	defaultTextVar  = "rag_context"
	defaultImageVar = "rag_images"
)

// AttachOptions configures how retrieval context is fetched and bound
// for one unit before a step's prompt is rendered.
type AttachOptions struct {
	PipelineName string
	QueryExpr    string
	TopKText     int
	TopKImages   int
	// TextVar and ImageVar name the template variables text/image
	// results are bound under; they default to rag_context/rag_images.
	TextVar  string
	ImageVar string
	// MaxChars caps the newline-joined text binding's length; 0 means
	// no cap.
	MaxChars int
}

// LogEntry is one line appended to the per-run retrieval log, naming
// everything a step's retrieval call returned so a run can be audited
// after the fact without re-querying the backend.
type LogEntry struct {
	Pipeline string
	Query    string
	TextIDs  []string
	ImageIDs []string
}

// AttachResult is what Attach produces: the enriched template context
// plus the raw image results (for the caller to attach as multimodal
// request parts) and a log entry describing what was retrieved.
type AttachResult struct {
	Context template.Context
	Images  []ImageResult
	Log     LogEntry
}

// Attach resolves the retrieval query for unit (from QueryExpr, falling
// back to DefaultQuery when QueryExpr is empty), runs the named
// pipeline, and binds the results per the retrieval binding contract:
// text results are newline-joined and character-capped under TextVar,
// image results are returned for the caller to attach to the
// multimodal request and are also bound under ImageVar as identifiers.
func Attach(ctx context.Context, registry Registry, unitCtx template.Context, opts AttachOptions) (AttachResult, error) {
	if opts.PipelineName == "" {
		return AttachResult{Context: unitCtx}, nil
	}
	textVar := opts.TextVar
	if textVar == "" {
		textVar = defaultTextVar
	}
	imageVar := opts.ImageVar
	if imageVar == "" {
		imageVar = defaultImageVar
	}

	pipeline, ok := registry.Pipeline(opts.PipelineName)
	if !ok {
		return AttachResult{}, core.NewError(core.ErrConfig, fmt.Sprintf("unknown retrieval pipeline %q", opts.PipelineName), nil)
	}

	query := opts.QueryExpr
	if query != "" {
		resolved, err := template.Resolve(query, unitCtx)
		if err != nil {
			return AttachResult{}, fmt.Errorf("resolve retrieval query: %w", err)
		}
		query = fmt.Sprintf("%v", resolved)
	} else {
		query = DefaultQuery(unitCtx)
	}

	result, err := pipeline.Retrieve(ctx, query, opts.TopKText, opts.TopKImages)
	if err != nil {
		return AttachResult{}, core.NewError(core.ErrConnector, "retrieval pipeline call failed", err)
	}

	texts := make([]string, len(result.Texts))
	textIDs := make([]string, len(result.Texts))
	for i, t := range result.Texts {
		texts[i] = t.Text
		textIDs[i] = t.SourceURI
	}
	joined := template.JoinValues(texts, "\n", 0)
	joined = template.LimitJoined(joined, opts.MaxChars)

	imageIDs := make([]string, len(result.Images))
	for i, im := range result.Images {
		imageIDs[i] = im.SourceURI
	}

	enriched := template.Context{}
	for k, v := range unitCtx {
		enriched[k] = v
	}
	enriched[textVar] = joined
	enriched[imageVar] = toAnySlice(imageIDs)

	return AttachResult{
		Context: enriched,
		Images:  result.Images,
		Log: LogEntry{
			Pipeline: opts.PipelineName,
			Query:    result.Query,
			TextIDs:  textIDs,
			ImageIDs: imageIDs,
		},
	}, nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// DefaultQuery derives a retrieval query from the unit context when no
// explicit query expression was configured, falling back through
// chunk.text, chunk.source_uri, row.text, an arbitrary row field, or a
// group's source_uris, in that order.
func DefaultQuery(ctx template.Context) string {
	if chunk, ok := ctx["chunk"].(map[string]any); ok {
		if text, ok := chunk["text"].(string); ok && text != "" {
			return text
		}
		if uri, ok := chunk["source_uri"].(string); ok && uri != "" {
			return uri
		}
	}
	if row, ok := ctx["row"].(map[string]any); ok {
		if text, ok := row["text"].(string); ok && text != "" {
			return text
		}
		for _, v := range row {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if group, ok := ctx["group"].(map[string]any); ok {
		if uris, ok := group["source_uris"].([]any); ok && len(uris) > 0 {
			if s, ok := uris[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
