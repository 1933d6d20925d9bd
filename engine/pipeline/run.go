package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/fmf/pipeline/engine/artifact"
	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/executor"
	"github.com/fmf/pipeline/engine/iterator"
	"github.com/fmf/pipeline/engine/jsonenforce"
	"github.com/fmf/pipeline/engine/llm/adapter"
	"github.com/fmf/pipeline/engine/llm/dispatcher"
	"github.com/fmf/pipeline/engine/retrieval"
	"github.com/fmf/pipeline/engine/schema"
	"github.com/fmf/pipeline/engine/serialize"
	"github.com/fmf/pipeline/engine/telemetry"
	"github.com/fmf/pipeline/engine/template"
	"github.com/fmf/pipeline/pkg/config"
	"github.com/fmf/pipeline/pkg/logger"
)

// NewRunID generates a run identifier of the form
// YYYYMMDDTHHMMSSZ-<ksuid>: a UTC timestamp prefix, so run directories
// list chronologically, and a ksuid suffix, so collisions between
// concurrent runs are effectively impossible.
func NewRunID() string {
	return time.Now().UTC().Format("20060102T150405Z") + "-" + ksuid.New().String()
}

// ClientSource resolves the adapter.Client for a step's declared
// provider/model, satisfied by *adapter.Registry in production and by
// a fake in tests.
type ClientSource interface {
	Get(ctx context.Context, provider, model string) (adapter.Client, error)
}

// Runner wires every engine package together to execute one Pipeline
// against a document.
type Runner struct {
	Pipeline  *Pipeline
	Providers ClientSource
	Retrieval retrieval.Registry
	Prompts   *PromptRegistry
	Writer    *artifact.Writer
	Telemetry *telemetry.Registry
	Executor  *executor.Executor
	Log       logger.Logger
}

// RunDocument iterates doc into execution units per the pipeline's
// iterator settings, then runs every step over those units in order,
// threading each step's output into the next step's binding context. It
// returns the units alongside the per-step results so the caller can
// persist both without re-deriving the iteration.
func (r *Runner) RunDocument(ctx context.Context, doc core.Document) (map[string][]core.StepResult, []core.ExecutionUnit, error) {
	units, err := r.buildUnits(doc)
	if err != nil {
		return nil, nil, err
	}

	allOutputs := map[string]any{}
	unitContexts := make([]template.Context, len(units))
	for i, u := range units {
		unitContexts[i] = baseContext(u)
		unitContexts[i]["all"] = allOutputs
	}

	results := make(map[string][]core.StepResult, len(r.Pipeline.Steps))
	for _, step := range r.Pipeline.Steps {
		step := step
		stepResults, anyFailed, err := r.Executor.Run(ctx, step.ID, units, func(ctx context.Context, unit core.ExecutionUnit) (core.StepResult, error) {
			idx := unitIndex(units, unit)
			return r.runStep(ctx, step, unit, unitContexts[idx])
		})
		if err != nil {
			return results, units, fmt.Errorf("step %s: %w", step.ID, err)
		}
		results[step.ID] = stepResults

		var succeeded []any
		for i, res := range stepResults {
			if res.Err != nil {
				continue
			}
			unitContexts[i][step.OutputName] = res.Value
			succeeded = append(succeeded, res.Value)
		}
		allOutputs[step.OutputName] = succeeded

		if anyFailed && !r.Pipeline.Executor.ContinueOnError {
			break
		}
	}
	return results, units, nil
}

func unitIndex(units []core.ExecutionUnit, target core.ExecutionUnit) int {
	for i, u := range units {
		if u.UnitID == target.UnitID {
			return i
		}
	}
	return -1
}

func (r *Runner) buildUnits(doc core.Document) ([]core.ExecutionUnit, error) {
	switch r.Pipeline.Iterator.Splitter {
	case "rows":
		rows := doc.Rows
		if rows == nil && doc.Text != "" {
			parsed, err := iterator.IterRows(strings.NewReader(doc.Text), iterator.RowOptions{
				TextColumn:  r.Pipeline.Iterator.TextColumn,
				PassThrough: r.Pipeline.Iterator.PassThrough,
				SourceURI:   doc.SourceURI,
				Filename:    filepath.Base(doc.SourceURI),
			})
			if err != nil {
				return nil, fmt.Errorf("parse rows for document %s: %w", doc.ID, err)
			}
			rows = parsed
		}
		units := make([]core.ExecutionUnit, len(rows))
		for i, row := range rows {
			row := row
			units[i] = core.ExecutionUnit{UnitID: fmt.Sprintf("%s_row_%d", doc.ID, row.Index), Row: &row}
		}
		return units, nil
	case "images":
		groups := iterator.GroupImages(doc, r.Pipeline.Iterator.GroupSize)
		units := make([]core.ExecutionUnit, len(groups))
		for i, g := range groups {
			g := g
			units[i] = core.ExecutionUnit{UnitID: fmt.Sprintf("%s_group_%d", doc.ID, i), ImageGroup: &g}
		}
		return units, nil
	default:
		chunks, err := iterator.ChunkText(doc, iterator.ChunkOptions{
			Splitter:  iterator.Splitter(r.Pipeline.Iterator.Splitter),
			MaxTokens: r.Pipeline.Iterator.MaxTokens,
			Overlap:   r.Pipeline.Iterator.Overlap,
			HashAlgo:  core.HashAlgo(r.Pipeline.Identity.HashAlgo),
		})
		if err != nil {
			return nil, fmt.Errorf("chunk document %s: %w", doc.ID, err)
		}
		units := make([]core.ExecutionUnit, len(chunks))
		for i, c := range chunks {
			c := c
			units[i] = core.ExecutionUnit{UnitID: c.ID, Chunk: &c}
		}
		return units, nil
	}
}

func baseContext(unit core.ExecutionUnit) template.Context {
	ctx := template.Context{}
	if unit.Chunk != nil {
		ctx["chunk"] = map[string]any{
			"id": unit.Chunk.ID, "text": unit.Chunk.Text,
			"source_uri": unit.Chunk.SourceURI, "index": unit.Chunk.Index,
			"offset": unit.Chunk.Offset, "tokens_estimate": unit.Chunk.TokensEstimate,
		}
	}
	if unit.Row != nil {
		fields := make(map[string]any, len(unit.Row.Fields)+1)
		for k, v := range unit.Row.Fields {
			fields[k] = v
		}
		fields["index"] = unit.Row.Index
		fields["text"] = unit.Row.Text
		fields["source_uri"] = unit.Row.SourceURI
		fields["filename"] = unit.Row.Filename
		ctx["row"] = fields
	}
	if unit.ImageGroup != nil {
		ctx["group"] = map[string]any{
			"document_id": unit.ImageGroup.DocumentID,
			"source_uris": toAnySlice(unit.ImageGroup.SourceURIs),
		}
	}
	return ctx
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// runStep renders the step's prompt, optionally attaches retrieval
// context, dispatches the inference call, and enforces the declared
// output contract.
func (r *Runner) runStep(ctx context.Context, step config.StepConfig, unit core.ExecutionUnit, unitCtx template.Context) (core.StepResult, error) {
	boundCtx := unitCtx
	var retrievedImages []retrieval.ImageResult
	if step.Retrieval != nil && step.Retrieval.Enabled {
		attached, err := retrieval.Attach(ctx, r.Retrieval, unitCtx, retrieval.AttachOptions{
			PipelineName: step.Retrieval.Pipeline,
			QueryExpr:    step.Retrieval.QueryExpr,
			TopKText:     step.Retrieval.TopKText,
			TopKImages:   step.Retrieval.TopKImages,
			TextVar:      step.Retrieval.TextVar,
			ImageVar:     step.Retrieval.ImageVar,
			MaxChars:     step.Retrieval.MaxChars,
		})
		if err != nil {
			return core.StepResult{}, err
		}
		boundCtx = attached.Context
		retrievedImages = attached.Images
		if r.Writer != nil {
			if err := r.writeRetrievalLog(unit, step, attached.Log); err != nil {
				return core.StepResult{}, err
			}
		}
	}

	templateText, err := r.resolvePrompt(step)
	if err != nil {
		return core.StepResult{}, err
	}

	prompt, err := template.Render(templateText, boundCtx)
	if err != nil {
		return core.StepResult{}, core.NewError(core.ErrProcessing, "render prompt", err)
	}

	client, err := r.Providers.Get(ctx, r.Pipeline.LLM.Provider, r.Pipeline.LLM.Model)
	if err != nil {
		return core.StepResult{}, err
	}

	mode, err := dispatcher.NormalizeMode(step.Mode)
	if err != nil {
		return core.StepResult{}, err
	}

	message := adapter.Message{Role: adapter.RoleUser, Content: prompt}
	for _, im := range retrievedImages {
		message.Images = append(message.Images, adapter.ImageRef{URL: im.SourceURI, MediaType: im.MediaType})
	}
	messages := []adapter.Message{message}
	completion, err := dispatcher.InvokeWithMode(ctx, client, messages, adapter.CallOptions{}, mode)
	if err != nil {
		return core.StepResult{}, err
	}

	if step.OutputExpects != "json" {
		return core.StepResult{OutputName: step.OutputName, Value: completion.Text}, nil
	}

	outputSchema := schema.Schema(step.OutputSchema)
	outcome, err := jsonenforce.Enforce(ctx, completion.Text, outputSchema, step.ParseRetries, func(ctx context.Context, _ string, feedback string) (string, error) {
		repaired, err := dispatcher.InvokeWithMode(ctx, client, append(messages, adapter.Message{Role: adapter.RoleUser, Content: feedback}), adapter.CallOptions{}, mode)
		if err != nil {
			return "", err
		}
		return repaired.Text, nil
	})
	if err != nil {
		return core.StepResult{}, err
	}
	return core.StepResult{OutputName: step.OutputName, Value: outcome.Value, Attempts: outcome.Attempts}, nil
}

// resolvePrompt picks the step's literal template text: an explicit
// prompt_ref always goes through the registry; otherwise
// prompt_template is resolved (inline prefix, bare registry reference,
// or literal text).
func (r *Runner) resolvePrompt(step config.StepConfig) (string, error) {
	if step.PromptRef != "" {
		text, ok := r.Prompts.Resolve(step.PromptRef)
		if !ok {
			return "", core.NewError(core.ErrConfig, fmt.Sprintf("unknown prompt_ref %q", step.PromptRef), nil)
		}
		return text, nil
	}
	text, err := ResolvePromptTemplate(step.PromptTemplate, r.Prompts)
	if err != nil {
		return "", core.NewError(core.ErrConfig, "resolve prompt_template", err)
	}
	return text, nil
}

type retrievalLogLine struct {
	UnitID   string   `json:"unit_id"`
	StepID   string   `json:"step_id"`
	Pipeline string   `json:"pipeline"`
	Query    string   `json:"query"`
	TextIDs  []string `json:"text_ids,omitempty"`
	ImageIDs []string `json:"image_ids,omitempty"`
}

func (r *Runner) writeRetrievalLog(unit core.ExecutionUnit, step config.StepConfig, entry retrieval.LogEntry) error {
	line, err := json.Marshal(retrievalLogLine{
		UnitID: unit.UnitID, StepID: step.ID,
		Pipeline: entry.Pipeline, Query: entry.Query,
		TextIDs: entry.TextIDs, ImageIDs: entry.ImageIDs,
	})
	if err != nil {
		return fmt.Errorf("marshal retrieval log entry: %w", err)
	}
	return r.Writer.AppendLine(fmt.Sprintf("rag/%s.jsonl", entry.Pipeline), line)
}

// PersistRun writes every artifact the run produced for one document:
// docs.jsonl, chunks.jsonl or rows.jsonl (matching the iterator mode),
// outputs.jsonl (one record per unit carrying its pass-through fields
// and step_outputs), manifest.json, and run.yaml.
func (r *Runner) PersistRun(runID string, started time.Time, doc core.Document, units []core.ExecutionUnit, results map[string][]core.StepResult) error {
	record := artifact.NewRunRecord(runID, started)
	status := "completed"
	for stepID, stepResults := range results {
		summary := artifact.StepSummary{StepID: stepID}
		for _, res := range stepResults {
			if res.Err != nil {
				summary.Failed++
				status = "completed_with_errors"
				continue
			}
			summary.Succeeded++
			if res.Attempts > 1 {
				summary.Retried++
			}
		}
		record.Steps = append(record.Steps, summary)
	}
	record.Finish(time.Now(), status)

	if err := r.writeDocsJSONL(doc); err != nil {
		return err
	}
	if err := r.writeUnitsJSONL(units); err != nil {
		return err
	}
	if err := r.writeOutputsJSONL(units, results); err != nil {
		return err
	}
	if err := r.writeManifest(doc, units); err != nil {
		return err
	}

	yamlBytes, err := record.MarshalYAML()
	if err != nil {
		return err
	}
	return r.Writer.WriteFile("run.yaml", yamlBytes)
}

func (r *Runner) writeDocsJSONL(doc core.Document) error {
	fields := map[string]any{
		"source_uri": doc.SourceURI, "content_type": doc.ContentType,
		"content_length": doc.ContentLength,
	}
	if doc.ModifiedAt != nil {
		fields["modified_at"] = core.UTCNowISO(*doc.ModifiedAt)
	}
	data, err := serialize.ToJSONL([]serialize.Record{{UnitID: doc.ID, Fields: fields}})
	if err != nil {
		return fmt.Errorf("serialize docs.jsonl: %w", err)
	}
	return r.Writer.WriteFile("docs.jsonl", data)
}

func (r *Runner) writeUnitsJSONL(units []core.ExecutionUnit) error {
	switch r.Pipeline.Iterator.Splitter {
	case "rows":
		records := make([]serialize.Record, 0, len(units))
		for _, u := range units {
			if u.Row == nil {
				continue
			}
			fields := map[string]any{
				"index": u.Row.Index, "text": u.Row.Text,
				"source_uri": u.Row.SourceURI, "filename": u.Row.Filename,
			}
			for k, v := range u.Row.Fields {
				fields[k] = v
			}
			records = append(records, serialize.Record{UnitID: u.UnitID, Fields: fields})
		}
		data, err := serialize.ToJSONL(records)
		if err != nil {
			return fmt.Errorf("serialize rows.jsonl: %w", err)
		}
		return r.Writer.WriteFile("rows.jsonl", data)
	case "images":
		return nil
	default:
		records := make([]serialize.Record, 0, len(units))
		for _, u := range units {
			if u.Chunk == nil {
				continue
			}
			records = append(records, serialize.Record{UnitID: u.UnitID, Fields: map[string]any{
				"document_id": u.Chunk.DocumentID, "index": u.Chunk.Index,
				"text": u.Chunk.Text, "source_uri": u.Chunk.SourceURI,
				"offset": u.Chunk.Offset, "tokens_estimate": u.Chunk.TokensEstimate,
				"metadata": u.Chunk.Metadata,
			}})
		}
		data, err := serialize.ToJSONL(records)
		if err != nil {
			return fmt.Errorf("serialize chunks.jsonl: %w", err)
		}
		return r.Writer.WriteFile("chunks.jsonl", data)
	}
}

func (r *Runner) writeOutputsJSONL(units []core.ExecutionUnit, results map[string][]core.StepResult) error {
	records := make([]serialize.Record, len(units))
	for i, u := range units {
		fields := map[string]any{}
		if u.Row != nil {
			for k, v := range u.Row.Fields {
				fields[k] = v
			}
		}
		stepOutputs := map[string]any{}
		for _, step := range r.Pipeline.Steps {
			stepResults, ok := results[step.ID]
			if !ok || i >= len(stepResults) {
				continue
			}
			res := stepResults[i]
			if res.Err != nil {
				continue
			}
			stepOutputs[step.OutputName] = res.Value
		}
		fields["step_outputs"] = stepOutputs
		records[i] = serialize.Record{UnitID: u.UnitID, Fields: fields}
	}
	data, err := serialize.ToJSONL(records)
	if err != nil {
		return fmt.Errorf("serialize outputs.jsonl: %w", err)
	}
	return r.Writer.WriteFile("outputs.jsonl", data)
}

func (r *Runner) writeManifest(doc core.Document, units []core.ExecutionUnit) error {
	manifest := artifact.NewManifest()
	var chunkIDs []string
	rowCount := 0
	for _, u := range units {
		if u.Chunk != nil {
			chunkIDs = append(chunkIDs, u.Chunk.ID)
		}
		if u.Row != nil {
			rowCount++
		}
	}
	blobIDs := make([]string, len(doc.Blobs))
	for i, b := range doc.Blobs {
		blobIDs[i] = b.ID
	}
	manifest.AddDocument(doc.ID, chunkIDs, blobIDs, rowCount)

	data, err := manifest.MarshalManifestJSON()
	if err != nil {
		return err
	}
	return r.Writer.WriteFile("manifest.json", data)
}
