package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmf/pipeline/engine/artifact"
	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/executor"
	"github.com/fmf/pipeline/engine/llm/adapter"
	"github.com/fmf/pipeline/engine/pipeline"
	"github.com/fmf/pipeline/engine/retrieval"
	"github.com/fmf/pipeline/engine/telemetry"
	"github.com/fmf/pipeline/pkg/config"
	"github.com/fmf/pipeline/pkg/logger"
)

type fakeClient struct{ reply string }

func (f *fakeClient) GenerateContent(_ context.Context, _ []adapter.Message, _ adapter.CallOptions) (adapter.Response, error) {
	return adapter.Response{Text: f.reply}, nil
}

func (f *fakeClient) StreamContent(_ context.Context, _ []adapter.Message, _ adapter.CallOptions) (<-chan adapter.StreamChunk, error) {
	ch := make(chan adapter.StreamChunk, 1)
	ch <- adapter.StreamChunk{Done: true, Final: &adapter.Response{Text: f.reply}}
	close(ch)
	return ch, nil
}

func (f *fakeClient) SupportsStreaming() bool { return false }
func (f *fakeClient) Provider() string        { return "fake" }
func (f *fakeClient) Close() error            { return nil }

type fakeClientSource struct{ client adapter.Client }

func (s fakeClientSource) Get(_ context.Context, _, _ string) (adapter.Client, error) {
	return s.client, nil
}

func newTestRunner(t *testing.T, p *pipeline.Pipeline, reply string) *pipeline.Runner {
	t.Helper()
	log := logger.NewLogger(logger.TestConfig())
	return &pipeline.Runner{
		Pipeline:  p,
		Providers: fakeClientSource{client: &fakeClient{reply: reply}},
		Retrieval: retrieval.NewRegistry(map[string]retrieval.Pipeline{}),
		Prompts:   pipeline.NewPromptRegistry(core.HashAlgoBlake2b),
		Writer:    artifact.NewWriter(t.TempDir()),
		Telemetry: telemetry.NewRegistry(),
		Executor:  executor.New(p.Executor, telemetry.NewRegistry(), log),
		Log:       log,
	}
}

func TestRunnerRunDocument(t *testing.T) {
	t.Run("Should run every chunk through the step and record its output", func(t *testing.T) {
		p := &pipeline.Pipeline{
			Name:     "summarize",
			Executor: config.ExecutorConfig{Concurrency: 2, ContinueOnError: true},
			Iterator: config.IteratorConfig{Splitter: "fixed", MaxTokens: 50},
			Identity: config.IdentityConfig{HashAlgo: "blake2b"},
			LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-test"},
			Steps: []config.StepConfig{
				{ID: "summarize", PromptTemplate: "inline: ${chunk.text}", OutputName: "summary", Mode: "regular"},
			},
		}
		runner := newTestRunner(t, p, "a short summary")

		doc := core.Document{ID: "doc_1", Text: "one two three four five six seven eight nine ten."}
		results, units, err := runner.RunDocument(context.Background(), doc)
		require.NoError(t, err)
		require.NotEmpty(t, units)
		require.Contains(t, results, "summarize")
		for _, res := range results["summarize"] {
			assert.NoError(t, res.Err)
			assert.Equal(t, "a short summary", res.Value)
		}
	})

	t.Run("Should iterate rows when the iterator splitter is rows", func(t *testing.T) {
		p := &pipeline.Pipeline{
			Name:     "classify",
			Executor: config.ExecutorConfig{Concurrency: 1, ContinueOnError: true},
			Iterator: config.IteratorConfig{Splitter: "rows"},
			LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-test"},
			Steps: []config.StepConfig{
				{ID: "classify", PromptTemplate: "inline: ${row.text}", OutputName: "label", Mode: "regular"},
			},
		}
		runner := newTestRunner(t, p, "positive")

		doc := core.Document{ID: "doc_2", Rows: []core.Row{
			{Index: 0, Fields: map[string]string{"id": "1"}, Text: "great product"},
			{Index: 1, Fields: map[string]string{"id": "2"}, Text: "terrible service"},
		}}
		results, units, err := runner.RunDocument(context.Background(), doc)
		require.NoError(t, err)
		require.Len(t, units, 2)
		require.Len(t, results["classify"], 2)
		for _, res := range results["classify"] {
			assert.NoError(t, res.Err)
		}
	})

	t.Run("Should parse CSV text into rows when the document carries no pre-split Rows", func(t *testing.T) {
		p := &pipeline.Pipeline{
			Name:     "classify",
			Executor: config.ExecutorConfig{Concurrency: 1, ContinueOnError: true},
			Iterator: config.IteratorConfig{Splitter: "rows", TextColumn: "comment", PassThrough: []string{"id"}},
			LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-test"},
			Steps: []config.StepConfig{
				{ID: "echo", PromptTemplate: "inline: Echo: ${row.text}", OutputName: "echo", Mode: "regular"},
			},
		}
		runner := newTestRunner(t, p, "Echo: ok")

		doc := core.Document{ID: "doc_3", Text: "id,comment\n1,ok\n2,bad\n"}
		results, units, err := runner.RunDocument(context.Background(), doc)
		require.NoError(t, err)
		require.Len(t, units, 2)
		assert.Equal(t, "ok", units[0].Row.Text)
		_, hasComment := units[0].Row.Fields["comment"]
		assert.False(t, hasComment)
		require.Len(t, results["echo"], 2)
	})

	t.Run("Should expose prior step outputs across all units via the all scope", func(t *testing.T) {
		p := &pipeline.Pipeline{
			Name:     "two-step",
			Executor: config.ExecutorConfig{Concurrency: 1, ContinueOnError: true},
			Iterator: config.IteratorConfig{Splitter: "rows"},
			LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-test"},
			Steps: []config.StepConfig{
				{ID: "first", PromptTemplate: "inline: ${row.text}", OutputName: "label", Mode: "regular"},
				{ID: "second", PromptTemplate: `inline: ${join(all.label, ",")}`, OutputName: "joined", Mode: "regular"},
			},
		}
		runner := newTestRunner(t, p, "positive")

		doc := core.Document{ID: "doc_4", Rows: []core.Row{
			{Index: 0, Text: "great"},
		}}
		results, _, err := runner.RunDocument(context.Background(), doc)
		require.NoError(t, err)
		require.Len(t, results["second"], 1)
		assert.NoError(t, results["second"][0].Err)
		assert.Equal(t, "positive", results["second"][0].Value)
	})
}

func TestPersistRun(t *testing.T) {
	t.Run("Should write docs.jsonl, rows.jsonl, outputs.jsonl, manifest.json and run.yaml", func(t *testing.T) {
		p := &pipeline.Pipeline{
			Name:     "classify",
			Executor: config.ExecutorConfig{Concurrency: 1, ContinueOnError: true},
			Iterator: config.IteratorConfig{Splitter: "rows"},
			LLM:      config.LLMConfig{Provider: "openai", Model: "gpt-test"},
			Steps: []config.StepConfig{
				{ID: "classify", PromptTemplate: "inline: ${row.text}", OutputName: "label", Mode: "regular"},
			},
		}
		runner := newTestRunner(t, p, "positive")
		doc := core.Document{ID: "doc_5", Rows: []core.Row{
			{Index: 0, Fields: map[string]string{"id": "1"}, Text: "great product"},
		}}

		results, units, err := runner.RunDocument(context.Background(), doc)
		require.NoError(t, err)

		err = runner.PersistRun("run_abc", time.Now(), doc, units, results)
		require.NoError(t, err)
	})
}
