package adapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fmf/pipeline/engine/core"
)

// langchainClient wraps a langchaingo llms.Model, the reference provider
// adapter for OpenAI-compatible chat completion endpoints. Other
// providers plug in behind the same Client interface without the
// dispatcher or executor needing to know the difference.
type langchainClient struct {
	model    llms.Model
	provider string
}

// NewOpenAIClient builds a Client backed by langchaingo's OpenAI
// implementation, optionally pointed at a compatible base URL (Azure
// OpenAI, a local proxy, etc).
func NewOpenAIClient(apiKey, model, baseURL string) (Client, error) {
	opts := []openai.Option{openai.WithModel(model)}
	if apiKey != "" {
		opts = append(opts, openai.WithToken(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, core.NewError(core.ErrConfig, "build openai client", err)
	}
	return &langchainClient{model: llm, provider: "openai"}, nil
}

func (c *langchainClient) GenerateContent(ctx context.Context, messages []Message, opts CallOptions) (Response, error) {
	content := toLangchainContent(messages)
	callOpts := toLangchainOptions(opts)
	resp, err := c.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return Response{}, core.NewError(core.ErrProvider, fmt.Sprintf("%s generate content", c.provider), err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, core.NewError(core.ErrProvider, fmt.Sprintf("%s returned no choices", c.provider), nil)
	}
	choice := resp.Choices[0]
	usage := Usage{}
	if choice.GenerationInfo != nil {
		if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
			usage.PromptTokens = v
		}
		if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
			usage.CompletionTokens = v
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	return Response{Text: choice.Content, Usage: usage}, nil
}

func (c *langchainClient) StreamContent(ctx context.Context, messages []Message, opts CallOptions) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk)
	content := toLangchainContent(messages)
	callOpts := toLangchainOptions(opts)
	var accumulated string
	callOpts = append(callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		accumulated += string(chunk)
		out <- StreamChunk{TextDelta: string(chunk)}
		return nil
	}))

	go func() {
		defer close(out)
		resp, err := c.model.GenerateContent(ctx, content, callOpts...)
		if err != nil {
			return
		}
		final := Response{Text: accumulated}
		if len(resp.Choices) > 0 && accumulated == "" {
			final.Text = resp.Choices[0].Content
		}
		out <- StreamChunk{Done: true, Final: &final}
	}()
	return out, nil
}

func (c *langchainClient) SupportsStreaming() bool { return true }
func (c *langchainClient) Provider() string        { return c.provider }
func (c *langchainClient) Close() error             { return nil }

func toLangchainContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var parts []llms.ContentPart
		if m.Content != "" {
			parts = append(parts, llms.TextContent{Text: m.Content})
		}
		for _, img := range m.Images {
			if img.URL != "" {
				parts = append(parts, llms.ImageURLContent{URL: img.URL})
			}
		}
		out = append(out, llms.MessageContent{
			Role:  toLangchainRole(m.Role),
			Parts: parts,
		})
	}
	return out
}

func toLangchainRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func toLangchainOptions(opts CallOptions) []llms.CallOption {
	var out []llms.CallOption
	if opts.Temperature != nil {
		out = append(out, llms.WithTemperature(*opts.Temperature))
	}
	if opts.MaxTokens != nil {
		out = append(out, llms.WithMaxTokens(*opts.MaxTokens))
	}
	if len(opts.StopWords) > 0 {
		out = append(out, llms.WithStopWords(opts.StopWords))
	}
	if opts.UseJSONMode {
		out = append(out, llms.WithJSONMode())
	}
	return out
}
