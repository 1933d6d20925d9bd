package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/llm/adapter"
)

// Mode selects how a completion is requested from the provider.
type Mode string

const (
	ModeAuto    Mode = "auto"
	ModeRegular Mode = "regular"
	ModeStream  Mode = "stream"
)

// DefaultMode is used whenever a step doesn't declare one explicitly.
const DefaultMode = ModeAuto

// NormalizeMode validates a raw mode string, returning an error for
// anything outside the three recognized values rather than silently
// falling back to a default — an unrecognized mode is a configuration
// mistake worth surfacing.
func NormalizeMode(value string) (Mode, error) {
	switch Mode(value) {
	case ModeAuto, ModeRegular, ModeStream, "":
		if value == "" {
			return DefaultMode, nil
		}
		return Mode(value), nil
	default:
		return "", core.NewError(core.ErrConfig, fmt.Sprintf("unrecognized inference mode %q", value), nil)
	}
}

// InvokeWithMode is the single entry point every step uses to call a
// provider. It resolves "auto" down to an actual mode at call time:
//
//   - "stream" without streaming support fails with a provider error and
//     makes no regular call.
//   - "auto" with streaming support attempts to stream; if the provider
//     lacks streaming capability, it transparently falls back to a
//     regular call with fallback_reason "streaming_unsupported"; if the
//     stream itself fails mid-flight, it falls back to a regular call
//     with fallback_reason "stream_error:<detail>".
//   - "regular" always calls the non-streaming path.
//
// Partial tokens observed before a stream failure are discarded, not
// stitched into the eventual regular-mode completion: the spec only
// trusts a usage/telemetry report that came from one coherent call.
func InvokeWithMode(
	ctx context.Context,
	client adapter.Client,
	messages []adapter.Message,
	opts adapter.CallOptions,
	mode Mode,
) (core.Completion, error) {
	start := time.Now()
	if mode == "" {
		mode = DefaultMode
	}

	if mode == ModeStream && !client.SupportsStreaming() {
		return core.Completion{}, core.NewError(
			core.ErrProvider,
			fmt.Sprintf("provider %s does not support streaming, but stream mode was requested", client.Provider()),
			nil,
		)
	}

	wantsStream := mode == ModeStream || (mode == ModeAuto && client.SupportsStreaming())
	if !wantsStream {
		reason := ""
		if mode == ModeAuto && !client.SupportsStreaming() {
			reason = "streaming_unsupported"
		}
		return regularCompletion(ctx, client, messages, opts, start, reason, string(mode))
	}

	completion, err := streamCompletion(ctx, client, messages, opts, start, string(mode))
	if err == nil {
		return completion, nil
	}
	if mode == ModeStream {
		return core.Completion{}, core.NewError(core.ErrProvider, "forced stream mode failed", err)
	}
	reason := fmt.Sprintf("stream_error:%s", err.Error())
	return regularCompletion(ctx, client, messages, opts, start, reason, string(mode))
}

func regularCompletion(
	ctx context.Context,
	client adapter.Client,
	messages []adapter.Message,
	opts adapter.CallOptions,
	start time.Time,
	fallbackReason string,
	requestedMode string,
) (core.Completion, error) {
	resp, err := client.GenerateContent(ctx, messages, opts)
	if err != nil {
		return core.Completion{}, core.NewError(core.ErrProvider, "regular completion failed", err)
	}
	elapsed := time.Since(start)
	tokensOut := resp.Usage.CompletionTokens
	return core.Completion{
		Text: resp.Text,
		Usage: core.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Telemetry: core.InferenceTelemetry{
			RequestedMode:     requestedMode,
			SelectedMode:      string(ModeRegular),
			FallbackReason:    fallbackReason,
			TimeToFirstByteMS: elapsed.Milliseconds(),
			LatencyMS:         elapsed.Milliseconds(),
			ChunkCount:        boolToInt(resp.Text != ""),
			TokensOut:         &tokensOut,
		},
	}, nil
}

func streamCompletion(
	ctx context.Context,
	client adapter.Client,
	messages []adapter.Message,
	opts adapter.CallOptions,
	start time.Time,
	requestedMode string,
) (core.Completion, error) {
	chunks, err := client.StreamContent(ctx, messages, opts)
	if err != nil {
		return core.Completion{}, err
	}

	var firstTokenAt time.Time
	chunkCount := 0
	var final *adapter.Response
	for chunk := range chunks {
		if chunk.TextDelta != "" {
			if firstTokenAt.IsZero() {
				firstTokenAt = time.Now()
			}
			chunkCount++
		}
		if chunk.Done {
			final = chunk.Final
		}
	}
	if final == nil {
		return core.Completion{}, fmt.Errorf("stream ended without a final completion")
	}

	ttfb := time.Since(start)
	if !firstTokenAt.IsZero() {
		ttfb = firstTokenAt.Sub(start)
	}
	latency := time.Since(start)
	tokensOut := final.Usage.CompletionTokens

	return core.Completion{
		Text: final.Text,
		Usage: core.Usage{
			PromptTokens:     final.Usage.PromptTokens,
			CompletionTokens: final.Usage.CompletionTokens,
			TotalTokens:      final.Usage.TotalTokens,
		},
		Telemetry: core.InferenceTelemetry{
			RequestedMode:     requestedMode,
			SelectedMode:      string(ModeStream),
			TimeToFirstByteMS: ttfb.Milliseconds(),
			LatencyMS:         latency.Milliseconds(),
			ChunkCount:        chunkCount,
			TokensOut:         &tokensOut,
		},
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
