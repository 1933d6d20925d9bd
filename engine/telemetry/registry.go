package telemetry

import (
	"sync"
	"sync/atomic"
)

// Counters is one named counter group (e.g. one per step id): successes,
// failures, retries, and token usage accumulated across the run.
type Counters struct {
	Label            string
	UnitsStarted     atomic.Int64
	UnitsSucceeded   atomic.Int64
	UnitsFailed      atomic.Int64
	RetriesAttempted atomic.Int64
	PromptTokens     atomic.Int64
	CompletionTokens atomic.Int64
	TotalLatencyMS   atomic.Int64
}

// Snapshot is an immutable point-in-time read of a Counters group.
type Snapshot struct {
	Label            string
	UnitsStarted     int64
	UnitsSucceeded   int64
	UnitsFailed      int64
	RetriesAttempted int64
	PromptTokens     int64
	CompletionTokens int64
	TotalLatencyMS   int64
}

// Registry tracks one Counters group per label, created lazily.
type Registry struct {
	groups sync.Map // label -> *Counters
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) group(label string) *Counters {
	if existing, ok := r.groups.Load(label); ok {
		return existing.(*Counters)
	}
	fresh := &Counters{Label: label}
	actual, _ := r.groups.LoadOrStore(label, fresh)
	return actual.(*Counters)
}

func (r *Registry) RecordStart(label string) {
	r.group(label).UnitsStarted.Add(1)
}

func (r *Registry) RecordSuccess(label string, promptTokens, completionTokens int, latencyMS int64) {
	g := r.group(label)
	g.UnitsSucceeded.Add(1)
	g.PromptTokens.Add(int64(promptTokens))
	g.CompletionTokens.Add(int64(completionTokens))
	g.TotalLatencyMS.Add(latencyMS)
}

func (r *Registry) RecordFailure(label string) {
	r.group(label).UnitsFailed.Add(1)
}

func (r *Registry) RecordRetry(label string) {
	r.group(label).RetriesAttempted.Add(1)
}

// Snapshot returns a consistent-enough read of every group tracked so
// far; individual counters may be read at very slightly different
// instants under concurrent load, which is acceptable for telemetry.
func (r *Registry) Snapshot() []Snapshot {
	var out []Snapshot
	r.groups.Range(func(_, value any) bool {
		g := value.(*Counters)
		out = append(out, Snapshot{
			Label:            g.Label,
			UnitsStarted:     g.UnitsStarted.Load(),
			UnitsSucceeded:   g.UnitsSucceeded.Load(),
			UnitsFailed:      g.UnitsFailed.Load(),
			RetriesAttempted: g.RetriesAttempted.Load(),
			PromptTokens:     g.PromptTokens.Load(),
			CompletionTokens: g.CompletionTokens.Load(),
			TotalLatencyMS:   g.TotalLatencyMS.Load(),
		})
		return true
	})
	return out
}
