package retry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/fmf/pipeline/engine/core"
)

// LimiterSettings bounds one provider's concurrency and request
// throughput. TPM is accepted but not enforced.
type LimiterSettings struct {
	Concurrency int
	RPM         int
	TPM         int
}

// LimiterMetricsSnapshot is a point-in-time read of one provider's
// limiter counters, shaped for telemetry export.
type LimiterMetricsSnapshot struct {
	Provider        string
	ActiveRequests  int64
	QueuedRequests  int64
	RejectedRequests int64
	TotalRequests   int64
}

// LimiterRegistry holds one rate limiter per provider name, created
// lazily on first use.
type LimiterRegistry struct {
	limiters sync.Map // provider -> *providerLimiter
}

func NewLimiterRegistry() *LimiterRegistry {
	return &LimiterRegistry{}
}

type providerLimiter struct {
	provider string
	sem      *semaphore.Weighted
	rpm      *rate.Limiter
	metrics  limiterMetrics
}

type limiterMetrics struct {
	active   atomic.Int64
	queued   atomic.Int64
	rejected atomic.Int64
	total    atomic.Int64
}

func (r *LimiterRegistry) ensure(provider string, settings LimiterSettings) *providerLimiter {
	if existing, ok := r.limiters.Load(provider); ok {
		return existing.(*providerLimiter)
	}
	concurrency := settings.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	pl := &providerLimiter{
		provider: provider,
		sem:      semaphore.NewWeighted(int64(concurrency)),
	}
	if settings.RPM > 0 {
		pl.rpm = rate.NewLimiter(rate.Limit(float64(settings.RPM)/60.0), computeBurst(settings.RPM))
	}
	actual, _ := r.limiters.LoadOrStore(provider, pl)
	return actual.(*providerLimiter)
}

func computeBurst(rpm int) int {
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Acquire blocks (respecting ctx) until provider has both a free
// concurrency slot and, if configured, rate-limiter headroom. The
// returned release function must be called exactly once.
func (r *LimiterRegistry) Acquire(ctx context.Context, provider string, settings LimiterSettings) (func(), error) {
	pl := r.ensure(provider, settings)
	pl.metrics.total.Add(1)
	pl.metrics.queued.Add(1)
	if err := pl.sem.Acquire(ctx, 1); err != nil {
		pl.metrics.queued.Add(-1)
		pl.metrics.rejected.Add(1)
		return nil, core.NewError(core.ErrProvider, fmt.Sprintf("acquire concurrency slot for %s", provider), err)
	}
	pl.metrics.queued.Add(-1)
	if pl.rpm != nil {
		if err := pl.rpm.Wait(ctx); err != nil {
			pl.sem.Release(1)
			pl.metrics.rejected.Add(1)
			return nil, core.NewError(core.ErrProvider, fmt.Sprintf("rate limit wait for %s", provider), err)
		}
	}
	pl.metrics.active.Add(1)
	release := func() {
		pl.metrics.active.Add(-1)
		pl.sem.Release(1)
	}
	return release, nil
}

// Metrics returns a snapshot for every provider that has been used so
// far.
func (r *LimiterRegistry) Metrics() []LimiterMetricsSnapshot {
	var out []LimiterMetricsSnapshot
	r.limiters.Range(func(_, value any) bool {
		pl := value.(*providerLimiter)
		out = append(out, LimiterMetricsSnapshot{
			Provider:         pl.provider,
			ActiveRequests:   pl.metrics.active.Load(),
			QueuedRequests:   pl.metrics.queued.Load(),
			RejectedRequests: pl.metrics.rejected.Load(),
			TotalRequests:    pl.metrics.total.Load(),
		})
		return true
	})
	return out
}
