package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/pkg/config"
	"github.com/fmf/pipeline/pkg/logger"
)

// Policy is the resolved backoff schedule applied around a retryable
// call: exponential growth from InitialDelay, capped at Cap, optionally
// jittered, bounded overall by MaxElapsed and MaxRetries.
type Policy struct {
	InitialDelay time.Duration
	Multiplier   float64
	Cap          time.Duration
	Jitter       bool
	MaxElapsed   time.Duration
	MaxRetries   uint64
}

// PolicyFromConfig builds a Policy from the resolved retry configuration
// surface.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		InitialDelay: secondsToDuration(cfg.InitialDelayS),
		Multiplier:   cfg.Multiplier,
		Cap:          secondsToDuration(cfg.CapS),
		Jitter:       cfg.Jitter,
		MaxElapsed:   secondsToDuration(cfg.MaxElapsedS),
		MaxRetries:   uint64(cfg.MaxRetries),
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Retryable marks err as worth retrying. Do does not require this
// wrapping: it retries every error except a *core.PipelineError whose
// kind is not retryable.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return retry.RetryableError(err)
}

// multiplierBackoff grows the delay by Multiplier on every call to
// Next, starting from InitialDelay. retry.NewExponential hardcodes a
// fixed doubling, so a policy-configurable multiplier needs its own
// retry.Backoff implementation.
type multiplierBackoff struct {
	next       time.Duration
	multiplier float64
}

func (b *multiplierBackoff) Next() (time.Duration, bool) {
	cur := b.next
	b.next = time.Duration(float64(b.next) * b.multiplier)
	return cur, false
}

// Do runs fn under the exponential-backoff-with-jitter schedule
// described by p, stopping as soon as fn returns a nil error, a
// non-retryable error, or the policy's elapsed/attempt bounds are
// exhausted. label is used only for logging.
func Do(ctx context.Context, p Policy, label string, fn func(ctx context.Context) error) error {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	var backoff retry.Backoff = &multiplierBackoff{next: p.InitialDelay, multiplier: multiplier}
	if p.Cap > 0 {
		backoff = retry.WithCappedDuration(p.Cap, backoff)
	}
	if p.MaxElapsed > 0 {
		backoff = retry.WithMaxDuration(p.MaxElapsed, backoff)
	}
	if p.Jitter {
		backoff = retry.WithJitter(50*time.Millisecond, backoff)
	}
	if p.MaxRetries > 0 {
		backoff = retry.WithMaxRetries(p.MaxRetries, backoff)
	}

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		callErr := fn(ctx)
		if callErr == nil {
			return nil
		}
		var perr *core.PipelineError
		if errors.As(callErr, &perr) && !perr.IsRetryable() {
			return callErr
		}
		logger.FromContext(ctx).Debug("retrying call", "label", label, "attempt", attempt, "err", callErr.Error())
		return retry.RetryableError(callErr)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return core.NewError(core.ErrInference, fmt.Sprintf("%s: deadline_exceeded after %d attempts", label, attempt), err)
		}
		return fmt.Errorf("%s: exhausted retries after %d attempts: %w", label, attempt, err)
	}
	return nil
}
