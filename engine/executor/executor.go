package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fmf/pipeline/engine/core"
	"github.com/fmf/pipeline/engine/telemetry"
	"github.com/fmf/pipeline/pkg/config"
	"github.com/fmf/pipeline/pkg/logger"
)

// UnitFunc processes one execution unit for one step and returns its
// result. It is expected to retry internally (via engine/retry) where
// appropriate; the executor itself does not re-invoke UnitFunc.
type UnitFunc func(ctx context.Context, unit core.ExecutionUnit) (core.StepResult, error)

// Executor runs a UnitFunc over a set of units with bounded concurrency,
// preserving the caller's ordering in its output regardless of which
// goroutine happens to finish first.
type Executor struct {
	cfg       config.ExecutorConfig
	telemetry *telemetry.Registry
	log       logger.Logger
}

func New(cfg config.ExecutorConfig, tel *telemetry.Registry, log logger.Logger) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Executor{cfg: cfg, telemetry: tel, log: log}
}

// indexedResult pairs a StepResult with its position in the input slice
// so Run can restore input order after unordered completion.
type indexedResult struct {
	index  int
	result core.StepResult
}

// Run dispatches fn over units with at most cfg.Concurrency running at
// once. When ContinueOnError is false, the first failure cancels the
// context passed to in-flight units, no further units are dispatched,
// and Run returns that error once the in-flight units have returned.
// When true, every unit runs to completion (success or failure) and Run
// returns the full, order-preserved result set alongside a boolean
// indicating whether any unit failed.
func (e *Executor) Run(ctx context.Context, stepID string, units []core.ExecutionUnit, fn UnitFunc) ([]core.StepResult, bool, error) {
	if e.cfg.RunDeadlineS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.RunDeadlineS)*time.Second)
		defer cancel()
	}

	sem := semaphore.NewWeighted(int64(e.cfg.Concurrency))
	resultsCh := make(chan indexedResult, len(units))
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var wg sync.WaitGroup
	var firstErr error
	var firstErrOnce sync.Once
	anyFailed := false
	var anyFailedMu sync.Mutex

	for i, unit := range units {
		if err := sem.Acquire(runCtx, 1); err != nil {
			firstErrOnce.Do(func() {
				firstErr = fmt.Errorf("run deadline exceeded before dispatching unit %s: %w", unit.UnitID, err)
			})
			break
		}
		wg.Add(1)
		go func(idx int, u core.ExecutionUnit) {
			defer wg.Done()
			defer sem.Release(1)

			fsm := newUnitFSM(u.UnitID, stepID, e.log)
			_ = fsm.Fire(EventStart)
			if e.telemetry != nil {
				e.telemetry.RecordStart(stepID)
			}

			start := time.Now()
			result, err := fn(runCtx, u)
			result.UnitID = u.UnitID
			result.StepID = stepID

			if err != nil {
				result.Err = err
				_ = fsm.Fire(EventDispatchFailed)
				_ = fsm.Fire(EventRetryExhausted)
				if e.telemetry != nil {
					e.telemetry.RecordFailure(stepID)
				}
				anyFailedMu.Lock()
				anyFailed = true
				anyFailedMu.Unlock()
				if !e.cfg.ContinueOnError {
					firstErrOnce.Do(func() {
						firstErr = fmt.Errorf("unit %s failed: %w", u.UnitID, err)
						cancelRun()
					})
				}
			} else {
				_ = fsm.Fire(EventDispatched)
				_ = fsm.Fire(EventParsed)
				if e.telemetry != nil {
					e.telemetry.RecordSuccess(stepID, 0, 0, time.Since(start).Milliseconds())
				}
			}
			resultsCh <- indexedResult{index: idx, result: result}
		}(i, unit)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	collected := make([]indexedResult, 0, len(units))
	for r := range resultsCh {
		collected = append(collected, r)
	}

	if firstErr != nil {
		return nil, true, firstErr
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })
	out := make([]core.StepResult, len(collected))
	for i, r := range collected {
		out[i] = r.result
	}
	return out, anyFailed, nil
}
