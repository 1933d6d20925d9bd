package executor

import (
	"fmt"

	"github.com/fmf/pipeline/pkg/logger"
)

// State is one stage in a unit's lifecycle as it moves through a step.
type State string

const (
	StateInit       State = "init"
	StateDispatch   State = "dispatch"
	StateParse      State = "parse"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Event drives a transition between states.
type Event string

const (
	EventStart        Event = "start"
	EventDispatched   Event = "dispatched"
	EventParsed       Event = "parsed"
	EventParseFailed  Event = "parse_failed"
	EventRetryExhausted Event = "retry_exhausted"
	EventDispatchFailed Event = "dispatch_failed"
)

// transitions is the explicit (state, event) -> state table; any pair
// not listed is an invalid transition and unitFSM.Fire returns an error
// for it rather than silently staying put.
var transitions = map[State]map[Event]State{
	StateInit: {
		EventStart: StateDispatch,
	},
	StateDispatch: {
		EventDispatched:     StateParse,
		EventDispatchFailed: StateRetrying,
	},
	StateParse: {
		EventParsed:      StateSucceeded,
		EventParseFailed: StateRetrying,
	},
	StateRetrying: {
		EventStart:          StateDispatch,
		EventRetryExhausted: StateFailed,
	},
}

// unitFSM tracks one execution unit's progress through a step, logging
// every transition for post-run diagnosis.
type unitFSM struct {
	unitID string
	stepID string
	state  State
	log    logger.Logger
}

func newUnitFSM(unitID, stepID string, log logger.Logger) *unitFSM {
	return &unitFSM{unitID: unitID, stepID: stepID, state: StateInit, log: log}
}

// Fire applies event to the current state, returning an error if the
// transition isn't in the table.
func (f *unitFSM) Fire(event Event) error {
	next, ok := transitions[f.state][event]
	if !ok {
		return fmt.Errorf("invalid transition: state=%s event=%s", f.state, event)
	}
	if f.log != nil {
		f.log.Debug("unit state transition",
			"unit_id", f.unitID, "step_id", f.stepID,
			"from", f.state, "event", event, "to", next)
	}
	f.state = next
	return nil
}

func (f *unitFSM) State() State { return f.state }
