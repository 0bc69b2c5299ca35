// Package progress tracks run and per-unit states and drives idempotent
// restart: a resumed run rehydrates completed unit identifiers from the
// checkpoint and queues only what is still pending.
package progress

import (
	"fmt"
	"sync"
)

// RunState is the lifecycle of one dump or load invocation.
type RunState string

const (
	RunNotStarted RunState = "not-started"
	RunRunning    RunState = "running"
	RunCompleted  RunState = "completed"
	RunPartial    RunState = "partial" // completed with failed units
	RunFailed     RunState = "failed"
	RunCancelled  RunState = "cancelled"
)

// UnitState is the lifecycle of one work unit within a run.
type UnitState int

const (
	UnitPending UnitState = iota
	UnitInFlight
	UnitDone
	UnitFailed
)

func (s UnitState) String() string {
	switch s {
	case UnitPending:
		return "pending"
	case UnitInFlight:
		return "in-flight"
	case UnitDone:
		return "done"
	case UnitFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Tracker holds the state of every unit in a run. Safe for concurrent
// use. A given identifier transitions Pending → InFlight → {Done,
// Failed} exactly once; hydrated identifiers start out Done.
type Tracker struct {
	mu    sync.Mutex
	run   RunState
	order []string
	units map[string]UnitState
}

// NewTracker registers ids in order, marking as already Done any id for
// which completed returns true (typically a checkpoint lookup).
func NewTracker(ids []string, completed func(id string) bool) (*Tracker, error) {
	t := &Tracker{run: RunNotStarted, units: make(map[string]UnitState, len(ids))}
	for _, id := range ids {
		if _, ok := t.units[id]; ok {
			return nil, fmt.Errorf("duplicate work unit identifier %q", id)
		}
		state := UnitPending
		if completed != nil && completed(id) {
			state = UnitDone
		}
		t.units[id] = state
		t.order = append(t.order, id)
	}
	return t, nil
}

// Start transitions the run to Running.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != RunNotStarted {
		return fmt.Errorf("run already %s", t.run)
	}
	t.run = RunRunning
	return nil
}

// Finish transitions the run to a terminal state.
func (t *Tracker) Finish(state RunState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.run != RunRunning {
		return fmt.Errorf("cannot finish a run that is %s", t.run)
	}
	switch state {
	case RunCompleted, RunPartial, RunFailed, RunCancelled:
		t.run = state
		return nil
	}
	return fmt.Errorf("%s is not a terminal run state", state)
}

// Run returns the current run state.
func (t *Tracker) Run() RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run
}

// Pending returns identifiers still awaiting dispatch, in registration
// order.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, id := range t.order {
		if t.units[id] == UnitPending {
			ids = append(ids, id)
		}
	}
	return ids
}

// StartUnit transitions one unit to InFlight. Dispatching the same
// identifier twice is a programming error and is rejected, which keeps
// at-most-one worker on any unit.
func (t *Tracker) StartUnit(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.units[id]
	if !ok {
		return fmt.Errorf("unknown work unit %q", id)
	}
	if state != UnitPending {
		return fmt.Errorf("work unit %q is %s, cannot dispatch", id, state)
	}
	t.units[id] = UnitInFlight
	return nil
}

// FinishUnit transitions an in-flight unit to Done or Failed. An
// identifier can be recorded Done at most once.
func (t *Tracker) FinishUnit(id string, ok bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, found := t.units[id]
	if !found {
		return fmt.Errorf("unknown work unit %q", id)
	}
	if state != UnitInFlight {
		return fmt.Errorf("work unit %q is %s, cannot finish", id, state)
	}
	if ok {
		t.units[id] = UnitDone
	} else {
		t.units[id] = UnitFailed
	}
	return nil
}

// State returns the state of one unit.
func (t *Tracker) State(id string) (UnitState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.units[id]
	return s, ok
}

// Counts returns how many units are in each state.
func (t *Tracker) Counts() (pending, inFlight, done, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.units {
		switch s {
		case UnitPending:
			pending++
		case UnitInFlight:
			inFlight++
		case UnitDone:
			done++
		case UnitFailed:
			failed++
		}
	}
	return
}
