// Package scheduler drives a bounded pool of workers over the full set
// of work units for either dump or load direction, with retry,
// cancellation, checkpoint-based resume and fail-fast or
// continue-on-error failure policy.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dataporter/mysql-porter/pkg/apperrors"
	"github.com/dataporter/mysql-porter/pkg/dumpstore"
	"github.com/dataporter/mysql-porter/pkg/progress"
	"github.com/dataporter/mysql-porter/pkg/util"
)

const (
	DefaultWorkers   = 4
	DefaultRetries   = 3
	DefaultRetryWait = 500 * time.Millisecond
)

// ExecFunc performs one work unit and returns the artifact it produced.
// Load-side executors that produce no new artifact return the unit's
// existing one (or the zero Artifact).
type ExecFunc func(ctx context.Context, unit Unit) (dumpstore.Artifact, error)

// UnitFailure names one unit that exhausted its retries.
type UnitFailure struct {
	ID  string
	Err error
}

// Result is the outcome of one scheduler run.
type Result struct {
	State    progress.RunState
	Executed int
	Skipped  int // already complete per the checkpoint
	Failures []UnitFailure
}

// Scheduler executes phases of work units on a fixed-size worker pool.
// Units within a phase run concurrently in unspecified completion
// order; a phase only starts once the previous phase fully completed,
// which is how load-side DDL-before-data ordering is enforced.
type Scheduler struct {
	Workers   int
	Retries   int
	RetryWait time.Duration
	FailFast  bool
	Logger    *log.Entry
}

// errHalt signals fail-fast termination through the errgroup.
var errHalt = errors.New("run halted after unit failure")

// Run dispatches every unit of every phase, consulting the checkpoint
// before dispatch so already-completed identifiers are skipped, and
// recording each unit in the checkpoint only after its executor
// returned successfully. Cancellation stops new dispatch immediately;
// in-flight units finish or abort at their next I/O boundary.
func (s *Scheduler) Run(ctx context.Context, phases [][]Unit, cp *dumpstore.Checkpoint, exec ExecFunc) (Result, error) {
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	retries := s.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	wait := s.RetryWait
	if wait <= 0 {
		wait = DefaultRetryWait
	}

	var all []string
	for _, phase := range phases {
		for _, u := range phase {
			all = append(all, u.ID)
		}
	}
	tracker, err := progress.NewTracker(all, cp.Done)
	if err != nil {
		return Result{}, err
	}
	if err := tracker.Start(); err != nil {
		return Result{}, err
	}

	res := Result{Skipped: len(all) - len(tracker.Pending())}
	var mu sync.Mutex // guards res counters and failures

	var runErr error
	for _, phase := range phases {
		if runErr = s.runPhase(ctx, phase, tracker, cp, exec, workers, retries, wait, &res, &mu); runErr != nil {
			break
		}
	}
	if runErr != nil && !errors.Is(runErr, errHalt) && ctx.Err() == nil &&
		!errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		// a scheduler-internal failure (checkpoint write, dispatch
		// bookkeeping), not a per-unit one
		res.State = progress.RunFailed
		_ = tracker.Finish(res.State)
		return res, runErr
	}

	switch {
	case ctx.Err() != nil:
		res.State = progress.RunCancelled
	case s.FailFast && len(res.Failures) > 0:
		res.State = progress.RunFailed
	case len(res.Failures) > 0:
		res.State = progress.RunPartial
	default:
		res.State = progress.RunCompleted
	}
	_ = tracker.Finish(res.State)
	return res, nil
}

func (s *Scheduler) runPhase(ctx context.Context, units []Unit, tracker *progress.Tracker,
	cp *dumpstore.Checkpoint, exec ExecFunc, workers, retries int, wait time.Duration,
	res *Result, mu *sync.Mutex) error {

	queue := make(chan Unit)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		for _, u := range units {
			if cp.Done(u.ID) {
				s.Logger.Debugf("skipping completed unit %s", u.ID)
				continue
			}
			select {
			case queue <- u:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for unit := range queue {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := s.runUnit(gctx, unit, tracker, cp, exec, retries, wait, res, mu); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Scheduler) runUnit(ctx context.Context, unit Unit, tracker *progress.Tracker,
	cp *dumpstore.Checkpoint, exec ExecFunc, retries int, wait time.Duration,
	res *Result, mu *sync.Mutex) error {

	if err := tracker.StartUnit(unit.ID); err != nil {
		return err
	}

	var art dumpstore.Artifact
	err := util.Retry(ctx, retries, wait, apperrors.Retryable, func() error {
		var execErr error
		art, execErr = exec(ctx, unit)
		if execErr != nil {
			s.Logger.Debugf("unit %s attempt failed: %v", unit.ID, execErr)
		}
		return execErr
	})
	if err != nil {
		_ = tracker.FinishUnit(unit.ID, false)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		s.Logger.Errorf("unit %s failed: %v", unit.ID, err)
		mu.Lock()
		res.Failures = append(res.Failures, UnitFailure{ID: unit.ID, Err: err})
		mu.Unlock()
		if s.FailFast {
			return errHalt
		}
		return nil
	}

	// the artifact is durable at this point; only now may the unit be
	// recorded complete
	if err := cp.MarkDone(unit.ID, art); err != nil {
		_ = tracker.FinishUnit(unit.ID, false)
		return err
	}
	_ = tracker.FinishUnit(unit.ID, true)
	mu.Lock()
	res.Executed++
	mu.Unlock()
	return nil
}
