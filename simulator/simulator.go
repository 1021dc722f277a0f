package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"statecheck/checking"
	"statecheck/command"
	"statecheck/generator"
	"statecheck/scheduler"
	"statecheck/sequence"
	"statecheck/shrink"
)

// Simulates trials of a stateful system
//
// Runs sequences of commands provided by the Scheduler against the model and the real system.
// When a trial fails, the failing sequence is shrunk to a minimal sequence that causes the same failure.
type Simulator[M, R any] struct {

	// The scheduler provides the sequence of each trial
	Scheduler scheduler.GlobalScheduler

	// Searches for a minimal failing sequence
	shrinker shrink.Strategy

	// If true all trials are run even if some of them fail. If false the simulation stops at the first failure.
	ignoreErrors bool

	// If true panics raised by commands are not recovered. If false the panic is reported as a failure of the command.
	ignorePanics bool

	maxRuns       int
	numConcurrent int

	log zerolog.Logger
}

// Create a new simulator
//
// sch provides the sequences of the trials.
//
// shrinker is used to shrink failing sequences. If nil the failing sequence is reported as it is.
//
// ignoreErrors specifies whether to continue running trials after a failure.
// The failure of the trial with the lowest index is reported, the others are summarized.
//
// ignorePanics specifies whether panics raised by commands should propagate.
//
// maxRuns specifies the maximum number of trials.
//
// numConcurrent specifies the maximum number of trials that run concurrently.
func NewSimulator[M, R any](sch scheduler.GlobalScheduler, shrinker shrink.Strategy, ignoreErrors bool, ignorePanics bool, maxRuns int, numConcurrent int, log zerolog.Logger) *Simulator[M, R] {
	if shrinker == nil {
		shrinker = shrink.None{}
	}
	return &Simulator[M, R]{
		Scheduler: sch,
		shrinker:  shrinker,

		ignoreErrors: ignoreErrors,
		ignorePanics: ignorePanics,

		maxRuns:       maxRuns,
		numConcurrent: numConcurrent,

		log: log,
	}
}

// Run the trials.
//
// pool contains the generators used to build commands from the sequences.
//
// setup creates a fresh model and real system for each trial. teardown releases the real system when the trial has ended.
//
// Returns a report of the check. The report describes the minimal failing sequence if a trial failed.
// Returns an error if the simulation could not be completed, e.g. if the context was cancelled or the configuration is invalid.
func (s *Simulator[M, R]) Simulate(ctx context.Context, pool *generator.Pool[M, R], setup Setup[M, R], teardown Teardown[R]) (*checking.Report, error) {
	if pool == nil {
		return nil, fmt.Errorf("simulator: at least one generator must be provided")
	}
	if setup == nil {
		return nil, fmt.Errorf("simulator: a setup function must be provided")
	}
	if s.maxRuns < 1 || s.numConcurrent < 1 {
		return nil, fmt.Errorf("simulator: maxRuns and numConcurrent must be positive. Got %v and %v", s.maxRuns, s.numConcurrent)
	}
	if err := s.Scheduler.Reset(pool.Descriptors()); err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}

	trial := NewTrial(pool, setup, teardown, s.ignorePanics, s.log)

	// Used to signal the index of the next trial
	nextRun := make(chan int)
	// Used by runSimulators to report the result of each trial to the main loop
	status := make(chan trialResult)
	// Used by the runSimulators to signal that they have stopped running trials
	closing := make(chan bool)

	ongoing := 0
	startedRuns := 0
	for ongoing < s.numConcurrent {
		ongoing++
		rsim := newRunSimulator(s.Scheduler.GetRunScheduler(), trial, s.log)
		go rsim.SimulateRuns(ctx, nextRun, status, closing)

		nextRun <- startedRuns
		startedRuns++

		if startedRuns >= s.maxRuns {
			break
		}
	}

	completed, failures, err := s.mainLoop(ongoing, startedRuns, nextRun, status, closing)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, err
	}
	if len(failures) == 0 {
		s.log.Info().Int("trials", completed).Msg("all trials passed")
		return checking.Passed(completed, s.Scheduler.Seed()), nil
	}

	slices.SortFunc(failures, func(a, b trialResult) bool { return a.index < b.index })
	report, err := s.shrinkFailure(ctx, trial, pool, failures[0])
	if err != nil {
		return nil, err
	}
	report.Trials = completed
	for _, f := range failures[1:] {
		report.Others = append(report.Others, f.asError())
	}
	return report, nil
}

// The main loop of the simulation.
//
// Receives the result of each trial from the runSimulators and signals for them to begin the next trial.
// Does not start new trials if maxRuns trials have been started, or if a trial failed and errors are not ignored.
// Returns when all runSimulators have stopped.
func (s *Simulator[M, R]) mainLoop(ongoing int, startedRuns int, nextRun chan int, status chan trialResult, closing chan bool) (int, []trialResult, error) {
	var (
		errs      *multierror.Error
		failures  []trialResult
		completed int
	)

	// Stop the simulation by closing the nextRun channel if it is not already closed
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			close(nextRun)
		}
	}
	for ongoing > 0 {
		select {
		case res := <-status:
			completed++
			switch {
			case res.failed():
				s.log.Info().Int("trial", res.index).Err(res.asError()).Msg("trial failed")
				failures = append(failures, res)
				if !s.ignoreErrors {
					stop()
				}
			case res.err != nil:
				errs = multierror.Append(errs, fmt.Errorf("trial %v: %w", res.index, res.err))
				if !s.ignoreErrors {
					stop()
				}
			}
			if stopped {
				break
			}
			if startedRuns < s.maxRuns {
				nextRun <- startedRuns
				startedRuns++
			} else {
				stop()
			}
		case <-closing:
			ongoing--
		}
	}

	stop()

	// All runSimulators have completed, so no one will send on the channels
	close(closing)
	close(status)

	return completed, failures, errs.ErrorOrNil()
}

func (tr trialResult) asError() error {
	if tr.err != nil {
		return fmt.Errorf("trial %v: %w", tr.index, tr.err)
	}
	if tr.outcome.Failure != nil {
		return fmt.Errorf("trial %v: %w", tr.index, tr.outcome.Failure)
	}
	return nil
}

// Identifies the failure being shrunk.
// Two failures are the same violation if they violate the same property.
// Body failures must also be caused by commands from the same generator.
type violation struct {
	phase     command.Phase
	property  string
	generator string
}

func newViolation(seq sequence.Sequence, out Outcome) violation {
	v := violation{
		phase:    out.Failure.Phase,
		property: out.Failure.Property(),
	}
	if v.phase == command.PhaseBody {
		v.generator = seq[out.FailedAt].Generator
	}
	return v
}

func (v violation) matches(seq sequence.Sequence, out Outcome) bool {
	if out.Status != Failed || out.Failure == nil {
		return false
	}
	return newViolation(seq, out) == v
}

// Shrink the failing sequence of the trial and create a report of the minimal failure.
//
// Setup failures are reported without shrinking.
func (s *Simulator[M, R]) shrinkFailure(ctx context.Context, trial *Trial[M, R], pool *generator.Pool[M, R], failure trialResult) (*checking.Report, error) {
	report := &checking.Report{
		Result:         false,
		Seed:           s.Scheduler.Seed(),
		Trial:          failure.index,
		OriginalLength: len(failure.seq),
	}

	var se *SetupError
	if errors.As(failure.err, &se) {
		report.Property = checking.PropertySetup
		report.Err = se.Err
		report.Sequence = failure.seq.Clone()
		return report, nil
	}

	// Everything after the failing step is irrelevant to the failure
	prefix := failure.seq.Prefix(failure.outcome.FailedAt + 1)
	target := newViolation(failure.seq, failure.outcome)

	lastSeq := prefix
	last := failure.outcome
	last.Trace = last.Trace[:failure.outcome.FailedAt+1]

	reproduces := func(ctx context.Context, candidate sequence.Sequence) (bool, error) {
		out, err := trial.Execute(ctx, candidate)
		if err != nil {
			return false, err
		}
		if !target.matches(candidate, out) {
			return false, nil
		}
		lastSeq = candidate.Clone()
		last = out
		return true, nil
	}

	res, err := s.shrinker.Shrink(ctx, prefix, pool, reproduces)
	if err != nil {
		return nil, fmt.Errorf("simulator: shrinking failed: %w", err)
	}
	if !res.Sequence.Equal(lastSeq) {
		// The strategy did not return the last sequence it accepted. Replay it to get its trace.
		ok, err := reproduces(ctx, res.Sequence)
		if err != nil {
			return nil, fmt.Errorf("simulator: shrinking failed: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("simulator: shrunk sequence %v does not reproduce the failure", res.Sequence)
		}
	}

	s.log.Info().
		Int("from", len(failure.seq)).
		Int("to", len(res.Sequence)).
		Int("attempts", res.Attempts).
		Bool("exhausted", res.Exhausted).
		Stringer("executed", last.Trace.Executed()).
		Msg("shrunk failing sequence")

	report.Property = last.Failure.Property()
	report.Command = last.Failure.Command
	report.Err = last.Failure.Err
	report.Sequence = lastSeq.Clone()
	report.Trace = last.Trace
	report.ShrinkAttempts = res.Attempts
	report.ShrinkExhausted = res.Exhausted
	return report, nil
}
