package simulator

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"statecheck/scheduler"
	"statecheck/sequence"
	"statecheck/state"
)

// The result of a single trial as it is reported to the main loop
type trialResult struct {
	index   int
	seq     sequence.Sequence
	outcome Outcome
	err     error
}

// A property failure that should be reported. Setup failures are failures, other errors are not.
func (tr trialResult) failed() bool {
	if tr.err != nil {
		var se *SetupError
		return errors.As(tr.err, &se)
	}
	return tr.outcome.Status == Failed
}

type runSimulator[M, R any] struct {
	sch   scheduler.RunScheduler
	trial *Trial[M, R]
	log   zerolog.Logger
}

func newRunSimulator[M, R any](sch scheduler.RunScheduler, trial *Trial[M, R], log zerolog.Logger) *runSimulator[M, R] {
	return &runSimulator[M, R]{
		sch:   sch,
		trial: trial,
		log:   log,
	}
}

// Main loop of the runSimulator.
// Continuously listens to the nextRun channel and starts a new trial each time it receives an index.
// Stops when the channel is closed or when a scheduler.NoRunsError is returned.
// Sends the result of each trial on the status channel.
// When it closes it sends an indication on the closing channel
func (rs *runSimulator[M, R]) SimulateRuns(ctx context.Context, nextRun chan int, status chan trialResult, closing chan bool) {
	for index := range nextRun {
		res := rs.simulateRun(ctx, index)
		if errors.Is(res.err, scheduler.NoRunsError) {
			break
		}
		status <- res
	}

	closing <- true
}

func (rs *runSimulator[M, R]) simulateRun(ctx context.Context, index int) trialResult {
	seq, err := rs.sch.StartRun(index)
	if err != nil {
		return trialResult{index: index, err: err}
	}
	defer rs.sch.EndRun()

	rs.log.Debug().Int("trial", index).Int("length", len(seq)).Msg("starting trial")
	out, err := rs.trial.Execute(ctx, seq)
	rs.log.Debug().Int("trial", index).Stringer("status", out.Status).Int("executed", out.Trace.Count(state.Executed)).Msg("trial ended")
	return trialResult{
		index:   index,
		seq:     seq,
		outcome: out,
		err:     err,
	}
}
