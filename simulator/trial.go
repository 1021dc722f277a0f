package simulator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"statecheck/command"
	"statecheck/generator"
	"statecheck/sequence"
	"statecheck/state"
)

// Creates a fresh model and real system for a trial.
//
// Every call must return a system with no state left over from earlier calls.
type Setup[M, R any] func(ctx context.Context) (M, R, error)

// Releases the real system after a trial
type Teardown[R any] func(r R) error

// Returned when Setup fails. The trial is not run and can not be shrunk.
type SetupError struct {
	Err error
}

func (se *SetupError) Error() string {
	return fmt.Sprintf("simulator: setup failed: %v", se.Err)
}

func (se *SetupError) Unwrap() error {
	return se.Err
}

type Status int

const (
	Passed Status = iota
	Failed
)

func (s Status) String() string {
	if s == Passed {
		return "passed"
	}
	return "failed"
}

// The outcome of a single trial
type Outcome struct {
	Status Status
	// One record for each step of the sequence, in order
	Trace state.Trace
	// The index of the failing step. -1 if the trial passed
	FailedAt int
	// The failure of the failing step. nil if the trial passed
	Failure *command.Failure
}

// Runs single trials: executes a sequence against a fresh model and real system.
//
// A Trial can be used concurrently, as each call to Execute creates its own model and real system.
type Trial[M, R any] struct {
	pool     *generator.Pool[M, R]
	setup    Setup[M, R]
	teardown Teardown[R]

	// If true panics raised by commands are not recovered
	ignorePanics bool
	log          zerolog.Logger
}

func NewTrial[M, R any](pool *generator.Pool[M, R], setup Setup[M, R], teardown Teardown[R], ignorePanics bool, log zerolog.Logger) *Trial[M, R] {
	if teardown == nil {
		teardown = func(R) error { return nil }
	}
	return &Trial[M, R]{
		pool:         pool,
		setup:        setup,
		teardown:     teardown,
		ignorePanics: ignorePanics,
		log:          log,
	}
}

// Execute the sequence against a fresh model and real system.
//
// Steps whose precondition does not hold for the current model are skipped.
// The trial stops at the first failing command.
// Property failures are reported in the Outcome. An error is returned if the trial could not be run:
// a *SetupError if the setup failed, or an error if the context was cancelled or a step could not be built.
// The teardown is always called if the setup succeeded.
func (t *Trial[M, R]) Execute(ctx context.Context, seq sequence.Sequence) (out Outcome, err error) {
	m, r, err := t.setup(ctx)
	if err != nil {
		return Outcome{FailedAt: -1}, &SetupError{Err: err}
	}
	defer func() {
		if tdErr := t.teardown(r); tdErr != nil {
			err = multierror.Append(err, fmt.Errorf("simulator: teardown failed: %w", tdErr))
		}
	}()
	return t.run(ctx, m, r, seq)
}

func (t *Trial[M, R]) run(ctx context.Context, m M, r R, seq sequence.Sequence) (Outcome, error) {
	rec := state.NewRecorder()
	for i, step := range seq {
		cmd, err := t.pool.Build(step)
		if err != nil {
			return Outcome{FailedAt: -1, Trace: rec.Trace()}, fmt.Errorf("simulator: step %v: %w", i, err)
		}
		if !cmd.Check(m) {
			rec.Add(i, step, cmd.String(), state.Skipped, nil)
			continue
		}

		next, err := t.executeCommand(ctx, cmd, m, r)
		if err != nil {
			var failure *command.Failure
			if !errors.As(err, &failure) {
				return Outcome{FailedAt: -1, Trace: rec.Trace()}, err
			}
			rec.Add(i, step, cmd.String(), state.Failed, nil)
			for j := i + 1; j < len(seq); j++ {
				rec.Add(j, seq[j], seq[j].String(), state.NotReached, nil)
			}
			t.log.Debug().Int("step", i).Str("command", cmd.String()).Err(err).Msg("command failed")
			return Outcome{
				Status:   Failed,
				Trace:    rec.Trace(),
				FailedAt: i,
				Failure:  failure,
			}, nil
		}
		m = next
		rec.Add(i, step, cmd.String(), state.Executed, m)
	}
	return Outcome{Status: Passed, Trace: rec.Trace(), FailedAt: -1}, nil
}

type commandResult[M any] struct {
	m   M
	err error
}

// Executes the command in a separate goroutine and waits until it completes or the context is cancelled.
//
// Panics raised by the command are returned as body failures unless ignorePanics is set.
func (t *Trial[M, R]) executeCommand(ctx context.Context, cmd command.Command[M, R], m M, r R) (M, error) {
	done := make(chan commandResult[M], 1)
	go func() {
		if !t.ignorePanics {
			// Catch all panics that occur while executing the command. These are often caused by faults in the system and are therefore reported as failures.
			defer func() {
				if p := recover(); p != nil {
					done <- commandResult[M]{m: m, err: &command.Failure{
						Command: cmd.String(),
						Phase:   command.PhaseBody,
						Err:     fmt.Errorf("command panicked: %v \nStack Trace:\n %s", p, debug.Stack()),
					}}
				}
			}()
		}
		next, err := cmd.Run(ctx, m, r)
		done <- commandResult[M]{m: next, err: err}
	}()

	select {
	case res := <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m, ctxErr
		}
		return res.m, res.err
	case <-ctx.Done():
		return m, ctx.Err()
	}
}
