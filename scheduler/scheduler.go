package scheduler

import (
	"errors"
	"fmt"

	"statecheck/generator"
	"statecheck/sequence"
)

type GlobalScheduler interface {
	// Used to manage the sequences that are tested.
	// The global scheduler manages the sequences across all trials of a simulation.
	// Communicates with several run schedulers in separate goroutines to ensure that the trials remain consistent

	// Prepare the scheduler for a new simulation using the provided generators
	Reset(descs []generator.Descriptor) error
	// Create a RunScheduler that will communicate with the global scheduler
	GetRunScheduler() RunScheduler
	// The seed used to generate sequences. Zero if the sequences are not randomly generated.
	Seed() int64
}

type RunScheduler interface {
	// Manages the sequences of the trials run in a single goroutine.
	// Communicates with the GlobalScheduler to ensure that the trials remain consistent.

	// Prepare for starting the trial with the provided index and return its sequence.
	// Returns a NoRunsError if all possible trials have been completed.
	StartRun(trial int) (sequence.Sequence, error)
	// Finish the current trial and prepare for the next one
	EndRun()
}

var (
	NoRunsError = errors.New("scheduler: No available new runs to be started")
	// Returned when the scheduler is used before it has been reset
	NotPreparedError = errors.New("scheduler: Reset must be called before starting runs")
)

// The range of lengths of generated sequences.
//
// Generated sequences have a length l where Min <= l <= Max
type Size struct {
	Min int
	Max int
}

// A size knob. Generates sequences with up to n commands.
func UpTo(n int) Size {
	return Size{Min: 0, Max: n}
}

func (s Size) Validate() error {
	if s.Min < 0 || s.Max < s.Min {
		return fmt.Errorf("scheduler: invalid sequence size [%v, %v]", s.Min, s.Max)
	}
	return nil
}
