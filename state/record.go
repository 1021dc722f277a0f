package state

import (
	"fmt"

	"statecheck/sequence"
)

// What happened to a step when a trial was run
type Outcome int

const (
	// The command was executed and all invariants held afterwards
	Executed Outcome = iota
	// The precondition of the command did not hold and the command was not executed
	Skipped
	// The command was executed and caused the trial to fail
	Failed
	// The step was never reached because an earlier step failed
	NotReached
)

func (o Outcome) String() string {
	switch o {
	case Executed:
		return "executed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case NotReached:
		return "not reached"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// A Record of a step in a trial
//
// Stores the step, the label of the command built from it and the string representation of the model after the step.
type StepRecord struct {
	Index   int
	Step    sequence.Step
	Label   string
	Outcome Outcome
	// The model after the step. Empty if the step was not executed.
	Model string
}

func (sr StepRecord) String() string {
	if sr.Outcome != Executed {
		return fmt.Sprintf("%v\t[%v]", sr.Label, sr.Outcome)
	}
	return fmt.Sprintf("%v\t%v", sr.Label, sr.Model)
}
