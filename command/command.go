package command

import (
	"context"
	"fmt"

	"statecheck/checking"
)

// A Command is a single preconditioned action of a test scenario.
//
// Constructing a command has no side effects, executing it does.
// Commands are rebuilt from their sequence.Step when a sequence is replayed,
// so two commands built from the same step must behave identically.
type Command[M, R any] interface {
	// Returns true if the command may be executed when the model is m
	Check(m M) bool

	// Execute the command against the real system.
	// Returns the model after the command.
	// The provided model is never modified, so it can safely be shared with other trials.
	Run(ctx context.Context, m M, r R) (M, error)

	// The label of the command, including its parameters
	String() string
}

// The part of a command that caused a failure
type Phase int

const (
	// The body of the command returned an error
	PhaseBody Phase = iota
	// An invariant was violated after the body was executed
	PhaseInvariant
	// The model could not be synchronized with the real system
	PhaseResync
)

func (p Phase) String() string {
	switch p {
	case PhaseBody:
		return "body"
	case PhaseInvariant:
		return "invariant"
	case PhaseResync:
		return "resync"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// A Failure is returned when executing a command fails.
type Failure struct {
	// The label of the command
	Command string
	Phase   Phase
	// The name of the violated invariant. Empty unless Phase is PhaseInvariant
	Invariant string
	Err       error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("command %v failed (%v): %v", f.Command, f.Property(), f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Property returns the name of the violated invariant,
// or checking.PropertyBody and checking.PropertyResync for failures that are not caused by an invariant.
func (f *Failure) Property() string {
	switch f.Phase {
	case PhaseInvariant:
		return f.Invariant
	case PhaseResync:
		return checking.PropertyResync
	}
	return checking.PropertyBody
}
