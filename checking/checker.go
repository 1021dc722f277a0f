package checking

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"statecheck/sequence"
	"statecheck/state"
)

// CheckerResponse is the response returned after checking a system
//
// Contains the result of checking the system.
type CheckerResponse interface {
	// Create a response.
	//
	// Returns a boolean that is true if all properties hold, false otherwise.
	// Returns a string describing the response.
	// This includes a description of which property is violated and the minimal sequence of commands which caused it to be violated.
	Response() (bool, string)

	// Export the sequence which caused a property to be violated
	//
	// If a property was violated it will return the minimal failing sequence, which can be replayed by the Replay scheduler.
	// Otherwise it will return an empty sequence.
	Export() sequence.Sequence
}

// Property names used for failures that are not caused by an invariant
const (
	PropertyBody   = "command body"
	PropertyResync = "resync"
	PropertySetup  = "setup"
)

// The result of checking a system.
type Report struct {
	// True if all trials passed
	Result bool

	// The number of trials that were run
	Trials int

	// The seed of the scheduler. Zero if the sequences were not randomly generated.
	Seed int64
	// The index of the trial that produced the reported failure. -1 if Result is true
	Trial int

	// The name of the violated invariant, or one of PropertyBody, PropertyResync and PropertySetup
	Property string
	// The label of the command that caused the failure
	Command string
	// The error that caused the failure
	Err error

	// The minimal failing sequence
	Sequence sequence.Sequence
	// The records of the trial that replayed the minimal failing sequence
	Trace state.Trace

	// The length of the failing sequence before shrinking
	OriginalLength int
	// The number of candidate sequences tried while shrinking
	ShrinkAttempts int
	// True if the shrink search stopped because it ran out of attempts.
	// The reported sequence may not be minimal in that case.
	ShrinkExhausted bool

	// Errors of other failing trials. Only set if errors are ignored during the simulation.
	Others []error
}

// Create a report of a successful check
func Passed(trials int, seed int64) *Report {
	return &Report{
		Result: true,
		Trials: trials,
		Seed:   seed,
		Trial:  -1,
	}
}

// Generate a response
// Returns two parameters, result, and description.
// Result is true if all properties hold, false otherwise.
// Description is a formatted string providing a detailed description of the result.
// If result is false the description contains the minimal failing sequence, the violated property and the error
func (r *Report) Response() (bool, string) {
	if r.Result {
		return r.Result, fmt.Sprintf("All properties hold. Trials: %v", r.Trials)
	}
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 1, ' ', 0)
	fmt.Fprintf(wrt, "Property violated: %v\n", r.Property)
	if r.Command != "" {
		fmt.Fprintf(wrt, "Command: %v\n", r.Command)
	}
	fmt.Fprintf(wrt, "Error: %v\n", r.Err)
	fmt.Fprintf(wrt, "Trial: %v\tSeed: %v\n", r.Trial, r.Seed)
	fmt.Fprintf(wrt, "Shrunk from %v to %v commands in %v attempts", r.OriginalLength, len(r.Sequence), r.ShrinkAttempts)
	if r.ShrinkExhausted {
		fmt.Fprint(wrt, " (budget exhausted, sequence may not be minimal)")
	}
	fmt.Fprint(wrt, "\nSequence:\n")
	wrt.Flush()
	buffer.WriteString(r.Trace.String())
	if len(r.Others) > 0 {
		fmt.Fprintf(&buffer, "%v other trials failed\n", len(r.Others))
	}
	return r.Result, buffer.String()
}

// Export the minimal failing sequence so that it can be replayed by the Replay scheduler
func (r *Report) Export() sequence.Sequence {
	if r.Result || r.Sequence == nil {
		return sequence.Sequence{}
	}
	return r.Sequence.Clone()
}
