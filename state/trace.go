package state

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"statecheck/sequence"
)

// The records of all steps of a single trial, in the order they were visited.
type Trace []StepRecord

// Executed returns the steps whose commands were executed, including the failing one.
func (t Trace) Executed() sequence.Sequence {
	out := sequence.Sequence{}
	for _, r := range t {
		if r.Outcome == Executed || r.Outcome == Failed {
			out = append(out, r.Step.Clone())
		}
	}
	return out
}

// Count the number of records with the outcome o
func (t Trace) Count(o Outcome) int {
	n := 0
	for _, r := range t {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func (t Trace) String() string {
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 1, ' ', 0)
	for _, r := range t {
		fmt.Fprintf(wrt, "-> %v\n", r)
	}
	wrt.Flush()
	return buffer.String()
}

// Records the steps of a single trial.
//
// Should only be accessed from a single goroutine at a time.
// A new recorder is used for every trial.
type Recorder struct {
	trace Trace
}

func NewRecorder() *Recorder {
	return &Recorder{trace: make(Trace, 0)}
}

// Add a record of the step at index i of the sequence
func (r *Recorder) Add(i int, step sequence.Step, label string, outcome Outcome, model any) {
	rec := StepRecord{
		Index:   i,
		Step:    step.Clone(),
		Label:   label,
		Outcome: outcome,
	}
	if outcome == Executed {
		rec.Model = fmt.Sprint(model)
	}
	r.trace = append(r.trace, rec)
}

// Trace returns a copy of the records added so far
func (r *Recorder) Trace() Trace {
	out := make(Trace, len(r.trace))
	copy(out, r.trace)
	return out
}
