package state

import (
	"strings"
	"testing"

	"statecheck/sequence"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	steps := sequence.Sequence{
		{Generator: "inc", Values: []int64{1}},
		{Generator: "dec", Values: []int64{2}},
		{Generator: "inc", Values: []int64{3}},
		{Generator: "inc", Values: []int64{4}},
	}
	r.Add(0, steps[0], "inc(1)", Executed, 1)
	r.Add(1, steps[1], "dec(2)", Skipped, nil)
	r.Add(2, steps[2], "inc(3)", Failed, nil)
	r.Add(3, steps[3], "inc(4)", NotReached, nil)

	trace := r.Trace()
	if len(trace) != 4 {
		t.Fatalf("Expected 4 records. Got %v", len(trace))
	}
	executed := trace.Executed()
	expected := sequence.Sequence{steps[0], steps[2]}
	if !executed.Equal(expected) {
		t.Errorf("Unexpected executed steps. Got %v, expected %v", executed, expected)
	}
	if trace.Count(Skipped) != 1 || trace.Count(Executed) != 1 {
		t.Errorf("Unexpected counts in trace %v", trace)
	}
	if trace[0].Model != "1" {
		t.Errorf("Expected the model of an executed step to be recorded. Got %q", trace[0].Model)
	}
	if trace[1].Model != "" {
		t.Errorf("Expected no model for a skipped step. Got %q", trace[1].Model)
	}
	if !strings.Contains(trace.String(), "dec(2)") {
		t.Errorf("Expected the trace representation to contain all labels. Got %v", trace)
	}

	r.Add(4, steps[3], "inc(4)", Executed, 5)
	if len(trace) != 4 {
		t.Errorf("Adding records should not change traces that have already been returned")
	}
}
