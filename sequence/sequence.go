package sequence

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// A Step is the reconstructible form of a command.
//
// It stores the name of the generator that builds the command and the parameter values that were drawn for it.
// Building the same Step twice with the same generator produces two commands with identical behaviour.
type Step struct {
	Generator string  `json:"generator"`
	Values    []int64 `json:"values,omitempty"`
}

func (s Step) String() string {
	vals := make([]string, len(s.Values))
	for i, v := range s.Values {
		vals[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%v(%v)", s.Generator, strings.Join(vals, ", "))
}

// Clone returns a deep copy of the step
func (s Step) Clone() Step {
	return Step{
		Generator: s.Generator,
		Values:    slices.Clone(s.Values),
	}
}

// Equal returns true if both steps have the same generator and the same values
func (s Step) Equal(o Step) bool {
	return s.Generator == o.Generator && slices.Equal(s.Values, o.Values)
}

// An ordered list of steps.
//
// Sequences are treated as values.
// All methods return new sequences and leave the receiver untouched.
type Sequence []Step

// Clone returns a deep copy of the sequence
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	for i, step := range s {
		out[i] = step.Clone()
	}
	return out
}

// Prefix returns the first n steps of the sequence.
// If n is larger than the length of the sequence the entire sequence is returned.
func (s Sequence) Prefix(n int) Sequence {
	if n > len(s) {
		n = len(s)
	}
	if n < 0 {
		n = 0
	}
	return s[:n].Clone()
}

// Without returns the sequence with the n steps starting at index i removed.
func (s Sequence) Without(i, n int) Sequence {
	if i < 0 || i >= len(s) || n <= 0 {
		return s.Clone()
	}
	end := i + n
	if end > len(s) {
		end = len(s)
	}
	out := make(Sequence, 0, len(s)-(end-i))
	out = append(out, s[:i].Clone()...)
	out = append(out, s[end:].Clone()...)
	return out
}

// With returns the sequence with the step at index i replaced.
func (s Sequence) With(i int, step Step) Sequence {
	out := s.Clone()
	if i >= 0 && i < len(out) {
		out[i] = step.Clone()
	}
	return out
}

// Equal returns true if both sequences contain equal steps in the same order
func (s Sequence) Equal(o Sequence) bool {
	return slices.EqualFunc(s, o, func(a, b Step) bool { return a.Equal(b) })
}

func (s Sequence) String() string {
	steps := make([]string, len(s))
	for i, step := range s {
		steps[i] = step.String()
	}
	return "[" + strings.Join(steps, ", ") + "]"
}
