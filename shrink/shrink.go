package shrink

import (
	"context"

	"statecheck/generator"
	"statecheck/sequence"
)

// Reports whether a candidate sequence still reproduces the failure being shrunk.
//
// Each call must run the candidate against a fresh system.
// An error aborts the search.
type Predicate func(ctx context.Context, seq sequence.Sequence) (bool, error)

// Provides the parameter ranges of the steps in a sequence
type Space interface {
	Params(generator string) ([]generator.Param, bool)
}

// The result of a shrink search
type Result struct {
	// The smallest sequence found that reproduces the failure
	Sequence sequence.Sequence
	// The number of candidates that were tried
	Attempts int
	// The number of candidates that reproduced the failure
	Accepted int
	// True if the search stopped because the attempt budget was used up
	Exhausted bool
}

// A Strategy searches for a smaller sequence that reproduces a failure.
//
// Strategies are independent of how sequences are generated.
// Any strategy must ensure that the returned sequence reproduces the failure,
// and should ensure that no single step can be removed from it while still reproducing the failure.
type Strategy interface {
	Shrink(ctx context.Context, seq sequence.Sequence, space Space, reproduces Predicate) (Result, error)
}

// A strategy that does not shrink. Returns the provided sequence.
type None struct{}

func (None) Shrink(ctx context.Context, seq sequence.Sequence, space Space, reproduces Predicate) (Result, error) {
	return Result{Sequence: seq.Clone()}, nil
}
