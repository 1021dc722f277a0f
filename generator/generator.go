package generator

import (
	"errors"
	"fmt"
	"math/rand"

	"statecheck/command"
	"statecheck/sequence"
)

var (
	ErrUnknownGenerator = errors.New("generator: unknown generator")
	ErrInvalidValues    = errors.New("generator: invalid parameter values")
)

// The shape of a generator, independent of the model and real system types.
//
// Used by schedulers to draw steps and by shrink strategies to find the ranges of the parameters.
type Descriptor struct {
	Name   string
	Weight int
	Params []Param
}

// Draw a step by drawing a value for each of the parameters
func (d Descriptor) Draw(rng *rand.Rand) sequence.Step {
	values := make([]int64, len(d.Params))
	for i, p := range d.Params {
		values[i] = p.Draw(rng)
	}
	return sequence.Step{Generator: d.Name, Values: values}
}

// Validate returns an error if the values do not match the parameters of the descriptor
func (d Descriptor) Validate(values []int64) error {
	if len(values) != len(d.Params) {
		return fmt.Errorf("%w: %v expects %v values, got %v", ErrInvalidValues, d.Name, len(d.Params), len(values))
	}
	for i, p := range d.Params {
		if !p.Contains(values[i]) {
			return fmt.Errorf("%w: %v=%v is outside [%v, %v]", ErrInvalidValues, p.Name, values[i], p.Min, p.Max)
		}
	}
	return nil
}

// A Generator produces commands from drawn parameter values.
type Generator[M, R any] struct {
	desc  Descriptor
	build func(values []int64) command.Command[M, R]
}

// Create a new generator with weight 1.
//
// build is called with one value per parameter, in the order the parameters are provided.
// It must be deterministic: the same values must always produce an equivalent command.
func New[M, R any](name string, build func(values []int64) command.Command[M, R], params ...Param) Generator[M, R] {
	return Generator[M, R]{
		desc: Descriptor{
			Name:   name,
			Weight: 1,
			Params: params,
		},
		build: build,
	}
}

// Weighted returns a copy of the generator with the provided weight.
// A generator with weight 2 is drawn twice as often as a generator with weight 1.
func (g Generator[M, R]) Weighted(weight int) Generator[M, R] {
	g.desc.Weight = weight
	return g
}

func (g Generator[M, R]) Descriptor() Descriptor {
	return g.desc
}

// Build the command for the values
func (g Generator[M, R]) Build(values []int64) (command.Command[M, R], error) {
	if err := g.desc.Validate(values); err != nil {
		return nil, err
	}
	return g.build(values), nil
}
