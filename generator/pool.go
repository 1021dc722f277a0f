package generator

import (
	"errors"
	"fmt"

	"statecheck/command"
	"statecheck/sequence"
)

// A Pool is the set of generators used by a simulation.
//
// It rebuilds commands from steps and is safe for concurrent use after creation.
type Pool[M, R any] struct {
	generators []Generator[M, R]
	byName     map[string]int
}

// Create a new pool
//
// Returns an error if no generators are provided, if two generators have the same name,
// or if a generator has a non-positive weight or an empty parameter range.
func NewPool[M, R any](generators ...Generator[M, R]) (*Pool[M, R], error) {
	if len(generators) == 0 {
		return nil, errors.New("generator: at least one generator must be provided")
	}
	byName := make(map[string]int, len(generators))
	for i, g := range generators {
		if g.build == nil {
			return nil, fmt.Errorf("generator: %v has no build function", g.desc.Name)
		}
		if _, ok := byName[g.desc.Name]; ok {
			return nil, fmt.Errorf("generator: duplicate generator name %v", g.desc.Name)
		}
		if g.desc.Weight <= 0 {
			return nil, fmt.Errorf("generator: %v has non-positive weight %v", g.desc.Name, g.desc.Weight)
		}
		for _, p := range g.desc.Params {
			if err := p.validate(); err != nil {
				return nil, err
			}
		}
		byName[g.desc.Name] = i
	}
	return &Pool[M, R]{
		generators: generators,
		byName:     byName,
	}, nil
}

// Descriptors returns the descriptors of the generators in the order they were provided
func (p *Pool[M, R]) Descriptors() []Descriptor {
	out := make([]Descriptor, len(p.generators))
	for i, g := range p.generators {
		out[i] = g.desc
	}
	return out
}

// Params returns the parameters of the named generator
func (p *Pool[M, R]) Params(name string) ([]Param, bool) {
	i, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return p.generators[i].desc.Params, true
}

// Build the command described by the step
func (p *Pool[M, R]) Build(step sequence.Step) (command.Command[M, R], error) {
	i, ok := p.byName[step.Generator]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownGenerator, step.Generator)
	}
	return p.generators[i].Build(step.Values)
}
