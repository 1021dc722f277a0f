package generator

import (
	"fmt"
	"math/rand"
)

// An integer parameter of a command.
//
// Values are drawn uniformly from the closed range [Min, Max].
// When shrinking, values move toward Min.
type Param struct {
	Name string
	Min  int64
	Max  int64
}

// A parameter taking any value in [min, max]
func Int(name string, min, max int64) Param {
	return Param{Name: name, Min: min, Max: max}
}

// A parameter selecting one of n elements, e.g. an actor.
// The value is the index of the element.
func Index(name string, n int) Param {
	return Param{Name: name, Min: 0, Max: int64(n) - 1}
}

// Contains returns true if v is in the range of the parameter
func (p Param) Contains(v int64) bool {
	return v >= p.Min && v <= p.Max
}

func (p Param) validate() error {
	if p.Max < p.Min {
		return fmt.Errorf("generator: parameter %v has an empty range [%v, %v]", p.Name, p.Min, p.Max)
	}
	if p.Max-p.Min < 0 {
		return fmt.Errorf("generator: range of parameter %v overflows", p.Name)
	}
	return nil
}

// Draw a value uniformly from the range of the parameter
func (p Param) Draw(rng *rand.Rand) int64 {
	span := p.Max - p.Min
	if span == 0 {
		return p.Min
	}
	if span == 1<<63-1 {
		return p.Min + rng.Int63()
	}
	return p.Min + rng.Int63n(span+1)
}
