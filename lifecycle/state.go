package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// The phase of a reserve funding.
//
// The numbering matches the value reported by the funding contract.
// Transitions are one-directional, except for Cancelled and Accumulating which can be reached from each other.
type State uint8

const (
	Accumulating State = iota
	Locked
	Exposed
	Completed
	Cancelled
)

var ErrUnknownState = errors.New("lifecycle: unknown state")

// Parse the raw value reported by the contract into a State.
//
// Returns ErrUnknownState if the value does not correspond to one of the five states.
func Parse(raw uint32) (State, error) {
	s := State(raw)
	if raw > uint32(Cancelled) {
		return s, fmt.Errorf("%w: %v", ErrUnknownState, raw)
	}
	return s, nil
}

// Valid returns true if s is one of the five lifecycle states
func (s State) Valid() bool {
	return s <= Cancelled
}

// Open returns true while the funding is still accumulating liquidity, or has been paused from doing so.
func (s State) Open() bool {
	return s == Accumulating || s == Cancelled
}

// CanTransition returns true if the lifecycle allows moving from s to next.
func (s State) CanTransition(next State) bool {
	switch s {
	case Accumulating:
		return next == Locked || next == Cancelled
	case Cancelled:
		return next == Accumulating
	case Locked:
		return next == Exposed
	case Exposed:
		return next == Completed
	}
	return false
}

func (s State) String() string {
	switch s {
	case Accumulating:
		return "Accumulating"
	case Locked:
		return "Locked"
	case Exposed:
		return "Exposed"
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// A system that can report its current lifecycle state
type Querier interface {
	State(ctx context.Context) (uint32, error)
}

// Query the current lifecycle state of q.
func Query(ctx context.Context, q Querier) (State, error) {
	raw, err := q.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: querying state: %w", err)
	}
	return Parse(raw)
}
