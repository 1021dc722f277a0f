package checking

import (
	"context"
	"errors"
	"fmt"
)

// A read-only property of the real system.
//
// Check returns nil if the property holds for the current state of the system and an error describing the violation otherwise.
// Checking an invariant must never change the state of the system.
type Invariant[R any] struct {
	Name  string
	Check func(ctx context.Context, r R) error
}

// Create a new invariant
func NewInvariant[R any](name string, check func(ctx context.Context, r R) error) Invariant[R] {
	return Invariant[R]{
		Name:  name,
		Check: check,
	}
}

// Returned when an invariant does not hold.
type ViolationError struct {
	Invariant string
	Err       error
}

func (ve *ViolationError) Error() string {
	return fmt.Sprintf("invariant %v violated: %v", ve.Invariant, ve.Err)
}

func (ve *ViolationError) Unwrap() error {
	return ve.Err
}

// Used by invariants to signal that the compared values differ
var ErrMismatch = errors.New("checking: values do not match")

// Only check the invariant when cond holds.
//
// Return an invariant that runs the provided invariant if cond returns true.
// Otherwise, it always holds.
// Errors returned by cond are reported as violations of the invariant.
func When[R any](cond func(ctx context.Context, r R) (bool, error), inv Invariant[R]) Invariant[R] {
	return Invariant[R]{
		Name: inv.Name,
		Check: func(ctx context.Context, r R) error {
			ok, err := cond(ctx, r)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			return inv.Check(ctx, r)
		},
	}
}

// Check that cond holds for all elements in the slice.
//
// Returns the first error returned by cond, annotated with the element.
func ForAll[E any](elems []E, cond func(E) error) error {
	for _, e := range elems {
		if err := cond(e); err != nil {
			return fmt.Errorf("%v: %w", e, err)
		}
	}
	return nil
}

// Verifies a set of invariants against the real system
type InvariantChecker[R any] struct {
	invariants []Invariant[R]
}

func NewInvariantChecker[R any](invariants ...Invariant[R]) *InvariantChecker[R] {
	return &InvariantChecker[R]{
		invariants: invariants,
	}
}

// Check the invariants sequentially in the order they were registered.
//
// Stops at the first violated invariant and returns a *ViolationError carrying its name.
// Returns nil if all invariants hold.
func (ic *InvariantChecker[R]) Check(ctx context.Context, r R) error {
	for _, inv := range ic.invariants {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := inv.Check(ctx, r); err != nil {
			return &ViolationError{
				Invariant: inv.Name,
				Err:       err,
			}
		}
	}
	return nil
}

// Names returns the names of the registered invariants in the order they are checked
func (ic *InvariantChecker[R]) Names() []string {
	names := make([]string, len(ic.invariants))
	for i, inv := range ic.invariants {
		names[i] = inv.Name
	}
	return names
}
