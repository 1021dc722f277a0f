package command

import (
	"context"
	"errors"

	"statecheck/checking"
)

// The composed precondition of a command.
//
// Global is shared by all commands created by the same factory, while Local is specific to a single command.
// A nil function always holds.
type Precondition[M any] struct {
	Global func(M) bool
	Local  func(M) bool
}

// Holds returns true if both the global and the local precondition hold for the model m
func (p Precondition[M]) Holds(m M) bool {
	if p.Global != nil && !p.Global(m) {
		return false
	}
	return p.Local == nil || p.Local(m)
}

// Synchronizes the model with the real system after a command.
//
// This is the only point where the model is updated from the real system.
// Anything the resync copies from the real system is no longer checked independently by the model,
// so it should be limited to state the model can not predict.
type Resync[M, R any] func(ctx context.Context, m M, r R) (M, error)

// The description of a command before it is combined with the global configuration of the factory
type Spec[M, R any] struct {
	// The label of the command, including its parameters
	Label string
	// The local precondition of the command. Optional.
	Check func(M) bool
	// The body of the command. Returns the model after the command.
	Run func(ctx context.Context, m M, r R) (M, error)
}

// Creates commands that share a global precondition, a set of invariants and a resync step.
type Factory[M, R any] struct {
	globalCheck func(M) bool
	resync      Resync[M, R]
	checker     *checking.InvariantChecker[R]
}

type FactoryOption interface{}

type globalCheckOption[M any] struct{ check func(M) bool }

// Configure the global precondition that must hold for all commands created by the factory.
//
// Default is a precondition that always holds.
func WithGlobalCheck[M any](check func(M) bool) FactoryOption {
	return globalCheckOption[M]{check: check}
}

type resyncOption[M, R any] struct{ resync Resync[M, R] }

// Configure how the model is synchronized with the real system after each command.
//
// Default is to leave the model unchanged.
func WithResync[M, R any](resync Resync[M, R]) FactoryOption {
	return resyncOption[M, R]{resync: resync}
}

type invariantsOption[R any] struct{ invariants []checking.Invariant[R] }

// Configure the invariants that are checked after each command.
//
// The invariants are checked in the order they are provided.
// Can be provided several times. Invariants are appended.
func WithInvariants[R any](invariants ...checking.Invariant[R]) FactoryOption {
	return invariantsOption[R]{invariants: invariants}
}

// Create a new Factory
//
// Options whose type parameters do not match the factory are ignored.
func NewFactory[M, R any](opts ...FactoryOption) *Factory[M, R] {
	var (
		globalCheck = func(M) bool { return true }
		resync      = func(ctx context.Context, m M, r R) (M, error) { return m, nil }
		invariants  = []checking.Invariant[R]{}
	)
	for _, opt := range opts {
		switch t := opt.(type) {
		case globalCheckOption[M]:
			globalCheck = t.check
		case resyncOption[M, R]:
			resync = t.resync
		case invariantsOption[R]:
			invariants = append(invariants, t.invariants...)
		}
	}
	return &Factory[M, R]{
		globalCheck: globalCheck,
		resync:      resync,
		checker:     checking.NewInvariantChecker(invariants...),
	}
}

// Create a command from the spec
func (f *Factory[M, R]) Create(spec Spec[M, R]) Command[M, R] {
	return &composed[M, R]{
		label: spec.Label,
		pre: Precondition[M]{
			Global: f.globalCheck,
			Local:  spec.Check,
		},
		run:     spec.Run,
		checker: f.checker,
		resync:  f.resync,
	}
}

// Invariants returns the names of the invariants checked by commands of this factory
func (f *Factory[M, R]) Invariants() []string {
	return f.checker.Names()
}

type composed[M, R any] struct {
	label   string
	pre     Precondition[M]
	run     func(ctx context.Context, m M, r R) (M, error)
	checker *checking.InvariantChecker[R]
	resync  Resync[M, R]
}

func (c *composed[M, R]) Check(m M) bool {
	return c.pre.Holds(m)
}

// Run the body, then verify the invariants, then synchronize the model.
// The order is fixed so that a violation is attributed to the command that caused it and not to a stale model.
func (c *composed[M, R]) Run(ctx context.Context, m M, r R) (M, error) {
	next, err := c.run(ctx, m, r)
	if err != nil {
		return m, &Failure{Command: c.label, Phase: PhaseBody, Err: err}
	}

	if err := c.checker.Check(ctx, r); err != nil {
		var ve *checking.ViolationError
		if errors.As(err, &ve) {
			return next, &Failure{Command: c.label, Phase: PhaseInvariant, Invariant: ve.Invariant, Err: ve.Err}
		}
		return next, &Failure{Command: c.label, Phase: PhaseBody, Err: err}
	}

	synced, err := c.resync(ctx, next, r)
	if err != nil {
		return next, &Failure{Command: c.label, Phase: PhaseResync, Err: err}
	}
	return synced, nil
}

func (c *composed[M, R]) String() string {
	return c.label
}
