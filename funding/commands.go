package funding

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"statecheck/checking"
	"statecheck/command"
	"statecheck/lifecycle"
)

// Names of the generators of the funding commands
const (
	AddLiquidity       = "AddLiquidity"
	ClearLiquidity     = "ClearLiquidity"
	CancelAccumulating = "CancelAccumulating"
	ResumeAccumulating = "ResumeAccumulating"
	ExposeLiquidity    = "ExposeLiquidity"
	CompleteFunding    = "CompleteFunding"
)

// Create the factory used for all funding commands.
//
// Every command requires a well-formed model, checks the invariants afterwards and re-reads the lifecycle state from the contract.
func NewFactory() *command.Factory[Model, *System] {
	return command.NewFactory[Model, *System](
		command.WithGlobalCheck(func(m Model) bool { return m.wellFormed() == nil }),
		command.WithResync(resync),
		command.WithInvariants(Invariants()...),
	)
}

// Copy the lifecycle state of the contract into the model
func resync(ctx context.Context, m Model, r *System) (Model, error) {
	state, err := lifecycle.Query(ctx, r.Client)
	if err != nil {
		return m, err
	}
	m.State = state
	return m, nil
}

// Expect the contract to be in the state want
func expectState(ctx context.Context, r *System, want lifecycle.State) error {
	got, err := lifecycle.Query(ctx, r.Client)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: state is %v, expected %v", checking.ErrMismatch, got, want)
	}
	return nil
}

// The actor contributes amount tokens toward the target.
//
// Zero amounts are rejected by the contract and are therefore never executed.
func addLiquidityCommand(f *command.Factory[Model, *System], amount uint64, actor int) command.Command[Model, *System] {
	return f.Create(command.Spec[Model, *System]{
		Label: fmt.Sprintf("%v(%v, %v)", AddLiquidity, amount, actor),
		Check: func(m Model) bool {
			return m.State == lifecycle.Accumulating && amount > 0 && actor < len(m.Actors)
		},
		Run: func(ctx context.Context, m Model, r *System) (Model, error) {
			client := r.As(m.Actors[actor])
			if err := client.Approve(ctx, r.Address, uint256.NewInt(amount)); err != nil {
				return m, fmt.Errorf("approve: %w", err)
			}
			if _, err := client.AddLiquidity(ctx, uint256.NewInt(amount)); err != nil {
				return m, fmt.Errorf("add liquidity: %w", err)
			}
			return m, nil
		},
	})
}

// The actor withdraws its full contribution. Afterwards the balance of the actor must equal its initial balance.
func clearLiquidityCommand(f *command.Factory[Model, *System], actor int) command.Command[Model, *System] {
	return f.Create(command.Spec[Model, *System]{
		Label: fmt.Sprintf("%v(%v)", ClearLiquidity, actor),
		Check: func(m Model) bool {
			switch m.State {
			case lifecycle.Accumulating, lifecycle.Cancelled, lifecycle.Completed:
				return actor < len(m.Actors)
			}
			return false
		},
		Run: func(ctx context.Context, m Model, r *System) (Model, error) {
			id := m.Actors[actor]
			client := r.As(id)
			if _, err := client.ClearLiquidity(ctx); err != nil {
				return m, fmt.Errorf("clear liquidity: %w", err)
			}
			balance, err := client.BalanceOf(ctx, id)
			if err != nil {
				return m, err
			}
			if want := m.InitialBalances[id]; !balance.Eq(want) {
				return m, fmt.Errorf("%w: balance of actor %v is %v, expected %v", checking.ErrMismatch, actor, balance, want)
			}
			return m, nil
		},
	})
}

// The authority moves the funding from one state to the next.
func transitionCommand(f *command.Factory[Model, *System], name string, from, to lifecycle.State, call func(ctx context.Context, r *System) error) command.Command[Model, *System] {
	return f.Create(command.Spec[Model, *System]{
		Label: name + "()",
		Check: func(m Model) bool { return m.State == from },
		Run: func(ctx context.Context, m Model, r *System) (Model, error) {
			if err := call(ctx, r); err != nil {
				return m, err
			}
			if err := expectState(ctx, r, to); err != nil {
				return m, err
			}
			m.State = to
			return m, nil
		},
	})
}

func cancelAccumulatingCommand(f *command.Factory[Model, *System]) command.Command[Model, *System] {
	return transitionCommand(f, CancelAccumulating, lifecycle.Accumulating, lifecycle.Cancelled,
		func(ctx context.Context, r *System) error { return r.As(r.Authority).CancelAccumulating(ctx) },
	)
}

func resumeAccumulatingCommand(f *command.Factory[Model, *System]) command.Command[Model, *System] {
	return transitionCommand(f, ResumeAccumulating, lifecycle.Cancelled, lifecycle.Accumulating,
		func(ctx context.Context, r *System) error { return r.As(r.Authority).ResumeAccumulating(ctx) },
	)
}

func exposeLiquidityCommand(f *command.Factory[Model, *System]) command.Command[Model, *System] {
	return transitionCommand(f, ExposeLiquidity, lifecycle.Locked, lifecycle.Exposed,
		func(ctx context.Context, r *System) error { return r.As(r.Authority).ExposeLiquidity(ctx) },
	)
}

func completeFundingCommand(f *command.Factory[Model, *System]) command.Command[Model, *System] {
	return transitionCommand(f, CompleteFunding, lifecycle.Exposed, lifecycle.Completed,
		func(ctx context.Context, r *System) error { return r.As(r.Authority).CompleteFunding(ctx) },
	)
}
