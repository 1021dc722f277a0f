package funding

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"statecheck/checking"
	"statecheck/lifecycle"
)

// Names of the invariants, in the order they are checked
const (
	TotalLiquidityMustNotExceedTarget              = "totalLiquidityMustNotExceedTarget"
	TotalLiquidityMustEqualBalance                 = "totalLiquidityMustEqualBalance"
	TotalLiquidityMustEqualSumOfContributions      = "totalLiquidityMustEqualSumOfContributions"
	TotalLiquidityMustTrailTargetWhileAccumulating = "totalLiquidityMustTrailTargetWhileAccumulating"
)

// The invariants of a reserve funding
func Invariants() []checking.Invariant[*System] {
	return []checking.Invariant[*System]{
		checking.NewInvariant(TotalLiquidityMustNotExceedTarget, totalLiquidityMustNotExceedTarget),
		checking.NewInvariant(TotalLiquidityMustEqualBalance, totalLiquidityMustEqualBalance),
		checking.NewInvariant(TotalLiquidityMustEqualSumOfContributions, totalLiquidityMustEqualSumOfContributions),
		checking.When(stillAccumulating,
			checking.NewInvariant(TotalLiquidityMustTrailTargetWhileAccumulating, totalLiquidityMustTrailTarget),
		),
	}
}

func totalLiquidityMustNotExceedTarget(ctx context.Context, r *System) error {
	total, err := r.Client.TotalLiquidity(ctx)
	if err != nil {
		return err
	}
	target, err := r.Client.TargetLiquidity(ctx)
	if err != nil {
		return err
	}
	if total.Gt(target) {
		return fmt.Errorf("%w: total liquidity %v exceeds target %v", checking.ErrMismatch, total, target)
	}
	return nil
}

func totalLiquidityMustEqualBalance(ctx context.Context, r *System) error {
	total, err := r.Client.TotalLiquidity(ctx)
	if err != nil {
		return err
	}
	balance, err := r.Client.BalanceOf(ctx, r.Address)
	if err != nil {
		return err
	}
	if !total.Eq(balance) {
		return fmt.Errorf("%w: total liquidity %v, contract balance %v", checking.ErrMismatch, total, balance)
	}
	return nil
}

// The contributions of the actors are queried concurrently
func totalLiquidityMustEqualSumOfContributions(ctx context.Context, r *System) error {
	total, err := r.Client.TotalLiquidity(ctx)
	if err != nil {
		return err
	}
	contributions := make([]*uint256.Int, len(r.Actors))
	g, gctx := errgroup.WithContext(ctx)
	for i, actor := range r.Actors {
		i, actor := i, actor
		g.Go(func() error {
			l, err := r.Client.Liquidity(gctx, actor)
			contributions[i] = l
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	sum := new(uint256.Int)
	for _, c := range contributions {
		sum.Add(sum, c)
	}
	if !sum.Eq(total) {
		return fmt.Errorf("%w: total liquidity %v, sum of contributions %v", checking.ErrMismatch, total, sum)
	}
	return nil
}

// The real state is Accumulating or Cancelled
func stillAccumulating(ctx context.Context, r *System) (bool, error) {
	state, err := lifecycle.Query(ctx, r.Client)
	if err != nil {
		return false, err
	}
	return state.Open(), nil
}

// The contract locks as soon as the target is reached
func totalLiquidityMustTrailTarget(ctx context.Context, r *System) error {
	total, err := r.Client.TotalLiquidity(ctx)
	if err != nil {
		return err
	}
	target, err := r.Client.TargetLiquidity(ctx)
	if err != nil {
		return err
	}
	if !total.Lt(target) {
		return fmt.Errorf("%w: total liquidity %v reached target %v while accumulating", checking.ErrMismatch, total, target)
	}
	return nil
}
