package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"statecheck/checking"
	"statecheck/command"
	"statecheck/generator"
)

// A counter that is expected to stay at or below its cap
type counter struct {
	n   int64
	cap int64
}

// Counts setups and teardowns so tests can verify that every real system is released
type lifecycleCounter struct {
	setups    atomic.Int64
	teardowns atomic.Int64
}

func (lc *lifecycleCounter) setup(cap int64) Setup[int64, *counter] {
	return func(ctx context.Context) (int64, *counter, error) {
		lc.setups.Add(1)
		return 0, &counter{cap: cap}, nil
	}
}

func (lc *lifecycleCounter) teardown(r *counter) error {
	lc.teardowns.Add(1)
	return nil
}

var errDiverged = errors.New("model and counter diverged")

func counterFactory() *command.Factory[int64, *counter] {
	return command.NewFactory[int64, *counter](
		command.WithInvariants(checking.NewInvariant("counterWithinCap", func(ctx context.Context, r *counter) error {
			if r.n > r.cap {
				return fmt.Errorf("%w: %v > %v", checking.ErrMismatch, r.n, r.cap)
			}
			return nil
		})),
	)
}

func incGenerator(f *command.Factory[int64, *counter], min int64) generator.Generator[int64, *counter] {
	return generator.New("Inc", func(values []int64) command.Command[int64, *counter] {
		by := values[0]
		return f.Create(command.Spec[int64, *counter]{
			Label: fmt.Sprintf("Inc(%v)", by),
			Run: func(ctx context.Context, m int64, r *counter) (int64, error) {
				if r.n != m {
					return m, errDiverged
				}
				r.n += by
				return m + by, nil
			},
		})
	}, generator.Int("by", min, 10))
}

func decGenerator(f *command.Factory[int64, *counter]) generator.Generator[int64, *counter] {
	return generator.New("Dec", func([]int64) command.Command[int64, *counter] {
		return f.Create(command.Spec[int64, *counter]{
			Label: "Dec",
			Check: func(m int64) bool { return m > 0 },
			Run: func(ctx context.Context, m int64, r *counter) (int64, error) {
				if m <= 0 {
					return m, fmt.Errorf("Dec executed while the model is %v", m)
				}
				if r.n != m {
					return m, errDiverged
				}
				r.n--
				return m - 1, nil
			},
		})
	})
}

func boomGenerator(f *command.Factory[int64, *counter]) generator.Generator[int64, *counter] {
	return generator.New("Boom", func([]int64) command.Command[int64, *counter] {
		return f.Create(command.Spec[int64, *counter]{
			Label: "Boom",
			Run: func(ctx context.Context, m int64, r *counter) (int64, error) {
				panic("boom")
			},
		})
	})
}

func counterPool(gens ...generator.Generator[int64, *counter]) *generator.Pool[int64, *counter] {
	pool, err := generator.NewPool(gens...)
	if err != nil {
		panic(err)
	}
	return pool
}
