package funding

import (
	"statecheck/command"
	"statecheck/generator"
)

// Create the generators of the funding commands.
//
// Amounts are drawn from [0, 2*target] so that deposits regularly overshoot the target.
func Generators(cfg Config) []generator.Generator[Model, *System] {
	f := NewFactory()
	return []generator.Generator[Model, *System]{
		generator.New(AddLiquidity, func(values []int64) command.Command[Model, *System] {
			return addLiquidityCommand(f, uint64(values[0]), int(values[1]))
		},
			generator.Int("amount", 0, int64(2*cfg.Target)),
			generator.Index("actor", cfg.Actors),
		).Weighted(4),
		generator.New(ClearLiquidity, func(values []int64) command.Command[Model, *System] {
			return clearLiquidityCommand(f, int(values[0]))
		},
			generator.Index("actor", cfg.Actors),
		).Weighted(2),
		generator.New(CancelAccumulating, func([]int64) command.Command[Model, *System] {
			return cancelAccumulatingCommand(f)
		}),
		generator.New(ResumeAccumulating, func([]int64) command.Command[Model, *System] {
			return resumeAccumulatingCommand(f)
		}),
		generator.New(ExposeLiquidity, func([]int64) command.Command[Model, *System] {
			return exposeLiquidityCommand(f)
		}),
		generator.New(CompleteFunding, func([]int64) command.Command[Model, *System] {
			return completeFundingCommand(f)
		}),
	}
}
