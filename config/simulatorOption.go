package config

import (
	"github.com/rs/zerolog"

	"statecheck/scheduler"
	"statecheck/shrink"
)

type SchedulerOption struct {
	Sch scheduler.GlobalScheduler
}

func (so SchedulerOption) SimOpt() {}

type MaxRunsOption struct{ MaxRuns int }

func (mro MaxRunsOption) SimOpt() {}

type NumConcurrentOption struct{ N int }

func (nco NumConcurrentOption) SimOpt() {}

type IgnorePanicOption struct{}

func (ipo IgnorePanicOption) SimOpt() {}

type IgnoreErrorOption struct{}

func (ieo IgnoreErrorOption) SimOpt() {}

type ShrinkerOption struct {
	Strategy shrink.Strategy
}

func (so ShrinkerOption) SimOpt() {}

// Bounds the number of candidate sequences tried by the default shrinker. 0 means no bound.
type MaxShrinksOption struct{ N int }

func (mso MaxShrinksOption) SimOpt() {}

type LoggerOption struct {
	Log zerolog.Logger
}

func (lo LoggerOption) SimOpt() {}
