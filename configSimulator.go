package statecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"

	"statecheck/checking"
	"statecheck/config"
	"statecheck/generator"
	"statecheck/scheduler"
	"statecheck/sequence"
	"statecheck/shrink"
	"statecheck/simulator"
)

// Prepare a simulation with initial configuration.
//
// Initializes the simulator with the necessary parameters.
// See the SimulatorOptions for a full overview of possible options.
// Default values will be used if no value is provided.
// Default scheduler is a RandomScheduler with seed 1 generating sequences of up to 50 commands.
func Prepare[M, R any](opts ...SimulatorOption) Simulation[M, R] {
	var (
		// Maximum number of trials
		maxRuns = 1000

		// number of trials that are run at the same time
		numConcurrent = runtime.GOMAXPROCS(0) // Will not change GOMAXPROCS but only return the current value

		// If true all trials are run and the failure of the trial with the lowest index is reported. If false the simulation stops at the first failure
		ignoreErrors = false

		// If true panics raised by commands are not recovered, stopping the program.
		// Ignoring the panic makes it easier to troubleshoot since a debugger can inspect the state when it panics.
		ignorePanics = false

		// Maximum number of candidate sequences tried by the default shrinker
		maxShrinks = 1000

		log = zerolog.Nop()

		sch      scheduler.GlobalScheduler
		shrinker shrink.Strategy
	)

	for _, opt := range opts {
		switch t := opt.(type) {
		case config.SchedulerOption:
			sch = t.Sch
		case config.MaxRunsOption:
			maxRuns = t.MaxRuns
		case config.NumConcurrentOption:
			numConcurrent = t.N
		case config.IgnoreErrorOption:
			ignoreErrors = true
		case config.IgnorePanicOption:
			ignorePanics = true
		case config.ShrinkerOption:
			shrinker = t.Strategy
		case config.MaxShrinksOption:
			maxShrinks = t.N
		case config.LoggerOption:
			log = t.Log
		}
	}
	if sch == nil {
		sch = scheduler.NewRandom(1, scheduler.UpTo(50))
	}
	if shrinker == nil {
		shrinker = shrink.NewDeltaDebugging(maxShrinks, log)
	}

	sim := simulator.NewSimulator[M, R](sch, shrinker, ignoreErrors, ignorePanics, maxRuns, numConcurrent, log)
	return Simulation[M, R]{
		sim: sim,
	}
}

// Stores the configured Simulator.
//
// Can be used to run multiple simulations.
// A simulation is started by calling the Run method.
// Only one simulation can be run at a time.
type Simulation[M, R any] struct {
	sim *simulator.Simulator[M, R]
}

// Run the simulation.
//
// The SetupOption and GeneratorOption are mandatory.
// All RunOptions are optional. Default values will be used if no values are provided.
//
// Returns a checking.CheckerResponse containing the result of the simulation.
// Returns an error if the simulation could not be completed, e.g. if the configuration is invalid or the context is cancelled.
func (sr Simulation[M, R]) Run(ctx context.Context, setup SetupOption[M, R], generators GeneratorOption[M, R], opts ...RunOptions) (checking.CheckerResponse, error) {
	var (
		export []io.Writer

		teardown = func(R) error { return nil }
	)

	for _, opt := range opts {
		switch t := opt.(type) {
		case config.TeardownOption[R]:
			teardown = t.Teardown
		case config.ExportOption:
			export = append(export, t.W)
		}
	}

	if setup.f == nil {
		return nil, fmt.Errorf("statecheck: a setup function must be provided to start the simulation")
	}
	pool, err := generator.NewPool(generators.generators...)
	if err != nil {
		return nil, fmt.Errorf("statecheck: %w", err)
	}

	report, err := sr.sim.Simulate(ctx, pool, setup.f, teardown)
	if err != nil {
		return nil, fmt.Errorf("statecheck: received an error while running simulation: %w", err)
	}

	for _, w := range export {
		if err := WriteSequence(w, report.Export()); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Write the sequence to w as JSON.
func WriteSequence(w io.Writer, seq sequence.Sequence) error {
	if err := json.NewEncoder(w).Encode(seq); err != nil {
		return fmt.Errorf("statecheck: unable to export sequence: %w", err)
	}
	return nil
}

// Read a sequence written by WriteSequence
func ReadSequence(r io.Reader) (sequence.Sequence, error) {
	var seq sequence.Sequence
	if err := json.NewDecoder(r).Decode(&seq); err != nil {
		return nil, fmt.Errorf("statecheck: unable to read sequence: %w", err)
	}
	return seq, nil
}

// A option used to configure the Simulator
type SimulatorOption interface {
	// noop method
	SimOpt()
}

// Use a random scheduler for the simulation.
//
// The random scheduler generates a sequence for each trial by picking generators by weight and drawing their parameters uniformly.
// The sequence of a trial only depends on the seed, the index of the trial and the generators, so a failure can be reproduced from the seed alone.
// It does not have a designated stop point, and will continue to generate sequences until maxRuns is reached.
func RandomScheduler(seed int64, size scheduler.Size) SimulatorOption {
	return config.SchedulerOption{Sch: scheduler.NewRandom(seed, size)}
}

// Use a replay scheduler for the simulation
//
// The replay scheduler runs the provided sequence in a single trial.
// The sequence can be exported using the CheckerResponse.Export()
func ReplayScheduler(seq sequence.Sequence) SimulatorOption {
	return config.SchedulerOption{Sch: scheduler.NewReplay(seq)}
}

// Use the provided scheduler for the simulation
//
// Used to configure the simulation to use a different implementation of scheduler than is commonly provided
func WithScheduler(sch scheduler.GlobalScheduler) SimulatorOption {
	return config.SchedulerOption{Sch: sch}
}

// Configure the maximum number of trials
//
// Default value is 1000
func MaxRuns(maxRuns int) SimulatorOption {
	return config.MaxRunsOption{MaxRuns: maxRuns}
}

// Configure the number of trials that will be run concurrently.
//
// Default value is GOMAXPROCS
func NumConcurrent(n int) SimulatorOption {
	return config.NumConcurrentOption{N: n}
}

// Set the ignorePanic flag to true.
//
// If true panics raised by commands are not recovered, stopping the simulation.
// If false the panic is caught and reported as a failure of the command.
func IgnorePanic() SimulatorOption {
	return config.IgnorePanicOption{}
}

// Set the ignoreError flag to true.
//
// If true all trials are run even if some of them fail. The failure of the trial with the lowest index is shrunk and reported.
// If false the simulation stops at the first failure.
func IgnoreError() SimulatorOption {
	return config.IgnoreErrorOption{}
}

// Use the provided strategy to shrink failing sequences.
//
// Default is a delta debugging strategy.
func WithShrinker(strategy shrink.Strategy) SimulatorOption {
	return config.ShrinkerOption{Strategy: strategy}
}

// Do not shrink failing sequences
func NoShrinking() SimulatorOption {
	return config.ShrinkerOption{Strategy: shrink.None{}}
}

// Configure the maximum number of candidate sequences tried when shrinking with the default shrinker.
//
// Default value is 1000. 0 means no bound.
func MaxShrinks(n int) SimulatorOption {
	return config.MaxShrinksOption{N: n}
}

// Configure the logger used by the simulator.
//
// Default is a logger that discards all output.
func WithLogger(log zerolog.Logger) SimulatorOption {
	return config.LoggerOption{Log: log}
}

// Optional parameters used to configure a simulation
type RunOptions interface {
	RunOpt()
}

// Add a writer that the minimal failing sequence will be exported to
//
// Can be called multiple times.
// Default value is no writers
func Export(w io.Writer) RunOptions {
	return config.ExportOption{W: w}
}

// Configures a function used to release the real system after each trial.
//
// Default value is a function that does nothing.
func WithTeardown[R any](teardown func(R) error) RunOptions {
	return config.TeardownOption[R]{Teardown: teardown}
}

// Configures how the model and the real system are created.
type SetupOption[M, R any] struct {
	f simulator.Setup[M, R]
}

// Use the provided function to create a fresh model and real system for each trial.
//
// The function is called once for every trial and once for every candidate sequence tried while shrinking.
// Every call must return a system with no state left over from earlier calls.
func WithSetup[M, R any](setup func(ctx context.Context) (M, R, error)) SetupOption[M, R] {
	return SetupOption[M, R]{f: setup}
}

// Configures the generators that commands are drawn from
type GeneratorOption[M, R any] struct {
	generators []generator.Generator[M, R]
}

// Configures the generators that commands are drawn from.
//
// At least one generator must be provided.
func WithGenerators[M, R any](generators ...generator.Generator[M, R]) GeneratorOption[M, R] {
	return GeneratorOption[M, R]{generators: generators}
}
