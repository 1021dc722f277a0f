package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"statecheck"
	"statecheck/funding"
	"statecheck/scheduler"
)

var rootCmd = &cobra.Command{
	Use:          "reservecheck",
	Short:        "reservecheck model checks a reserve funding contract",
	SilenceUsage: true,
}

// Returned by the run command when a property of the contract was violated
var errViolation = errors.New("property violated")

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	rootCmd.AddCommand(newRunCmd(&cfg))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, errViolation) {
		return 1
	}
	return 2
}

func newRunCmd(cfg *runConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run random command sequences against the contract and shrink the first failure",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ok, err := run(ctx, *cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if !ok {
				return errViolation
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed of the random scheduler")
	flags.IntVar(&cfg.Runs, "runs", cfg.Runs, "maximum number of trials")
	flags.IntVar(&cfg.MinLength, "min-length", cfg.MinLength, "minimum number of commands in a sequence")
	flags.IntVar(&cfg.MaxLength, "max-length", cfg.MaxLength, "maximum number of commands in a sequence")
	flags.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "number of trials run concurrently")
	flags.IntVar(&cfg.MaxShrinks, "max-shrinks", cfg.MaxShrinks, "maximum number of candidates tried while shrinking. 0 means no bound")
	flags.Uint64Var(&cfg.Target, "target", cfg.Target, "target liquidity of the contract")
	flags.IntVar(&cfg.Actors, "actors", cfg.Actors, "number of actors")
	flags.Uint64Var(&cfg.Balance, "balance", cfg.Balance, "initial token balance of each actor")
	flags.StringSliceVar(&cfg.Faults, "fault", cfg.Faults, "inject a fault into the contract: uncapped-deposits, leaky-refunds or stuck-cancel")
	flags.BoolVar(&cfg.IgnoreError, "ignore-errors", cfg.IgnoreError, "run all trials even if some fail")
	flags.StringVar(&cfg.Export, "export", cfg.Export, "write the minimal failing sequence as JSON to the file")
	flags.StringVar(&cfg.Replay, "replay", cfg.Replay, "replay a sequence exported with --export")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn or error")
	return cmd
}

// Run the check described by cfg. Returns false if a property was violated.
func run(ctx context.Context, cfg runConfig, out io.Writer, logOut io.Writer) (bool, error) {
	if err := cfg.validate(); err != nil {
		return false, err
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return false, err
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: logOut}).Level(level).With().Timestamp().Logger()

	faults, err := parseFaults(cfg.Faults)
	if err != nil {
		return false, err
	}
	fcfg := funding.Config{
		Target:  cfg.Target,
		Actors:  cfg.Actors,
		Balance: cfg.Balance,
		Faults:  faults,
		Log:     log.With().Str("component", "rpc").Logger(),
	}
	fixture, err := funding.NewFixture(fcfg)
	if err != nil {
		return false, err
	}
	fcfg = fixture.Config()

	simOpts := []statecheck.SimulatorOption{
		statecheck.MaxRuns(cfg.Runs),
		statecheck.NumConcurrent(cfg.Concurrency),
		statecheck.MaxShrinks(cfg.MaxShrinks),
		statecheck.WithLogger(log),
	}
	if cfg.IgnoreError {
		simOpts = append(simOpts, statecheck.IgnoreError())
	}
	if cfg.Replay != "" {
		f, err := os.Open(cfg.Replay)
		if err != nil {
			return false, err
		}
		seq, err := statecheck.ReadSequence(f)
		f.Close()
		if err != nil {
			return false, err
		}
		simOpts = append(simOpts, statecheck.ReplayScheduler(seq))
	} else {
		simOpts = append(simOpts, statecheck.RandomScheduler(cfg.Seed, scheduler.Size{Min: cfg.MinLength, Max: cfg.MaxLength}))
	}

	runOpts := []statecheck.RunOptions{
		statecheck.WithTeardown(fixture.Teardown),
	}
	if cfg.Export != "" {
		f, err := os.Create(cfg.Export)
		if err != nil {
			return false, err
		}
		defer f.Close()
		runOpts = append(runOpts, statecheck.Export(f))
	}

	sim := statecheck.Prepare[funding.Model, *funding.System](simOpts...)
	resp, err := sim.Run(ctx,
		statecheck.WithSetup(fixture.Setup),
		statecheck.WithGenerators(funding.Generators(fcfg)...),
		runOpts...,
	)
	if err != nil {
		return false, err
	}
	ok, desc := resp.Response()
	fmt.Fprintln(out, desc)
	return ok, nil
}
