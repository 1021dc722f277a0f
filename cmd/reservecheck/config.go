package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"statecheck/reserve"
)

// The configuration of a check. Defaults are read from the environment and can be overridden by flags.
type runConfig struct {
	Seed        int64    `env:"RESERVECHECK_SEED"         envDefault:"1"`
	Runs        int      `env:"RESERVECHECK_RUNS"         envDefault:"100"`
	MinLength   int      `env:"RESERVECHECK_MIN_LENGTH"   envDefault:"0"`
	MaxLength   int      `env:"RESERVECHECK_MAX_LENGTH"   envDefault:"30"`
	Concurrency int      `env:"RESERVECHECK_CONCURRENCY"  envDefault:"4"`
	MaxShrinks  int      `env:"RESERVECHECK_MAX_SHRINKS"  envDefault:"1000"`
	Target      uint64   `env:"RESERVECHECK_TARGET"       envDefault:"100"`
	Actors      int      `env:"RESERVECHECK_ACTORS"       envDefault:"10"`
	Balance     uint64   `env:"RESERVECHECK_BALANCE"      envDefault:"200"`
	Faults      []string `env:"RESERVECHECK_FAULTS"       envSeparator:","`
	IgnoreError bool     `env:"RESERVECHECK_IGNORE_ERRORS"`
	Export      string   `env:"RESERVECHECK_EXPORT"`
	Replay      string   `env:"RESERVECHECK_REPLAY"`
	LogLevel    string   `env:"RESERVECHECK_LOG_LEVEL"    envDefault:"info"`
}

// Load the defaults from the environment
func loadConfig() (runConfig, error) {
	var cfg runConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

var faultNames = []string{"uncapped-deposits", "leaky-refunds", "stuck-cancel"}

func parseFaults(names []string) (reserve.Faults, error) {
	var faults reserve.Faults
	for _, name := range names {
		switch name {
		case "uncapped-deposits":
			faults.UncappedDeposits = true
		case "leaky-refunds":
			faults.LeakyRefunds = true
		case "stuck-cancel":
			faults.StuckCancel = true
		default:
			return faults, fmt.Errorf("unknown fault %q. Expected one of %v", name, faultNames)
		}
	}
	return faults, nil
}

func (c runConfig) validate() error {
	if c.Runs < 1 {
		return fmt.Errorf("runs must be positive. Got %v", c.Runs)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive. Got %v", c.Concurrency)
	}
	return nil
}
