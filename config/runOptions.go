package config

import (
	"io"
)

// Configures io.writers that the minimal failing sequence will be exported to

// Can be applied multiple times to add multiple io.writers.
// The sequence is written as JSON and can be replayed by the Replay scheduler.
// Default value is no writers.
type ExportOption struct {
	W io.Writer
}

func (eo ExportOption) RunOpt() {}

// Configures a function to release the real system after a trial.

// The function should stop everything started by the setup to avoid leaks across trials.
// Default value is a function that does nothing.
type TeardownOption[R any] struct {
	Teardown func(R) error
}

func (to TeardownOption[R]) RunOpt() {}
