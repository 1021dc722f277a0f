package funding

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"statecheck/command"
	"statecheck/generator"
	"statecheck/lifecycle"
	"statecheck/reserve"
	"statecheck/scheduler"
	"statecheck/sequence"
	"statecheck/shrink"
	"statecheck/simulator"
	"statecheck/state"
)

func add(amount, actor int64) sequence.Step {
	return sequence.Step{Generator: AddLiquidity, Values: []int64{amount, actor}}
}

func withdraw(actor int64) sequence.Step {
	return sequence.Step{Generator: ClearLiquidity, Values: []int64{actor}}
}

var (
	cancel   = sequence.Step{Generator: CancelAccumulating}
	resume   = sequence.Step{Generator: ResumeAccumulating}
	expose   = sequence.Step{Generator: ExposeLiquidity}
	complete = sequence.Step{Generator: CompleteFunding}
)

func newTrial(t *testing.T, faults reserve.Faults) (*simulator.Trial[Model, *System], *generator.Pool[Model, *System], *Fixture) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Faults = faults
	fixture, err := NewFixture(cfg)
	require.NoError(t, err)
	pool, err := generator.NewPool(Generators(cfg)...)
	require.NoError(t, err)
	return simulator.NewTrial(pool, fixture.Setup, fixture.Teardown, false, zerolog.Nop()), pool, fixture
}

func outcomes(trace state.Trace) []state.Outcome {
	out := make([]state.Outcome, len(trace))
	for i, r := range trace {
		out[i] = r.Outcome
	}
	return out
}

func TestOverflowScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Faults = reserve.Faults{UncappedDeposits: true}
	fixture, err := NewFixture(cfg)
	require.NoError(t, err)
	pool, err := generator.NewPool(Generators(cfg)...)
	require.NoError(t, err)

	seq := sequence.Sequence{add(60, 3), add(50, 7)}
	sim := simulator.NewSimulator[Model, *System](scheduler.NewReplay(seq), shrink.NewDeltaDebugging(0, zerolog.Nop()), false, false, 1, 1, zerolog.Nop())
	report, err := sim.Simulate(context.Background(), pool, fixture.Setup, fixture.Teardown)
	require.NoError(t, err)

	require.False(t, report.Result)
	require.Equal(t, TotalLiquidityMustNotExceedTarget, report.Property)
	require.Equal(t, 2, report.OriginalLength)
	expected := sequence.Sequence{add(51, 0), add(50, 0)}
	if diff := cmp.Diff(expected, report.Sequence); diff != "" {
		t.Errorf("Received unexpected shrunk sequence (-want +got):\n%v", diff)
	}
	require.Equal(t, "AddLiquidity(50, 0)", report.Command)
}

func TestOverflowWithCorrectContract(t *testing.T) {
	trial, _, _ := newTrial(t, reserve.Faults{})
	out, err := trial.Execute(context.Background(), sequence.Sequence{add(60, 0), add(50, 1), add(10, 2)})
	require.NoError(t, err)
	require.Equal(t, simulator.Passed, out.Status)
	// The second deposit fills the target and locks the funding, so the third is skipped
	require.Equal(t, []state.Outcome{state.Executed, state.Executed, state.Skipped}, outcomes(out.Trace))
	require.Equal(t, lifecycle.Locked.String(), out.Trace[1].Model)
}

func TestCancelResumeScenario(t *testing.T) {
	trial, _, _ := newTrial(t, reserve.Faults{})
	out, err := trial.Execute(context.Background(), sequence.Sequence{add(10, 0), cancel, add(10, 1), withdraw(0), resume, add(10, 1)})
	require.NoError(t, err)
	require.Equal(t, simulator.Passed, out.Status, "failure: %v", out.Failure)
	require.Equal(t,
		[]state.Outcome{state.Executed, state.Executed, state.Skipped, state.Executed, state.Executed, state.Executed},
		outcomes(out.Trace),
	)
	require.Equal(t, lifecycle.Cancelled.String(), out.Trace[1].Model)
	require.Equal(t, lifecycle.Accumulating.String(), out.Trace[4].Model)
}

func TestFullLifecycle(t *testing.T) {
	trial, _, _ := newTrial(t, reserve.Faults{})
	out, err := trial.Execute(context.Background(), sequence.Sequence{add(200, 0), expose, withdraw(0), complete, withdraw(0)})
	require.NoError(t, err)
	require.Equal(t, simulator.Passed, out.Status, "failure: %v", out.Failure)
	require.Equal(t,
		[]state.Outcome{state.Executed, state.Executed, state.Skipped, state.Executed, state.Executed},
		outcomes(out.Trace),
	)
	require.Equal(t, lifecycle.Completed.String(), out.Trace[4].Model)
}

func TestIdempotentSkip(t *testing.T) {
	trial, _, _ := newTrial(t, reserve.Faults{})
	seq := sequence.Sequence{resume, expose, complete, add(0, 1)}
	for i := 0; i < 2; i++ {
		out, err := trial.Execute(context.Background(), seq)
		require.NoError(t, err)
		require.Equal(t, simulator.Passed, out.Status)
		require.Equal(t, 0, out.Trace.Count(state.Executed))
		require.Equal(t, len(seq), out.Trace.Count(state.Skipped))
	}
}

func TestClearLiquidityOnFreshContract(t *testing.T) {
	trial, _, _ := newTrial(t, reserve.Faults{})
	for _, seq := range []sequence.Sequence{
		{withdraw(0)},
		{withdraw(0), cancel, withdraw(1), resume, withdraw(2)},
	} {
		out, err := trial.Execute(context.Background(), seq)
		require.NoError(t, err)
		require.Equal(t, simulator.Passed, out.Status, "sequence %v failed: %v", seq, out.Failure)
		require.Equal(t, len(seq), out.Trace.Count(state.Executed))
	}
}

func TestMalformedModelSkipsCommands(t *testing.T) {
	actor := uuid.New()
	valid := Model{
		Actors:          []uuid.UUID{actor},
		InitialBalances: map[uuid.UUID]*uint256.Int{actor: uint256.NewInt(200)},
		State:           lifecycle.Accumulating,
	}
	f := NewFactory()
	cmds := []command.Command[Model, *System]{
		addLiquidityCommand(f, 10, 0),
		clearLiquidityCommand(f, 0),
		cancelAccumulatingCommand(f),
	}
	for _, cmd := range cmds {
		require.True(t, cmd.Check(valid), cmd.String())
	}

	noActors := valid
	noActors.Actors = nil
	noBalance := valid
	noBalance.InitialBalances = map[uuid.UUID]*uint256.Int{}
	badState := valid
	badState.State = lifecycle.State(9)
	for _, m := range []Model{noActors, noBalance, badState} {
		require.Error(t, m.wellFormed())
		for _, cmd := range cmds {
			require.False(t, cmd.Check(m), cmd.String())
		}
	}
}

func TestDetectsFaults(t *testing.T) {
	tests := []struct {
		faults   reserve.Faults
		seq      sequence.Sequence
		failedAt int
		property string
	}{
		{reserve.Faults{LeakyRefunds: true}, sequence.Sequence{add(30, 0), withdraw(0)}, 1, "command body"},
		{reserve.Faults{StuckCancel: true}, sequence.Sequence{add(30, 0), cancel}, 1, "command body"},
		{reserve.Faults{UncappedDeposits: true}, sequence.Sequence{add(99, 0), add(2, 1)}, 1, TotalLiquidityMustNotExceedTarget},
	}
	for i, test := range tests {
		trial, _, _ := newTrial(t, test.faults)
		out, err := trial.Execute(context.Background(), test.seq)
		require.NoError(t, err)
		if out.Status != simulator.Failed {
			t.Errorf("Expected the fault to be detected in test %v", i)
			continue
		}
		if out.FailedAt != test.failedAt || out.Failure.Property() != test.property {
			t.Errorf("Received unexpected failure in test %v. Got %v at step %v. Expected %v at step %v", i, out.Failure.Property(), out.FailedAt, test.property, test.failedAt)
		}
	}
}

func TestRandomTrialsPassWithCorrectContract(t *testing.T) {
	cfg := DefaultConfig()
	fixture, err := NewFixture(cfg)
	require.NoError(t, err)
	pool, err := generator.NewPool(Generators(cfg)...)
	require.NoError(t, err)

	sim := simulator.NewSimulator[Model, *System](scheduler.NewRandom(2024, scheduler.UpTo(25)), shrink.NewDeltaDebugging(200, zerolog.Nop()), false, false, 40, 4, zerolog.Nop())
	report, err := sim.Simulate(context.Background(), pool, fixture.Setup, fixture.Teardown)
	require.NoError(t, err)
	ok, desc := report.Response()
	require.True(t, ok, desc)
	require.Equal(t, 40, report.Trials)
}

func TestRandomTrialsFindUncappedDeposits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Faults = reserve.Faults{UncappedDeposits: true}
	fixture, err := NewFixture(cfg)
	require.NoError(t, err)
	pool, err := generator.NewPool(Generators(cfg)...)
	require.NoError(t, err)

	sim := simulator.NewSimulator[Model, *System](scheduler.NewRandom(5, scheduler.UpTo(25)), shrink.NewDeltaDebugging(0, zerolog.Nop()), false, false, 50, 4, zerolog.Nop())
	report, err := sim.Simulate(context.Background(), pool, fixture.Setup, fixture.Teardown)
	require.NoError(t, err)
	require.False(t, report.Result)
	require.Equal(t, TotalLiquidityMustNotExceedTarget, report.Property)

	total := int64(0)
	for _, step := range report.Sequence {
		require.Equal(t, AddLiquidity, step.Generator, "unexpected step in %v", report.Sequence)
		total += step.Values[0]
	}
	require.Equal(t, int64(101), total, "unexpected shrunk sequence %v", report.Sequence)
}

// After every executed command the model holds the lifecycle state reported by the contract.
func TestModelConvergesWithContract(t *testing.T) {
	cfg := DefaultConfig()
	fixture, err := NewFixture(cfg)
	require.NoError(t, err)
	pool, err := generator.NewPool(Generators(cfg)...)
	require.NoError(t, err)
	rnd := scheduler.NewRandom(99, scheduler.UpTo(30))
	require.NoError(t, rnd.Reset(pool.Descriptors()))

	ctx := context.Background()
	for trial := 0; trial < 10; trial++ {
		seq, err := rnd.Generate(trial)
		require.NoError(t, err)

		m, sys, err := fixture.Setup(ctx)
		require.NoError(t, err)
		for _, step := range seq {
			cmd, err := pool.Build(step)
			require.NoError(t, err)
			if !cmd.Check(m) {
				continue
			}
			m, err = cmd.Run(ctx, m, sys)
			require.NoError(t, err)
			got, err := lifecycle.Query(ctx, sys.Client)
			require.NoError(t, err)
			require.Equal(t, got, m.State, "after %v in %v", cmd, seq)
		}
		require.NoError(t, fixture.Teardown(sys))
	}
}

func TestFactoryInvariantOrder(t *testing.T) {
	expected := []string{
		TotalLiquidityMustNotExceedTarget,
		TotalLiquidityMustEqualBalance,
		TotalLiquidityMustEqualSumOfContributions,
		TotalLiquidityMustTrailTargetWhileAccumulating,
	}
	require.Equal(t, expected, NewFactory().Invariants())
}

func TestSetupFailsWithCancelledContext(t *testing.T) {
	fixture, err := NewFixture(DefaultConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = fixture.Setup(ctx)
	require.Error(t, err)
}

func TestFixtureValidation(t *testing.T) {
	tests := []Config{
		{Target: 0, Actors: 1, Balance: 10},
		{Target: 10, Actors: 0, Balance: 10},
		{Target: 10, Actors: 1, Balance: 9},
	}
	for i, cfg := range tests {
		if _, err := NewFixture(cfg); err == nil {
			t.Errorf("Expected an error in test %v", i)
		}
	}
}
