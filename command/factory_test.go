package command

import (
	"context"
	"errors"
	"testing"

	"statecheck/checking"

	"golang.org/x/exp/slices"
)

type model struct {
	val    int
	paused bool
}

type system struct {
	val   int
	calls []string
}

var errBody = errors.New("body failed")

func newFactory(invariants ...checking.Invariant[*system]) *Factory[model, *system] {
	return NewFactory[model, *system](
		WithGlobalCheck(func(m model) bool { return !m.paused }),
		WithInvariants(invariants...),
		WithResync(func(ctx context.Context, m model, r *system) (model, error) {
			r.calls = append(r.calls, "resync")
			m.val = r.val
			return m, nil
		}),
	)
}

func recordingInvariant(name string, fail bool) checking.Invariant[*system] {
	return checking.NewInvariant(name, func(ctx context.Context, r *system) error {
		r.calls = append(r.calls, name)
		if fail {
			return checking.ErrMismatch
		}
		return nil
	})
}

func add(f *Factory[model, *system], n int, local func(model) bool) Command[model, *system] {
	return f.Create(Spec[model, *system]{
		Label: "add",
		Check: local,
		Run: func(ctx context.Context, m model, r *system) (model, error) {
			r.calls = append(r.calls, "body")
			if n < 0 {
				return m, errBody
			}
			r.val += n
			m.val += n
			return m, nil
		},
	})
}

func TestPrecondition(t *testing.T) {
	f := newFactory()
	for i, test := range preconditionTest {
		cmd := add(f, 1, test.local)
		if cmd.Check(test.m) != test.expected {
			t.Errorf("Unexpected precondition result in test %v. Expected %v", i, test.expected)
		}
	}
}

var preconditionTest = []struct {
	m        model
	local    func(model) bool
	expected bool
}{
	{model{}, nil, true},
	{model{paused: true}, nil, false},
	{model{val: 1}, func(m model) bool { return m.val > 0 }, true},
	{model{val: 0}, func(m model) bool { return m.val > 0 }, false},
	{model{val: 1, paused: true}, func(m model) bool { return m.val > 0 }, false},
}

func TestExecutionOrder(t *testing.T) {
	f := newFactory(recordingInvariant("first", false), recordingInvariant("second", false))
	r := &system{}
	m := model{}
	next, err := add(f, 3, nil).Run(context.Background(), m, r)
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got: %v", err)
	}
	expected := []string{"body", "first", "second", "resync"}
	if !slices.Equal(r.calls, expected) {
		t.Errorf("Unexpected execution order. Got %v, expected %v", r.calls, expected)
	}
	if next.val != 3 {
		t.Errorf("Expected the returned model to be updated. Got %v", next)
	}
	if m.val != 0 {
		t.Errorf("Expected the provided model to be left unchanged. Got %v", m)
	}
}

func TestInvariantFailure(t *testing.T) {
	f := newFactory(recordingInvariant("first", false), recordingInvariant("second", true), recordingInvariant("third", false))
	r := &system{}
	_, err := add(f, 1, nil).Run(context.Background(), model{}, r)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected a Failure. Got: %v", err)
	}
	if failure.Phase != PhaseInvariant || failure.Invariant != "second" || failure.Property() != "second" {
		t.Errorf("Unexpected failure: %+v", failure)
	}
	if !errors.Is(err, checking.ErrMismatch) {
		t.Errorf("Expected the failure to wrap the invariant error. Got: %v", err)
	}
	expected := []string{"body", "first", "second"}
	if !slices.Equal(r.calls, expected) {
		t.Errorf("Expected execution to stop at the violated invariant. Got %v", r.calls)
	}
}

func TestBodyFailure(t *testing.T) {
	f := newFactory(recordingInvariant("first", false))
	r := &system{}
	m := model{val: 7}
	out, err := add(f, -1, nil).Run(context.Background(), m, r)

	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected a Failure. Got: %v", err)
	}
	if failure.Phase != PhaseBody || failure.Property() != checking.PropertyBody || failure.Command != "add" {
		t.Errorf("Unexpected failure: %+v", failure)
	}
	if !errors.Is(err, errBody) {
		t.Errorf("Expected the failure to wrap the body error. Got: %v", err)
	}
	if out != m {
		t.Errorf("Expected the model to be returned unchanged. Got %v", out)
	}
	if !slices.Equal(r.calls, []string{"body"}) {
		t.Errorf("Did not expect invariants or resync to run. Got %v", r.calls)
	}
}

func TestResyncFailure(t *testing.T) {
	resyncErr := errors.New("unreachable")
	f := NewFactory[model, *system](
		WithResync(func(ctx context.Context, m model, r *system) (model, error) {
			return m, resyncErr
		}),
	)
	_, err := add(f, 1, nil).Run(context.Background(), model{}, &system{})
	var failure *Failure
	if !errors.As(err, &failure) {
		t.Fatalf("Expected a Failure. Got: %v", err)
	}
	if failure.Phase != PhaseResync || failure.Property() != checking.PropertyResync {
		t.Errorf("Unexpected failure: %+v", failure)
	}
	if !errors.Is(err, resyncErr) {
		t.Errorf("Expected the failure to wrap the resync error. Got: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	f := NewFactory[model, *system]()
	cmd := add(f, 2, nil)
	if !cmd.Check(model{paused: true}) {
		t.Errorf("Expected the default global check to always hold")
	}
	r := &system{}
	out, err := cmd.Run(context.Background(), model{}, r)
	if err != nil {
		t.Errorf("Did not expect to receive an error. Got: %v", err)
	}
	if out.val != 2 {
		t.Errorf("Expected the default resync to keep the model returned by the body. Got %v", out)
	}
	if len(f.Invariants()) != 0 {
		t.Errorf("Expected no invariants. Got %v", f.Invariants())
	}
	if cmd.String() != "add" {
		t.Errorf("Unexpected label %v", cmd.String())
	}
}
