package shrink

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"pgregory.net/rapid"

	"statecheck/generator"
	"statecheck/sequence"
)

type mockSpace map[string][]generator.Param

func (ms mockSpace) Params(name string) ([]generator.Param, bool) {
	p, ok := ms[name]
	return p, ok
}

var space = mockSpace{
	"Add":   {generator.Int("amount", 0, 200), generator.Index("actor", 10)},
	"Clear": {generator.Index("actor", 10)},
	"Nop":   {},
}

// Fails when the total of Add amounts since the last Clear exceeds the target
func overflows(target int64) Predicate {
	return func(ctx context.Context, seq sequence.Sequence) (bool, error) {
		total := int64(0)
		for _, step := range seq {
			switch step.Generator {
			case "Add":
				total += step.Values[0]
				if total > target {
					return true, nil
				}
			case "Clear":
				total = 0
			}
		}
		return false, nil
	}
}

func TestShrinkOverflow(t *testing.T) {
	seq := sequence.Sequence{
		{Generator: "Nop"},
		{Generator: "Add", Values: []int64{10, 3}},
		{Generator: "Clear", Values: []int64{2}},
		{Generator: "Add", Values: []int64{60, 0}},
		{Generator: "Nop"},
		{Generator: "Add", Values: []int64{50, 1}},
	}
	dd := NewDeltaDebugging(0, zerolog.Nop())
	res, err := dd.Shrink(context.Background(), seq, space, overflows(100))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got: %v", err)
	}
	if len(res.Sequence) != 2 {
		t.Fatalf("Expected the sequence to be shrunk to two commands. Got %v", res.Sequence)
	}
	total := res.Sequence[0].Values[0] + res.Sequence[1].Values[0]
	if total != 101 {
		t.Errorf("Expected the amounts to be shrunk to the smallest overflow. Got %v", res.Sequence)
	}
	for _, step := range res.Sequence {
		if step.Values[1] != 0 {
			t.Errorf("Expected the actor to be shrunk to 0. Got %v", res.Sequence)
		}
	}
	if res.Exhausted {
		t.Errorf("Did not expect the search to be exhausted")
	}
	if !(res.Accepted > 0 && res.Attempts >= res.Accepted) {
		t.Errorf("Unexpected attempt counts: %+v", res)
	}
}

func TestShrinkAlreadyMinimal(t *testing.T) {
	seq := sequence.Sequence{
		{Generator: "Add", Values: []int64{51, 0}},
		{Generator: "Add", Values: []int64{50, 0}},
	}
	res, err := NewDeltaDebugging(0, zerolog.Nop()).Shrink(context.Background(), seq, space, overflows(100))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got: %v", err)
	}
	if diff := cmp.Diff(seq, res.Sequence); diff != "" {
		t.Errorf("Expected a minimal sequence to be left unchanged (-want +got):\n%v", diff)
	}
	if res.Accepted != 0 {
		t.Errorf("Did not expect any candidate to be accepted. Got %v", res.Accepted)
	}
}

func TestShrinkMinimality(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		target := rapid.Int64Range(0, 300).Draw(t, "target")
		steps := rapid.SliceOfN(stepGen(), 1, 30).Draw(t, "steps")
		seq := sequence.Sequence(steps)
		pred := overflows(target)
		if ok, _ := pred(context.Background(), seq); !ok {
			t.Skip("sequence does not fail")
		}

		res, err := NewDeltaDebugging(0, zerolog.Nop()).Shrink(context.Background(), seq, space, pred)
		if err != nil {
			t.Fatalf("Did not expect to receive an error. Got: %v", err)
		}
		if ok, _ := pred(context.Background(), res.Sequence); !ok {
			t.Fatalf("Shrunk sequence %v does not reproduce the failure", res.Sequence)
		}
		if len(res.Sequence) > len(seq) {
			t.Fatalf("Shrunk sequence is longer than the original")
		}
		for i := range res.Sequence {
			if ok, _ := pred(context.Background(), res.Sequence.Without(i, 1)); ok {
				t.Fatalf("Removing step %v of %v still reproduces the failure", i, res.Sequence)
			}
		}
		// The predicate is monotone in the amounts, so no amount can be decreased further
		for i, step := range res.Sequence {
			if step.Generator != "Add" || step.Values[0] == 0 {
				continue
			}
			smaller := step.Clone()
			smaller.Values[0]--
			if ok, _ := pred(context.Background(), res.Sequence.With(i, smaller)); ok {
				t.Fatalf("Amount of step %v of %v can be decreased", i, res.Sequence)
			}
		}
	})
}

func stepGen() *rapid.Generator[sequence.Step] {
	return rapid.Custom(func(t *rapid.T) sequence.Step {
		switch rapid.IntRange(0, 4).Draw(t, "kind") {
		case 0:
			return sequence.Step{Generator: "Nop"}
		case 1:
			return sequence.Step{Generator: "Clear", Values: []int64{rapid.Int64Range(0, 9).Draw(t, "actor")}}
		default:
			return sequence.Step{Generator: "Add", Values: []int64{
				rapid.Int64Range(0, 200).Draw(t, "amount"),
				rapid.Int64Range(0, 9).Draw(t, "actor"),
			}}
		}
	})
}

func TestShrinkBudget(t *testing.T) {
	seq := sequence.Sequence{}
	for i := 0; i < 20; i++ {
		seq = append(seq, sequence.Step{Generator: "Add", Values: []int64{20, 5}})
	}
	res, err := NewDeltaDebugging(3, zerolog.Nop()).Shrink(context.Background(), seq, space, overflows(100))
	if err != nil {
		t.Fatalf("Did not expect to receive an error. Got: %v", err)
	}
	if !res.Exhausted || res.Attempts != 3 {
		t.Errorf("Expected the search to stop after 3 attempts. Got %+v", res)
	}
	if ok, _ := overflows(100)(context.Background(), res.Sequence); !ok {
		t.Errorf("Expected the partially shrunk sequence to reproduce the failure. Got %v", res.Sequence)
	}
}

func TestShrinkPredicateError(t *testing.T) {
	predErr := errors.New("setup failed")
	seq := sequence.Sequence{{Generator: "Add", Values: []int64{200, 1}}, {Generator: "Nop"}}
	res, err := NewDeltaDebugging(0, zerolog.Nop()).Shrink(context.Background(), seq, space, func(ctx context.Context, s sequence.Sequence) (bool, error) {
		return false, predErr
	})
	if !errors.Is(err, predErr) {
		t.Errorf("Expected the predicate error to be returned. Got: %v", err)
	}
	if !res.Sequence.Equal(seq) {
		t.Errorf("Expected the best sequence so far to be returned. Got %v", res.Sequence)
	}
}

func TestShrinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seq := sequence.Sequence{{Generator: "Add", Values: []int64{200, 1}}, {Generator: "Nop"}}
	_, err := NewDeltaDebugging(0, zerolog.Nop()).Shrink(ctx, seq, space, overflows(100))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled. Got: %v", err)
	}
}

func TestNone(t *testing.T) {
	seq := sequence.Sequence{{Generator: "Nop"}, {Generator: "Add", Values: []int64{200, 1}}}
	res, err := None{}.Shrink(context.Background(), seq, space, overflows(100))
	if err != nil || !res.Sequence.Equal(seq) || res.Attempts != 0 {
		t.Errorf("Expected None to return the sequence unchanged. Got %+v, %v", res, err)
	}
}
