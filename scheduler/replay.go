package scheduler

import (
	"fmt"
	"sync"

	"statecheck/generator"
	"statecheck/sequence"
)

// A scheduler that replays a single sequence.
//
// Used to reproduce a sequence exported from a CheckerResponse.
// Only one trial is run, regardless of the number of run schedulers.
type Replay struct {
	sync.Mutex

	run  sequence.Sequence
	done bool
}

func NewReplay(run sequence.Sequence) *Replay {
	return &Replay{
		run: run.Clone(),
	}
}

// Reset the scheduler so that the sequence can be replayed again.
//
// Returns an error if the sequence references a generator that is not provided, or values that are outside the range of its parameters.
func (r *Replay) Reset(descs []generator.Descriptor) error {
	byName := make(map[string]generator.Descriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}
	for i, step := range r.run {
		d, ok := byName[step.Generator]
		if !ok {
			return fmt.Errorf("scheduler: step %v: %w: %v", i, generator.ErrUnknownGenerator, step.Generator)
		}
		if err := d.Validate(step.Values); err != nil {
			return fmt.Errorf("scheduler: step %v: %w", i, err)
		}
	}
	r.Lock()
	defer r.Unlock()
	r.done = false
	return nil
}

func (r *Replay) GetRunScheduler() RunScheduler {
	return &runReplay{r: r}
}

func (r *Replay) Seed() int64 {
	return 0
}

// Claim the sequence. Only the first call returns the sequence.
func (r *Replay) claim() (sequence.Sequence, error) {
	r.Lock()
	defer r.Unlock()
	if r.done {
		return nil, NoRunsError
	}
	r.done = true
	return r.run.Clone(), nil
}

type runReplay struct {
	r *Replay
}

func (rr *runReplay) StartRun(trial int) (sequence.Sequence, error) {
	return rr.r.claim()
}

// Finish the current run and prepare for the next one
func (rr *runReplay) EndRun() {}
