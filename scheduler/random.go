package scheduler

import (
	"math/rand"
	"sync"

	"statecheck/generator"
	"statecheck/sequence"
)

// A scheduler that generates random sequences of commands.
//
// The commands are picked according to the weights of the generators, and their parameters are drawn uniformly.
// Generation does not consider the preconditions of the commands, as they depend on the model when the command is executed.
//
// The sequence of a trial is a function of the seed, the index of the trial and the generators.
// It does not depend on the number of concurrent trials, so a failing trial can be reproduced from the seed.
type Random struct {
	sync.Mutex

	seed  int64
	size  Size
	descs []generator.Descriptor
	total int
}

// Create a new Random scheduler
//
// The seed is combined with the index of each trial to create a trial-specific seed.
// size bounds the length of the generated sequences.
func NewRandom(seed int64, size Size) *Random {
	return &Random{
		seed: seed,
		size: size,
	}
}

// Reset the global state of the GlobalScheduler.
// Prepare the scheduler for the next simulation.
func (r *Random) Reset(descs []generator.Descriptor) error {
	if err := r.size.Validate(); err != nil {
		return err
	}
	total := 0
	for _, d := range descs {
		total += d.Weight
	}
	r.Lock()
	defer r.Unlock()
	r.descs = descs
	r.total = total
	return nil
}

// Create a RunScheduler that will communicate with the global scheduler
func (r *Random) GetRunScheduler() RunScheduler {
	return &randomRun{r: r}
}

func (r *Random) Seed() int64 {
	return r.seed
}

// Generate the sequence of the trial
func (r *Random) Generate(trial int) (sequence.Sequence, error) {
	r.Lock()
	descs, total := r.descs, r.total
	r.Unlock()
	if total == 0 {
		return nil, NotPreparedError
	}

	rng := rand.New(rand.NewSource(trialSeed(r.seed, trial)))
	length := r.size.Min
	if r.size.Max > r.size.Min {
		length += rng.Intn(r.size.Max - r.size.Min + 1)
	}
	seq := make(sequence.Sequence, length)
	for i := range seq {
		seq[i] = pick(rng, descs, total).Draw(rng)
	}
	return seq, nil
}

// Pick a descriptor with a probability proportional to its weight
func pick(rng *rand.Rand, descs []generator.Descriptor, total int) generator.Descriptor {
	n := rng.Intn(total)
	for _, d := range descs {
		if n < d.Weight {
			return d
		}
		n -= d.Weight
	}
	return descs[len(descs)-1]
}

// Mix the seed and the index of the trial into a new seed
func trialSeed(seed int64, trial int) int64 {
	z := uint64(seed) + uint64(trial+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}

// Generates the sequences of the trials run in a single goroutine
type randomRun struct {
	r *Random
}

func (rr *randomRun) StartRun(trial int) (sequence.Sequence, error) {
	return rr.r.Generate(trial)
}

func (rr *randomRun) EndRun() {}
