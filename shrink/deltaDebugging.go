package shrink

import (
	"context"

	"github.com/rs/zerolog"

	"statecheck/sequence"
)

// A delta debugging shrink strategy.
//
// Alternates between two phases until neither of them makes progress:
//   - removing steps, starting with chunks of half the sequence and halving the chunk size down to single steps,
//   - shrinking parameter values toward the minimum of their range, first trying the minimum and then bisecting.
//
// A candidate replaces the current sequence only if it reproduces the failure.
// When the search ends without exhausting its budget, removing any single step of the result no longer reproduces the failure.
type DeltaDebugging struct {
	maxAttempts int
	log         zerolog.Logger
}

// Create a new DeltaDebugging strategy.
//
// maxAttempts bounds the number of candidates that are tried. A non-positive value means no bound.
func NewDeltaDebugging(maxAttempts int, log zerolog.Logger) *DeltaDebugging {
	return &DeltaDebugging{
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (dd *DeltaDebugging) Shrink(ctx context.Context, seq sequence.Sequence, space Space, reproduces Predicate) (Result, error) {
	s := &search{
		ctx:         ctx,
		space:       space,
		reproduces:  reproduces,
		maxAttempts: dd.maxAttempts,
		current:     seq.Clone(),
	}

	for round := 0; ; round++ {
		removed, err := s.removeSteps()
		if err != nil {
			return s.result(), err
		}
		shrunk, err := s.shrinkValues()
		if err != nil {
			return s.result(), err
		}
		dd.log.Debug().
			Int("round", round).
			Int("length", len(s.current)).
			Int("attempts", s.attempts).
			Msg("shrink round completed")
		if !removed && !shrunk || s.exhausted {
			break
		}
	}
	return s.result(), nil
}

// The state of a single shrink search
type search struct {
	ctx         context.Context
	space       Space
	reproduces  Predicate
	maxAttempts int

	current   sequence.Sequence
	attempts  int
	accepted  int
	exhausted bool
}

func (s *search) result() Result {
	return Result{
		Sequence:  s.current.Clone(),
		Attempts:  s.attempts,
		Accepted:  s.accepted,
		Exhausted: s.exhausted,
	}
}

// Try the candidate. If it reproduces the failure it becomes the current sequence.
func (s *search) try(candidate sequence.Sequence) (bool, error) {
	if err := s.ctx.Err(); err != nil {
		return false, err
	}
	if s.maxAttempts > 0 && s.attempts >= s.maxAttempts {
		s.exhausted = true
		return false, nil
	}
	s.attempts++
	ok, err := s.reproduces(s.ctx, candidate)
	if err != nil {
		return false, err
	}
	if ok {
		s.accepted++
		s.current = candidate
	}
	return ok, nil
}

// Remove chunks of steps from the current sequence.
// Returns true if at least one step was removed.
func (s *search) removeSteps() (bool, error) {
	progress := false
	for chunk := len(s.current) / 2; ; chunk /= 2 {
		if chunk < 1 {
			chunk = 1
		}
		for i := 0; i < len(s.current) && !s.exhausted; {
			ok, err := s.try(s.current.Without(i, chunk))
			if err != nil {
				return progress, err
			}
			if ok {
				// Retry at the same position, which now holds the steps following the removed chunk
				progress = true
				continue
			}
			i += chunk
		}
		if chunk == 1 || s.exhausted {
			return progress, nil
		}
	}
}

// Shrink the parameter values of the current sequence toward the minimum of their range.
// Returns true if at least one value was changed.
func (s *search) shrinkValues() (bool, error) {
	progress := false
	for i := 0; i < len(s.current); i++ {
		params, ok := s.space.Params(s.current[i].Generator)
		if !ok {
			continue
		}
		for j := 0; j < len(s.current[i].Values) && j < len(params); j++ {
			changed, err := s.shrinkValue(i, j, params[j].Min)
			if err != nil {
				return progress, err
			}
			progress = progress || changed
			if s.exhausted {
				return progress, nil
			}
		}
	}
	return progress, nil
}

// Shrink the value j of step i toward min.
//
// Tries min first. Otherwise bisects between min, which does not reproduce the failure, and the current value, which does.
func (s *search) shrinkValue(i, j int, min int64) (bool, error) {
	withValue := func(v int64) sequence.Sequence {
		step := s.current[i].Clone()
		step.Values[j] = v
		return s.current.With(i, step)
	}

	hi := s.current[i].Values[j]
	if hi <= min {
		return false, nil
	}
	ok, err := s.try(withValue(min))
	if err != nil || ok {
		return ok, err
	}

	lo := min
	changed := false
	for hi-lo > 1 && !s.exhausted {
		mid := lo + (hi-lo)/2
		ok, err := s.try(withValue(mid))
		if err != nil {
			return changed, err
		}
		if ok {
			hi = mid
			changed = true
		} else {
			lo = mid
		}
	}
	return changed, nil
}
