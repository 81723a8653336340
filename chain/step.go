package chain

import (
	"fmt"
	"math"
)

// ForwardModel scores a chain's current Params against its Data, setting
// s.Prob (and s.Prior, if the model has one) as a side effect. Calc scores
// after a full joint proposal; CalcFor scores after a single-parameter
// proposal and is given the old value of that one parameter so incremental
// models can avoid recomputing everything from scratch.
//
// It lives here rather than in modelio because its methods operate on
// *State, and modelio must not import chain.
type ForwardModel interface {
	Calc(s *State, old []float64) error
	CalcFor(s *State, i int, old float64) error
}

// wrap maps x into [lo, hi) the way a circular parameter wraps at its
// bounds, mirroring the original's mod_double(new_value - min, max - min).
func wrap(x, lo, hi float64) float64 {
	span := hi - lo
	m := math.Mod(x-lo, span)
	if m < 0 {
		m += span
	}
	return lo + m
}

// proposeFor draws a new value for parameter i from Normal(Params[i],
// ParamsStep[i]), resampling on an out-of-bounds draw for non-circular
// parameters and wrapping for circular ones.
func (s *State) proposeFor(i int) float64 {
	old := s.Params[i]
	step := s.ParamsStep[i]
	min, max := s.ParamsMin[i], s.ParamsMax[i]

	next := old + s.Random.NextGauss(step)

	if next <= max && next >= min {
		return next
	}

	if s.Circular[i] {
		return wrap(next, min, max)
	}

	for next > max || next < min {
		next = old + s.Random.NextGauss(step)
	}
	return next
}

// checkAccept implements the Metropolis accept test in log space: a
// proposal that doesn't lower Prob is always accepted, otherwise it is
// accepted with probability exp(Prob - probOld).
func (s *State) checkAccept(probOld float64) bool {
	if s.Prob == probOld {
		return true
	}
	if s.Prob > probOld {
		return true
	}
	return s.Random.NextLogUniform() < (s.Prob - probOld)
}

func (s *State) trace(accepted bool) {
	if s.Out == nil {
		return
	}
	fmt.Fprintf(s.Out, "%d\t%v\t%f\t%f\n", s.NIter, accepted, s.Prob, s.Prior)
}

// StepFor proposes a new value for a single parameter, scores it via
// model.CalcFor, and accepts or reverts. This is the single-parameter move
// the calibrator uses while measuring one parameter's acceptance rate in
// isolation (the Go equivalent of markov_chain_step_for).
func (s *State) StepFor(i int, model ForwardModel) error {
	probOld := s.Prob
	oldValue := s.Params[i]

	s.Params[i] = s.proposeFor(i)

	if err := model.CalcFor(s, i, oldValue); err != nil {
		return err
	}

	accepted := s.checkAccept(probOld)
	if accepted {
		s.ParamsAccepts[i]++
	} else {
		s.Prob = probOld
		s.Params[i] = oldValue
		s.ParamsRejects[i]++
	}
	s.trace(accepted)
	return nil
}

// JointStep proposes a new value for every parameter at once, scores the
// whole vector via model.Calc, and accepts or reverts the entire vector
// together. This is the main sampling move (the Go equivalent of
// markov_chain_step), used once calibration is done.
func (s *State) JointStep(model ForwardModel) error {
	probOld := s.Prob
	old := make([]float64, s.NPar)
	copy(old, s.Params)

	for i := 0; i < s.NPar; i++ {
		s.Params[i] = s.proposeFor(i)
	}

	if err := model.Calc(s, old); err != nil {
		return err
	}

	accepted := s.checkAccept(probOld)
	if accepted {
		for i := range s.ParamsAccepts {
			s.ParamsAccepts[i]++
		}
	} else {
		s.Prob = probOld
		copy(s.Params, old)
		for i := range s.ParamsRejects {
			s.ParamsRejects[i]++
		}
	}
	s.NIter++
	s.trace(accepted)
	return nil
}
