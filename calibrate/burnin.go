package calibrate

import (
	"github.com/CraigKelly/tempermc/chain"
	"github.com/CraigKelly/tempermc/mcrand"
)

// restartFromBest resets Params to the best point found so far and forces
// Prob down so the next step is compared against a pessimistic baseline -
// the Go equivalent of restart_from_best.
func restartFromBest(s *chain.State) {
	copy(s.Params, s.ParamsBest)
	s.Prob = -1e7
}

// burnIn runs two passes of coarse joint steps to walk the chain toward its
// typical set before calibration measures acceptance rates on it. It
// mirrors burn_in's odd iteration accounting exactly: each outer iteration
// runs 200 inner steps and then advances the outer counter by the inner
// subiter count as well, so a "burnInIterations" budget actually finishes in
// roughly 1/201st as many outer passes as a naive reading suggests. This is
// carried over unchanged rather than "fixed", since changing it changes how
// much burn-in actually happens for a given iteration budget.
func burnIn(s *chain.State, model chain.ForwardModel, burnInIterations uint) error {
	originalStep := mcrand.VecClone(s.ParamsStep)

	s.ParamsStep = mcrand.VecClone(s.ParamsMax)
	mcrand.VecSub(s.ParamsStep, s.ParamsMin)
	mcrand.VecScale(0.1, s.ParamsStep)

	var iter uint
	for iter = 0; iter < burnInIterations/2; {
		var subiter uint
		for subiter = 0; subiter < 200; subiter++ {
			if err := s.JointStep(model); err != nil {
				return err
			}
		}
		iter++
		iter += subiter
		s.CheckBest()
	}

	restartFromBest(s)
	mcrand.VecScale(0.5, s.ParamsStep)

	for ; iter < burnInIterations; {
		var subiter uint
		for subiter = 0; subiter < 200; subiter++ {
			if err := s.JointStep(model); err != nil {
				return err
			}
		}
		iter++
		iter += subiter
		s.CheckBest()
	}

	copy(s.ParamsStep, originalStep)
	return nil
}
