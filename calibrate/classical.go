package calibrate

import (
	"math"

	"github.com/CraigKelly/tempermc/chain"
	"github.com/CraigKelly/tempermc/mcrand"
)

// calibrateClassical repeatedly takes a batch of per-parameter steps, then
// rescales any parameter whose measured acceptance rate strayed outside a
// +/-0.05 band around ratLimit. It periodically restarts from the best
// point found and re-checks the chain's global acceptance rate against
// targetAcceptanceRate, nudging ratLimit itself until both have settled.
// Grounded on markov_chain_calibrate_orig.
func calibrateClassical(s *chain.State, model chain.ForwardModel, cfg Config) error {
	ratLimit := desiredAcceptFor(s, cfg)

	if err := burnIn(s, model, cfg.BurnInIterations); err != nil {
		return err
	}
	mcrand.VecScale(cfg.AdjustStep, s.ParamsStep)
	s.ResetCounters()

	nchecksWithoutRescaling := 0
	var iter uint

	for {
		for i := 0; i < s.NPar; i++ {
			if err := s.StepFor(i, model); err != nil {
				return err
			}
			s.CheckBest()
		}
		iter++

		if iter%iterReadjust != 0 {
			continue
		}

		rescaled := 0
		acceptRate := s.AcceptRates()
		logger := loggerFor(cfg)
		for i := 0; i < s.NPar; i++ {
			span := s.ParamsMax[i] - s.ParamsMin[i]

			if acceptRate[i] > ratLimit+0.05 {
				// Mul divides the step here and multiplies it in the too-low
				// branch below, so a Mul below 1 widens a step whose acceptance
				// is too high and narrows one whose acceptance is too low; a
				// Mul above 1 does the reverse.
				s.ParamsStep[i] /= cfg.Mul
				if rescaled == 0 {
					rescaled = -1
				}
				normalized := s.ParamsStep[i] / span
				if normalized > 10000 {
					return &FailureError{Reason: "step width of " + s.Descr[i] + " became too large"}
				}
				if normalized > 1 {
					s.ParamsStep[i] = span
					logger.Printf("warning: step width of %s exceeds its range; clamping and treating as an independent parameter", s.Descr[i])
					if rescaled == -1 {
						rescaled = 0
					}
				}
				if rescaled == -1 {
					rescaled = 1
				}
			}
			if acceptRate[i] < ratLimit-0.05 {
				s.ParamsStep[i] *= cfg.Mul
				rescaled = 1
			}

			if s.ParamsStep[i]/span < 1e-10 {
				logger.Printf("warning: step width of %s has fallen below 1e-10 of its range", s.Descr[i])
			}
		}

		if rescaled == 0 {
			nchecksWithoutRescaling++
		}

		restartFromBest(s)
		s.ResetCounters()
		for subiter := uint(0); subiter < iterReadjust; subiter++ {
			if err := s.JointStep(model); err != nil {
				return err
			}
			s.CheckBest()
		}

		delta := s.GlobalAcceptRate() - targetAcceptanceRate
		reachedPerfection := math.Abs(delta) < 0.01
		if !reachedPerfection {
			if delta < 0 {
				ratLimit /= 0.99
			} else {
				ratLimit *= 0.99
			}
		}

		if nchecksWithoutRescaling >= noRescalingLimit && reachedPerfection && rescaled == 0 {
			break
		}
		if iter > cfg.IterLimit {
			return &FailureError{Reason: "limit of iterations reached during classical calibration"}
		}
	}

	s.ResetCounters()
	return nil
}
