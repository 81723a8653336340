package calibrate

import (
	"math"

	"github.com/CraigKelly/tempermc/chain"
)

// Constants carried over from the original implementation's compile-time
// defaults for the accuracy-driven strategy (ACCURACY_DEVIATION_FACTOR,
// MAX_ACCURACY_IMPROVEMENT, SCALE_LIN_WORST, SCALE_MIN).
const (
	accuracyDeviationFactor = 0.25
	maxAccuracyImprovement  = 2.8
	scaleLinWorst           = 5.0
	scaleMin                = 0.4
)

// assessAcceptanceRate runs successively larger batches of per-parameter
// steps on parameter i until the measured acceptance rate's running
// deviation from its own fitted value falls within requiredAccuracy, then
// returns the rate, the achieved accuracy, and the size of the final batch
// (the steps of earlier, discarded batches are not included in that count).
// Grounded on assess_acceptance_rate in the original source.
func assessAcceptanceRate(s *chain.State, model chain.ForwardModel, i int, desired, minAccuracy float64) (rate, accuracy float64, iters uint, err error) {
	n := uint(40)

	s.ParamsAccepts[i] = 0
	s.ParamsRejects[i] = 0

	for {
		accepted := make([]bool, n)
		for j := uint(0); j < n; j++ {
			before := s.ParamsAccepts[i]
			if err = s.StepFor(i, model); err != nil {
				return 0, 0, 0, err
			}
			s.CheckBest()
			accepted[j] = s.ParamsAccepts[i] != before
		}

		var accepts uint
		for _, a := range accepted {
			if a {
				accepts++
			}
		}
		rate = float64(accepts) / float64(n)

		// maxdev is the largest deviation of the running accept count from
		// the line accept_rate*j, as in the original's stdev/maxdev scan.
		var running uint
		maxdev := 1.0
		for j := uint(0); j < n; j++ {
			if accepted[j] {
				running++
			}
			dev := math.Abs(float64(running) - rate*float64(j))
			if dev > maxdev {
				maxdev = dev
			}
		}

		required := math.Abs(rate-desired) * accuracyDeviationFactor
		if required < 0.005 {
			required = 0.005
		}
		if required < minAccuracy {
			required = minAccuracy
		}

		accuracy = maxdev / float64(n)
		if accuracy <= required {
			return rate, accuracy, n, nil
		}

		n = (uint(maxdev/required)/8 + 1) * 8
	}
}

// calibrateAccuracyDriven tunes step widths by repeatedly measuring each
// parameter's acceptance rate to a confidence band that tightens as the
// worst-performing parameter's estimate improves, then nudges that
// parameter's step width proportionally to how far its measured rate is
// from desired. Grounded on markov_chain_calibrate_alt.
func calibrateAccuracyDriven(s *chain.State, model chain.ForwardModel, cfg Config) error {
	desired := desiredAcceptFor(s, cfg)

	if err := burnIn(s, model, cfg.BurnInIterations); err != nil {
		return err
	}

	accuracies := make([]float64, s.NPar)
	worstAccuracyPrevious := 0.0
	bestWorstAccuracy := 1.0
	var iter uint

	for {
		maxDeviation := 0.0
		worstAccuracy := 0.0

		for i := 0; i < s.NPar; i++ {
			if accuracies[i] < 0.1*worstAccuracyPrevious {
				continue
			}

			rate, accuracy, n, err := assessAcceptanceRate(
				s, model, i, desired,
				worstAccuracyPrevious/maxAccuracyImprovement,
			)
			if err != nil {
				return err
			}
			iter += n
			accuracies[i] = accuracy
			worstAccuracy += accuracy

			moveDirection := rate - desired
			scale := bestWorstAccuracy*scaleLinWorst + scaleMin
			move := moveDirection * scale
			if move < -1 {
				move = -0.9
			}
			if math.Abs(moveDirection) > maxDeviation {
				maxDeviation = math.Abs(moveDirection)
			}

			s.ParamsStep[i] *= 1 + move
			clampToStepwidthBounds(s, i, cfg)
		}

		if iter > cfg.IterLimit*uint(s.NPar) {
			return &FailureError{Reason: "iteration limit reached during accuracy-driven calibration"}
		}

		worstAccuracyPrevious = worstAccuracy / float64(s.NPar)
		if worstAccuracyPrevious < bestWorstAccuracy {
			bestWorstAccuracy = worstAccuracy
		}

		if maxDeviation < 0.01 && worstAccuracy < 0.02 {
			break
		}
	}

	s.ResetCounters()
	return nil
}

// clampToStepwidthBounds enforces the MINIMAL_STEPWIDTH/MAXIMAL_STEPWIDTH
// bound on a normalized step width (step/range) after the accuracy-driven
// move, the testable invariant of spec §8 ("after adaptive clamping,
// MINIMAL_STEPWIDTH*range <= step <= MAXIMAL_STEPWIDTH*range"). The
// classical strategy enforces its own, differently-shaped guard (warn+clamp
// at 1x range, fail at 1e4x) instead; this one is specific to the
// accuracy-driven strategy.
func clampToStepwidthBounds(s *chain.State, i int, cfg Config) {
	span := s.ParamsMax[i] - s.ParamsMin[i]
	if span <= 0 {
		return
	}
	min := minimalStepwidthFor(cfg) * span
	max := maximalStepwidthFor(cfg) * span
	if s.ParamsStep[i] < min {
		s.ParamsStep[i] = min
	} else if s.ParamsStep[i] > max {
		s.ParamsStep[i] = max
	}
}
