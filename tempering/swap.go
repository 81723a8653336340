package tempering

import "github.com/CraigKelly/tempermc/chain"

// swap implements the driver's per-iteration swap protocol: with small
// probability, kick a random chain back to its own best point; with larger
// (but still small) probability, attempt an adjacent-chain Metropolis swap;
// otherwise do nothing. All random draws come from chain 0's generator, the
// Go equivalent of the original always calling get_next_urandom(sinmod[0]).
// Grounded on parallel_tempering_swap.
func (d *Driver) swap() error {
	n := len(d.States)
	if n == 1 {
		return nil
	}

	gen := d.States[0].Random

	kickProbability := d.Config.KickProbability
	if kickProbability <= 0 {
		kickProbability = 1.0 / 10000
	}
	nSwap := d.Config.NSwap
	if nSwap <= 0 {
		nSwap = 30
	}

	u := gen.NextUniform()

	switch {
	case u < kickProbability:
		a := int(gen.Int63n(int64(n)))
		s := d.States[a]
		copy(s.Params, s.ParamsBest)
		s.Prob = s.ProbBest
	case u < 1.0/float64(nSwap):
		a := int(gen.Int63n(int64(n)))
		b := (a + 1) % n
		sa, sb := d.States[a], d.States[b]

		betaA, betaB := BetaOf(sa), BetaOf(sb)
		r := swapLogRatio(betaA, sa.Prob, betaB, sb.Prob)
		c := gen.NextLogUniform()

		if r > c {
			// Only Params, ParamsBest and ProbBest change hands - not Prob
			// and not beta - exactly as the original's
			// parallel_tempering_swap leaves get_prob() untouched across the
			// swap. This is preserved as-is: spec.md §4.5 states the same
			// three fields explicitly.
			sa.Params, sb.Params = sb.Params, sa.Params
			sa.ParamsBest, sb.ParamsBest = sb.ParamsBest, sa.ParamsBest
			sa.ProbBest, sb.ProbBest = sb.ProbBest, sa.ProbBest

			incSwapCount(sa)
			incSwapCount(sb)
		}
	}

	return nil
}

// swapLogRatio computes the log-space Metropolis ratio for proposing to swap
// the Params of a chain at (betaA, probA) with one at (betaB, probB). It is
// symmetric under exchanging the two chains' labels - swapLogRatio(bA, pA,
// bB, pB) == swapLogRatio(bB, pB, bA, pA) - since a swap proposal is its own
// reverse move.
func swapLogRatio(betaA, probA, betaB, probB float64) float64 {
	return betaA*probB/betaB + betaB*probA/betaA - (probA + probB)
}

func incSwapCount(s *chain.State) {
	if a, ok := s.Aux.(*Aux); ok {
		a.SwapCount++
	}
}
