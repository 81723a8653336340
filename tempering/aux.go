// Package tempering drives an ensemble of chain.State values at decreasing
// inverse temperatures (beta), stepping them in parallel and occasionally
// swapping state between adjacent chains via a Metropolis criterion. This is
// the Go port of parallel_tempering.c/.h.
package tempering

import "github.com/CraigKelly/tempermc/chain"

// Aux is the per-chain data the driver attaches to a chain.State's Aux slot:
// its inverse temperature and a running count of swaps it has taken part in.
// It replaces the original's opaque additional_data pointer
// (parallel_tempering_mcmc) with a concrete, typed struct, per the "opaque
// additional_data slot" design note.
type Aux struct {
	Beta      float64
	SwapCount int64
}

// BetaOf returns the tempering beta attached to s, or 1 (the untempered
// posterior) if s carries no Aux - e.g. a bare single chain run outside a
// Driver. A ForwardModel implementation calls this to scale its
// log-likelihood before writing s.Prob (see chain.ForwardModel).
func BetaOf(s *chain.State) float64 {
	if a, ok := s.Aux.(*Aux); ok {
		return a.Beta
	}
	return 1
}

// Unit installs an Aux with Beta=1 on s. Used by callers running a single
// untempered chain through a ForwardModel that reads BetaOf, without going
// through a Driver.
func Unit(s *chain.State) {
	s.Aux = &Aux{Beta: 1}
}

// SwapCountOf returns the number of successful swaps s has taken part in, or
// 0 if s carries no Aux.
func SwapCountOf(s *chain.State) int64 {
	if a, ok := s.Aux.(*Aux); ok {
		return a.SwapCount
	}
	return 0
}
