// Package chain holds the state of a single Metropolis-Hastings chain: its
// current parameter vector, bounds, step widths, accept/reject bookkeeping
// and the best point seen so far. It also defines the ForwardModel interface
// a caller implements to score a parameter vector against data.
package chain

import (
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/CraigKelly/tempermc/mcrand"
	"github.com/CraigKelly/tempermc/modelio"
	"github.com/pkg/errors"
)

// State is the full state of one MCMC chain: current position, bounds,
// per-parameter step widths, the best point seen, and accept/reject counts.
type State struct {
	NPar int

	Params     []float64
	ParamsMin  []float64
	ParamsMax  []float64
	ParamsStep []float64

	ParamsBest []float64
	ProbBest   float64

	Prob  float64
	Prior float64

	ParamsAccepts []int64
	ParamsRejects []int64
	NIter         int64

	Data   *modelio.DataSet
	Random *mcrand.Generator

	Descr    []string
	Circular []bool

	// Aux is an opaque per-chain slot. The tempering driver stores a
	// *tempering.Aux here; a bare chain leaves it nil.
	Aux interface{}

	// Out receives one flushed sample line per accepted/rejected step, or
	// is ioutil.Discard if no trace is wanted.
	Out io.Writer
}

// New allocates a State for nPar free parameters. All slices are zeroed;
// callers normally follow with Load or by setting bounds/init directly.
func New(nPar int) (*State, error) {
	if nPar < 1 {
		return nil, errors.Errorf("chain.New requires nPar >= 1, got %d", nPar)
	}

	return &State{
		NPar:          nPar,
		Params:        make([]float64, nPar),
		ParamsMin:     make([]float64, nPar),
		ParamsMax:     make([]float64, nPar),
		ParamsStep:    make([]float64, nPar),
		ParamsBest:    make([]float64, nPar),
		ProbBest:      -1e10,
		Prob:          -1e10,
		ParamsAccepts: make([]int64, nPar),
		ParamsRejects: make([]int64, nPar),
		Descr:         make([]string, nPar),
		Circular:      make([]bool, nPar),
		Out:           ioutil.Discard,
	}, nil
}

// Load builds a State from a priors file and a data file, using gen as its
// random source. The caller still has to run the model once to get an
// initial Prob/Prior before taking any steps.
func Load(paramsFile, dataFile string, gen *mcrand.Generator) (*State, error) {
	priors, err := modelio.ReadPriorsFile(paramsFile)
	if err != nil {
		return nil, errors.Wrap(err, "Could not load priors for chain")
	}

	data, err := modelio.ReadDataFile(dataFile)
	if err != nil {
		return nil, errors.Wrap(err, "Could not load data for chain")
	}

	s, err := New(priors.NPar())
	if err != nil {
		return nil, err
	}

	copy(s.Params, priors.Init)
	copy(s.ParamsMin, priors.Min)
	copy(s.ParamsMax, priors.Max)
	copy(s.ParamsStep, priors.Step)
	copy(s.Descr, priors.Descr)
	copy(s.Circular, priors.Circular)
	copy(s.ParamsBest, priors.Init)

	s.Data = data
	s.Random = gen

	return s, nil
}

// Clone returns a deep copy suitable for a sibling chain (e.g. one rung of a
// tempering ensemble) that shares the same priors/data shape but needs its
// own mutable Params/accept-reject state. Random and Aux are NOT copied -
// the caller assigns a fresh Generator and Aux.
func (s *State) Clone() *State {
	c := &State{
		NPar:          s.NPar,
		Params:        mcrand.VecClone(s.Params),
		ParamsMin:     mcrand.VecClone(s.ParamsMin),
		ParamsMax:     mcrand.VecClone(s.ParamsMax),
		ParamsStep:    mcrand.VecClone(s.ParamsStep),
		ParamsBest:    mcrand.VecClone(s.ParamsBest),
		ProbBest:      s.ProbBest,
		Prob:          s.Prob,
		Prior:         s.Prior,
		ParamsAccepts: make([]int64, s.NPar),
		ParamsRejects: make([]int64, s.NPar),
		Data:          s.Data,
		Descr:         append([]string(nil), s.Descr...),
		Circular:      append([]bool(nil), s.Circular...),
		Out:           ioutil.Discard,
	}
	copy(c.ParamsAccepts, s.ParamsAccepts)
	copy(c.ParamsRejects, s.ParamsRejects)
	return c
}

// ResetCounters zeroes the accept/reject counts. Used before calibration
// phases that need a clean acceptance-rate measurement window.
func (s *State) ResetCounters() {
	for i := range s.ParamsAccepts {
		s.ParamsAccepts[i] = 0
		s.ParamsRejects[i] = 0
	}
}

// Check is a debug-only invariant check, the Go equivalent of mcmc_check's
// assert() chain: it panics rather than returning an error, since a failure
// here means a programmer error, not a recoverable runtime condition.
func (s *State) Check() {
	if s.NPar <= 0 {
		panic(errors.Errorf("chain.State.Check: NPar must be > 0, got %d", s.NPar))
	}
	if s.Data == nil {
		panic(errors.New("chain.State.Check: Data is nil"))
	}
	if len(s.Params) != s.NPar || len(s.ParamsBest) != s.NPar || len(s.ParamsStep) != s.NPar {
		panic(errors.New("chain.State.Check: parameter slice length mismatch"))
	}
	for i := 0; i < s.NPar; i++ {
		if s.ParamsStep[i] <= 0 {
			panic(errors.Errorf("chain.State.Check: step width for %s must be > 0, got %f", s.Descr[i], s.ParamsStep[i]))
		}
		if !s.Circular[i] && (s.Params[i] < s.ParamsMin[i] || s.Params[i] > s.ParamsMax[i]) {
			panic(errors.Errorf("chain.State.Check: %s=%f out of bounds [%f,%f]", s.Descr[i], s.Params[i], s.ParamsMin[i], s.ParamsMax[i]))
		}
	}
}

// CheckBest records Params/Prob as the new best point if Prob has improved.
// This is the Go equivalent of mcmc_check_best.
func (s *State) CheckBest() {
	if s.Prob > s.ProbBest {
		copy(s.ParamsBest, s.Params)
		s.ProbBest = s.Prob
	}
}

// AcceptRates returns the per-parameter acceptance rate (accepts / (accepts +
// rejects)), 0 where no proposals have been made for that parameter yet.
func (s *State) AcceptRates() []float64 {
	rates := make([]float64, s.NPar)
	for i := 0; i < s.NPar; i++ {
		total := s.ParamsAccepts[i] + s.ParamsRejects[i]
		if total > 0 {
			rates[i] = float64(s.ParamsAccepts[i]) / float64(total)
		}
	}
	return rates
}

// AppendSample writes the current Params as one tab-separated line to Out,
// the Go equivalent of mcmc_append_current_parameters. Called once per
// analysis iteration on the beta=1 chain only.
func (s *State) AppendSample() error {
	fields := make([]string, s.NPar)
	for i, v := range s.Params {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	_, err := fmt.Fprintln(s.Out, strings.Join(fields, "\t"))
	return err
}

// GlobalAcceptRate returns the overall acceptance rate across all
// parameters, the Go equivalent of get_accept_rate_global.
func (s *State) GlobalAcceptRate() float64 {
	var accepts, total int64
	for i := 0; i < s.NPar; i++ {
		accepts += s.ParamsAccepts[i]
		total += s.ParamsAccepts[i] + s.ParamsRejects[i]
	}
	if total == 0 {
		return 0
	}
	return float64(accepts) / float64(total)
}
