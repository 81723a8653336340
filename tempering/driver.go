package tempering

import (
	"context"
	"io"
	"io/ioutil"
	"log"
	"sync"
	"sync/atomic"

	"github.com/CraigKelly/tempermc/buffer"
	"github.com/CraigKelly/tempermc/calibrate"
	"github.com/CraigKelly/tempermc/chain"
	"github.com/CraigKelly/tempermc/mcrand"
	"github.com/pkg/errors"
)

// Config controls the tempering driver's swap protocol and reporting
// cadence. Zero-valued fields fall back to the same defaults the original
// implementation used, except PrintProbInterval, where 0 disables periodic
// reporting.
type Config struct {
	// NSwap is the original's n_swap: a proposed adjacent swap is attempted
	// with probability 1/NSwap on any given iteration. Default 30.
	NSwap int
	// KickProbability is the chance of resetting a random chain to its own
	// best point instead of attempting a swap. Not part of standard
	// parallel-tempering literature, preserved per spec but made
	// configurable. Default 1/10000.
	KickProbability float64
	// PrintProbInterval is how often (in iterations) the driver prints
	// progress. 0 disables periodic reporting. Default 1000.
	PrintProbInterval int64
	// DumpProbLength is the size of the probability-history ring buffer
	// dumped on a SIGUSR1/SIGUSR2 request. Default 1000.
	DumpProbLength int
}

// DefaultConfig mirrors the original's compile-time defaults.
func DefaultConfig() Config {
	return Config{
		NSwap:             30,
		KickProbability:   1.0 / 10000,
		PrintProbInterval: 1000,
		DumpProbLength:    1000,
	}
}

// Driver owns an ensemble of chain.State values, one per temperature, and
// runs them through calibration and analysis. It is the Go port of the
// mcmc**/n_beta arrays threaded through parallel_tempering.c.
type Driver struct {
	States []*chain.State
	Model  chain.ForwardModel
	Config Config

	Progress *log.Logger // periodic status; ioutil.Discard if unset

	// OnProgress, if set, is called on the same cadence as Progress (every
	// Config.PrintProbInterval iterations) with chain 0's iteration count and
	// the whole ensemble, so a caller can mirror progress into something
	// like an expvar-backed monitor while Run is still blocking.
	OnProgress func(iter int64, states []*chain.State)

	run  atomic.Bool
	dump atomic.Bool

	probHistory *buffer.CircularFloat

	stopSig func()
}

// NewDriver builds nBeta independent chain states from the same priors/data
// files, one per rung of the tempering ladder, with inverse temperatures
// spaced linearly from 1 (chain 0) down to beta0 (chain nBeta-1): beta_i = 1
// - i*(1-beta0)/(nBeta-1). N=1 is a defined special case: a single chain at
// beta=1, with the swap protocol reduced to a no-op (spec's boundary
// behaviour).
//
// out receives chain 0's per-iteration sample stream; every other chain's Out
// is ioutil.Discard, matching the original where only sinmod[0] is appended
// to during analysis.
func NewDriver(nBeta int, beta0 float64, paramsFile, dataFile string, baseSeed int64, model chain.ForwardModel, out io.Writer) (*Driver, error) {
	if nBeta < 1 {
		return nil, errors.Errorf("tempering: nBeta must be >= 1, got %d", nBeta)
	}
	if nBeta > 1 && (beta0 <= 0 || beta0 > 1) {
		return nil, errors.Errorf("tempering: beta0 must be in (0, 1], got %f", beta0)
	}

	states := make([]*chain.State, nBeta)
	for i := 0; i < nBeta; i++ {
		gen, err := mcrand.NewChainGenerator(baseSeed, i)
		if err != nil {
			return nil, errors.Wrapf(err, "tempering: generator for chain %d", i)
		}

		s, err := chain.Load(paramsFile, dataFile, gen)
		if err != nil {
			return nil, errors.Wrapf(err, "tempering: loading chain %d", i)
		}

		s.Aux = &Aux{Beta: betaFor(i, nBeta, beta0)}
		if i == 0 {
			s.Out = out
		} else {
			s.Out = ioutil.Discard
		}

		if err := model.Calc(s, nil); err != nil {
			return nil, errors.Wrapf(err, "tempering: initial model for chain %d", i)
		}
		s.CheckBest()

		states[i] = s
	}

	return &Driver{
		States:      states,
		Model:       model,
		Config:      DefaultConfig(),
		Progress:    log.New(ioutil.Discard, "", 0),
		probHistory: buffer.NewCircularFloat(DefaultConfig().DumpProbLength),
	}, nil
}

func betaFor(i, n int, beta0 float64) float64 {
	if n == 1 {
		return 1
	}
	return 1 - float64(i)*(1-beta0)/float64(n-1)
}

// Calibrate tunes chain 0's step widths with the given strategy, then seeds
// every hotter chain from chain 0's best point and calibrates them in
// parallel - the Go equivalent of parallel_tempering's calibration prologue.
func (d *Driver) Calibrate(strategy calibrate.Strategy, cfg calibrate.Config) error {
	if err := calibrate.Calibrate(strategy, d.States[0], d.Model, cfg); err != nil {
		return errors.Wrap(err, "tempering: calibrating chain 0")
	}

	if len(d.States) == 1 {
		return nil
	}

	best := mcrand.VecClone(d.States[0].ParamsBest)
	errs := make([]error, len(d.States))

	var wg sync.WaitGroup
	for i := 1; i < len(d.States); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := d.States[i]

			copy(s.Params, best)
			if err := d.Model.Calc(s, nil); err != nil {
				errs[i] = errors.Wrapf(err, "tempering: recomputing model for chain %d", i)
				return
			}
			// The model already tempers its score via BetaOf when it computes
			// s.Prob; the original source multiplies prob by beta again here
			// regardless, and this is preserved as-is rather than "fixed".
			s.Prob *= BetaOf(s)

			errs[i] = calibrate.Calibrate(strategy, s, d.Model, cfg)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tempering: calibrating chain %d", i)
		}
	}
	return nil
}

// Run advances every chain one joint step at a time until maxIter total
// iterations have been taken, ctx is cancelled, or a SIGINT has cleared the
// run flag - whichever comes first. Only chain 0's samples are appended to
// its output stream; CheckBest is also only called on chain 0 between
// steps, matching the original's analyse().
func (d *Driver) Run(ctx context.Context, maxIter int64) error {
	d.run.Store(true)
	d.installSignals()
	defer d.stopSignals()

	if n := d.Config.DumpProbLength; n >= 2 && n/2*2 != d.probHistory.BufSize {
		d.probHistory = buffer.NewCircularFloat(n)
	}

	s0 := d.States[0]
	iter := s0.NIter

	for d.run.Load() && iter < maxIter {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		errs := make([]error, len(d.States))
		var wg sync.WaitGroup
		for i := range d.States {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = d.States[i].JointStep(d.Model)
			}(i)
		}
		wg.Wait()
		for i, err := range errs {
			if err != nil {
				return errors.Wrapf(err, "tempering: joint step on chain %d", i)
			}
		}

		s0.CheckBest()
		if err := s0.AppendSample(); err != nil {
			return errors.Wrap(err, "tempering: appending sample")
		}
		_ = d.probHistory.Add(s0.Prob)

		iter++

		if err := d.swap(); err != nil {
			return err
		}

		if interval := d.Config.PrintProbInterval; interval > 0 && iter%interval == 0 {
			d.reportProgress(iter)
			if d.OnProgress != nil {
				d.OnProgress(iter, d.States)
			}
			if d.dump.Load() {
				d.dumpProbabilities()
				d.dump.Store(false)
			}
		}
	}

	return nil
}

func (d *Driver) reportProgress(iter int64) {
	s0 := d.States[0]
	var accepts, rejects int64
	for i := 0; i < s0.NPar; i++ {
		accepts += s0.ParamsAccepts[i]
		rejects += s0.ParamsRejects[i]
	}
	d.Progress.Printf("iteration: %d, a/r: %d/%d v:%v\n", iter, accepts, rejects, s0.Params)
}

func (d *Driver) dumpProbabilities() {
	d.Progress.Printf("probability history (%d of %d slots filled):\n", d.probHistory.Count, d.probHistory.BufSize)
	if first, second, ok := d.probHistory.HalfMeans(); ok {
		d.Progress.Printf("first-half mean: %f, second-half mean: %f\n", first, second)
	}
	if it := d.probHistory.FirstHalf(); it != nil {
		for it.Next() {
			d.Progress.Printf("%f\n", it.Value())
		}
	}
	if it := d.probHistory.SecondHalf(); it != nil {
		for it.Next() {
			d.Progress.Printf("%f\n", it.Value())
		}
	}
}
