// Package calibrate tunes a chain's per-parameter step widths before
// sampling begins, using either of the two strategies the original C
// implementation shipped: a classical iterate-and-rescale strategy and an
// accuracy-driven strategy that keeps refining until it's confident in its
// acceptance-rate estimate.
package calibrate

import (
	"io/ioutil"
	"log"
	"math"

	"github.com/CraigKelly/tempermc/chain"
	"github.com/pkg/errors"
)

// Target acceptance rate and bookkeeping constants carried over from the
// original implementation's compile-time defaults (TARGET_ACCEPTANCE_RATE,
// ITER_READJUST, NO_RESCALING_LIMIT); the C sources left these as build
// flags with no shipped default file in this pack, so they're fixed here
// instead of re-exposed as CLI flags.
const (
	targetAcceptanceRate = 0.25
	iterReadjust         = 100
	noRescalingLimit     = 5
)

// Strategy selects which calibration algorithm Calibrate runs.
type Strategy int

const (
	// Classical repeatedly takes a batch of per-parameter steps, then rescales
	// any parameter whose measured acceptance rate strayed from the target
	// band. Grounded on markov_chain_calibrate_orig.
	Classical Strategy = iota
	// AccuracyDriven measures each parameter's acceptance rate to a
	// confidence band that tightens as the worst parameter improves, then
	// moves the step width proportionally to the measured deviation.
	// Grounded on markov_chain_calibrate_alt.
	AccuracyDriven
)

// Config controls a calibration run. Only MinimalStepwidth/MaximalStepwidth
// (when zero) and Logger (when nil) fall back to defaults; every other field
// is used as given, zero included.
type Config struct {
	BurnInIterations uint
	DesiredAccept    float64 // <0 means derive from NPar, as the C source does
	IterLimit        uint
	Mul              float64 // classical-only: per-check rescale factor
	AdjustStep       float64 // classical-only: initial step-width multiplier
	MinAccuracy      float64 // not read by either strategy; the accuracy-driven one derives its minimum accuracy from the previous sweep

	// MinimalStepwidth/MaximalStepwidth bound a normalized step width
	// (step/range) the accuracy-driven strategy will settle on, mirroring
	// the original's MINIMAL_STEPWIDTH/MAXIMAL_STEPWIDTH compile-time
	// constants. Zero means use the default.
	MinimalStepwidth float64
	MaximalStepwidth float64

	// Logger receives the numerical advisories spec'd for the classical
	// strategy's guards (independent-parameter clamp, very-small step
	// width). Nil means discard, the same convention as
	// tempering.Driver.Progress.
	Logger *log.Logger
}

// DefaultConfig mirrors the values apps in the original pack typically
// passed to markov_chain_calibrate.
func DefaultConfig() Config {
	return Config{
		BurnInIterations: 10000,
		DesiredAccept:    -1,
		IterLimit:        100000,
		Mul:              1.05,
		AdjustStep:       0.1,
		MinAccuracy:      0.01,
		MinimalStepwidth: 1e-7,
		MaximalStepwidth: 1e6,
		Logger:           log.New(ioutil.Discard, "", 0),
	}
}

// loggerFor returns cfg.Logger, or a discarding logger if the caller built
// Config as a bare struct literal instead of through DefaultConfig.
func loggerFor(cfg Config) *log.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return log.New(ioutil.Discard, "", 0)
}

func minimalStepwidthFor(cfg Config) float64 {
	if cfg.MinimalStepwidth > 0 {
		return cfg.MinimalStepwidth
	}
	return 1e-7
}

func maximalStepwidthFor(cfg Config) float64 {
	if cfg.MaximalStepwidth > 0 {
		return cfg.MaximalStepwidth
	}
	return 1e6
}

// FailureError is returned when a calibration run hits its iteration limit,
// or a step width blows up, without converging - the Go
// equivalent of the C source's exit(1) calls.
type FailureError struct {
	Reason string
}

func (e *FailureError) Error() string {
	return "calibration failed: " + e.Reason
}

// Calibrate runs the selected calibration strategy against s in place,
// leaving s.ParamsStep tuned and s's accept/reject counters reset.
func Calibrate(strategy Strategy, s *chain.State, model chain.ForwardModel, cfg Config) error {
	switch strategy {
	case Classical:
		return calibrateClassical(s, model, cfg)
	case AccuracyDriven:
		return calibrateAccuracyDriven(s, model, cfg)
	default:
		return errors.Errorf("calibrate: unknown strategy %d", strategy)
	}
}

func desiredAcceptFor(s *chain.State, cfg Config) float64 {
	if cfg.DesiredAccept >= 0 {
		return cfg.DesiredAccept
	}
	// pow(0.25, 1/NPar), as in the C source's per-call default.
	if s.NPar <= 0 {
		return 0.25
	}
	return math.Pow(0.25, 1.0/float64(s.NPar))
}
