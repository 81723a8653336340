package cmd

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/CraigKelly/tempermc/calibrate"
	"github.com/CraigKelly/tempermc/chain"
	"github.com/CraigKelly/tempermc/examples/sinemodel"
	"github.com/CraigKelly/tempermc/posterior"
	"github.com/CraigKelly/tempermc/tempering"
)

// We want to cheat as little as possible, so we grab the start time ASAP
var startTime = time.Now()

// startupParams holds every run CLI flag plus the loggers/monitor that Setup
// builds from them. Shape is the teacher's startupParams: flags in, Setup
// builds derived fields, Report/Trace print a summary.
type startupParams struct {
	verbose bool

	priorsFile  string
	dataFile    string
	useExample  string
	nChains     int64
	beta0       float64
	calibrator  string
	burnIn      int64
	iterLimit   int64
	maxIters    int64
	maxSecs     int64
	randomSeed  int64
	traceFile   string
	sampleFile  string
	monitorAddr string

	credibleLevel float64

	// These are created/handled by Setup
	out    *log.Logger
	verb   *log.Logger
	trace  *log.Logger
	traceJ JSONLogger
	mon    *monitor
}

// JSONLogger is a simple interface for JSON logging (matches json.Encoder) and
// nil/no-op implementation
type JSONLogger interface {
	Encode(v interface{}) error
	SetIndent(prefix, indent string)
}

// DiscardJSON does nothing
type DiscardJSON struct{}

// Encode for DiscardJSON does nothing
func (n *DiscardJSON) Encode(interface{}) error {
	return nil
}

// SetIndent for DiscardJSON does nothing
func (n *DiscardJSON) SetIndent(string, string) {
}

// Setup handles initialization based on supplied parameters
func (s *startupParams) Setup() error {
	s.out = log.New(os.Stdout, "", 0)

	if s.verbose {
		s.verb = log.New(os.Stdout, "", 0)
	} else {
		s.verb = log.New(ioutil.Discard, "", 0)
	}

	if len(s.traceFile) > 0 {
		f, err := os.Create(s.traceFile)
		if err != nil {
			return err
		}
		s.trace = log.New(f, "", 0)
		s.traceJ = json.NewEncoder(f)
	} else {
		s.trace = log.New(ioutil.Discard, "", 0)
		s.traceJ = &DiscardJSON{}
	}

	return nil
}

func (s *startupParams) dump(out *log.Logger) {
	out.Printf("Verbose:                %v\n", s.verbose)
	out.Printf("Priors:                 %s\n", s.priorsFile)
	out.Printf("Data:                   %s\n", s.dataFile)
	out.Printf("Example model:          %s\n", s.useExample)
	out.Printf("Chains (beta rungs):    %12d\n", s.nChains)
	out.Printf("Beta0:                  %12f\n", s.beta0)
	out.Printf("Calibrator:             %s\n", s.calibrator)
	out.Printf("Burn In:                %12d\n", s.burnIn)
	out.Printf("Calibration Iter Limit: %12d\n", s.iterLimit)
	out.Printf("Max Iters:              %12d\n", s.maxIters)
	out.Printf("Max Secs:               %12d\n", s.maxSecs)
	out.Printf("Rnd Seed:               %12d\n", s.randomSeed)
	out.Printf("Sample File:            %s\n", s.sampleFile)
	out.Printf("Monitor Addr:           %s\n", s.monitorAddr)
}

// Report just writes commands - must be called after Setup
func (s *startupParams) Report() {
	s.dump(s.out)
}

// Trace writes a report to the trace output
func (s *startupParams) Trace() {
	s.dump(s.trace)
}

// PanicIf panics on a non-nil error. Used during startup flag wiring, where
// an error means a programmer mistake in the flag registration itself.
func PanicIf(err error) {
	if err != nil {
		panic(err)
	}
}

const cmdHelp = `tempermc runs parallel-tempered Metropolis-Hastings MCMC parameter
estimation. Features include:

- A classical and an accuracy-driven step-width calibrator
- An N-rung parallel-tempering ensemble with adjacent-chain swaps
- A bundled sine-wave example model for a dependency-free first run
`

type tempermcCmd func(*startupParams) error

func runTempermcCmd(sp *startupParams, f tempermcCmd) error {
	if err := sp.Setup(); err != nil {
		return err
	}

	sp.out.Printf("tempermc\n")

	if sp.mon != nil {
		if err := sp.mon.Start(sp.monitorAddr); err != nil {
			return err
		}
		defer sp.mon.Stop()
	}

	return f(sp)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	sp := &startupParams{}

	var cmd = &cobra.Command{
		Use:   "tempermc",
		Short: "Parallel-tempered Metropolis-Hastings parameter estimation",
		Long:  cmdHelp,
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (periodic progress written to stdout)")
	pf.Int64VarP(&sp.randomSeed, "seed", "e", 0, "Random seed to use (0 picks one from the clock)")
	pf.StringVarP(&sp.traceFile, "trace", "t", "", "Optional trace file")

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Calibrate and run a tempered MCMC ensemble",
		RunE: func(cmd *cobra.Command, args []string) error {
			sp.mon = &monitor{}
			return runTempermcCmd(sp, runEnsemble)
		},
	}
	cmd.AddCommand(runCmd)

	pf = runCmd.PersistentFlags()
	pf.StringVarP(&sp.priorsFile, "priors", "p", "", "Priors file (name, min, max, init, step[, circular])")
	pf.StringVarP(&sp.dataFile, "data", "d", "", "Observation data file (x, y columns)")
	pf.StringVarP(&sp.useExample, "example", "", "", "Use a bundled example model instead of --priors/--data (currently: sine)")
	pf.Int64VarP(&sp.nChains, "chains", "c", 4, "Number of tempering rungs (1 disables tempering)")
	pf.Float64VarP(&sp.beta0, "beta0", "b", 0.1, "Inverse temperature of the hottest rung (ignored when chains=1)")
	pf.StringVarP(&sp.calibrator, "calibrator", "s", "accuracy", "Step-width calibration strategy: accuracy or classical")
	pf.Int64VarP(&sp.burnIn, "burnin", "", 10000, "Burn-in iterations for calibration")
	pf.Int64VarP(&sp.iterLimit, "calib-iter-limit", "", 100000, "Max iterations calibration may take per parameter before failing")
	pf.Int64VarP(&sp.maxIters, "maxiters", "i", 100000, "Maximum analysis iterations")
	pf.Int64VarP(&sp.maxSecs, "maxsecs", "x", 300, "Maximum seconds to run (0 for no maximum)")
	pf.StringVarP(&sp.sampleFile, "out", "o", "samples.tsv", "Output file for chain-0 sample stream")
	pf.Float64VarP(&sp.credibleLevel, "credible-level", "", 0.95, "Credible-interval level used in the final summary")
	pf.StringVarP(&sp.monitorAddr, "addr", "", ":8000", "Address (ip:port) that the monitor will listen at")

	if err := cmd.Execute(); err != nil {
		sp.out.Printf("%v\n", err)
		os.Exit(1)
	}
}

func calibratorStrategy(name string) (calibrate.Strategy, error) {
	switch name {
	case "accuracy", "":
		return calibrate.AccuracyDriven, nil
	case "classical":
		return calibrate.Classical, nil
	default:
		return 0, errors.Errorf("unknown calibrator %q (want accuracy or classical)", name)
	}
}

// runEnsemble is the run subcommand's action: build a driver, calibrate it,
// run it until an iteration/time/signal limit is hit, then summarize chain
// 0's sample stream. The Go equivalent of the original's analyse() wrapped
// in grample's modelMarginals-style startup glue.
func runEnsemble(sp *startupParams) error {
	strategy, err := calibratorStrategy(sp.calibrator)
	if err != nil {
		return err
	}

	if sp.randomSeed == 0 {
		n := time.Now()
		sp.randomSeed = int64(n.Second()) + int64(n.Nanosecond()) + int64(n.Minute())
	}
	if sp.nChains < 1 {
		sp.nChains = 1
	}

	out, err := os.Create(sp.sampleFile)
	if err != nil {
		return errors.Wrapf(err, "could not create sample file %s", sp.sampleFile)
	}
	defer out.Close()

	var model chain.ForwardModel
	priorsFile, dataFile := sp.priorsFile, sp.dataFile

	if sp.useExample == "sine" {
		exDir, err := ioutil.TempDir("", "tempermc-sine")
		if err != nil {
			return errors.Wrap(err, "could not create example scratch dir")
		}
		ex, exPriors, exData, err := sinemodel.ExampleFiles(exDir)
		if err != nil {
			return errors.Wrap(err, "could not build sine example")
		}
		model = ex
		priorsFile, dataFile = exPriors, exData
	} else {
		if priorsFile == "" || dataFile == "" {
			return errors.New("--priors and --data are required unless --example is given")
		}
		model = sinemodel.New()
	}

	sp.Report()
	sp.Trace()

	driver, err := tempering.NewDriver(int(sp.nChains), sp.beta0, priorsFile, dataFile, sp.randomSeed, model, out)
	if err != nil {
		return errors.Wrap(err, "could not build tempering driver")
	}
	driver.Progress = sp.verb

	cfg := calibrate.DefaultConfig()
	cfg.BurnInIterations = uint(sp.burnIn)
	cfg.IterLimit = uint(sp.iterLimit)

	sp.out.Printf("Calibrating %d chain(s)...\n", sp.nChains)
	if err := driver.Calibrate(strategy, cfg); err != nil {
		return errors.Wrap(err, "calibration failed")
	}

	sp.mon.NChains.Set(sp.nChains)
	sp.mon.MaxIters.Set(sp.maxIters)
	sp.mon.MaxSeconds.Set(sp.maxSecs)
	sp.mon.BetaMin.Set(tempering.BetaOf(driver.States[len(driver.States)-1]))
	sp.mon.BetaMax.Set(tempering.BetaOf(driver.States[0]))

	driver.OnProgress = func(iter int64, states []*chain.State) {
		var swaps int64
		for _, s := range states {
			swaps += tempering.SwapCountOf(s)
		}
		s0 := states[0]
		sp.mon.update(iter, swaps/2, s0.Descr, s0.AcceptRates())
	}

	ctx := context.Background()
	if sp.maxSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(sp.maxSecs)*time.Second)
		defer cancel()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	sp.out.Printf("Running up to %d iterations...\n", sp.maxIters)
	if err := driver.Run(ctx, sp.maxIters); err != nil && errors.Cause(err) != context.DeadlineExceeded && errors.Cause(err) != context.Canceled {
		return errors.Wrap(err, "run failed")
	}

	var finalSwaps int64
	for _, s := range driver.States {
		finalSwaps += tempering.SwapCountOf(s)
	}
	sp.mon.update(driver.States[0].NIter, finalSwaps/2, driver.States[0].Descr, driver.States[0].AcceptRates())
	sp.out.Printf("Finished after %d iterations (%s elapsed)\n", driver.States[0].NIter, time.Since(startTime))

	return reportSummary(sp, driver)
}

// chainSummary is one chain's final-state JSON record, written to the trace
// file (if --trace was given) at shutdown - one per ensemble chain.
type chainSummary struct {
	Chain       int       `json:"chain"`
	Beta        float64   `json:"beta"`
	NIter       int64     `json:"n_iter"`
	Prob        float64   `json:"prob"`
	ProbBest    float64   `json:"prob_best"`
	ParamsBest  []float64 `json:"params_best"`
	AcceptRates []float64 `json:"accept_rates"`
	SwapCount   int64     `json:"swap_count"`
}

func reportSummary(sp *startupParams, driver *tempering.Driver) error {
	for i, s := range driver.States {
		if err := sp.traceJ.Encode(chainSummary{
			Chain:       i,
			Beta:        tempering.BetaOf(s),
			NIter:       s.NIter,
			Prob:        s.Prob,
			ProbBest:    s.ProbBest,
			ParamsBest:  s.ParamsBest,
			AcceptRates: s.AcceptRates(),
			SwapCount:   tempering.SwapCountOf(s),
		}); err != nil {
			return errors.Wrapf(err, "could not trace chain %d summary", i)
		}
	}

	s0 := driver.States[0]
	rates := s0.AcceptRates()
	for i := 0; i < s0.NPar; i++ {
		sp.out.Printf("  %-12s best=%f accept=%.3f\n", s0.Descr[i], s0.ParamsBest[i], rates[i])
	}

	for i := 0; i < s0.NPar; i++ {
		summary, err := posterior.SummarizeFile(sp.sampleFile, i, sp.credibleLevel)
		if err != nil {
			sp.out.Printf("  %-12s: could not summarize (%v)\n", s0.Descr[i], err)
			continue
		}
		sp.out.Printf(
			"  %-12s mean=%f stddev=%f median=%f %d%%CI=[%f, %f]\n",
			s0.Descr[i], summary.Mean, summary.StdDev, summary.Median,
			int(sp.credibleLevel*100), summary.CredibleInterval[0], summary.CredibleInterval[1],
		)
	}

	return nil
}
