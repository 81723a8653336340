package cmd

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// monitor exposes run progress over expvar/HTTP, the same shape as the
// teacher's monitor but reporting MCMC ensemble counters - iteration count,
// chain 0's per-parameter acceptance, swap-accept count, beta range - instead of PGM
// convergence error metrics.
type monitor struct {
	info    *expvar.Map
	stopped chan struct{}
	server  *http.Server

	NChains      *expvar.Int
	Iterations   *expvar.Int
	MaxIters     *expvar.Int
	MaxSeconds   *expvar.Int
	RunTime      *expvar.Float
	BetaMin      *expvar.Float
	BetaMax      *expvar.Float
	SwapAccepts  *expvar.Int
	AcceptRates  *expvar.Map
}

// Start begins the monitor's HTTP server at addr.
func (m *monitor) Start(addr string) error {
	if m.info != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.info = expvar.NewMap("tempermc-progress")
	m.stopped = make(chan struct{})
	m.server = &http.Server{Addr: addr}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.NChains = expvar.NewInt("Chain-Count")
	m.Iterations = expvar.NewInt("Iterations")
	m.MaxIters = expvar.NewInt("Max-Iterations")
	m.MaxSeconds = expvar.NewInt("Max-Seconds")
	m.RunTime = expvar.NewFloat("Run-Time")
	m.BetaMin = expvar.NewFloat("Beta-Min")
	m.BetaMax = expvar.NewFloat("Beta-Max")
	m.SwapAccepts = expvar.NewInt("Swap-Accepts")
	m.AcceptRates = expvar.NewMap("Chain0-Accept-Rates")

	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		fmt.Fprintf(os.Stderr, "HTTP now available at %v (see debug/vars/)\n", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

// update refreshes the live progress counters from one driver tick: total
// iterations taken by chain 0, the ensemble-wide swap count (each successful
// swap is halved back down from the two chains it touches, since both
// participants' counters are incremented), and chain 0's per-parameter
// acceptance rates.
func (m *monitor) update(iter int64, swaps int64, descr []string, rates []float64) {
	m.Iterations.Set(iter)
	m.SwapAccepts.Set(swaps)
	for i, name := range descr {
		f := new(expvar.Float)
		f.Set(rates[i])
		m.AcceptRates.Set(name, f)
	}
}

func (m *monitor) Stop() {
	if m.info == nil {
		return
	}

	m.server.Close()

	select {
	case <-m.stopped:
		fmt.Fprintf(os.Stderr, "HTTP Info Stopped\n")
	case <-time.After(2 * time.Second):
		fmt.Fprintf(os.Stderr, "HTTP would NOT stop: just continuing on\n")
	}
}
