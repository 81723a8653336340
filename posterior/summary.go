// Package posterior turns a finished chain's sample stream into point
// estimates and credible intervals, the concrete realization of spec's
// "parameter estimates, credible intervals ... may be derived" output. It
// supplements the original implementation, which leaves evidence/estimate
// computation to external post-processing of its per-parameter sample files.
package posterior

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Summary is a small suite of derived statistics for one parameter's
// posterior sample stream, in the shape of the teacher's ErrorSuite (a
// single struct bundling several related derived numbers from one pass over
// data), repurposed here from discrete-marginal error metrics to continuous
// posterior summaries.
type Summary struct {
	N                int
	Mean             float64
	StdDev           float64
	Median           float64
	CredibleInterval [2]float64 // equal-tailed, width set by the Level passed to Summarize
}

// Summarize computes a Summary over samples at the given credible-interval
// level (e.g. 0.95 for a 95% equal-tailed interval). samples is not mutated;
// a sorted copy is made internally since gonum's quantile estimator requires
// sorted input.
func Summarize(samples []float64, level float64) (Summary, error) {
	if len(samples) == 0 {
		return Summary{}, errors.New("posterior.Summarize: no samples")
	}
	if level <= 0 || level >= 1 {
		return Summary{}, errors.Errorf("posterior.Summarize: level must be in (0,1), got %f", level)
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	tail := (1 - level) / 2

	return Summary{
		N:      len(sorted),
		Mean:   stat.Mean(sorted, nil),
		StdDev: stat.StdDev(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		CredibleInterval: [2]float64{
			stat.Quantile(tail, stat.Empirical, sorted, nil),
			stat.Quantile(1-tail, stat.Empirical, sorted, nil),
		},
	}, nil
}

// SummarizeFile reads one column out of a chain's sample stream - as written
// by chain.State.AppendSample, one tab-separated row of all parameters per
// iteration - and summarizes parameter column at the given credible-interval
// level.
func SummarizeFile(path string, column int, level float64) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "posterior.SummarizeFile: opening %s", path)
	}
	defer f.Close()

	samples, err := readColumn(f, column)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "posterior.SummarizeFile: reading %s", path)
	}

	return Summarize(samples, level)
}

func readColumn(r io.Reader, column int) ([]float64, error) {
	var samples []float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if column >= len(fields) {
			continue // blank or short rows are skipped, not fatal
		}
		v, err := strconv.ParseFloat(fields[column], 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, errors.New("no samples found")
	}
	return samples, nil
}
