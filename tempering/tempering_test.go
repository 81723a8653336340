package tempering

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/CraigKelly/tempermc/chain"
	"github.com/stretchr/testify/assert"
)

// betaGaussian scores params against an independent Normal(0,1) target per
// parameter, tempered by the chain's own beta - exactly the contract
// chain.ForwardModel implementations must honor (§4.2 "Tempering
// interaction").
type betaGaussian struct{}

func (betaGaussian) Calc(s *chain.State, old []float64) error {
	lp := 0.0
	for _, p := range s.Params {
		lp += -0.5 * p * p
	}
	s.Prob = BetaOf(s) * lp
	return nil
}

func (betaGaussian) CalcFor(s *chain.State, i int, old float64) error {
	return betaGaussian{}.Calc(s, nil)
}

func writeTestFiles(t *testing.T) (paramsFile, dataFile string) {
	dir := t.TempDir()

	paramsFile = filepath.Join(dir, "priors.txt")
	assert.NoError(t, os.WriteFile(paramsFile, []byte(
		"a -5 5 0.1 0.5\nb -5 5 -0.2 0.5\n",
	), 0o644))

	dataFile = filepath.Join(dir, "data.txt")
	assert.NoError(t, os.WriteFile(dataFile, []byte(
		"0.0 0.0\n1.0 1.0\n2.0 0.5\n",
	), 0o644))

	return paramsFile, dataFile
}

func TestNewDriverBetaSpacing(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)

	d, err := NewDriver(4, 0.1, paramsFile, dataFile, 42, betaGaussian{}, os.Stdout)
	assert.NoError(t, err)
	assert.Len(t, d.States, 4)

	assert.InDelta(t, 1.0, BetaOf(d.States[0]), 1e-9)
	assert.InDelta(t, 0.1, BetaOf(d.States[3]), 1e-9)
	assert.InDelta(t, 0.7, BetaOf(d.States[1]), 1e-9)
	assert.InDelta(t, 0.4, BetaOf(d.States[2]), 1e-9)
}

func TestNewDriverSingleChainIsUnitBeta(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)

	d, err := NewDriver(1, 1, paramsFile, dataFile, 1, betaGaussian{}, os.Stdout)
	assert.NoError(t, err)
	assert.Len(t, d.States, 1)
	assert.InDelta(t, 1.0, BetaOf(d.States[0]), 1e-9)
}

func TestNewDriverRejectsZeroChains(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)
	_, err := NewDriver(0, 0.1, paramsFile, dataFile, 1, betaGaussian{}, os.Stdout)
	assert.Error(t, err)
}

func TestSwapIsNoOpForSingleChain(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)
	d, err := NewDriver(1, 1, paramsFile, dataFile, 5, betaGaussian{}, os.Stdout)
	assert.NoError(t, err)

	before := append([]float64(nil), d.States[0].Params...)
	assert.NoError(t, d.swap())
	assert.Equal(t, before, d.States[0].Params)
}

func TestKickResetsChainToItsBest(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)
	d, err := NewDriver(2, 0.5, paramsFile, dataFile, 5, betaGaussian{}, os.Stdout)
	assert.NoError(t, err)

	d.Config.KickProbability = 1.0 // force the kick branch every time
	d.Config.NSwap = 1000000       // keep the swap branch from ever firing

	for _, s := range d.States {
		s.Params[0] = 3
		s.ParamsBest[0] = -1
		s.ProbBest = -0.5
		s.Prob = -100
	}

	// The kicked chain is drawn at random, so kick often enough that every
	// chain has been picked at least once.
	for i := 0; i < 64; i++ {
		assert.NoError(t, d.swap())
	}
	for _, s := range d.States {
		assert.Equal(t, s.ParamsBest, s.Params)
		assert.Equal(t, s.ProbBest, s.Prob)
	}
}

func TestRunAppendsSamplesForChainZeroOnly(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)

	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.txt")
	out, err := os.Create(outPath)
	assert.NoError(t, err)
	defer out.Close()

	d, err := NewDriver(2, 0.5, paramsFile, dataFile, 9, betaGaussian{}, out)
	assert.NoError(t, err)
	d.Config.PrintProbInterval = 0

	assert.NoError(t, d.Run(context.Background(), 50))
	assert.Equal(t, int64(50), d.States[0].NIter)
	assert.Equal(t, io.Discard, d.States[1].Out)

	info, err := os.Stat(outPath)
	assert.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

// TestSwapLogRatioIsSymmetric checks the swap law named in package docs: the
// log-space Metropolis ratio for an adjacent-chain swap must not care which
// of the two chains is labeled "a" and which is "b", since the proposal is
// its own reverse.
func TestSwapLogRatioIsSymmetric(t *testing.T) {
	cases := []struct {
		betaA, probA, betaB, probB float64
	}{
		{1.0, -3.2, 0.7, -4.1},
		{0.4, -10.0, 0.1, -2.5},
		{1.0, -1.0, 1.0, -1.0},
		{0.9, 0.0, 0.3, -50.0},
	}

	for _, c := range cases {
		forward := swapLogRatio(c.betaA, c.probA, c.betaB, c.probB)
		reverse := swapLogRatio(c.betaB, c.probB, c.betaA, c.probA)
		assert.InDelta(t, forward, reverse, 1e-9)
	}
}

// TestSwapFractionStaysNearExpectedRate is a reduced-scale version of the
// swap-fraction-bound scenario: over many iterations of a 2-chain ensemble,
// the number of accepted adjacent swaps should track the 1/NSwap attempt
// rate. With betas 1 and 0.5 on this Gaussian target only part of the
// attempted swaps (roughly two thirds) are accepted, and the run is far too
// short to bound the original scenario's 1e6-iteration sample size tightly,
// so the tolerance here is generous.
func TestSwapFractionStaysNearExpectedRate(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)

	d, err := NewDriver(2, 0.5, paramsFile, dataFile, 21, betaGaussian{}, os.Stdout)
	assert.NoError(t, err)
	d.Config.PrintProbInterval = 0
	d.Config.KickProbability = 0
	d.Config.NSwap = 20

	const iterations = 20000 // reduced from the original scenario's 1e6
	assert.NoError(t, d.Run(context.Background(), iterations))

	var swapAttempts int64
	var totalSwaps int64
	for _, s := range d.States {
		totalSwaps += SwapCountOf(s)
	}
	// Each successful swap touches both chains' counters.
	swapAttempts = totalSwaps / 2

	expected := float64(iterations) / float64(d.Config.NSwap)
	assert.InDelta(t, expected, float64(swapAttempts), expected*0.5+10)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	paramsFile, dataFile := writeTestFiles(t)
	d, err := NewDriver(1, 1, paramsFile, dataFile, 11, betaGaussian{}, os.Stdout)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = d.Run(ctx, 1000)
	assert.Error(t, err)
}
