package chain

import (
	"bytes"
	"testing"

	"github.com/CraigKelly/tempermc/mcrand"
	"github.com/CraigKelly/tempermc/modelio"
	"github.com/stretchr/testify/assert"
)

func newTestState(t *testing.T) *State {
	gen, err := mcrand.NewGenerator(42)
	assert.NoError(t, err)

	data, err := modelio.NewDataSet(2, 2, []float64{0, 0, 1, 1})
	assert.NoError(t, err)

	s, err := New(2)
	assert.NoError(t, err)

	s.ParamsMin = []float64{-10, -10}
	s.ParamsMax = []float64{10, 10}
	s.ParamsStep = []float64{1, 1}
	s.Params = []float64{0, 0}
	s.ParamsBest = []float64{0, 0}
	s.Descr = []string{"a", "b"}
	s.Data = data
	s.Random = gen

	return s
}

func TestNewRejectsZeroPar(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestCheckBestTracksImprovement(t *testing.T) {
	s := newTestState(t)
	s.Prob = -5
	s.ProbBest = -10
	s.CheckBest()
	assert.Equal(t, -5.0, s.ProbBest)
	assert.Equal(t, s.Params, s.ParamsBest)

	s.Prob = -20
	s.CheckBest()
	assert.Equal(t, -5.0, s.ProbBest, "worse prob must not overwrite best")
}

func TestAcceptRatesAndGlobal(t *testing.T) {
	s := newTestState(t)
	s.ParamsAccepts = []int64{3, 1}
	s.ParamsRejects = []int64{1, 1}

	rates := s.AcceptRates()
	assert.InDelta(t, 0.75, rates[0], 1e-9)
	assert.InDelta(t, 0.5, rates[1], 1e-9)
	assert.InDelta(t, 4.0/6.0, s.GlobalAcceptRate(), 1e-9)
}

func TestResetCounters(t *testing.T) {
	s := newTestState(t)
	s.ParamsAccepts = []int64{3, 1}
	s.ParamsRejects = []int64{1, 1}
	s.ResetCounters()
	assert.Equal(t, []int64{0, 0}, s.ParamsAccepts)
	assert.Equal(t, []int64{0, 0}, s.ParamsRejects)
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestState(t)
	s.Prob = -1
	c := s.Clone()

	c.Params[0] = 99
	assert.NotEqual(t, s.Params[0], c.Params[0])
	assert.Equal(t, s.Prob, c.Prob)
	assert.Nil(t, c.Random, "Clone must not share the parent's generator")
}

func TestCheckPanicsOnBadStep(t *testing.T) {
	s := newTestState(t)
	s.ParamsStep[0] = 0
	assert.Panics(t, func() { s.Check() })
}

func TestCheckPanicsOnOutOfBounds(t *testing.T) {
	s := newTestState(t)
	s.Params[0] = 1000
	assert.Panics(t, func() { s.Check() })
}

func TestCheckAllowsOutOfBoundsWhenCircular(t *testing.T) {
	s := newTestState(t)
	s.Circular[0] = true
	s.Params[0] = 1000
	assert.NotPanics(t, func() { s.Check() })
}

func TestAppendSampleWritesTabSeparatedLine(t *testing.T) {
	s := newTestState(t)
	s.Params = []float64{1.5, -2}

	var buf bytes.Buffer
	s.Out = &buf

	assert.NoError(t, s.AppendSample())
	assert.Equal(t, "1.5\t-2\n", buf.String())
}
