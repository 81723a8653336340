package cmd

import (
	"expvar"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorUpdateSetsLiveCounters(t *testing.T) {
	m := &monitor{
		Iterations:  expvar.NewInt("test-Iterations"),
		SwapAccepts: expvar.NewInt("test-Swap-Accepts"),
		AcceptRates: expvar.NewMap("test-Accept-Rates"),
	}

	m.update(42, 7, []string{"a", "b"}, []float64{0.25, 0.5})

	assert.Equal(t, int64(42), m.Iterations.Value())
	assert.Equal(t, int64(7), m.SwapAccepts.Value())

	rateA, ok := m.AcceptRates.Get("a").(*expvar.Float)
	assert.True(t, ok)
	assert.InDelta(t, 0.25, rateA.Value(), 1e-9)

	rateB, ok := m.AcceptRates.Get("b").(*expvar.Float)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, rateB.Value(), 1e-9)
}
