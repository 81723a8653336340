// Package mcrand provides the per-chain pseudo-random generator used by the
// sampler, calibrator and tempering driver, plus a handful of vector helpers
// used when proposing and rescaling parameter steps.
package mcrand

import (
	"math"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
	"gonum.org/v1/gonum/floats"
)

// A Generator uses a goroutine to populate batches of random numbers drawn
// from a Mersenne twister (MT19937-64).
type Generator struct {
	ch        chan int64
	haveGauss bool
	nextGauss float64
}

// NewGeneratorSlice starts a new background PRNG based on the given seed
// slice. If the slice has only one entry, then the MT generator is
// initialized with Seed. Otherwise SeedFromSlice is used
func NewGeneratorSlice(seed []uint64) (*Generator, error) {
	if len(seed) < 1 {
		return nil, errors.Errorf("Invalid generator seed array %v", seed)
	}

	numChan := make(chan int64, 1024)

	r := mt19937.New()
	if len(seed) == 1 {
		r.Seed(int64(seed[0]))
	} else {
		r.SeedFromSlice(seed)
	}

	go func() {
		for {
			numChan <- r.Int63()
		}
	}()

	g := &Generator{
		ch: numChan,
	}

	return g, nil
}

// NewGenerator is a helper wrapper around NewGeneratorSlice
func NewGenerator(seed int64) (*Generator, error) {
	return NewGeneratorSlice([]uint64{uint64(seed)})
}

// NewChainGenerator derives a reproducible, per-chain generator from a single
// base seed and a chain index, so that a tempering run with N chains is fully
// determined by one configured seed (no process-global RNG: one instance per
// chain, seeded from base+index).
func NewChainGenerator(baseSeed int64, chainIndex int) (*Generator, error) {
	return NewGeneratorSlice([]uint64{uint64(baseSeed), uint64(chainIndex) + 1})
}

// Int63 provides the same interface as Go's math/rand, but with pre-generation.
func (g *Generator) Int63() int64 {
	return <-g.ch
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Int31 is just a copy of the golang impl
func (g *Generator) Int31() int32 {
	return int32(g.Int63() >> 32)
}

// Int31n is just a copy of the golang impL
func (g *Generator) Int31n(n int32) int32 {
	if n <= 0 {
		panic("invalid argument to Int31n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int31() & (n - 1)
	}

	max := int32((1 << 31) - 1 - (1<<31)%uint32(n))
	v := g.Int31()

	for v > max {
		v = g.Int31()
	}

	return v % n
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NextUniform draws from U(0,1). Kept as a distinctly-named alias of
// Float64 so call sites that implement the Metropolis machinery read the
// same way as the acceptance-test and swap-protocol math they embody.
func (g *Generator) NextUniform() float64 {
	return g.Float64()
}

// NextLogUniform draws log(U(0,1)), used for the log-space accept test and
// for the tempering swap-acceptance test.
func (g *Generator) NextLogUniform() float64 {
	return math.Log(g.Float64())
}

// NextGauss draws from Normal(0, sigma) using the polar Box-Muller method.
// One value is cached from every pair drawn so every other call is free.
func (g *Generator) NextGauss(sigma float64) float64 {
	if g.haveGauss {
		g.haveGauss = false
		return g.nextGauss * sigma
	}

	var u, v, s float64
	for {
		u = 2*g.Float64() - 1
		v = 2*g.Float64() - 1
		s = u*u + v*v
		if s > 0 && s < 1 {
			break
		}
	}

	mul := math.Sqrt(-2 * math.Log(s) / s)
	g.nextGauss = v * mul
	g.haveGauss = true
	return u * mul * sigma
}

// VecClone returns a fresh copy of v.
func VecClone(v []float64) []float64 {
	cp := make([]float64, len(v))
	copy(cp, v)
	return cp
}

// VecScale scales v in place by c.
func VecScale(c float64, v []float64) {
	floats.Scale(c, v)
}

// VecSub subtracts t from s in place (s[i] -= t[i]).
func VecSub(s, t []float64) {
	floats.Sub(s, t)
}

// VecClampRange clamps v[i] into [lo[i], hi[i]] componentwise. There is no
// gonum/floats equivalent for a per-index two-sided clamp, so this one is
// hand-written.
func VecClampRange(v, lo, hi []float64) {
	for i := range v {
		if v[i] < lo[i] {
			v[i] = lo[i]
		} else if v[i] > hi[i] {
			v[i] = hi[i]
		}
	}
}
