// Package randx provides the explicitly-seeded random source every generator
// draws from, plus the handful of distributions the synthesis pipeline needs.
// A Source is not safe for concurrent use; the pipeline is single-threaded and
// builds one Source per stage so determinism is structural.
package randx

import (
	"math"
	"math/rand"
)

// Source wraps a seeded math/rand generator.
type Source struct {
	r *rand.Rand
}

// New returns a Source seeded deterministically.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a uniform draw in [0, 1).
func (s *Source) Float64() float64 { return s.r.Float64() }

// Uniform returns a uniform draw in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	return lo + s.r.Float64()*(hi-lo)
}

// IntBetween returns a uniform integer in [lo, hi] inclusive.
func (s *Source) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.Intn(hi-lo+1)
}

// Bernoulli returns true with probability p.
func (s *Source) Bernoulli(p float64) bool { return s.r.Float64() < p }

// Normal returns a normal draw with the given mean and standard deviation.
func (s *Source) Normal(mean, stddev float64) float64 {
	return mean + s.r.NormFloat64()*stddev
}

// Gamma returns a gamma draw with the given shape and scale, using the
// Marsaglia-Tsang squeeze method (with the shape<1 boost).
func (s *Source) Gamma(shape, scale float64) float64 {
	if shape < 1 {
		// Boost: gamma(a) = gamma(a+1) * U^(1/a).
		return s.Gamma(shape+1, scale) * math.Pow(s.r.Float64(), 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := s.r.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := s.r.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// Beta returns a beta draw with parameters a and b.
func (s *Source) Beta(a, b float64) float64 {
	x := s.Gamma(a, 1)
	y := s.Gamma(b, 1)
	return x / (x + y)
}

// Poisson returns a Poisson draw with the given rate, using Knuth's method.
// Rates in this pipeline are small, so the O(lambda) loop is fine.
func (s *Source) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= s.r.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// Choice returns a uniformly chosen element of items.
func Choice[T any](s *Source, items []T) T {
	return items[s.r.Intn(len(items))]
}

// WeightedIndex returns an index drawn proportionally to weights. All-zero
// weights degrade to a uniform draw.
func (s *Source) WeightedIndex(weights []float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return s.r.Intn(len(weights))
	}
	target := s.r.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return i
		}
	}
	return len(weights) - 1
}

// SampleIndices returns k distinct indices from [0, n), order-preserving.
// It is a partial Fisher-Yates over the index slice followed by a re-sort
// by original position, so eligibility order survives subsetting.
func (s *Source) SampleIndices(n, k int) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.r.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	picked := idx[:k]
	// Insertion sort; k is small.
	for i := 1; i < len(picked); i++ {
		for j := i; j > 0 && picked[j] < picked[j-1]; j-- {
			picked[j], picked[j-1] = picked[j-1], picked[j]
		}
	}
	return picked
}
