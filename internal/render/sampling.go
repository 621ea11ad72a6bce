package render

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// SamplingContext supplies the random numbers one evaluation consumes.
// Each context is exclusively owned by its caller for the duration of a
// call; two concurrent evaluations must use distinct contexts.
type SamplingContext struct {
	rng *rand.Rand
}

// NewSamplingContext returns a deterministic context for the given seed.
func NewSamplingContext(seed int64) *SamplingContext {
	return &SamplingContext{rng: rand.New(rand.NewSource(seed))}
}

func (sc *SamplingContext) Next() Real { return sc.rng.Float64() }

func (sc *SamplingContext) Next2() (Real, Real) {
	u := sc.rng.Float64()
	v := sc.rng.Float64()
	return u, v
}

// SampleHemisphereCosine maps two uniform variates onto a cosine-weighted
// direction in the local frame (y up). The PDF is cos(theta)/pi.
func SampleHemisphereCosine(u, v Real) mgl64.Vec3 {
	r := math.Sqrt(u)
	phi := 2 * math.Pi * v
	return mgl64.Vec3{
		r * math.Cos(phi),
		math.Sqrt(1 - u),
		r * math.Sin(phi),
	}
}
