package render

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BSDF is the closed set of reflectance models, dispatched by name through
// CreateBSDF. Values are RGB reflectance densities; PDFs are with respect
// to solid angle.
type BSDF interface {
	Model() string
	// Sample draws an incoming direction around the basis normal and
	// returns it with the BSDF value and PDF. A zero PDF means the
	// sample is unusable.
	Sample(sc *SamplingContext, basis Basis, outgoing mgl64.Vec3) (incoming mgl64.Vec3, value mgl64.Vec3, pdf Real)
	// Evaluate returns the BSDF value and PDF for a given pair of
	// directions.
	Evaluate(basis Basis, outgoing, incoming mgl64.Vec3) (value mgl64.Vec3, pdf Real)
	// PDF returns the sampling density for the given pair of directions.
	PDF(basis Basis, outgoing, incoming mgl64.Vec3) Real
}

// BSDFParams are the recognized options of the built-in BSDF models.
type BSDFParams struct {
	Reflectance           [3]Real `yaml:"reflectance" json:"reflectance"`
	ReflectanceMultiplier Real    `yaml:"reflectance_multiplier" json:"reflectance_multiplier"`
	Roughness             Real    `yaml:"roughness" json:"roughness"`
}

const (
	ModelLambertianBRDF = "lambertian_brdf"
	ModelOrenNayarBRDF  = "orennayar_brdf"
)

// CreateBSDF looks up a BSDF model by name and builds it.
func CreateBSDF(model string, params BSDFParams) (BSDF, error) {
	if params.ReflectanceMultiplier == 0 {
		params.ReflectanceMultiplier = 1
	}
	refl := mgl64.Vec3{
		clamp01(params.Reflectance[0]),
		clamp01(params.Reflectance[1]),
		clamp01(params.Reflectance[2]),
	}
	switch model {
	case ModelLambertianBRDF:
		return &LambertianBRDF{Reflectance: refl, Multiplier: params.ReflectanceMultiplier}, nil
	case ModelOrenNayarBRDF:
		if params.Roughness < 0 {
			return nil, fmt.Errorf("roughness must be non-negative, got %g", params.Roughness)
		}
		return &OrenNayarBRDF{Reflectance: refl, Multiplier: params.ReflectanceMultiplier, Roughness: params.Roughness}, nil
	default:
		return nil, fmt.Errorf("unknown bsdf model %q", model)
	}
}

// LambertianBRDF is the constant-density diffuse model.
type LambertianBRDF struct {
	Reflectance mgl64.Vec3
	Multiplier  Real
}

func (b *LambertianBRDF) Model() string { return ModelLambertianBRDF }

func (b *LambertianBRDF) Sample(sc *SamplingContext, basis Basis, outgoing mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3, Real) {
	u, v := sc.Next2()
	local := SampleHemisphereCosine(u, v)
	incoming := basis.TransformToParent(local)
	value, pdf := b.Evaluate(basis, outgoing, incoming)
	return incoming, value, pdf
}

func (b *LambertianBRDF) Evaluate(basis Basis, outgoing, incoming mgl64.Vec3) (mgl64.Vec3, Real) {
	cosIn := incoming.Dot(basis.N)
	if cosIn <= 0 {
		return mgl64.Vec3{}, 0
	}
	return b.Reflectance.Mul(b.Multiplier / math.Pi), cosIn / math.Pi
}

func (b *LambertianBRDF) PDF(basis Basis, outgoing, incoming mgl64.Vec3) Real {
	cosIn := incoming.Dot(basis.N)
	if cosIn <= 0 {
		return 0
	}
	return cosIn / math.Pi
}

// OrenNayarBRDF is the qualitative Oren-Nayar model with the
// interreflection term, reverting to Lambertian at zero roughness.
//
// Reference: Generalization of Lambert's Reflectance Model,
// Oren & Nayar, SIGGRAPH 94.
type OrenNayarBRDF struct {
	Reflectance mgl64.Vec3
	Multiplier  Real
	Roughness   Real
}

func (b *OrenNayarBRDF) Model() string { return ModelOrenNayarBRDF }

func (b *OrenNayarBRDF) Sample(sc *SamplingContext, basis Basis, outgoing mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3, Real) {
	u, v := sc.Next2()
	local := SampleHemisphereCosine(u, v)
	incoming := basis.TransformToParent(local)
	value, pdf := b.Evaluate(basis, outgoing, incoming)
	return incoming, value, pdf
}

func (b *OrenNayarBRDF) Evaluate(basis Basis, outgoing, incoming mgl64.Vec3) (mgl64.Vec3, Real) {
	n := basis.N
	cosIn := incoming.Dot(n)
	if cosIn <= 0 {
		return mgl64.Vec3{}, 0
	}
	pdf := cosIn / math.Pi

	if b.Roughness == 0 {
		return b.Reflectance.Mul(b.Multiplier / math.Pi), pdf
	}

	cosOn := outgoing.Dot(n)
	if cosOn <= 0 {
		return mgl64.Vec3{}, 0
	}

	return b.qualitative(cosOn, cosIn, outgoing, incoming, n), pdf
}

func (b *OrenNayarBRDF) PDF(basis Basis, outgoing, incoming mgl64.Vec3) Real {
	cosIn := incoming.Dot(basis.N)
	if cosIn <= 0 {
		return 0
	}
	if b.Roughness != 0 && outgoing.Dot(basis.N) <= 0 {
		return 0
	}
	return cosIn / math.Pi
}

func (b *OrenNayarBRDF) qualitative(cosOn, cosIn Real, outgoing, incoming, n mgl64.Vec3) mgl64.Vec3 {
	sigma2 := b.Roughness * b.Roughness
	thetaR := rmin(math.Acos(clamp01(cosOn)), math.Pi/2)
	thetaI := math.Acos(clamp01(cosIn))
	alpha := rmax(thetaR, thetaI)
	beta := rmin(thetaR, thetaI)

	// Project both directions onto the tangent plane and take the cosine
	// of the azimuthal angle between them.
	vPerp := outgoing.Sub(n.Mul(cosOn))
	iPerp := incoming.Sub(n.Mul(cosIn))
	deltaCosPhi := Real(0)
	if lv, li := vPerp.Len(), iPerp.Len(); lv > 0 && li > 0 {
		deltaCosPhi = vPerp.Mul(1 / lv).Dot(iPerp.Mul(1 / li))
	}

	c1 := 1 - 0.5*(sigma2/(sigma2+0.33))

	sigma2009 := sigma2 / (sigma2 + 0.09)
	var c2 Real
	if deltaCosPhi >= 0 {
		c2 = 0.45 * sigma2009 * math.Sin(alpha)
	} else {
		s := 2 * beta / math.Pi
		c2 = 0.45 * sigma2009 * (math.Sin(alpha) - s*s*s)
	}
	if c2 < 0 {
		c2 = 0
	}

	g := 4 * alpha * beta / (math.Pi * math.Pi)
	c3 := 0.125 * sigma2009 * g * g

	direct := b.Multiplier / math.Pi *
		(c1 + deltaCosPhi*c2*math.Tan(beta) + (1-math.Abs(deltaCosPhi))*c3*math.Tan(0.5*(alpha+beta)))

	inter := 0.17 * b.Multiplier * b.Multiplier / math.Pi * cosIn *
		sigma2 / (sigma2 + 0.13) *
		(1 - deltaCosPhi*(2*beta/math.Pi)*(2*beta/math.Pi))

	var out mgl64.Vec3
	for c := 0; c < 3; c++ {
		r := b.Reflectance[c]
		v := r*direct + r*r*inter
		if v < 0 {
			v = 0
		}
		out[c] = v
	}
	return out
}
