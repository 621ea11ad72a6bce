package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Ray is the parametric ray Org + t*Dir for t in [TMin, TMax].
// Dir is expected to be unit length unless stated otherwise.
type Ray struct {
	Org  mgl64.Vec3
	Dir  mgl64.Vec3
	TMin Real
	TMax Real
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t Real) mgl64.Vec3 { return r.Org.Add(r.Dir.Mul(t)) }

// Reversed returns the ray flipped around its origin, bounded by tMax.
func (r Ray) Reversed(tMax Real) Ray {
	return Ray{Org: r.Org, Dir: r.Dir.Mul(-1), TMin: 0, TMax: tMax}
}

// Basis is a right-handed orthonormal frame around a unit normal N.
// Local coordinates map x to T, y to N and z to B.
type Basis struct {
	N, T, B mgl64.Vec3
}

// NewBasis builds an orthonormal frame around n (assumed unit length).
func NewBasis(n mgl64.Vec3) Basis {
	// Pick the helper axis least aligned with n.
	helper := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.X()) > 0.9 {
		helper = mgl64.Vec3{0, 1, 0}
	}
	t := helper.Cross(n)
	l := t.Len()
	if l == 0 {
		// n was degenerate; fall back to the canonical frame.
		return Basis{N: mgl64.Vec3{0, 1, 0}, T: mgl64.Vec3{1, 0, 0}, B: mgl64.Vec3{0, 0, 1}}
	}
	t = t.Mul(1 / l)
	b := n.Cross(t)
	return Basis{N: n, T: t, B: b}
}

// TransformToParent maps a local-frame vector to world space.
func (f Basis) TransformToParent(v mgl64.Vec3) mgl64.Vec3 {
	return f.T.Mul(v.X()).Add(f.N.Mul(v.Y())).Add(f.B.Mul(v.Z()))
}

func clamp01(x Real) Real {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// linearstep maps x linearly from [lo,hi] onto [0,1], clamped.
func linearstep(lo, hi, x Real) Real {
	if hi <= lo {
		if x < lo {
			return 0
		}
		return 1
	}
	return clamp01((x - lo) / (hi - lo))
}

func isFinite(x Real) bool { return !math.IsInf(x, 0) && !math.IsNaN(x) }

func rmin(a, b Real) Real {
	if a < b {
		return a
	}
	return b
}

func rmax(a, b Real) Real {
	if a > b {
		return a
	}
	return b
}
