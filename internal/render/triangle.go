package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Triangle is the only renderable primitive. N is the unit geometric
// normal implied by the winding A->B->C.
type Triangle struct {
	A, B, C mgl64.Vec3
	N       mgl64.Vec3
}

// NewTriangle computes the geometric normal from the winding. A degenerate
// triangle gets a zero normal and never intersects.
func NewTriangle(a, b, c mgl64.Vec3) Triangle {
	n := b.Sub(a).Cross(c.Sub(a))
	if l := n.Len(); l > 0 {
		n = n.Mul(1 / l)
	} else {
		n = mgl64.Vec3{}
	}
	return Triangle{A: a, B: b, C: c, N: n}
}

// Bounds returns the axis-aligned bounding box of the triangle.
func (tr Triangle) Bounds() (mgl64.Vec3, mgl64.Vec3) {
	min := mgl64.Vec3{
		rmin(tr.A.X(), rmin(tr.B.X(), tr.C.X())),
		rmin(tr.A.Y(), rmin(tr.B.Y(), tr.C.Y())),
		rmin(tr.A.Z(), rmin(tr.B.Z(), tr.C.Z())),
	}
	max := mgl64.Vec3{
		rmax(tr.A.X(), rmax(tr.B.X(), tr.C.X())),
		rmax(tr.A.Y(), rmax(tr.B.Y(), tr.C.Y())),
		rmax(tr.A.Z(), rmax(tr.B.Z(), tr.C.Z())),
	}
	return min, max
}

// Intersect runs Moller-Trumbore against the ray, honoring [TMin, TMax].
func (tr Triangle) Intersect(r Ray) (Real, bool) {
	const eps = 1e-12

	e1 := tr.B.Sub(tr.A)
	e2 := tr.C.Sub(tr.A)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if det > -eps && det < eps {
		return 0, false
	}
	invDet := 1 / det

	s := r.Org.Sub(tr.A)
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(e1)
	v := r.Dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := e2.Dot(q) * invDet
	if t < r.TMin || t > r.TMax {
		return 0, false
	}
	return t, true
}

// Translated returns the triangle moved by d.
func (tr Triangle) Translated(d mgl64.Vec3) Triangle {
	return Triangle{A: tr.A.Add(d), B: tr.B.Add(d), C: tr.C.Add(d), N: tr.N}
}
