package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is a pinhole camera looking from Position along Forward.
type Camera struct {
	Position mgl64.Vec3
	forward  mgl64.Vec3
	right    mgl64.Vec3
	up       mgl64.Vec3
	halfW    Real
	halfH    Real
}

// NewCamera builds a camera from a look-at description. vfovDeg is the
// vertical field of view in degrees, aspect the width/height ratio.
func NewCamera(lookFrom, lookAt, worldUp mgl64.Vec3, vfovDeg, aspect Real) *Camera {
	forward := lookAt.Sub(lookFrom)
	if l := forward.Len(); l > 0 {
		forward = forward.Mul(1 / l)
	} else {
		forward = mgl64.Vec3{0, 0, -1}
	}
	right := forward.Cross(worldUp)
	if right.Len() < 1e-9 {
		right = mgl64.Vec3{1, 0, 0}
	} else {
		right = right.Normalize()
	}
	up := right.Cross(forward)

	halfH := math.Tan(vfovDeg * math.Pi / 360.0)
	return &Camera{
		Position: lookFrom,
		forward:  forward,
		right:    right,
		up:       up,
		halfW:    halfH * aspect,
		halfH:    halfH,
	}
}

// GenerateRay maps normalized image coordinates (u,v in [0,1], v grows
// downward) to a primary ray.
func (c *Camera) GenerateRay(u, v Real) Ray {
	dir := c.forward.
		Add(c.right.Mul((2*u - 1) * c.halfW)).
		Add(c.up.Mul((1 - 2*v) * c.halfH)).
		Normalize()
	return Ray{Org: c.Position, Dir: dir, TMin: epsDist, TMax: math.Inf(1)}
}
