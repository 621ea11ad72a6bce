package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ShadingPoint describes one surface sample to be shaded. It is read-only
// input; shaders never mutate it.
type ShadingPoint struct {
	// Point is the surface position that was hit.
	Point mgl64.Vec3
	// GeometricNormal is the unit surface normal, oriented toward the
	// incoming ray's origin.
	GeometricNormal mgl64.Vec3
	// ShadingBasis is the frame hemisphere samples are drawn in.
	ShadingBasis Basis
	// Ray is the incoming ray that produced the hit.
	Ray Ray
	// Distance is the hit distance along Ray.
	Distance Real
}

// ColorSpace tags the encoding of a shading result's color channels.
type ColorSpace uint8

const (
	ColorSpaceLinearRGB ColorSpace = iota
	ColorSpaceSRGB
)

// ShadingResult receives a shader's output for one shading point.
type ShadingResult struct {
	Color      [3]Real
	Alpha      Real
	ColorSpace ColorSpace
}
