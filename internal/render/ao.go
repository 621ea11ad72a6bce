package render

import (
	"github.com/go-gl/mathgl/mgl64"
)

// ComputeAmbientOcclusion is the classic estimator: it casts
// cosine-weighted hemisphere rays against the true scene geometry and
// returns the fraction that hit something within maxDistance. Accuracy is
// ground truth; cost scales with scene intersection cost.
func ComputeAmbientOcclusion(
	sc *SamplingContext,
	it *Intersector,
	origin mgl64.Vec3,
	geometricNormal mgl64.Vec3,
	basis Basis,
	maxDistance Real,
	samples int,
) Real {
	if samples <= 0 {
		return 0
	}
	hits := 0
	for i := 0; i < samples; i++ {
		u, v := sc.Next2()
		dir := basis.TransformToParent(SampleHemisphereCosine(u, v))

		// Directions below the geometric surface count as occluded.
		if dir.Dot(geometricNormal) <= 0 {
			hits++
			continue
		}

		ray := Ray{Org: origin, Dir: dir, TMin: epsDist, TMax: maxDistance}
		if it.Occluded(ray) {
			hits++
		}
	}
	return Real(hits) / Real(samples)
}

// ComputeFastAmbientOcclusion is the fast estimator: it casts the same
// hemisphere rays against the voxel structure, whose cost is roughly
// independent of geometric detail. It also reports the minimum hit
// distance found (maxDistance when nothing was hit), for diagnostics.
func ComputeFastAmbientOcclusion(
	sc *SamplingContext,
	vt VoxelTracer,
	origin mgl64.Vec3,
	geometricNormal mgl64.Vec3,
	basis Basis,
	maxDistance Real,
	samples int,
) (Real, Real) {
	minDistance := maxDistance
	if samples <= 0 {
		return 0, minDistance
	}
	hits := 0
	for i := 0; i < samples; i++ {
		u, v := sc.Next2()
		dir := basis.TransformToParent(SampleHemisphereCosine(u, v))

		if dir.Dot(geometricNormal) <= 0 {
			hits++
			continue
		}

		ray := Ray{Org: origin, Dir: dir, TMin: 0, TMax: maxDistance}
		if t, ok := vt.Trace(ray, true); ok {
			hits++
			if t < minDistance {
				minDistance = t
			}
		}
	}
	return Real(hits) / Real(samples), minDistance
}
