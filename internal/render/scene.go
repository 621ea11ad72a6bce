package render

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// VersionStamp identifies one revision of the scene's geometry or of its
// instance transforms. Stamps are compared for equality only; there is no
// ordering contract beyond changed / unchanged.
type VersionStamp uint64

// InvalidVersion never matches a stamp handed out by a Scene, so a shader
// seeded with it always rebuilds on its first frame.
const InvalidVersion VersionStamp = math.MaxUint64

// Scene is a triangle soup plus the version stamps that drive frame-start
// cache invalidation. Mutations must not run concurrently with rendering.
type Scene struct {
	Triangles []Triangle

	geometryVersion  VersionStamp
	transformVersion VersionStamp
}

func NewScene() *Scene { return &Scene{} }

// GeometryVersion changes whenever triangles are added or removed.
func (s *Scene) GeometryVersion() VersionStamp { return s.geometryVersion }

// TransformVersion changes whenever existing geometry is moved.
func (s *Scene) TransformVersion() VersionStamp { return s.transformVersion }

// AddTriangle appends one triangle and bumps the geometry version.
func (s *Scene) AddTriangle(tr Triangle) {
	s.Triangles = append(s.Triangles, tr)
	s.geometryVersion++
}

// AddGroundPlane adds a square y=level plane of the given half extent,
// facing +Y.
func (s *Scene) AddGroundPlane(level, halfExtent Real) {
	a := mgl64.Vec3{-halfExtent, level, -halfExtent}
	b := mgl64.Vec3{-halfExtent, level, +halfExtent}
	c := mgl64.Vec3{+halfExtent, level, +halfExtent}
	d := mgl64.Vec3{+halfExtent, level, -halfExtent}
	s.AddTriangle(NewTriangle(a, b, c))
	s.AddTriangle(NewTriangle(a, c, d))
}

// AddBox adds the twelve triangles of an axis-aligned box with outward
// normals.
func (s *Scene) AddBox(min, max mgl64.Vec3) {
	v := [8]mgl64.Vec3{
		{min.X(), min.Y(), min.Z()},
		{max.X(), min.Y(), min.Z()},
		{max.X(), max.Y(), min.Z()},
		{min.X(), max.Y(), min.Z()},
		{min.X(), min.Y(), max.Z()},
		{max.X(), min.Y(), max.Z()},
		{max.X(), max.Y(), max.Z()},
		{min.X(), max.Y(), max.Z()},
	}
	quads := [6][4]int{
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
		{0, 1, 5, 4}, // -Y
		{3, 7, 6, 2}, // +Y
		{0, 4, 7, 3}, // -X
		{1, 2, 6, 5}, // +X
	}
	for _, q := range quads {
		s.AddTriangle(NewTriangle(v[q[0]], v[q[1]], v[q[2]]))
		s.AddTriangle(NewTriangle(v[q[0]], v[q[2]], v[q[3]]))
	}
}

// Translate moves all geometry by d and bumps the transform version.
func (s *Scene) Translate(d mgl64.Vec3) {
	for i := range s.Triangles {
		s.Triangles[i] = s.Triangles[i].Translated(d)
	}
	s.transformVersion++
}

// Bounds returns the union AABB of all triangles; ok is false for an
// empty scene.
func (s *Scene) Bounds() (min, max mgl64.Vec3, ok bool) {
	if len(s.Triangles) == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}, false
	}
	min, max = s.Triangles[0].Bounds()
	for _, tr := range s.Triangles[1:] {
		tMin, tMax := tr.Bounds()
		min, max = aabbUnion(min, max, tMin, tMax)
	}
	return min, max, true
}
