package render

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

type bvhLeaf struct {
	min, max mgl64.Vec3
	tri      Triangle
}

type bvhNode struct {
	min, max mgl64.Vec3
	left     *bvhNode
	right    *bvhNode
	leafTris []bvhLeaf // non-nil => leaf
}

type rayRecips struct {
	inv [3]Real
	par [3]bool
}

func computeRayRecips(d mgl64.Vec3) rayRecips {
	const eps = 1e-18
	rr := rayRecips{}
	for a := 0; a < 3; a++ {
		if v := d[a]; v > eps || v < -eps {
			rr.inv[a] = 1 / v
		} else {
			rr.par[a] = true
		}
	}
	return rr
}

// rayAABB is the slab test; reports whether the ray crosses the box and
// the parametric entry distance (clamped to 0 when the origin is inside).
func rayAABB(o, min, max mgl64.Vec3, rr rayRecips) (bool, Real) {
	tmin, tmax := Real(0), Real(math.Inf(1))
	for a := 0; a < 3; a++ {
		if rr.par[a] {
			if o[a] < min[a] || o[a] > max[a] {
				return false, 0
			}
			continue
		}
		t1 := (min[a] - o[a]) * rr.inv[a]
		t2 := (max[a] - o[a]) * rr.inv[a]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return false, 0
		}
	}
	return true, tmin
}

func aabbUnion(aMin, aMax, bMin, bMax mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{
			rmin(aMin.X(), bMin.X()),
			rmin(aMin.Y(), bMin.Y()),
			rmin(aMin.Z(), bMin.Z()),
		}, mgl64.Vec3{
			rmax(aMax.X(), bMax.X()),
			rmax(aMax.Y(), bMax.Y()),
			rmax(aMax.Z(), bMax.Z()),
		}
}

func centroid(a, b Real) Real { return (a + b) * 0.5 }

func leafCentroidAxis(l bvhLeaf, axis int) Real { return centroid(l.min[axis], l.max[axis]) }

func buildBVH(leaves []bvhLeaf) *bvhNode {
	n := len(leaves)
	if n == 0 {
		return nil
	}
	if n <= BVHMaxLeafSize {
		minP, maxP := leaves[0].min, leaves[0].max
		for i := 1; i < n; i++ {
			minP, maxP = aabbUnion(minP, maxP, leaves[i].min, leaves[i].max)
		}
		return &bvhNode{min: minP, max: maxP, leafTris: leaves}
	}

	// Union bounds and centroid spreads.
	minP, maxP := leaves[0].min, leaves[0].max
	var cmin, cmax [3]Real
	for a := 0; a < 3; a++ {
		c := leafCentroidAxis(leaves[0], a)
		cmin[a], cmax[a] = c, c
	}
	for i := 1; i < n; i++ {
		minP, maxP = aabbUnion(minP, maxP, leaves[i].min, leaves[i].max)
		for a := 0; a < 3; a++ {
			c := leafCentroidAxis(leaves[i], a)
			if c < cmin[a] {
				cmin[a] = c
			}
			if c > cmax[a] {
				cmax[a] = c
			}
		}
	}
	axis := 0
	for a := 1; a < 3; a++ {
		if cmax[a]-cmin[a] > cmax[axis]-cmin[axis] {
			axis = a
		}
	}

	// If all centroids coincide (degenerate), fall back to the longest
	// box extent axis.
	if cmax[axis]-cmin[axis] <= 1e-18 {
		axis = 0
		for a := 1; a < 3; a++ {
			if maxP[a]-minP[a] > maxP[axis]-minP[axis] {
				axis = a
			}
		}
	}

	// Sort by the chosen centroid axis, split at the median.
	sort.Slice(leaves, func(i, j int) bool {
		ci := leafCentroidAxis(leaves[i], axis)
		cj := leafCentroidAxis(leaves[j], axis)
		if ci == cj {
			return i < j
		}
		return ci < cj
	})
	mid := n / 2
	left := buildBVH(leaves[:mid])
	right := buildBVH(leaves[mid:])

	return &bvhNode{min: minP, max: maxP, left: left, right: right}
}

// Hit is a nearest-intersection query result against scene geometry.
type Hit struct {
	T Real
	N mgl64.Vec3
}

// Intersector answers ray queries against a frame-immutable snapshot of
// the scene's triangles. Safe for concurrent use once built.
type Intersector struct {
	root *bvhNode
}

// NewIntersector snapshots the scene's triangles into a BVH.
func NewIntersector(s *Scene) *Intersector {
	leaves := make([]bvhLeaf, 0, len(s.Triangles))
	for _, tr := range s.Triangles {
		min, max := tr.Bounds()
		leaves = append(leaves, bvhLeaf{min: min, max: max, tri: tr})
	}
	return &Intersector{root: buildBVH(leaves)}
}

// Nearest returns the closest triangle hit within the ray's range.
func (it *Intersector) Nearest(r Ray) (Hit, bool) {
	if it.root == nil {
		return Hit{}, false
	}
	bestT := r.TMax
	var bestN mgl64.Vec3
	found := false
	rr := computeRayRecips(r.Dir)

	type entry struct {
		n    *bvhNode
		tmin Real
	}
	stack := []entry{{n: it.root, tmin: 0}}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ok, tmin := rayAABB(r.Org, e.n.min, e.n.max, rr)
		if !ok || tmin > bestT {
			continue
		}

		if e.n.leafTris != nil {
			for i := range e.n.leafTris {
				if t, ok := e.n.leafTris[i].tri.Intersect(r); ok && t < bestT {
					bestT = t
					bestN = e.n.leafTris[i].tri.N
					found = true
				}
			}
			continue
		}

		// Order children near -> far (push far first so near pops next).
		var lOK, rOK bool
		var lT, rT Real
		if e.n.left != nil {
			lOK, lT = rayAABB(r.Org, e.n.left.min, e.n.left.max, rr)
			lOK = lOK && lT <= bestT
		}
		if e.n.right != nil {
			rOK, rT = rayAABB(r.Org, e.n.right.min, e.n.right.max, rr)
			rOK = rOK && rT <= bestT
		}
		switch {
		case lOK && rOK:
			if lT < rT {
				stack = append(stack, entry{e.n.right, rT}, entry{e.n.left, lT})
			} else {
				stack = append(stack, entry{e.n.left, lT}, entry{e.n.right, rT})
			}
		case lOK:
			stack = append(stack, entry{e.n.left, lT})
		case rOK:
			stack = append(stack, entry{e.n.right, rT})
		}
	}

	if !found {
		return Hit{}, false
	}
	return Hit{T: bestT, N: bestN}, true
}

// Occluded reports whether anything blocks the ray within its range.
// Unlike Nearest it stops at the first hit.
func (it *Intersector) Occluded(r Ray) bool {
	if it.root == nil {
		return false
	}
	rr := computeRayRecips(r.Dir)
	stack := []*bvhNode{it.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ok, tmin := rayAABB(r.Org, n.min, n.max, rr)
		if !ok || tmin > r.TMax {
			continue
		}
		if n.leafTris != nil {
			for i := range n.leafTris {
				if _, ok := n.leafTris[i].tri.Intersect(r); ok {
					return true
				}
			}
			continue
		}
		if n.left != nil {
			stack = append(stack, n.left)
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
	}
	return false
}
