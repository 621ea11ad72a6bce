package render

import (
	"bufio"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
)

// AOVoxelTree is a uniform solid-voxel grid over the scene bounds, built
// once per frame from current geometry. Cells overlapped by any triangle
// are marked solid (a conservative voxelization). Immutable once built.
type AOVoxelTree struct {
	min, max mgl64.Vec3
	n        [3]int
	cell     mgl64.Vec3 // per-axis cell extent
	solid    []bool
	maxDiag  Real
}

// BuildAOVoxelTree voxelizes the scene with cells no larger than
// maxCellExtent per axis, capped at maxVoxelRes cells per axis.
func BuildAOVoxelTree(s *Scene, maxCellExtent Real) (*AOVoxelTree, error) {
	if maxCellExtent <= 0 {
		return nil, fmt.Errorf("max voxel extent must be positive, got %g", maxCellExtent)
	}
	min, max, ok := s.Bounds()
	if !ok {
		return nil, fmt.Errorf("scene contains no geometry")
	}

	// Guarantee a non-degenerate volume: every axis spans at least one
	// cell, so flat geometry still sits strictly inside the grid.
	for a := 0; a < 3; a++ {
		if ext := max[a] - min[a]; ext < maxCellExtent {
			pad := (maxCellExtent - ext) * 0.5
			min[a] -= pad
			max[a] += pad
		}
	}

	t := &AOVoxelTree{min: min, max: max}
	for a := 0; a < 3; a++ {
		ext := max[a] - min[a]
		n := int(math.Ceil(ext / maxCellExtent))
		if n < 1 {
			n = 1
		}
		if n > maxVoxelRes {
			n = maxVoxelRes
		}
		t.n[a] = n
		t.cell[a] = ext / Real(n)
	}
	t.solid = make([]bool, t.n[0]*t.n[1]*t.n[2])
	t.maxDiag = t.cell.Len()

	for _, tr := range s.Triangles {
		tMin, tMax := tr.Bounds()
		var lo, hi [3]int
		for a := 0; a < 3; a++ {
			lo[a] = t.cellIndex(a, tMin[a])
			hi[a] = t.cellIndex(a, tMax[a])
		}
		for i := lo[0]; i <= hi[0]; i++ {
			for j := lo[1]; j <= hi[1]; j++ {
				for k := lo[2]; k <= hi[2]; k++ {
					t.solid[t.idx(i, j, k)] = true
				}
			}
		}
	}
	return t, nil
}

// MaxDiagLength returns the diagonal length of the largest cell, the
// scale every clearance threshold derives from.
func (t *AOVoxelTree) MaxDiagLength() Real { return t.maxDiag }

func (t *AOVoxelTree) idx(i, j, k int) int { return (i*t.n[1]+j)*t.n[2] + k }

func (t *AOVoxelTree) cellIndex(axis int, x Real) int {
	i := int((x - t.min[axis]) / t.cell[axis])
	if i < 0 {
		i = 0
	}
	if i >= t.n[axis] {
		i = t.n[axis] - 1
	}
	return i
}

func (t *AOVoxelTree) solidAt(i, j, k int) bool {
	if i < 0 || j < 0 || k < 0 || i >= t.n[0] || j >= t.n[1] || k >= t.n[2] {
		return false
	}
	return t.solid[t.idx(i, j, k)]
}

// SolidLeafCount reports how many cells are marked solid.
func (t *AOVoxelTree) SolidLeafCount() int {
	count := 0
	for _, s := range t.solid {
		if s {
			count++
		}
	}
	return count
}

// DumpSolidLeaves exports the solid cells as boxes in Wavefront OBJ form,
// for external inspection only.
func (t *AOVoxelTree) DumpSolidLeaves(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	vert := 1
	for i := 0; i < t.n[0]; i++ {
		for j := 0; j < t.n[1]; j++ {
			for k := 0; k < t.n[2]; k++ {
				if !t.solid[t.idx(i, j, k)] {
					continue
				}
				x0 := t.min.X() + Real(i)*t.cell.X()
				y0 := t.min.Y() + Real(j)*t.cell.Y()
				z0 := t.min.Z() + Real(k)*t.cell.Z()
				x1, y1, z1 := x0+t.cell.X(), y0+t.cell.Y(), z0+t.cell.Z()
				for _, v := range [8][3]Real{
					{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0},
					{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1},
				} {
					fmt.Fprintf(w, "v %g %g %g\n", v[0], v[1], v[2])
				}
				for _, q := range [6][4]int{
					{0, 3, 2, 1}, {4, 5, 6, 7}, {0, 1, 5, 4},
					{3, 7, 6, 2}, {0, 4, 7, 3}, {1, 2, 6, 5},
				} {
					fmt.Fprintf(w, "f %d %d %d %d\n", vert+q[0], vert+q[1], vert+q[2], vert+q[3])
				}
				vert += 8
			}
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// VoxelTracer is the ray-query surface of the acceleration structure.
// solid=true asks for the nearest parametric entry into a solid cell;
// solid=false asks for the farthest exit from solid cells along the ray
// (the safe-origin recovery query).
type VoxelTracer interface {
	Trace(r Ray, solid bool) (Real, bool)
}

// AOVoxelTreeIntersector walks the voxel grid with a 3D DDA. It holds no
// mutable state and is safe for concurrent use.
type AOVoxelTreeIntersector struct {
	tree *AOVoxelTree
}

func NewAOVoxelTreeIntersector(t *AOVoxelTree) *AOVoxelTreeIntersector {
	return &AOVoxelTreeIntersector{tree: t}
}

// clipToBounds intersects the ray's [TMin, TMax] range with the grid
// volume.
func (it *AOVoxelTreeIntersector) clipToBounds(r Ray) (Real, Real, bool) {
	t0, t1 := r.TMin, r.TMax
	for a := 0; a < 3; a++ {
		d := r.Dir[a]
		if d == 0 {
			if r.Org[a] < it.tree.min[a] || r.Org[a] > it.tree.max[a] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d
		ta := (it.tree.min[a] - r.Org[a]) * inv
		tb := (it.tree.max[a] - r.Org[a]) * inv
		if ta > tb {
			ta, tb = tb, ta
		}
		if ta > t0 {
			t0 = ta
		}
		if tb < t1 {
			t1 = tb
		}
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, true
}

func (it *AOVoxelTreeIntersector) Trace(r Ray, solid bool) (Real, bool) {
	tree := it.tree
	t0, t1, ok := it.clipToBounds(r)
	if !ok {
		return 0, false
	}

	p := r.At(t0)
	var idx, step [3]int
	var tNext, tDelta [3]Real
	for a := 0; a < 3; a++ {
		idx[a] = tree.cellIndex(a, p[a])
		d := r.Dir[a]
		switch {
		case d > 0:
			step[a] = 1
			boundary := tree.min[a] + Real(idx[a]+1)*tree.cell[a]
			tNext[a] = t0 + (boundary-p[a])/d
			tDelta[a] = tree.cell[a] / d
		case d < 0:
			step[a] = -1
			boundary := tree.min[a] + Real(idx[a])*tree.cell[a]
			tNext[a] = t0 + (boundary-p[a])/d
			tDelta[a] = -tree.cell[a] / d
		default:
			step[a] = 0
			tNext[a] = math.Inf(1)
			tDelta[a] = math.Inf(1)
		}
	}

	tEnter := t0
	lastExit := Real(0)
	found := false
	for {
		if tree.solidAt(idx[0], idx[1], idx[2]) {
			if solid {
				return tEnter, true
			}
			exit := rmin(rmin(tNext[0], tNext[1]), tNext[2])
			if exit > t1 {
				exit = t1
			}
			lastExit = exit
			found = true
		}

		axis := 0
		if tNext[1] < tNext[axis] {
			axis = 1
		}
		if tNext[2] < tNext[axis] {
			axis = 2
		}
		tEnter = tNext[axis]
		if tEnter > t1 {
			break
		}
		idx[axis] += step[axis]
		if idx[axis] < 0 || idx[axis] >= tree.n[axis] {
			break
		}
		tNext[axis] += tDelta[axis]
	}

	if !solid && found {
		return lastExit, true
	}
	return 0, false
}
