package render

// Real is the scalar type used for all geometric computation.
type Real = float64

// Recognized shader option defaults.
const (
	DefaultSamples        = 16
	DefaultMaxDistance    = 1.0
	DefaultMaxVoxelExtent = 0.01
	DefaultLowThreshold   = 2.0
	DefaultHighThreshold  = 4.0
)

const (
	BVHMaxLeafSize = 2
	// Relative safety margin applied when stepping past a boundary
	// recovered from the voxel structure.
	boundaryMargin = 1.0e-5
	// Minimum parametric distance for occlusion rays, to avoid
	// self-intersection with the surface they start on.
	epsDist = 1e-6
	// Per-axis cap on voxel grid resolution; keeps a pathological
	// max_voxel_extent from exhausting memory.
	maxVoxelRes = 512
)
