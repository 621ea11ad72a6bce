package render

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// ErrNoExitPoint reports a safe-origin recovery that found no exit point
// along the reversed incoming ray. The shading point is expected to sit
// inside a solid voxel, so a miss indicates degenerate geometry or a bug
// in the acceleration structure. The evaluation falls back to the classic
// estimator from the original point and stays bounded.
var ErrNoExitPoint = errors.New("safe-origin recovery found no exit point")

// ErrFrameNotBegun reports an Evaluate call before the first successful
// OnFrameBegin.
var ErrFrameNotBegun = errors.New("shader evaluated before frame begin")

// ShaderParams are the recognized options of the voxel AO surface shader.
type ShaderParams struct {
	Samples           int     `yaml:"samples" json:"samples"`
	MaxDistance       Real    `yaml:"max_distance" json:"max_distance"`
	MaxVoxelExtent    Real    `yaml:"max_voxel_extent" json:"max_voxel_extent"`
	LowThreshold      Real    `yaml:"low_threshold" json:"low_threshold"`
	HighThreshold     Real    `yaml:"high_threshold" json:"high_threshold"`
	OutputFilename    string  `yaml:"output_filename,omitempty" json:"output_filename,omitempty"`
	EnableDiagnostics bool    `yaml:"enable_diagnostics,omitempty" json:"enable_diagnostics,omitempty"`
}

// DefaultShaderParams returns the documented option defaults.
func DefaultShaderParams() ShaderParams {
	return ShaderParams{
		Samples:        DefaultSamples,
		MaxDistance:    DefaultMaxDistance,
		MaxVoxelExtent: DefaultMaxVoxelExtent,
		LowThreshold:   DefaultLowThreshold,
		HighThreshold:  DefaultHighThreshold,
	}
}

// Swappable estimator and build hooks, so tests can count invocations and
// force outcomes.
type (
	buildTreeFunc func(*Scene, Real) (*AOVoxelTree, error)

	classicAOFunc func(sc *SamplingContext, it *Intersector, origin, geometricNormal mgl64.Vec3,
		basis Basis, maxDistance Real, samples int) Real

	fastAOFunc func(sc *SamplingContext, vt VoxelTracer, origin, geometricNormal mgl64.Vec3,
		basis Basis, maxDistance Real, samples int) (Real, Real)
)

// VoxelAOSurfaceShader estimates ambient occlusion by adaptively choosing,
// per shading point, between a classic ray-traced estimator and a fast
// voxel-based one, blending across a transition band so the switch is not
// visible. It owns one voxel structure per frame, rebuilt when the scene's
// version stamps change.
//
// OnFrameBegin must run single-threaded; after it returns, Evaluate may be
// called concurrently from any number of goroutines for the rest of the
// frame because every field it reads is immutable until the next
// OnFrameBegin.
type VoxelAOSurfaceShader struct {
	name string
	log  *zap.Logger

	samples           int
	maxDistance       Real
	maxVoxelExtent    Real
	lowThreshold      Real
	highThreshold     Real
	outputFilename    string
	enableDiagnostics bool

	buildTree buildTreeFunc
	classicAO classicAOFunc
	fastAO    fastAOFunc

	lastGeometryVersion  VersionStamp
	lastTransformVersion VersionStamp

	// Frame-scoped state, valid between OnFrameBegin calls.
	voxelTree        *AOVoxelTree
	voxelTracer      VoxelTracer
	intersector      *Intersector
	diagLength       Real
	classicThreshold Real
	fastThreshold    Real
	halfSamples      int
}

// ModelVoxelAO is the registry name of this shader.
const ModelVoxelAO = "voxel_ao"

// NewVoxelAOSurfaceShader validates params, falling back to documented
// defaults (with a warning) where they are unusable.
func NewVoxelAOSurfaceShader(name string, params ShaderParams, log *zap.Logger) *VoxelAOSurfaceShader {
	if log == nil {
		log = zap.NewNop()
	}
	if params.Samples <= 0 {
		params.Samples = DefaultSamples
	}
	if params.MaxDistance <= 0 {
		params.MaxDistance = DefaultMaxDistance
	}
	if params.MaxVoxelExtent <= 0 {
		params.MaxVoxelExtent = DefaultMaxVoxelExtent
	}
	if params.LowThreshold < 0 || params.HighThreshold < 0 || params.HighThreshold < params.LowThreshold {
		log.Warn("invalid low and high threshold values, switching back to defaults",
			zap.String("shader", name),
			zap.Float64("low_threshold", params.LowThreshold),
			zap.Float64("high_threshold", params.HighThreshold),
			zap.Float64("default_low", DefaultLowThreshold),
			zap.Float64("default_high", DefaultHighThreshold))
		params.LowThreshold = DefaultLowThreshold
		params.HighThreshold = DefaultHighThreshold
	}

	return &VoxelAOSurfaceShader{
		name:                 name,
		log:                  log,
		samples:              params.Samples,
		maxDistance:          params.MaxDistance,
		maxVoxelExtent:       params.MaxVoxelExtent,
		lowThreshold:         params.LowThreshold,
		highThreshold:        params.HighThreshold,
		outputFilename:       params.OutputFilename,
		enableDiagnostics:    params.EnableDiagnostics,
		buildTree:            BuildAOVoxelTree,
		classicAO:            ComputeAmbientOcclusion,
		fastAO:               ComputeFastAmbientOcclusion,
		lastGeometryVersion:  InvalidVersion,
		lastTransformVersion: InvalidVersion,
	}
}

func (sh *VoxelAOSurfaceShader) Name() string  { return sh.name }
func (sh *VoxelAOSurfaceShader) Model() string { return ModelVoxelAO }

// OnFrameBegin rebuilds the voxel structure if either the scene geometry
// or the instance-transform version changed since the last successful
// rebuild, then derives the frame's thresholds from the new structure's
// diagonal length. It must not run concurrently with Evaluate.
func (sh *VoxelAOSurfaceShader) OnFrameBegin(scene *Scene, geometryVersion, transformVersion VersionStamp) error {
	if geometryVersion == sh.lastGeometryVersion &&
		transformVersion == sh.lastTransformVersion &&
		sh.voxelTree != nil {
		return nil
	}

	tree, err := sh.buildTree(scene, sh.maxVoxelExtent)
	if err != nil {
		return err
	}
	sh.lastGeometryVersion = geometryVersion
	sh.lastTransformVersion = transformVersion
	sh.voxelTree = tree

	if sh.outputFilename != "" {
		if err := tree.DumpSolidLeaves(sh.outputFilename); err != nil {
			sh.log.Warn("cannot export voxel structure",
				zap.String("shader", sh.name),
				zap.String("path", sh.outputFilename),
				zap.Error(err))
		}
	}

	sh.diagLength = tree.MaxDiagLength() * (1.0 + boundaryMargin)
	sh.classicThreshold = sh.lowThreshold * sh.diagLength
	sh.fastThreshold = sh.highThreshold * sh.diagLength

	sh.halfSamples = sh.samples / 2
	if sh.halfSamples < 1 {
		sh.halfSamples = 1
	}

	sh.voxelTracer = NewAOVoxelTreeIntersector(tree)
	sh.intersector = NewIntersector(scene)
	return nil
}

// Evaluate shades one point. sc is consumed exclusively by this call.
func (sh *VoxelAOSurfaceShader) Evaluate(sc *SamplingContext, pt *ShadingPoint, res *ShadingResult) error {
	if sh.voxelTracer == nil || sh.intersector == nil {
		return ErrFrameNotBegun
	}

	res.ColorSpace = ColorSpaceLinearRGB
	res.Alpha = 1

	n := pt.GeometricNormal
	safeOrigin := pt.Point

	// Find the exit point of the voxel volume along the incoming ray.
	// The shading point sits on geometry, hence inside a solid cell, so
	// a hit is guaranteed unless the structure disagrees with the scene.
	reverse := Ray{Org: pt.Point, Dir: pt.Ray.Dir}.Reversed(pt.Distance)
	backtrack, hit := sh.voxelTracer.Trace(reverse, false)
	if !hit {
		sh.log.Error("no exit point along reversed ray, falling back to classic estimator",
			zap.String("shader", sh.name))
		occlusion := sh.classicAO(sc, sh.intersector, pt.Point, n, pt.ShadingBasis, sh.maxDistance, sh.samples)
		writeAccessibility(res, occlusion)
		return ErrNoExitPoint
	}
	safeOrigin = safeOrigin.Add(reverse.Dir.Mul(backtrack * (1.0 + boundaryMargin)))

	// Measure the clearance distance along the geometric normal.
	normalRay := Ray{Org: safeOrigin, Dir: n, TMin: 0, TMax: sh.fastThreshold}
	clearance := sh.fastThreshold
	if t, ok := sh.voxelTracer.Trace(normalRay, true); ok {
		clearance = t
	}

	// Shift the origin along the geometric normal, clear of the voxel
	// volume's own boundary.
	safeOrigin = safeOrigin.Add(n.Mul(sh.diagLength))

	var occlusion Real
	switch {
	case clearance >= sh.fastThreshold:
		// Clearance is high: the voxel approximation is accurate here.
		occlusion, _ = sh.fastAO(sc, sh.voxelTracer, safeOrigin, n, pt.ShadingBasis, sh.maxDistance, sh.samples)

		if sh.enableDiagnostics {
			res.Color = [3]Real{0, 0, 1}
			return nil
		}

	case clearance < sh.classicThreshold:
		// Clearance is low: geometry is close or thin, only ground
		// truth is trustworthy. Uses the original, unrecovered point.
		occlusion = sh.classicAO(sc, sh.intersector, pt.Point, n, pt.ShadingBasis, sh.maxDistance, sh.samples)

		if sh.enableDiagnostics {
			res.Color = [3]Real{1, 1, 0}
			return nil
		}

	default:
		// Transition band: blend both estimators at half cost each.
		classic := sh.classicAO(sc, sh.intersector, pt.Point, n, pt.ShadingBasis, sh.maxDistance, sh.halfSamples)
		fast, _ := sh.fastAO(sc, sh.voxelTracer, safeOrigin, n, pt.ShadingBasis, sh.maxDistance, sh.halfSamples)

		// Linear interpolation; smoothstep was tried in the original and
		// did not improve the results.
		k := linearstep(sh.classicThreshold, sh.fastThreshold, clearance)
		occlusion = k*fast + (1-k)*classic

		if sh.enableDiagnostics {
			res.Color = [3]Real{1 - k, 0, k}
			return nil
		}
	}

	writeAccessibility(res, occlusion)
	return nil
}

// writeAccessibility stores 1-occlusion as a gray scale value.
func writeAccessibility(res *ShadingResult, occlusion Real) {
	a := clamp01(1 - occlusion)
	res.Color = [3]Real{a, a, a}
}
