package render

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// stubTracer forces the outcome of both voxel queries: the reversed-ray
// exit query (solid=false) and the clearance query (solid=true).
type stubTracer struct {
	exitT   Real
	exitOK  bool
	clearT  Real
	clearOK bool
}

func (s *stubTracer) Trace(r Ray, solid bool) (Real, bool) {
	if solid {
		return s.clearT, s.clearOK
	}
	return s.exitT, s.exitOK
}

// estimatorRecorder replaces both estimators with counters that return
// fixed occlusion values.
type estimatorRecorder struct {
	classicCalls   int
	classicSamples int
	classicOrigin  mgl64.Vec3
	classicResult  Real

	fastCalls   int
	fastSamples int
	fastOrigin  mgl64.Vec3
	fastResult  Real
}

func (r *estimatorRecorder) install(sh *VoxelAOSurfaceShader) {
	sh.classicAO = func(sc *SamplingContext, it *Intersector, origin, n mgl64.Vec3,
		basis Basis, maxDistance Real, samples int) Real {
		r.classicCalls++
		r.classicSamples = samples
		r.classicOrigin = origin
		return r.classicResult
	}
	sh.fastAO = func(sc *SamplingContext, vt VoxelTracer, origin, n mgl64.Vec3,
		basis Basis, maxDistance Real, samples int) (Real, Real) {
		r.fastCalls++
		r.fastSamples = samples
		r.fastOrigin = origin
		return r.fastResult, maxDistance
	}
}

// newStubShader builds a shader whose voxel structure has a unit cell
// diagonal, so thresholds are simply low*~1 and high*~1, and whose
// estimators and tracer are fully controllable.
func newStubShader(t *testing.T, params ShaderParams, log *zap.Logger) (*VoxelAOSurfaceShader, *estimatorRecorder, *stubTracer) {
	t.Helper()
	sh := NewVoxelAOSurfaceShader("test", params, log)
	sh.buildTree = func(*Scene, Real) (*AOVoxelTree, error) {
		return &AOVoxelTree{maxDiag: 1}, nil
	}

	scene := NewScene()
	scene.AddGroundPlane(0, 1)
	if err := sh.OnFrameBegin(scene, scene.GeometryVersion(), scene.TransformVersion()); err != nil {
		t.Fatalf("OnFrameBegin: %v", err)
	}

	rec := &estimatorRecorder{classicResult: 0.8, fastResult: 0.4}
	rec.install(sh)
	tracer := &stubTracer{exitOK: true, clearOK: true}
	sh.voxelTracer = tracer
	return sh, rec, tracer
}

func testShadingPoint() *ShadingPoint {
	n := v3(0, 1, 0)
	return &ShadingPoint{
		Point:           v3(0, 0, 0),
		GeometricNormal: n,
		ShadingBasis:    NewBasis(n),
		Ray:             Ray{Org: v3(0, 2, 0), Dir: v3(0, -1, 0), TMin: 0, TMax: math.Inf(1)},
		Distance:        2,
	}
}

func TestShaderParamDefaults(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sh := NewVoxelAOSurfaceShader("ao", ShaderParams{}, zap.New(core))

	if sh.samples != DefaultSamples {
		t.Errorf("samples = %d, want %d", sh.samples, DefaultSamples)
	}
	if sh.maxDistance != DefaultMaxDistance {
		t.Errorf("maxDistance = %g, want %g", sh.maxDistance, DefaultMaxDistance)
	}
	if sh.maxVoxelExtent != DefaultMaxVoxelExtent {
		t.Errorf("maxVoxelExtent = %g, want %g", sh.maxVoxelExtent, DefaultMaxVoxelExtent)
	}
	// low == high == 0 is unusual but valid, so no warning.
	if logs.Len() != 0 {
		t.Errorf("unexpected warnings: %v", logs.All())
	}
}

func TestShaderInvalidThresholdsFallBack(t *testing.T) {
	cases := []struct {
		name      string
		low, high Real
	}{
		{"negative low", -1, 4},
		{"negative high", 2, -1},
		{"inverted band", 4, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			sh := NewVoxelAOSurfaceShader("ao", ShaderParams{
				LowThreshold:  c.low,
				HighThreshold: c.high,
			}, zap.New(core))

			require.Equal(t, Real(DefaultLowThreshold), sh.lowThreshold)
			require.Equal(t, Real(DefaultHighThreshold), sh.highThreshold)
			require.Equal(t, 1,
				logs.FilterMessage("invalid low and high threshold values, switching back to defaults").Len())
		})
	}
}

func TestShaderThresholdDerivation(t *testing.T) {
	sh := NewVoxelAOSurfaceShader("ao", ShaderParams{
		Samples:        16,
		MaxDistance:    1,
		MaxVoxelExtent: 0.1,
		LowThreshold:   2,
		HighThreshold:  4,
	}, nil)

	scene := NewScene()
	scene.AddGroundPlane(0, 1)
	require.NoError(t, sh.OnFrameBegin(scene, scene.GeometryVersion(), scene.TransformVersion()))

	diag := sh.voxelTree.MaxDiagLength() * (1.0 + boundaryMargin)
	require.Greater(t, diag, Real(0))
	require.InDelta(t, 2*diag, sh.classicThreshold, 1e-15)
	require.InDelta(t, 4*diag, sh.fastThreshold, 1e-15)
	require.LessOrEqual(t, sh.classicThreshold, sh.fastThreshold)
	require.Equal(t, 8, sh.halfSamples)
}

func TestShaderHalfSampleFloor(t *testing.T) {
	cases := []struct {
		samples, want int
	}{
		{1, 1},
		{2, 1},
		{3, 1},
		{4, 2},
		{16, 8},
	}
	for _, c := range cases {
		sh, _, _ := newStubShader(t, ShaderParams{Samples: c.samples}, nil)
		if sh.halfSamples != c.want {
			t.Errorf("samples=%d: halfSamples = %d, want %d", c.samples, sh.halfSamples, c.want)
		}
	}
}

func TestShaderRebuildsOnlyOnVersionChange(t *testing.T) {
	sh := NewVoxelAOSurfaceShader("ao", ShaderParams{}, nil)
	builds := 0
	sh.buildTree = func(*Scene, Real) (*AOVoxelTree, error) {
		builds++
		return &AOVoxelTree{maxDiag: 1}, nil
	}
	scene := NewScene()
	scene.AddGroundPlane(0, 1)

	require.NoError(t, sh.OnFrameBegin(scene, 1, 1))
	require.Equal(t, 1, builds)

	// Unchanged stamps reuse the structure.
	require.NoError(t, sh.OnFrameBegin(scene, 1, 1))
	require.Equal(t, 1, builds)

	// Geometry change alone rebuilds.
	require.NoError(t, sh.OnFrameBegin(scene, 2, 1))
	require.Equal(t, 2, builds)

	// Transform change alone rebuilds.
	require.NoError(t, sh.OnFrameBegin(scene, 2, 2))
	require.Equal(t, 3, builds)

	require.NoError(t, sh.OnFrameBegin(scene, 2, 2))
	require.Equal(t, 3, builds)
}

func TestShaderBuildFailureIsRetried(t *testing.T) {
	sh := NewVoxelAOSurfaceShader("ao", ShaderParams{}, nil)
	builds := 0
	boom := errors.New("boom")
	sh.buildTree = func(*Scene, Real) (*AOVoxelTree, error) {
		builds++
		return nil, boom
	}
	scene := NewScene()
	scene.AddGroundPlane(0, 1)

	require.ErrorIs(t, sh.OnFrameBegin(scene, 1, 1), boom)
	// The failed attempt must not be recorded as a successful rebuild.
	require.ErrorIs(t, sh.OnFrameBegin(scene, 1, 1), boom)
	require.Equal(t, 2, builds)
}

func TestShaderEvaluateBeforeFrameBegin(t *testing.T) {
	sh := NewVoxelAOSurfaceShader("ao", ShaderParams{}, nil)
	var res ShadingResult
	err := sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res)
	require.ErrorIs(t, err, ErrFrameNotBegun)
}

func TestShaderFastPath(t *testing.T) {
	sh, rec, tracer := newStubShader(t, ShaderParams{Samples: 16}, nil)
	tracer.exitT = 0
	tracer.clearT = sh.fastThreshold + 1

	var res ShadingResult
	pt := testShadingPoint()
	require.NoError(t, sh.Evaluate(NewSamplingContext(1), pt, &res))

	require.Equal(t, 1, rec.fastCalls)
	require.Equal(t, 0, rec.classicCalls)
	require.Equal(t, 16, rec.fastSamples)

	// With a zero backtrack the fast origin is the shading point shifted
	// one cell diagonal along the normal.
	want := pt.Point.Add(pt.GeometricNormal.Mul(sh.diagLength))
	for a := 0; a < 3; a++ {
		require.InDelta(t, want[a], rec.fastOrigin[a], 1e-12)
	}

	require.InDelta(t, 1-rec.fastResult, res.Color[0], 1e-12)
	require.Equal(t, res.Color[0], res.Color[1])
	require.Equal(t, res.Color[0], res.Color[2])
	require.Equal(t, Real(1), res.Alpha)
	require.Equal(t, ColorSpaceLinearRGB, res.ColorSpace)
}

func TestShaderFastPathWhenClearanceUnbounded(t *testing.T) {
	sh, rec, tracer := newStubShader(t, ShaderParams{Samples: 16}, nil)
	tracer.clearOK = false // nothing along the normal within the band

	var res ShadingResult
	require.NoError(t, sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res))
	require.Equal(t, 1, rec.fastCalls)
	require.Equal(t, 0, rec.classicCalls)
}

func TestShaderClassicPath(t *testing.T) {
	sh, rec, tracer := newStubShader(t, ShaderParams{Samples: 16}, nil)
	tracer.clearT = sh.classicThreshold * 0.5

	var res ShadingResult
	pt := testShadingPoint()
	require.NoError(t, sh.Evaluate(NewSamplingContext(1), pt, &res))

	require.Equal(t, 1, rec.classicCalls)
	require.Equal(t, 0, rec.fastCalls)
	require.Equal(t, 16, rec.classicSamples)
	// The classic estimator shoots from the original, unrecovered point.
	require.Equal(t, pt.Point, rec.classicOrigin)
	require.InDelta(t, 1-rec.classicResult, res.Color[0], 1e-12)
}

func TestShaderBlendPath(t *testing.T) {
	sh, rec, tracer := newStubShader(t, ShaderParams{Samples: 16}, nil)
	tracer.clearT = (sh.classicThreshold + sh.fastThreshold) / 2 // k = 0.5

	var res ShadingResult
	require.NoError(t, sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res))

	require.Equal(t, 1, rec.classicCalls)
	require.Equal(t, 1, rec.fastCalls)
	require.Equal(t, sh.halfSamples, rec.classicSamples)
	require.Equal(t, sh.halfSamples, rec.fastSamples)

	wantOcclusion := 0.5*rec.fastResult + 0.5*rec.classicResult
	require.InDelta(t, 1-wantOcclusion, res.Color[0], 1e-9)
}

func TestShaderBlendIsMonotonicAcrossBand(t *testing.T) {
	sh, _, tracer := newStubShader(t, ShaderParams{Samples: 16}, nil)

	// Fast reports less occlusion than classic, so accessibility must
	// not decrease as the clearance grows through the band.
	prev := Real(-1)
	const steps = 9
	for i := 1; i < steps; i++ {
		f := Real(i) / Real(steps)
		tracer.clearT = sh.classicThreshold + f*(sh.fastThreshold-sh.classicThreshold)

		var res ShadingResult
		require.NoError(t, sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res))
		require.GreaterOrEqual(t, res.Color[0], prev, "clearance fraction %g", f)
		prev = res.Color[0]
	}
}

func TestShaderSafeOriginBacktrackMargin(t *testing.T) {
	sh, rec, tracer := newStubShader(t, ShaderParams{Samples: 16}, nil)
	tracer.exitT = 0.5
	tracer.clearT = sh.fastThreshold + 1

	pt := testShadingPoint()
	var res ShadingResult
	require.NoError(t, sh.Evaluate(NewSamplingContext(1), pt, &res))

	// Backtrack along the reversed incoming ray (+Y here), padded by the
	// safety margin, then shifted one diagonal along the normal.
	wantY := 0.5*(1.0+boundaryMargin) + sh.diagLength
	require.InDelta(t, wantY, rec.fastOrigin.Y(), 1e-12)
	require.InDelta(t, 0, rec.fastOrigin.X(), 1e-12)
	require.InDelta(t, 0, rec.fastOrigin.Z(), 1e-12)
}

func TestShaderNoExitPointFallsBackToClassic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sh, rec, tracer := newStubShader(t, ShaderParams{Samples: 16}, zap.New(core))
	tracer.exitOK = false

	pt := testShadingPoint()
	var res ShadingResult
	err := sh.Evaluate(NewSamplingContext(1), pt, &res)
	require.ErrorIs(t, err, ErrNoExitPoint)

	require.Equal(t, 1, rec.classicCalls)
	require.Equal(t, 0, rec.fastCalls)
	require.Equal(t, 16, rec.classicSamples)
	require.Equal(t, pt.Point, rec.classicOrigin)

	// The result stays bounded despite the error.
	require.InDelta(t, 1-rec.classicResult, res.Color[0], 1e-12)
	require.GreaterOrEqual(t, res.Color[0], Real(0))
	require.LessOrEqual(t, res.Color[0], Real(1))
	require.Equal(t, Real(1), res.Alpha)

	require.Equal(t, 1, logs.Len())
}

func TestShaderDiagnosticsColors(t *testing.T) {
	newDiag := func(t *testing.T) (*VoxelAOSurfaceShader, *stubTracer) {
		sh, _, tracer := newStubShader(t, ShaderParams{Samples: 16, EnableDiagnostics: true}, nil)
		return sh, tracer
	}

	t.Run("fast is blue", func(t *testing.T) {
		sh, tracer := newDiag(t)
		tracer.clearT = sh.fastThreshold + 1
		var res ShadingResult
		require.NoError(t, sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res))
		require.Equal(t, [3]Real{0, 0, 1}, res.Color)
	})

	t.Run("classic is yellow", func(t *testing.T) {
		sh, tracer := newDiag(t)
		tracer.clearT = sh.classicThreshold * 0.5
		var res ShadingResult
		require.NoError(t, sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res))
		require.Equal(t, [3]Real{1, 1, 0}, res.Color)
	})

	t.Run("blend interpolates red to blue", func(t *testing.T) {
		sh, tracer := newDiag(t)
		tracer.clearT = (sh.classicThreshold + sh.fastThreshold) / 2
		var res ShadingResult
		require.NoError(t, sh.Evaluate(NewSamplingContext(1), testShadingPoint(), &res))
		require.InDelta(t, 0.5, res.Color[0], 1e-9)
		require.Equal(t, Real(0), res.Color[1])
		require.InDelta(t, 0.5, res.Color[2], 1e-9)
	})
}

func TestShaderVoxelExport(t *testing.T) {
	scene := NewScene()
	scene.AddGroundPlane(0, 1)

	t.Run("writes obj file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "voxels.obj")
		sh := NewVoxelAOSurfaceShader("ao", ShaderParams{
			MaxVoxelExtent: 0.5,
			OutputFilename: path,
		}, nil)
		require.NoError(t, sh.OnFrameBegin(scene, scene.GeometryVersion(), scene.TransformVersion()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.True(t, strings.Contains(string(data), "v "))
		require.True(t, strings.Contains(string(data), "f "))
	})

	t.Run("export failure only warns", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		sh := NewVoxelAOSurfaceShader("ao", ShaderParams{
			MaxVoxelExtent: 0.5,
			OutputFilename: filepath.Join(t.TempDir(), "no", "such", "dir", "voxels.obj"),
		}, zap.New(core))

		require.NoError(t, sh.OnFrameBegin(scene, scene.GeometryVersion(), scene.TransformVersion()))
		require.Equal(t, 1, logs.FilterMessage("cannot export voxel structure").Len())
	})
}

func TestCreateSurfaceShader(t *testing.T) {
	sh, err := CreateSurfaceShader(ModelVoxelAO, "ao", DefaultShaderParams(), nil)
	require.NoError(t, err)
	require.Equal(t, "ao", sh.Name())
	require.Equal(t, ModelVoxelAO, sh.Model())

	_, err = CreateSurfaceShader("no_such_model", "x", DefaultShaderParams(), nil)
	require.Error(t, err)

	require.Contains(t, SurfaceShaderModels(), ModelVoxelAO)
}
