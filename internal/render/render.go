package render

import (
	"errors"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RenderOptions control one frame render.
type RenderOptions struct {
	Width    int
	Height   int
	Spp      int // primary samples per pixel
	Seed     int64
	TileSize int
	// PixelVariation enables the variation AOV; it only carries signal
	// when Spp > 1.
	PixelVariation bool
}

// RenderStats summarize one frame render.
type RenderStats struct {
	Evaluations         int64
	Misses              int64
	InvariantViolations int64
	Elapsed             time.Duration
}

// RenderFrame renders the scene with the given surface shader. The
// frame-start rebuild runs single-threaded here; the tile fan-out below
// starts only afterwards, which gives every worker a happens-before edge
// to the completed, immutable frame state.
func RenderFrame(scene *Scene, shader SurfaceShader, cam *Camera, opts RenderOptions, log *zap.Logger) (*Frame, *PixelVariationAOV, RenderStats, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Spp < 1 {
		opts.Spp = 1
	}
	if opts.TileSize < 1 {
		opts.TileSize = 32
	}

	start := time.Now()
	if err := shader.OnFrameBegin(scene, scene.GeometryVersion(), scene.TransformVersion()); err != nil {
		return nil, nil, RenderStats{}, err
	}

	frame := NewFrame(opts.Width, opts.Height)
	var aov *PixelVariationAOV
	if opts.PixelVariation {
		aov = NewPixelVariationAOV(opts.Width, opts.Height)
	}
	primary := NewIntersector(scene)

	var evaluations, misses, violations int64

	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)

	tilesX := (opts.Width + opts.TileSize - 1) / opts.TileSize
	tilesY := (opts.Height + opts.TileSize - 1) / opts.TileSize
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			tileIdx := ty*tilesX + tx
			x0, y0 := tx*opts.TileSize, ty*opts.TileSize
			x1, y1 := x0+opts.TileSize, y0+opts.TileSize
			if x1 > opts.Width {
				x1 = opts.Width
			}
			if y1 > opts.Height {
				y1 = opts.Height
			}

			g.Go(func() error {
				seed := opts.Seed ^ int64(uint64(tileIdx+1)*0x9e3779b97f4a7c15)
				sc := NewSamplingContext(seed)
				samples := make([]Real, 0, opts.Spp)

				for y := y0; y < y1; y++ {
					for x := x0; x < x1; x++ {
						samples = samples[:0]
						var acc [3]Real

						for s := 0; s < opts.Spp; s++ {
							ju, jv := Real(0.5), Real(0.5)
							if opts.Spp > 1 {
								ju, jv = sc.Next2()
							}
							u := (Real(x) + ju) / Real(opts.Width)
							v := (Real(y) + jv) / Real(opts.Height)
							ray := cam.GenerateRay(u, v)

							hit, ok := primary.Nearest(ray)
							if !ok {
								// Nothing to occlude: fully accessible.
								atomic.AddInt64(&misses, 1)
								acc[0]++
								acc[1]++
								acc[2]++
								samples = append(samples, 1)
								continue
							}

							n := hit.N
							if n.Dot(ray.Dir) > 0 {
								n = n.Mul(-1)
							}
							pt := ShadingPoint{
								Point:           ray.At(hit.T),
								GeometricNormal: n,
								ShadingBasis:    NewBasis(n),
								Ray:             ray,
								Distance:        hit.T,
							}

							var res ShadingResult
							err := shader.Evaluate(sc, &pt, &res)
							switch {
							case err == nil:
							case errors.Is(err, ErrNoExitPoint):
								// Bounded fallback result already written.
								atomic.AddInt64(&violations, 1)
							default:
								return err
							}
							atomic.AddInt64(&evaluations, 1)

							acc[0] += res.Color[0]
							acc[1] += res.Color[1]
							acc[2] += res.Color[2]
							samples = append(samples, res.Color[0])
						}

						inv := 1 / Real(opts.Spp)
						frame.SetPixel(x, y, [3]Real{acc[0] * inv, acc[1] * inv, acc[2] * inv})

						if aov != nil && len(samples) > 1 {
							mean := acc[0] * inv
							for _, s := range samples {
								aov.Record(x, y, math.Abs(s-mean))
							}
						}
					}
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, nil, RenderStats{}, err
	}

	stats := RenderStats{
		Evaluations:         evaluations,
		Misses:              misses,
		InvariantViolations: violations,
		Elapsed:             time.Since(start),
	}
	if violations > 0 {
		log.Warn("safe-origin recovery failed for some shading points",
			zap.Int64("count", violations))
	}
	return frame, aov, stats, nil
}
