package render

import (
	"fmt"

	"go.uber.org/zap"
)

// Run renders one frame described by the config file and writes the
// resulting image(s) to disk.
func Run(cfgPath string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	scene, err := cfg.Scene.Build()
	if err != nil {
		return err
	}

	shader, err := CreateSurfaceShader(cfg.Shader.Model, cfg.Shader.Name, cfg.Shader.Params, log)
	if err != nil {
		return err
	}

	cam := cfg.Camera.Build(Real(cfg.Width) / Real(cfg.Height))

	opts := RenderOptions{
		Width:          cfg.Width,
		Height:         cfg.Height,
		Spp:            cfg.Spp,
		Seed:           cfg.Seed,
		PixelVariation: cfg.AOV.PixelVariation,
	}
	frame, aov, stats, err := RenderFrame(scene, shader, cam, opts, log)
	if err != nil {
		return err
	}
	log.Info("frame rendered",
		zap.Int("width", cfg.Width),
		zap.Int("height", cfg.Height),
		zap.Int("spp", cfg.Spp),
		zap.Int64("evaluations", stats.Evaluations),
		zap.Int64("invariant_violations", stats.InvariantViolations),
		zap.Duration("elapsed", stats.Elapsed))

	if err := frame.WritePNG(cfg.Output, cfg.Gamma); err != nil {
		return fmt.Errorf("cannot write frame: %w", err)
	}
	log.Info("wrote frame", zap.String("path", cfg.Output))

	if aov != nil && cfg.AOV.Output != "" {
		if err := aov.PostProcess().WritePNG(cfg.AOV.Output, 1.0); err != nil {
			return fmt.Errorf("cannot write pixel variation aov: %w", err)
		}
		log.Info("wrote pixel variation aov", zap.String("path", cfg.AOV.Output))
	}
	return nil
}
