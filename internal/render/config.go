package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Vec3Cfg is a serializable 3-component vector.
type Vec3Cfg struct {
	X Real `yaml:"x" json:"x"`
	Y Real `yaml:"y" json:"y"`
	Z Real `yaml:"z" json:"z"`
}

func (v Vec3Cfg) Vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

type CameraCfg struct {
	LookFrom Vec3Cfg `yaml:"look_from" json:"look_from"`
	LookAt   Vec3Cfg `yaml:"look_at" json:"look_at"`
	Up       Vec3Cfg `yaml:"up" json:"up"`
	VFovDeg  Real    `yaml:"vfov_deg" json:"vfov_deg"`
}

// Build constructs the camera for a given image aspect ratio.
func (c CameraCfg) Build(aspect Real) *Camera {
	up := c.Up.Vec()
	if up.Len() == 0 {
		up = mgl64.Vec3{0, 1, 0}
	}
	vfov := c.VFovDeg
	if vfov <= 0 {
		vfov = 60
	}
	return NewCamera(c.LookFrom.Vec(), c.LookAt.Vec(), up, vfov, aspect)
}

type GroundPlaneCfg struct {
	Level      Real `yaml:"level" json:"level"`
	HalfExtent Real `yaml:"half_extent" json:"half_extent"`
}

type BoxCfg struct {
	Min Vec3Cfg `yaml:"min" json:"min"`
	Max Vec3Cfg `yaml:"max" json:"max"`
}

type TriangleCfg struct {
	A Vec3Cfg `yaml:"a" json:"a"`
	B Vec3Cfg `yaml:"b" json:"b"`
	C Vec3Cfg `yaml:"c" json:"c"`
}

type SceneCfg struct {
	GroundPlane *GroundPlaneCfg `yaml:"ground_plane,omitempty" json:"ground_plane,omitempty"`
	Boxes       []BoxCfg        `yaml:"boxes,omitempty" json:"boxes,omitempty"`
	Triangles   []TriangleCfg   `yaml:"triangles,omitempty" json:"triangles,omitempty"`
}

// Build validates and constructs the runtime scene.
func (sc SceneCfg) Build() (*Scene, error) {
	s := NewScene()
	if sc.GroundPlane != nil {
		if sc.GroundPlane.HalfExtent <= 0 {
			return nil, fmt.Errorf("ground plane half extent must be positive, got %g", sc.GroundPlane.HalfExtent)
		}
		s.AddGroundPlane(sc.GroundPlane.Level, sc.GroundPlane.HalfExtent)
	}
	for i, b := range sc.Boxes {
		min, max := b.Min.Vec(), b.Max.Vec()
		for a := 0; a < 3; a++ {
			if min[a] >= max[a] {
				return nil, fmt.Errorf("box #%d has empty extent on axis %d", i, a)
			}
		}
		s.AddBox(min, max)
	}
	for _, t := range sc.Triangles {
		s.AddTriangle(NewTriangle(t.A.Vec(), t.B.Vec(), t.C.Vec()))
	}
	if len(s.Triangles) == 0 {
		return nil, fmt.Errorf("scene config has no geometry")
	}
	return s, nil
}

type ShaderCfg struct {
	Model  string       `yaml:"model" json:"model"`
	Name   string       `yaml:"name,omitempty" json:"name,omitempty"`
	Params ShaderParams `yaml:"params" json:"params"`
}

type AOVCfg struct {
	PixelVariation bool   `yaml:"pixel_variation,omitempty" json:"pixel_variation,omitempty"`
	Output         string `yaml:"output,omitempty" json:"output,omitempty"`
}

// Config describes one render job.
type Config struct {
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	Spp    int    `yaml:"spp" json:"spp"`
	Seed   int64  `yaml:"seed,omitempty" json:"seed,omitempty"`
	Output string `yaml:"output" json:"output"`
	Gamma  Real   `yaml:"gamma,omitempty" json:"gamma,omitempty"`

	Camera CameraCfg `yaml:"camera" json:"camera"`
	Scene  SceneCfg  `yaml:"scene" json:"scene"`
	Shader ShaderCfg `yaml:"shader" json:"shader"`
	AOV    AOVCfg    `yaml:"aov,omitempty" json:"aov,omitempty"`
}

// DefaultConfig returns the config fields that have documented defaults;
// LoadConfig unmarshals over it so omitted keys keep their defaults.
func DefaultConfig() Config {
	return Config{
		Width:  256,
		Height: 256,
		Spp:    1,
		Output: "render.png",
		Gamma:  1.0,
		Camera: CameraCfg{
			LookFrom: Vec3Cfg{Y: 1, Z: 3},
			Up:       Vec3Cfg{Y: 1},
			VFovDeg:  60,
		},
		Shader: ShaderCfg{
			Model:  ModelVoxelAO,
			Name:   "ao",
			Params: DefaultShaderParams(),
		},
	}
}

// LoadConfig reads a YAML (.yaml/.yml) or JSON (.json) render config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cannot parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("cannot parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .json)", ext)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Spp < 1 {
		cfg.Spp = 1
	}
	if cfg.Gamma <= 0 {
		cfg.Gamma = 1.0
	}
	if cfg.Output == "" {
		return nil, fmt.Errorf("output path must not be empty")
	}
	if cfg.Shader.Model == "" {
		cfg.Shader.Model = ModelVoxelAO
	}
	if cfg.Shader.Name == "" {
		cfg.Shader.Name = cfg.Shader.Model
	}
	return &cfg, nil
}
