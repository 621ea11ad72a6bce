package render

import (
	"fmt"

	"go.uber.org/zap"
)

// SurfaceShader turns shading points into shading results. Implementations
// must keep Evaluate safe for concurrent calls between OnFrameBegin calls.
type SurfaceShader interface {
	Name() string
	Model() string
	OnFrameBegin(scene *Scene, geometryVersion, transformVersion VersionStamp) error
	Evaluate(sc *SamplingContext, pt *ShadingPoint, res *ShadingResult) error
}

// SurfaceShaderFactory builds a shader from its recognized options.
type SurfaceShaderFactory func(name string, params ShaderParams, log *zap.Logger) (SurfaceShader, error)

var surfaceShaderFactories = map[string]SurfaceShaderFactory{
	ModelVoxelAO: func(name string, params ShaderParams, log *zap.Logger) (SurfaceShader, error) {
		return NewVoxelAOSurfaceShader(name, params, log), nil
	},
}

// CreateSurfaceShader looks up a shader model by name and builds it.
func CreateSurfaceShader(model, name string, params ShaderParams, log *zap.Logger) (SurfaceShader, error) {
	factory, ok := surfaceShaderFactories[model]
	if !ok {
		return nil, fmt.Errorf("unknown surface shader model %q", model)
	}
	return factory(name, params, log)
}

// SurfaceShaderModels lists the registered model names.
func SurfaceShaderModels() []string {
	models := make([]string, 0, len(surfaceShaderFactories))
	for m := range surfaceShaderFactories {
		models = append(models, m)
	}
	return models
}
