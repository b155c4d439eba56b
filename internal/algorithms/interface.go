// Stage registry describing the pixel pipeline stages and their parameters
package algorithms

import (
	"fmt"
	"sort"
)

// Stage names in pipeline order
const (
	StageGrayscale = "grayscale"
	StageSmoothing = "smoothing"
	StageGradient  = "gradient"
	StageClassify  = "classification"
)

// Stage describes one pipeline stage for configuration surfaces
type Stage interface {
	GetName() string
	GetDescription() string
	GetParameterInfo() []ParameterInfo
	Order() int
}

// ParameterInfo describes a parameter for UI generation
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "int", "float", "bool", "enum"
	Min         interface{} `json:"min,omitempty"`
	Max         interface{} `json:"max,omitempty"`
	Default     interface{} `json:"default"`
	Description string      `json:"description"`
	Options     []string    `json:"options,omitempty"` // For enum type
}

type stageInfo struct {
	name        string
	description string
	order       int
	params      []ParameterInfo
}

func (s stageInfo) GetName() string { return s.name }
func (s stageInfo) GetDescription() string { return s.description }
func (s stageInfo) GetParameterInfo() []ParameterInfo { return s.params }
func (s stageInfo) Order() int { return s.order }

var stages = make(map[string]Stage)

func Register(stage Stage) {
	stages[stage.GetName()] = stage
}

func Get(name string) (Stage, bool) {
	stage, exists := stages[name]
	return stage, exists
}

func IsValidStage(name string) bool {
	_, exists := stages[name]
	return exists
}

// GetAllStages returns registered stages sorted by pipeline order
func GetAllStages() []Stage {
	result := make([]Stage, 0, len(stages))
	for _, stage := range stages {
		result = append(result, stage)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Order() < result[j].Order()
	})
	return result
}

// MustGet returns a registered stage or panics; used for the built-in stage names.
func MustGet(name string) Stage {
	stage, ok := Get(name)
	if !ok {
		panic(fmt.Sprintf("stage not registered: %s", name))
	}
	return stage
}

func init() {
	Register(stageInfo{
		name:        StageGrayscale,
		description: "Perceptual luminance (0.299R + 0.587G + 0.114B) written to all color channels",
		order:       0,
		params: []ParameterInfo{
			{
				Name:        "grayscale_enabled",
				Type:        "bool",
				Default:     true,
				Description: "Show the grayscale frame; always runs when edge detection is enabled",
			},
		},
	})
	Register(stageInfo{
		name:        StageSmoothing,
		description: "Neighborhood average excluding out-of-bounds samples",
		order:       1,
		params: []ParameterInfo{
			{
				Name:        "blur_radius",
				Type:        "int",
				Min:         0,
				Max:         MaxBlurRadius,
				Default:     1,
				Description: "Neighborhood radius; 0 disables smoothing",
			},
			{
				Name:        "smoothing",
				Type:        "enum",
				Default:     string(SmoothingUniform),
				Description: "Weighting policy",
				Options:     []string{string(SmoothingUniform), string(SmoothingGaussian)},
			},
		},
	})
	Register(stageInfo{
		name:        StageGradient,
		description: "Sobel 3x3 gradient magnitude; border pixels are zero",
		order:       2,
		params: []ParameterInfo{
			{
				Name:        "edge_detection_enabled",
				Type:        "bool",
				Default:     true,
				Description: "Run smoothing, gradient and classification",
			},
		},
	})
	Register(stageInfo{
		name:        StageClassify,
		description: "Static double threshold: 0 none, 128 weak, 255 strong",
		order:       3,
		params: []ParameterInfo{
			{
				Name:        "low_threshold",
				Type:        "float",
				Min:         0.0,
				Default:     50.0,
				Description: "Magnitudes at or below are not edges",
			},
			{
				Name:        "high_threshold",
				Type:        "float",
				Min:         0.0,
				Default:     100.0,
				Description: "Magnitudes above are strong edges",
			},
		},
	})
}
