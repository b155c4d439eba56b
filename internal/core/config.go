package core

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"edge-detection-pipeline/internal/algorithms"
)

// ProcessingConfig selects which stages run and with which parameters.
// It is a value: callers derive a new config with the With* methods and pass
// it to every invocation; the pipeline never keeps it.
type ProcessingConfig struct {
	GrayscaleEnabled     bool                       `json:"grayscale_enabled"`
	EdgeDetectionEnabled bool                       `json:"edge_detection_enabled"`
	LowThreshold         float64                    `json:"low_threshold"`
	HighThreshold        float64                    `json:"high_threshold"`
	BlurRadius           int                        `json:"blur_radius"`
	Smoothing            algorithms.SmoothingPolicy `json:"smoothing"`
}

// DefaultProcessingConfig returns the configuration used when none is supplied
func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		GrayscaleEnabled:     true,
		EdgeDetectionEnabled: true,
		LowThreshold:         50,
		HighThreshold:        100,
		BlurRadius:           1,
		Smoothing:            algorithms.SmoothingUniform,
	}
}

func (c ProcessingConfig) WithGrayscale(enabled bool) ProcessingConfig {
	c.GrayscaleEnabled = enabled
	return c
}

func (c ProcessingConfig) WithEdgeDetection(enabled bool) ProcessingConfig {
	c.EdgeDetectionEnabled = enabled
	return c
}

func (c ProcessingConfig) WithThresholds(low, high float64) ProcessingConfig {
	c.LowThreshold = low
	c.HighThreshold = high
	return c
}

func (c ProcessingConfig) WithBlurRadius(radius int) ProcessingConfig {
	c.BlurRadius = radius
	return c
}

func (c ProcessingConfig) WithSmoothing(policy algorithms.SmoothingPolicy) ProcessingConfig {
	c.Smoothing = policy
	return c
}

// SmoothingPolicy returns the effective policy; an unset policy means uniform.
func (c ProcessingConfig) SmoothingPolicy() algorithms.SmoothingPolicy {
	if c.Smoothing == "" {
		return algorithms.SmoothingUniform
	}
	return c.Smoothing
}

// Validate checks 0 <= low <= high, a non-negative radius and a known policy
func (c ProcessingConfig) Validate() error {
	if math.IsNaN(c.LowThreshold) || math.IsNaN(c.HighThreshold) {
		return fmt.Errorf("%w: thresholds must be numbers", ErrInvalidConfig)
	}
	if c.LowThreshold < 0 {
		return fmt.Errorf("%w: low threshold %.2f is negative", ErrInvalidConfig, c.LowThreshold)
	}
	if c.LowThreshold > c.HighThreshold {
		return fmt.Errorf("%w: low threshold %.2f exceeds high threshold %.2f",
			ErrInvalidConfig, c.LowThreshold, c.HighThreshold)
	}
	if c.BlurRadius < 0 {
		return fmt.Errorf("%w: blur radius %d is negative", ErrInvalidConfig, c.BlurRadius)
	}
	if !c.SmoothingPolicy().Valid() {
		return fmt.Errorf("%w: unknown smoothing policy %q", ErrInvalidConfig, c.Smoothing)
	}
	return nil
}

// Plan lists the stages an invocation with this config runs, in order.
func (c ProcessingConfig) Plan() []string {
	plan := make([]string, 0, 4)
	if c.GrayscaleEnabled || c.EdgeDetectionEnabled {
		plan = append(plan, algorithms.StageGrayscale)
	}
	if c.EdgeDetectionEnabled {
		if c.BlurRadius > 0 {
			plan = append(plan, algorithms.StageSmoothing)
		}
		plan = append(plan, algorithms.StageGradient, algorithms.StageClassify)
	}
	return plan
}

// Fields returns the config as structured log fields
func (c ProcessingConfig) Fields() logrus.Fields {
	return logrus.Fields{
		"grayscale":      c.GrayscaleEnabled,
		"edge_detection": c.EdgeDetectionEnabled,
		"low_threshold":  c.LowThreshold,
		"high_threshold": c.HighThreshold,
		"blur_radius":    c.BlurRadius,
		"smoothing":      c.SmoothingPolicy(),
	}
}
