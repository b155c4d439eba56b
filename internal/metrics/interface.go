// Metrics for comparing an edge map against a reference pipeline's output
package metrics

import (
	"fmt"
	"sort"
	"time"

	"edge-detection-pipeline/internal/frame"
)

// Metric defines the interface for comparison metrics
type Metric interface {
	// Calculate compares processed against reference
	Calculate(reference, processed *frame.PixelBuffer) (float64, error)

	// GetName returns the metric name
	GetName() string

	// GetDescription returns the metric description
	GetDescription() string

	// GetRange returns the value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate closer agreement
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates a new metrics evaluator
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}
	e.RegisterDefaultMetrics()
	return e
}

// RegisterDefaultMetrics registers all default metrics
func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("mse", NewMSE())
	e.Register("psnr", NewPSNR())
	e.Register("edge_agreement", NewEdgeAgreement())
	e.Register("f_measure", NewFMeasure())
}

// Register registers a metric
func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Names returns the registered metric names in sorted order
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, reference, processed *frame.PixelBuffer) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}
	return metric.Calculate(reference, processed)
}

// CalculateAll calculates all registered metrics, skipping those that fail
func (e *Evaluator) CalculateAll(reference, processed *frame.PixelBuffer) map[string]float64 {
	results := make(map[string]float64)
	for name, metric := range e.metrics {
		if value, err := metric.Calculate(reference, processed); err == nil {
			results[name] = value
		}
	}
	return results
}

// Report summarizes how closely two edge maps agree
type Report struct {
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Metrics   map[string]float64 `json:"metrics"`
	Timestamp string             `json:"timestamp"`
}

// CompareEdgeMaps evaluates every metric for two equally sized frames
func (e *Evaluator) CompareEdgeMaps(reference, processed *frame.PixelBuffer) (Report, error) {
	if err := checkPair(reference, processed); err != nil {
		return Report{}, err
	}
	return Report{
		Width:     processed.Width,
		Height:    processed.Height,
		Metrics:   e.CalculateAll(reference, processed),
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}, nil
}

// GetMetricInfo returns information about all metrics
func (e *Evaluator) GetMetricInfo() map[string]MetricInfo {
	info := make(map[string]MetricInfo)
	for name, metric := range e.metrics {
		lo, hi := metric.GetRange()
		info[name] = MetricInfo{
			Name:         metric.GetName(),
			Description:  metric.GetDescription(),
			Range:        [2]float64{lo, hi},
			HigherBetter: metric.IsHigherBetter(),
		}
	}
	return info
}

// MetricInfo provides metadata about a metric
type MetricInfo struct {
	Name         string
	Description  string
	Range        [2]float64 // [min, max]
	HigherBetter bool
}

func checkPair(reference, processed *frame.PixelBuffer) error {
	if err := reference.Validate(); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	if err := processed.Validate(); err != nil {
		return fmt.Errorf("processed: %w", err)
	}
	if !reference.SameSize(processed) {
		return fmt.Errorf("image dimensions mismatch: %dx%d vs %dx%d",
			reference.Width, reference.Height, processed.Width, processed.Height)
	}
	return nil
}
