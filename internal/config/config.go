// Configuration file loading for the edge pipeline
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/core"
)

// File is the on-disk configuration
type File struct {
	Pipeline PipelineSection `toml:"pipeline" yaml:"pipeline"`
	Runtime  RuntimeSection  `toml:"runtime" yaml:"runtime"`
	Log      LogSection      `toml:"log" yaml:"log"`
}

// PipelineSection mirrors core.ProcessingConfig
type PipelineSection struct {
	Grayscale     bool    `toml:"grayscale" yaml:"grayscale"`
	EdgeDetection bool    `toml:"edge_detection" yaml:"edge_detection"`
	LowThreshold  float64 `toml:"low_threshold" yaml:"low_threshold"`
	HighThreshold float64 `toml:"high_threshold" yaml:"high_threshold"`
	BlurRadius    int     `toml:"blur_radius" yaml:"blur_radius"`
	Smoothing     string  `toml:"smoothing" yaml:"smoothing"`
}

// RuntimeSection holds pipeline construction options
type RuntimeSection struct {
	Workers   int  `toml:"workers" yaml:"workers"`
	MaxPixels int  `toml:"max_pixels" yaml:"max_pixels"`
	Separable bool `toml:"separable" yaml:"separable"`
}

// LogSection selects level and formatter
type LogSection struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() File {
	d := core.DefaultProcessingConfig()
	return File{
		Pipeline: PipelineSection{
			Grayscale:     d.GrayscaleEnabled,
			EdgeDetection: d.EdgeDetectionEnabled,
			LowThreshold:  d.LowThreshold,
			HighThreshold: d.HighThreshold,
			BlurRadius:    d.BlurRadius,
			Smoothing:     string(d.Smoothing),
		},
		Runtime: RuntimeSection{
			MaxPixels: core.DefaultMaxPixels,
			Separable: true,
		},
		Log: LogSection{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a .toml, .yaml or .yml file on top of Default. Unknown keys are
// rejected.
func Load(path string) (File, error) {
	f := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return f, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return f, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return f, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return f, fmt.Errorf("unsupported config format: %s", path)
	}

	return f, nil
}

// ProcessingConfig converts the pipeline section and validates it
func (f File) ProcessingConfig() (core.ProcessingConfig, error) {
	policy, err := algorithms.ParseSmoothingPolicy(f.Pipeline.Smoothing)
	if err != nil {
		return core.ProcessingConfig{}, fmt.Errorf("%w: %v", core.ErrInvalidConfig, err)
	}

	cfg := core.ProcessingConfig{
		GrayscaleEnabled:     f.Pipeline.Grayscale,
		EdgeDetectionEnabled: f.Pipeline.EdgeDetection,
		LowThreshold:         f.Pipeline.LowThreshold,
		HighThreshold:        f.Pipeline.HighThreshold,
		BlurRadius:           f.Pipeline.BlurRadius,
		Smoothing:            policy,
	}
	if err := cfg.Validate(); err != nil {
		return core.ProcessingConfig{}, err
	}
	return cfg, nil
}

// PipelineOptions returns the core options described by the runtime section
func (f File) PipelineOptions() []core.Option {
	return []core.Option{
		core.WithWorkers(f.Runtime.Workers),
		core.WithMaxPixels(f.Runtime.MaxPixels),
		core.WithSeparableSmoothing(f.Runtime.Separable),
	}
}

// Apply configures logger level and formatter
func (l LogSection) Apply(logger *logrus.Logger) error {
	if l.Level != "" {
		level, err := logrus.ParseLevel(l.Level)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}

	switch strings.ToLower(l.Format) {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("unknown log format: %q", l.Format)
	}
	return nil
}
