package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/core"
)

const tomlConfig = `
[pipeline]
grayscale = true
edge_detection = true
low_threshold = 30.0
high_threshold = 90.0
blur_radius = 2
smoothing = "gaussian"

[runtime]
workers = 2
separable = false

[log]
level = "debug"
format = "text"
`

const yamlConfig = `
pipeline:
  grayscale: true
  edge_detection: true
  low_threshold: 30
  high_threshold: 90
  blur_radius: 2
  smoothing: gaussian
runtime:
  workers: 2
  separable: false
log:
  level: debug
  format: text
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestTOMLAndYAMLAgree(t *testing.T) {
	dir := t.TempDir()

	fromTOML, err := Load(writeFile(t, dir, "edges.toml", tomlConfig))
	require.NoError(t, err)
	fromYAML, err := Load(writeFile(t, dir, "edges.yaml", yamlConfig))
	require.NoError(t, err)
	assert.Equal(t, fromTOML, fromYAML)

	cfg, err := fromTOML.ProcessingConfig()
	require.NoError(t, err)
	want := core.DefaultProcessingConfig().
		WithThresholds(30, 90).
		WithBlurRadius(2).
		WithSmoothing(algorithms.SmoothingGaussian)
	assert.Equal(t, want, cfg)

	// untouched keys keep their defaults
	assert.Equal(t, core.DefaultMaxPixels, fromTOML.Runtime.MaxPixels)
	assert.Len(t, fromTOML.PipelineOptions(), 3)
}

func TestLoadDefaultsAndErrors(t *testing.T) {
	dir := t.TempDir()

	empty, err := Load(writeFile(t, dir, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), empty)

	_, err = Load(writeFile(t, dir, "unknown.toml", "[pipeline]\nsharpen = true\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "unknown.yaml", "pipeline:\n  sharpen: true\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, dir, "edges.ini", "x=1"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestProcessingConfigValidation(t *testing.T) {
	f := Default()
	f.Pipeline.LowThreshold = 120
	_, err := f.ProcessingConfig()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	f = Default()
	f.Pipeline.Smoothing = "median"
	_, err = f.ProcessingConfig()
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestLogSectionApply(t *testing.T) {
	logger := logrus.New()
	require.NoError(t, LogSection{Level: "warn", Format: "text"}.Apply(logger))
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	assert.Error(t, LogSection{Level: "loud"}.Apply(logger))
	assert.Error(t, LogSection{Format: "xml"}.Apply(logger))
}

func TestWatchDeliversValidEdits(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem notifications are slow on some hosts")
	}

	dir := t.TempDir()
	path := writeFile(t, dir, "edges.toml", tomlConfig)

	logger, hook := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan core.ProcessingConfig, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger, func(_ File, cfg core.ProcessingConfig) {
			updates <- cfg
		})
	}()

	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Watching configuration" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	// an invalid edit is skipped
	writeFile(t, dir, "edges.toml", "[pipeline]\nlow_threshold = 500.0\nhigh_threshold = 1.0\n")
	writeFile(t, dir, "edges.toml", "[pipeline]\nblur_radius = 4\n")

	// a truncated intermediate file may be delivered first as the defaults
	timeout := time.After(5 * time.Second)
	for received := false; !received; {
		select {
		case cfg := <-updates:
			assert.LessOrEqual(t, cfg.LowThreshold, cfg.HighThreshold)
			if cfg.BlurRadius == 4 {
				assert.Equal(t, core.DefaultProcessingConfig().LowThreshold, cfg.LowThreshold)
				received = true
			}
		case <-timeout:
			t.Fatal("no configuration delivered")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
