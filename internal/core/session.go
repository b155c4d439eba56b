package core

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"edge-detection-pipeline/internal/frame"
)

// Session re-applies configurations to one source frame. Every Apply starts
// from the untouched original, and a failed Apply keeps the previous result.
type Session struct {
	mu       sync.Mutex
	data     *ImageData
	pipeline *Pipeline
	logger   logrus.FieldLogger
	config   ProcessingConfig
	applied  bool
}

func NewSession(data *ImageData, pipeline *Pipeline, logger logrus.FieldLogger) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Session{
		data:     data,
		pipeline: pipeline,
		logger:   logger,
		config:   DefaultProcessingConfig(),
	}
}

// Apply processes the original frame with cfg and stores the result.
func (s *Session) Apply(cfg ProcessingConfig) (*frame.PixelBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original := s.data.GetOriginal()
	if original == nil {
		return nil, fmt.Errorf("no image loaded")
	}

	out, err := s.pipeline.Process(original, cfg)
	if err != nil {
		s.logger.WithError(err).Warn("SESSION: Keeping previously processed frame")
		return nil, err
	}

	if err := s.data.SetProcessed(out); err != nil {
		return nil, err
	}
	s.config = cfg
	s.applied = true

	s.logger.WithFields(logrus.Fields{
		"elapsed_ms": int64(s.pipeline.ElapsedMillis() + 0.5),
		"source":     s.data.GetFilepath(),
	}).Info("SESSION: Frame updated")

	return out, nil
}

// Update derives a new config from the current one and applies it.
func (s *Session) Update(change func(ProcessingConfig) ProcessingConfig) (*frame.PixelBuffer, error) {
	return s.Apply(change(s.Config()))
}

// Config returns the last successfully applied config, or the default.
func (s *Session) Config() ProcessingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Applied reports whether any Apply has succeeded.
func (s *Session) Applied() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Current returns a copy of the displayed frame.
func (s *Session) Current() *frame.PixelBuffer {
	return s.data.GetProcessed()
}

// Reset shows the original frame again.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = false
	return s.data.ResetToOriginal()
}

// Pipeline returns the pipeline used for processing.
func (s *Session) Pipeline() *Pipeline {
	return s.pipeline
}
