// Pipeline orchestrator: validates input, sequences the stages and times the run
package core

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/frame"
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid processing config")
	// ErrTooLarge is returned for frames above the dimension or pixel limits.
	ErrTooLarge = errors.New("frame too large")
	// ErrBusy is returned when Process is entered while a run is in flight.
	ErrBusy = errors.New("pipeline is already processing a frame")
)

const (
	// MaxDimension bounds either side of a frame.
	MaxDimension = 16384
	// DefaultMaxPixels bounds the pixel count of a frame (64 MP).
	DefaultMaxPixels = 64 << 20
)

// StageTiming records how long one stage took
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// RunReport describes one completed invocation
type RunReport struct {
	Started time.Time        `json:"started"`
	Width   int              `json:"width"`
	Height  int              `json:"height"`
	Config  ProcessingConfig `json:"config"`
	Stages  []StageTiming    `json:"stages"`
	Elapsed time.Duration    `json:"elapsed"`
}

// ElapsedMillis returns the wall time in milliseconds.
func (r RunReport) ElapsedMillis() float64 {
	return float64(r.Elapsed) / float64(time.Millisecond)
}

// Pipeline runs Grayscale -> Smoothing -> Gradient -> Classification on one
// frame at a time. It keeps no per-frame state besides the last timing.
type Pipeline struct {
	logger    logrus.FieldLogger
	workers   int
	maxPixels int
	separable bool
	recorder  *Recorder

	processing atomic.Bool

	mu         sync.RWMutex
	lastReport RunReport
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithWorkers bounds per-stage parallelism; n <= 0 uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		p.workers = n
	}
}

// WithMaxPixels sets the largest accepted frame; n <= 0 keeps the default.
func WithMaxPixels(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxPixels = n
		}
	}
}

// WithSeparableSmoothing selects the two-pass smoothing implementation.
func WithSeparableSmoothing(enabled bool) Option {
	return func(p *Pipeline) {
		p.separable = enabled
	}
}

// WithRecorder stores every run in r.
func WithRecorder(r *Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

func NewPipeline(logger logrus.FieldLogger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Pipeline{
		logger:    logger,
		workers:   runtime.GOMAXPROCS(0),
		maxPixels: DefaultMaxPixels,
		separable: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the configured stages on a working copy of src and returns a
// new buffer of the same size. src is never modified. Invalid frames and
// configs fail before any stage runs and produce no output.
func (p *Pipeline) Process(src *frame.PixelBuffer, cfg ProcessingConfig) (*frame.PixelBuffer, error) {
	if !p.processing.CompareAndSwap(false, true) {
		p.logger.Warn("PIPELINE: Rejecting re-entrant invocation")
		return nil, ErrBusy
	}
	defer p.processing.Store(false)

	if err := ValidateFrame(src, p.maxPixels); err != nil {
		p.fail(cfg, err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		p.fail(cfg, err)
		return nil, err
	}

	log := p.logger.WithFields(cfg.Fields()).WithField("size", fmt.Sprintf("%dx%d", src.Width, src.Height))
	log.Debug("PIPELINE: Starting run")

	report := RunReport{
		Started: time.Now(),
		Width:   src.Width,
		Height:  src.Height,
		Config:  cfg,
		Stages:  make([]StageTiming, 0, 4),
	}
	timed := func(name string, fn func()) {
		start := time.Now()
		fn()
		d := time.Since(start)
		report.Stages = append(report.Stages, StageTiming{Name: name, Duration: d})
		log.WithFields(logrus.Fields{"stage": name, "duration_ms": d.Milliseconds()}).Debug("PIPELINE: Stage completed")
	}

	working := src.Clone()
	var field *algorithms.GradientField
	for _, stage := range cfg.Plan() {
		switch stage {
		case algorithms.StageGrayscale:
			timed(stage, func() {
				algorithms.Grayscale(working, p.workers)
			})
		case algorithms.StageSmoothing:
			timed(stage, func() {
				// validated above, NewKernel cannot fail here
				kernel, _ := algorithms.NewKernel(cfg.SmoothingPolicy(), cfg.BlurRadius)
				working = algorithms.Smooth(working, kernel, p.separable, p.workers)
			})
		case algorithms.StageGradient:
			timed(stage, func() {
				field = algorithms.Gradient(working, p.workers)
			})
		case algorithms.StageClassify:
			timed(stage, func() {
				working = algorithms.Classify(field, cfg.LowThreshold, cfg.HighThreshold, p.workers)
			})
		}
	}

	report.Elapsed = time.Since(report.Started)

	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()

	if p.recorder != nil {
		p.recorder.Record(report, nil)
	}

	log.WithFields(logrus.Fields{
		"stages":     len(report.Stages),
		"elapsed_ms": report.ElapsedMillis(),
	}).Info("PIPELINE: Run completed")

	return working, nil
}

func (p *Pipeline) fail(cfg ProcessingConfig, err error) {
	p.logger.WithFields(cfg.Fields()).WithError(err).Error("PIPELINE: Rejected invocation")
	if p.recorder != nil {
		p.recorder.Record(RunReport{Started: time.Now(), Config: cfg}, err)
	}
}

// Elapsed returns the wall time of the last successful run
func (p *Pipeline) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReport.Elapsed
}

// ElapsedMillis returns Elapsed in milliseconds
func (p *Pipeline) ElapsedMillis() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastReport.ElapsedMillis()
}

// LastReport returns the report of the last successful run
func (p *Pipeline) LastReport() RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	report := p.lastReport
	report.Stages = append([]StageTiming(nil), p.lastReport.Stages...)
	return report
}

// IsProcessing returns current processing state
func (p *Pipeline) IsProcessing() bool {
	return p.processing.Load()
}

// Workers returns the per-stage parallelism
func (p *Pipeline) Workers() int {
	return p.workers
}

// ValidateFrame checks a buffer for basic requirements
func ValidateFrame(buf *frame.PixelBuffer, maxPixels int) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	if buf.Width > MaxDimension || buf.Height > MaxDimension {
		return fmt.Errorf("%w: %dx%d (max side: %d)", ErrTooLarge, buf.Width, buf.Height, MaxDimension)
	}

	if maxPixels > 0 && buf.Len() > maxPixels {
		return fmt.Errorf("%w: %d pixels (max: %d)", ErrTooLarge, buf.Len(), maxPixels)
	}

	return nil
}
