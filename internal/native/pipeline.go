// Companion edge pipeline on OpenCV, used as a reference for the pure Go stages
package native

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/core"
	"edge-detection-pipeline/internal/frame"
)

// Mode selects how the native pipeline finds edges
type Mode string

const (
	// ModeSobel mirrors the pure Go stages: Sobel magnitude plus double threshold.
	ModeSobel Mode = "sobel"
	// ModeCanny runs cv::Canny, which adds non-maximum suppression and hysteresis.
	ModeCanny Mode = "canny"
)

// ParseMode accepts "sobel" or "canny" in any case
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSobel, ModeCanny:
		return m, nil
	case "":
		return ModeSobel, nil
	default:
		return "", fmt.Errorf("unknown native mode: %q", s)
	}
}

// Pipeline runs a processing config through OpenCV
type Pipeline struct {
	mode   Mode
	logger logrus.FieldLogger

	mu      sync.RWMutex
	elapsed time.Duration
}

// NewPipeline creates a new native pipeline
func NewPipeline(mode Mode, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if mode == "" {
		mode = ModeSobel
	}
	return &Pipeline{
		mode:   mode,
		logger: logger,
	}
}

func (p *Pipeline) Mode() Mode {
	return p.mode
}

// Elapsed returns the wall time of the last successful run
func (p *Pipeline) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.elapsed
}

// Process runs cfg's stage plan on src. The border and alpha handling of the
// Sobel mode match the pure Go stages; pixel values are not guaranteed to.
func (p *Pipeline) Process(src *frame.PixelBuffer, cfg core.ProcessingConfig) (*frame.PixelBuffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	log := p.logger.WithFields(cfg.Fields()).WithField("mode", p.mode)

	bgra, err := ToMat(src)
	if err != nil {
		return nil, err
	}
	defer bgra.Close()

	plan := cfg.Plan()
	if len(plan) == 0 {
		return FromMat(bgra)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(bgra, &gray, gocv.ColorBGRAToGray); err != nil {
		return nil, fmt.Errorf("grayscale conversion failed: %w", err)
	}

	if !cfg.EdgeDetectionEnabled {
		out, err := FromMat(gray)
		if err != nil {
			return nil, err
		}
		// keep source alpha like the pure Go grayscale stage
		for i := 3; i < len(out.Pix); i += frame.Channels {
			out.Pix[i] = src.Pix[i]
		}
		p.finish(log, start)
		return out, nil
	}

	smoothed := gray
	if cfg.BlurRadius > 0 {
		blurred := gocv.NewMat()
		defer blurred.Close()
		if err := p.smooth(gray, &blurred, cfg); err != nil {
			return nil, err
		}
		smoothed = blurred
	}

	var out *frame.PixelBuffer
	switch p.mode {
	case ModeCanny:
		out, err = p.canny(smoothed, cfg)
	default:
		out, err = p.sobel(smoothed, cfg)
	}
	if err != nil {
		return nil, err
	}

	p.finish(log, start)
	return out, nil
}

func (p *Pipeline) finish(log logrus.FieldLogger, start time.Time) {
	elapsed := time.Since(start)

	p.mu.Lock()
	p.elapsed = elapsed
	p.mu.Unlock()

	log.WithField("elapsed_ms", float64(elapsed)/float64(time.Millisecond)).Debug("NATIVE: Run completed")
}

func (p *Pipeline) smooth(src gocv.Mat, dst *gocv.Mat, cfg core.ProcessingConfig) error {
	if src.Empty() {
		return fmt.Errorf("smoothing input is empty")
	}

	size := 2*cfg.BlurRadius + 1
	ksize := image.Point{X: size, Y: size}

	switch cfg.SmoothingPolicy() {
	case algorithms.SmoothingGaussian:
		sigma := float64(cfg.BlurRadius) / 3
		if err := gocv.GaussianBlur(src, dst, ksize, sigma, sigma, gocv.BorderReflect101); err != nil {
			return fmt.Errorf("gaussian blur failed: %w", err)
		}
	default:
		if err := gocv.Blur(src, dst, ksize); err != nil {
			return fmt.Errorf("box blur failed: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) sobel(src gocv.Mat, cfg core.ProcessingConfig) (*frame.PixelBuffer, error) {
	if src.Empty() {
		return nil, fmt.Errorf("gradient input is empty")
	}

	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	magnitude := gocv.NewMat()
	defer magnitude.Close()

	if err := gocv.Sobel(src, &gx, gocv.MatTypeCV32F, 1, 0, 3, 1, 0, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("horizontal sobel failed: %w", err)
	}
	if err := gocv.Sobel(src, &gy, gocv.MatTypeCV32F, 0, 1, 3, 1, 0, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("vertical sobel failed: %w", err)
	}
	if err := gocv.Magnitude(gx, gy, &magnitude); err != nil {
		return nil, fmt.Errorf("gradient magnitude failed: %w", err)
	}

	rows, cols := magnitude.Rows(), magnitude.Cols()
	if rows != src.Rows() || cols != src.Cols() || magnitude.Type() != gocv.MatTypeCV32F {
		return nil, fmt.Errorf("gradient magnitude is %dx%d of type %v, want %dx%d float",
			cols, rows, magnitude.Type(), src.Cols(), src.Rows())
	}
	out, err := frame.NewPixelBuffer(cols, rows)
	if err != nil {
		return nil, err
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			level := algorithms.LevelNone
			if x > 0 && y > 0 && x < cols-1 && y < rows-1 {
				m := float64(magnitude.GetFloatAt(y, x))
				level = algorithms.ClassifyMagnitude(m, cfg.LowThreshold, cfg.HighThreshold)
			}
			out.Set(x, y, level, level, level, 255)
		}
	}
	return out, nil
}

func (p *Pipeline) canny(src gocv.Mat, cfg core.ProcessingConfig) (*frame.PixelBuffer, error) {
	if src.Empty() {
		return nil, fmt.Errorf("canny input is empty")
	}

	edges := gocv.NewMat()
	defer edges.Close()

	if err := gocv.Canny(src, &edges, float32(cfg.LowThreshold), float32(cfg.HighThreshold)); err != nil {
		return nil, fmt.Errorf("canny failed: %w", err)
	}
	return FromMat(edges)
}
