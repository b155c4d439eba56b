// Concrete implementations of comparison metrics
package metrics

import (
	"math"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/frame"
)

// luminanceAt reads pixel i (in pixels, not samples) as a gray value.
func luminanceAt(buf *frame.PixelBuffer, i int) uint8 {
	o := i * frame.Channels
	return algorithms.Luminance(buf.Pix[o], buf.Pix[o+1], buf.Pix[o+2])
}

// quantizeLevel snaps a gray value to the nearest classification level.
func quantizeLevel(v uint8) uint8 {
	switch {
	case v < 64:
		return algorithms.LevelNone
	case v < 192:
		return algorithms.LevelWeak
	default:
		return algorithms.LevelStrong
	}
}

func meanSquaredError(reference, processed *frame.PixelBuffer) float64 {
	n := reference.Len()
	sumSquaredDiff := 0.0
	for i := 0; i < n; i++ {
		diff := float64(luminanceAt(reference, i)) - float64(luminanceAt(processed, i))
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(n)
}

// MSE implements Mean Squared Error on luminance
type MSE struct{}

// NewMSE creates a new MSE metric
func NewMSE() *MSE {
	return &MSE{}
}

func (m *MSE) Calculate(reference, processed *frame.PixelBuffer) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}
	return meanSquaredError(reference, processed), nil
}

func (m *MSE) GetName() string {
	return "MSE"
}

func (m *MSE) GetDescription() string {
	return "Mean Squared Error between luminance values"
}

func (m *MSE) GetRange() (float64, float64) {
	return 0, 65025 // 255^2
}

func (m *MSE) IsHigherBetter() bool {
	return false
}

// PSNR implements Peak Signal-to-Noise Ratio metric
type PSNR struct{}

// NewPSNR creates a new PSNR metric
func NewPSNR() *PSNR {
	return &PSNR{}
}

func (p *PSNR) Calculate(reference, processed *frame.PixelBuffer) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}

	mse := meanSquaredError(reference, processed)
	if mse == 0 {
		return math.Inf(1), nil // Perfect match
	}

	maxVal := 255.0
	return 20 * math.Log10(maxVal/math.Sqrt(mse)), nil
}

func (p *PSNR) GetName() string {
	return "PSNR"
}

func (p *PSNR) GetDescription() string {
	return "Peak Signal-to-Noise Ratio in dB"
}

func (p *PSNR) GetRange() (float64, float64) {
	return 0, 100 // Practical range, identical frames give +Inf
}

func (p *PSNR) IsHigherBetter() bool {
	return true
}

// EdgeAgreement is the fraction of pixels assigned the same level
type EdgeAgreement struct{}

// NewEdgeAgreement creates a new edge agreement metric
func NewEdgeAgreement() *EdgeAgreement {
	return &EdgeAgreement{}
}

func (a *EdgeAgreement) Calculate(reference, processed *frame.PixelBuffer) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}

	n := reference.Len()
	same := 0
	for i := 0; i < n; i++ {
		if quantizeLevel(luminanceAt(reference, i)) == quantizeLevel(luminanceAt(processed, i)) {
			same++
		}
	}
	return float64(same) / float64(n), nil
}

func (a *EdgeAgreement) GetName() string {
	return "Edge Agreement"
}

func (a *EdgeAgreement) GetDescription() string {
	return "Fraction of pixels classified at the same level (none, weak, strong)"
}

func (a *EdgeAgreement) GetRange() (float64, float64) {
	return 0, 1
}

func (a *EdgeAgreement) IsHigherBetter() bool {
	return true
}

// FMeasure treats reference edge pixels (level > 127) as ground truth
type FMeasure struct{}

// NewFMeasure creates a new F-measure metric
func NewFMeasure() *FMeasure {
	return &FMeasure{}
}

func (f *FMeasure) Calculate(reference, processed *frame.PixelBuffer) (float64, error) {
	if err := checkPair(reference, processed); err != nil {
		return 0, err
	}

	tp, fp, fn := f.calculateConfusionMatrix(reference, processed)

	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}

	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}

	if precision+recall == 0 {
		// no edges on either side is full agreement
		if tp+fp+fn == 0 {
			return 1, nil
		}
		return 0, nil
	}

	return 2 * (precision * recall) / (precision + recall), nil
}

func (f *FMeasure) calculateConfusionMatrix(reference, processed *frame.PixelBuffer) (tp, fp, fn float64) {
	n := reference.Len()
	for i := 0; i < n; i++ {
		refEdge := luminanceAt(reference, i) > 127
		procEdge := luminanceAt(processed, i) > 127

		switch {
		case refEdge && procEdge:
			tp++
		case !refEdge && procEdge:
			fp++
		case refEdge && !procEdge:
			fn++
		}
	}
	return tp, fp, fn
}

func (f *FMeasure) GetName() string {
	return "F-Measure"
}

func (f *FMeasure) GetDescription() string {
	return "Harmonic mean of edge precision and recall against the reference"
}

func (f *FMeasure) GetRange() (float64, float64) {
	return 0, 1
}

func (f *FMeasure) IsHigherBetter() bool {
	return true
}
