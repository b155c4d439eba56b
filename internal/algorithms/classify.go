package algorithms

import "edge-detection-pipeline/internal/frame"

// Output levels of the double threshold
const (
	LevelNone   uint8 = 0
	LevelWeak   uint8 = 128
	LevelStrong uint8 = 255
)

// ClassifyMagnitude maps a gradient magnitude to an output level.
// Weak pixels are never promoted by connectivity to strong ones.
func ClassifyMagnitude(magnitude, low, high float64) uint8 {
	switch {
	case magnitude > high:
		return LevelStrong
	case magnitude > low:
		return LevelWeak
	default:
		return LevelNone
	}
}

// Classify renders a gradient field as an edge map with opaque alpha.
func Classify(field *GradientField, low, high float64, workers int) *frame.PixelBuffer {
	dst := &frame.PixelBuffer{
		Width:  field.Width,
		Height: field.Height,
		Pix:    make([]uint8, field.Width*field.Height*frame.Channels),
	}

	forEachRowBand(field.Height, workers, func(y0, y1 int) {
		for i := y0 * field.Width; i < y1*field.Width; i++ {
			level := ClassifyMagnitude(field.Magnitude[i], low, high)
			o := i * frame.Channels
			dst.Pix[o] = level
			dst.Pix[o+1] = level
			dst.Pix[o+2] = level
			dst.Pix[o+3] = 255
		}
	})

	return dst
}
