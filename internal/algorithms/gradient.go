package algorithms

import (
	"math"

	"edge-detection-pipeline/internal/frame"
)

// Sobel kernels, indexed [row][col]
var (
	SobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	SobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// GradientField holds per-pixel directional derivatives and their magnitude.
type GradientField struct {
	Width     int
	Height    int
	Gx        []float64
	Gy        []float64
	Magnitude []float64
}

// At returns the derivatives and magnitude of pixel (x, y).
func (g *GradientField) At(x, y int) (gx, gy, magnitude float64) {
	i := y*g.Width + x
	return g.Gx[i], g.Gy[i], g.Magnitude[i]
}

// Gradient convolves the red channel with the Sobel pair. The 1-pixel border
// is never evaluated and keeps zero derivatives and magnitude; frames smaller
// than 3x3 are all border.
func Gradient(src *frame.PixelBuffer, workers int) *GradientField {
	w, h := src.Width, src.Height
	n := w * h
	field := &GradientField{
		Width:     w,
		Height:    h,
		Gx:        make([]float64, n),
		Gy:        make([]float64, n),
		Magnitude: make([]float64, n),
	}
	if w < 3 || h < 3 {
		return field
	}

	// interior rows 1..h-2 are mapped onto band indices 0..h-3
	forEachRowBand(h-2, workers, func(b0, b1 int) {
		for y := b0 + 1; y < b1+1; y++ {
			for x := 1; x < w-1; x++ {
				var gx, gy float64
				for ky := 0; ky < 3; ky++ {
					row := (y + ky - 1) * w
					for kx := 0; kx < 3; kx++ {
						v := float64(src.Pix[(row+x+kx-1)*frame.Channels])
						gx += SobelX[ky][kx] * v
						gy += SobelY[ky][kx] * v
					}
				}
				i := y*w + x
				field.Gx[i] = gx
				field.Gy[i] = gy
				field.Magnitude[i] = math.Sqrt(gx*gx + gy*gy)
			}
		}
	})

	return field
}
