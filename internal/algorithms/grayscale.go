package algorithms

import "edge-detection-pipeline/internal/frame"

// Luminance returns the perceptual luminance 0.299R + 0.587G + 0.114B rounded
// half up. Integer weights keep the result exact, so gray input maps to itself.
func Luminance(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// Grayscale overwrites R, G and B of every pixel with its luminance in place.
// Alpha is left unchanged.
func Grayscale(buf *frame.PixelBuffer, workers int) {
	stride := buf.Width * frame.Channels
	forEachRowBand(buf.Height, workers, func(y0, y1 int) {
		row := buf.Pix[y0*stride : y1*stride]
		for i := 0; i < len(row); i += frame.Channels {
			y := Luminance(row[i], row[i+1], row[i+2])
			row[i] = y
			row[i+1] = y
			row[i+2] = y
		}
	})
}
