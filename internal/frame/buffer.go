// Pixel buffer shared by every pipeline stage
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Channels is the number of interleaved samples per pixel (R, G, B, A).
const Channels = 4

var (
	// ErrInvalidDimensions is returned for non-positive width or height.
	ErrInvalidDimensions = errors.New("invalid buffer dimensions")
	// ErrSampleLength is returned when len(Pix) != Channels*Width*Height.
	ErrSampleLength = errors.New("sample length does not match dimensions")
)

// PixelBuffer is a fixed-size grid of 8-bit RGBA samples stored row by row.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer allocates a zeroed buffer of the given size
func NewPixelBuffer(width, height int) (*PixelBuffer, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, Channels*width*height),
	}, nil
}

// NewPixelBufferFrom wraps existing samples after validating their length.
// The slice is not copied.
func NewPixelBufferFrom(width, height int, pix []uint8) (*PixelBuffer, error) {
	buf := &PixelBuffer{Width: width, Height: height, Pix: pix}
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	return buf, nil
}

// checkDimensions rejects non-positive sides and sizes whose sample count
// does not fit in an int.
func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if width > math.MaxInt/Channels/height {
		return fmt.Errorf("%w: %dx%d overflows the sample count", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Validate checks the dimension and sample-length invariants.
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidDimensions)
	}
	if err := checkDimensions(b.Width, b.Height); err != nil {
		return err
	}
	if want := Channels * b.Width * b.Height; len(b.Pix) != want {
		return fmt.Errorf("%w: got %d samples, want %d for %dx%d",
			ErrSampleLength, len(b.Pix), want, b.Width, b.Height)
	}
	return nil
}

// Clone returns an independent copy of the buffer
func (b *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &PixelBuffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Len returns the number of pixels.
func (b *PixelBuffer) Len() int {
	return b.Width * b.Height
}

// Offset returns the index of the red sample of pixel (x, y).
func (b *PixelBuffer) Offset(x, y int) int {
	return (y*b.Width + x) * Channels
}

// At returns the samples of pixel (x, y).
func (b *PixelBuffer) At(x, y int) (r, g, bl, a uint8) {
	i := b.Offset(x, y)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3]
}

// Set writes the samples of pixel (x, y).
func (b *PixelBuffer) Set(x, y int, r, g, bl, a uint8) {
	i := b.Offset(x, y)
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
	b.Pix[i+3] = a
}

// Fill sets every pixel to the same value.
func (b *PixelBuffer) Fill(r, g, bl, a uint8) {
	for i := 0; i < len(b.Pix); i += Channels {
		b.Pix[i] = r
		b.Pix[i+1] = g
		b.Pix[i+2] = bl
		b.Pix[i+3] = a
	}
}

// SameSize reports whether two buffers share width and height.
func (b *PixelBuffer) SameSize(other *PixelBuffer) bool {
	return other != nil && b.Width == other.Width && b.Height == other.Height
}

// Equal reports whether two buffers have the same size and samples.
func (b *PixelBuffer) Equal(other *PixelBuffer) bool {
	if !b.SameSize(other) || len(b.Pix) != len(other.Pix) {
		return false
	}
	for i := range b.Pix {
		if b.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts any image into a PixelBuffer with non-premultiplied samples.
func FromImage(img image.Image) (*PixelBuffer, error) {
	bounds := img.Bounds()
	buf, err := NewPixelBuffer(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := 0; y < buf.Height; y++ {
			src := nrgba.Pix[nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
			copy(buf.Pix[y*buf.Width*Channels:(y+1)*buf.Width*Channels], src[:buf.Width*Channels])
		}
		return buf, nil
	}

	dst := &image.NRGBA{
		Pix:    buf.Pix,
		Stride: buf.Width * Channels,
		Rect:   image.Rect(0, 0, buf.Width, buf.Height),
	}
	draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)
	return buf, nil
}

// ToNRGBA exposes the buffer as an image for encoders and displays.
// The returned image shares memory with the buffer.
func (b *PixelBuffer) ToNRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.Pix,
		Stride: b.Width * Channels,
		Rect:   image.Rect(0, 0, b.Width, b.Height),
	}
}

// ColorAt returns pixel (x, y) as a color.NRGBA.
func (b *PixelBuffer) ColorAt(x, y int) color.NRGBA {
	r, g, bl, a := b.At(x, y)
	return color.NRGBA{R: r, G: g, B: bl, A: a}
}
