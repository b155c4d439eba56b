// Conversions between pixel buffers and OpenCV matrices
package native

import (
	"fmt"

	"gocv.io/x/gocv"

	"edge-detection-pipeline/internal/frame"
)

// ToMat copies buf into a new BGRA Mat. The caller owns the result and must
// Close it.
func ToMat(buf *frame.PixelBuffer) (gocv.Mat, error) {
	if err := buf.Validate(); err != nil {
		return gocv.NewMat(), err
	}

	rgba, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC4, buf.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap pixel buffer: %w", err)
	}
	defer rgba.Close()

	bgra := gocv.NewMat()
	if err := gocv.CvtColor(rgba, &bgra, gocv.ColorRGBAToBGRA); err != nil {
		bgra.Close()
		return gocv.NewMat(), fmt.Errorf("failed to convert to BGRA: %w", err)
	}
	return bgra, nil
}

// FromMat copies an 8-bit Mat with 1, 3 or 4 channels into a pixel buffer.
// Gray and BGR inputs come back opaque.
func FromMat(m gocv.Mat) (*frame.PixelBuffer, error) {
	if m.Empty() {
		return nil, fmt.Errorf("input image is empty")
	}

	var code gocv.ColorConversionCode
	switch m.Type() {
	case gocv.MatTypeCV8UC1:
		code = gocv.ColorGrayToRGBA
	case gocv.MatTypeCV8UC3:
		code = gocv.ColorBGRToRGBA
	case gocv.MatTypeCV8UC4:
		code = gocv.ColorBGRAToRGBA
	default:
		return nil, fmt.Errorf("unsupported mat type: %v", m.Type())
	}

	rgba := gocv.NewMat()
	defer rgba.Close()
	if err := gocv.CvtColor(m, &rgba, code); err != nil {
		return nil, fmt.Errorf("failed to convert to RGBA: %w", err)
	}

	buf, err := frame.NewPixelBuffer(rgba.Cols(), rgba.Rows())
	if err != nil {
		return nil, err
	}
	if n := copy(buf.Pix, rgba.ToBytes()); n != len(buf.Pix) {
		return nil, fmt.Errorf("%w: mat held %d samples", frame.ErrSampleLength, n)
	}
	return buf, nil
}
