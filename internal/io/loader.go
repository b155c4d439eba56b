// Image file decoding and encoding for the pixel pipeline
package io

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"edge-detection-pipeline/internal/frame"
)

// JPEGQuality is used when saving .jpg/.jpeg files.
const JPEGQuality = 95

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".gif", ".tiff", ".tif", ".bmp", ".webp"}

// ImageLoader handles image file operations
type ImageLoader struct {
	logger logrus.FieldLogger
}

func NewImageLoader(logger logrus.FieldLogger) *ImageLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImageLoader{
		logger: logger,
	}
}

func (il *ImageLoader) LoadImage(path string) (*frame.PixelBuffer, error) {
	il.logger.WithField("filepath", path).Debug("Loading image")

	img, format, err := il.decode(path)
	if err != nil {
		return nil, err
	}

	buf, err := frame.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image %s: %w", path, err)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"format":   format,
		"width":    buf.Width,
		"height":   buf.Height,
	}).Info("Image loaded successfully")

	return buf, nil
}

// LoadPreview loads an image scaled down so neither side exceeds maxDim.
// Images already within the bound are returned at full size.
func (il *ImageLoader) LoadPreview(path string, maxDim int) (*frame.PixelBuffer, error) {
	if maxDim <= 0 {
		return il.LoadImage(path)
	}

	img, _, err := il.decode(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxDim || bounds.Dy() > maxDim {
		img = resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Bilinear)
		il.logger.WithFields(logrus.Fields{
			"filepath":    path,
			"source_size": fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy()),
			"preview":     img.Bounds().Size().String(),
		}).Debug("Image downscaled for preview")
	}

	return frame.FromImage(img)
}

func (il *ImageLoader) SaveImage(buf *frame.PixelBuffer, path string) error {
	il.logger.WithField("filepath", path).Debug("Saving image")

	if err := buf.Validate(); err != nil {
		return fmt.Errorf("cannot save image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !isSupportedImageFormat(path) || ext == ".webp" || ext == ".gif" {
		return fmt.Errorf("unsupported output format: %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	img := buf.ToNRGBA()
	switch ext {
	case ".png":
		err = png.Encode(f, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: JPEGQuality})
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to save image %s: %w", path, err)
	}

	il.logger.WithFields(logrus.Fields{
		"filepath": path,
		"width":    buf.Width,
		"height":   buf.Height,
	}).Info("Image saved successfully")

	return nil
}

func (il *ImageLoader) decode(path string) (image.Image, string, error) {
	if !isSupportedImageFormat(path) {
		return nil, "", fmt.Errorf("unsupported image format: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, format, nil
}

func isSupportedImageFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// GetSupportedFormats lists the decodable file extensions
func (il *ImageLoader) GetSupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// ValidateImageFile checks that a file decodes to a usable frame
func (il *ImageLoader) ValidateImageFile(path string) error {
	if !isSupportedImageFormat(path) {
		return fmt.Errorf("unsupported image format")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("invalid or corrupted image file: %w", err)
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid image dimensions")
	}

	return nil
}
