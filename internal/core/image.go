// Source frame holder keeping the original intact across reprocessing
package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"edge-detection-pipeline/internal/frame"
)

// ImageData manages original and processed frames with thread safety
type ImageData struct {
	mu        sync.RWMutex
	original  *frame.PixelBuffer
	processed *frame.PixelBuffer
	hasImage  bool
	filepath  string
	metadata  ImageMetadata
}

// ImageMetadata contains frame information
type ImageMetadata struct {
	Width  int
	Height int
	Format string
	Source string // "file", "camera" or "memory"
}

// NewImageData creates a new thread-safe frame container
func NewImageData() *ImageData {
	return &ImageData{}
}

// SetOriginal stores a copy of buf as the source frame and resets the
// processed frame to it.
func (img *ImageData) SetOriginal(buf *frame.PixelBuffer, path, source string) error {
	if err := ValidateFrame(buf, 0); err != nil {
		return fmt.Errorf("cannot set original: %w", err)
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	img.original = buf.Clone()
	img.processed = buf.Clone()
	img.hasImage = true
	img.filepath = path

	if source == "" {
		source = "memory"
	}
	img.metadata = ImageMetadata{
		Width:  buf.Width,
		Height: buf.Height,
		Format: getFormatFromPath(path),
		Source: source,
	}

	return nil
}

// SetProcessed sets the processed frame
func (img *ImageData) SetProcessed(buf *frame.PixelBuffer) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.hasImage {
		return fmt.Errorf("no original image loaded")
	}

	if err := buf.Validate(); err != nil {
		return fmt.Errorf("cannot set processed image: %w", err)
	}

	if !buf.SameSize(img.original) {
		return fmt.Errorf("processed size %dx%d differs from original %dx%d",
			buf.Width, buf.Height, img.original.Width, img.original.Height)
	}

	img.processed = buf.Clone()
	return nil
}

// GetOriginal returns a copy of the original frame, or nil when none is loaded
func (img *ImageData) GetOriginal() *frame.PixelBuffer {
	img.mu.RLock()
	defer img.mu.RUnlock()

	if !img.hasImage {
		return nil
	}
	return img.original.Clone()
}

// GetProcessed returns a copy of the processed frame, or nil when none is loaded
func (img *ImageData) GetProcessed() *frame.PixelBuffer {
	img.mu.RLock()
	defer img.mu.RUnlock()

	if !img.hasImage {
		return nil
	}
	return img.processed.Clone()
}

// HasImage returns true if a frame is loaded
func (img *ImageData) HasImage() bool {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.hasImage
}

// GetMetadata returns frame metadata
func (img *ImageData) GetMetadata() ImageMetadata {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.metadata
}

// GetFilepath returns the current file path
func (img *ImageData) GetFilepath() string {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.filepath
}

// Clear clears all frame data
func (img *ImageData) Clear() {
	img.mu.Lock()
	defer img.mu.Unlock()

	img.original = nil
	img.processed = nil
	img.hasImage = false
	img.filepath = ""
	img.metadata = ImageMetadata{}
}

// ResetToOriginal resets processed frame to original
func (img *ImageData) ResetToOriginal() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.hasImage {
		return fmt.Errorf("no original image available")
	}

	img.processed = img.original.Clone()
	return nil
}

// getFormatFromPath extracts image format from file path
func getFormatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}
