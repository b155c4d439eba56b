package io

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-pipeline/internal/frame"
)

func gradientFrame(t *testing.T, w, h int) *frame.PixelBuffer {
	t.Helper()
	buf, err := frame.NewPixelBuffer(w, h)
	require.NoError(t, err)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			buf.Set(x, y, uint8(x*16), uint8(y*16), 77, 255)
		}
	}
	return buf
}

func TestSaveLoadLossless(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	il := NewImageLoader(logger)
	src := gradientFrame(t, 8, 6)

	for _, ext := range []string{".png", ".bmp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "frame"+ext)
			require.NoError(t, il.SaveImage(src, path))
			require.NoError(t, il.ValidateImageFile(path))

			got, err := il.LoadImage(path)
			require.NoError(t, err)
			assert.True(t, src.Equal(got))
		})
	}
	assert.NotEmpty(t, hook.AllEntries())
}

func TestSaveJPEG(t *testing.T) {
	il := NewImageLoader(nil)
	src := gradientFrame(t, 16, 16)
	path := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, il.SaveImage(src, path))

	got, err := il.LoadImage(path)
	require.NoError(t, err)
	assert.True(t, src.SameSize(got))
}

func TestUnsupportedFormats(t *testing.T) {
	il := NewImageLoader(nil)
	dir := t.TempDir()
	src := gradientFrame(t, 2, 2)

	assert.Error(t, il.SaveImage(src, filepath.Join(dir, "frame.txt")))
	assert.Error(t, il.SaveImage(src, filepath.Join(dir, "frame.webp")))
	assert.Error(t, il.SaveImage(&frame.PixelBuffer{Width: 2, Height: 2}, filepath.Join(dir, "bad.png")))

	_, err := il.LoadImage(filepath.Join(dir, "frame.txt"))
	assert.Error(t, err)
	_, err = il.LoadImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestCorruptedFile(t *testing.T) {
	il := NewImageLoader(nil)
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))

	assert.Error(t, il.ValidateImageFile(path))
	_, err := il.LoadImage(path)
	assert.Error(t, err)
}

func TestLoadPreview(t *testing.T) {
	il := NewImageLoader(nil)
	path := filepath.Join(t.TempDir(), "wide.png")
	require.NoError(t, il.SaveImage(gradientFrame(t, 16, 8), path))

	preview, err := il.LoadPreview(path, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, preview.Width)
	assert.Equal(t, 2, preview.Height)

	full, err := il.LoadPreview(path, 64)
	require.NoError(t, err)
	assert.Equal(t, 16, full.Width)
}

func TestSupportedFormats(t *testing.T) {
	il := NewImageLoader(nil)
	formats := il.GetSupportedFormats()
	assert.Contains(t, formats, ".png")
	assert.Contains(t, formats, ".webp")

	formats[0] = ".exe"
	assert.NotContains(t, il.GetSupportedFormats(), ".exe")
	assert.True(t, isSupportedImageFormat("A.PNG"))
}
