package core

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-pipeline/internal/frame"
)

func newTestSession(t *testing.T, src *frame.PixelBuffer) (*Session, *ImageData, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	data := NewImageData()
	if src != nil {
		require.NoError(t, data.SetOriginal(src, "frames/input.PNG", "file"))
	}
	return NewSession(data, NewPipeline(logger), logger), data, hook
}

func TestSessionApplyKeepsOriginal(t *testing.T) {
	src := randomFrame(t, 12, 12, 20)
	s, data, _ := newTestSession(t, src)

	first, err := s.Apply(DefaultProcessingConfig().WithThresholds(10, 20))
	require.NoError(t, err)
	second, err := s.Apply(DefaultProcessingConfig().WithThresholds(10, 20))
	require.NoError(t, err)

	assert.True(t, first.Equal(second), "reapplying the same config must give the same frame")
	assert.True(t, src.Equal(data.GetOriginal()))
	assert.True(t, second.Equal(s.Current()))
	assert.True(t, s.Applied())
}

func TestSessionFailedApplyKeepsPrevious(t *testing.T) {
	src := randomFrame(t, 8, 8, 21)
	s, _, hook := newTestSession(t, src)

	good := DefaultProcessingConfig().WithEdgeDetection(false)
	shown, err := s.Apply(good)
	require.NoError(t, err)

	_, err = s.Apply(good.WithThresholds(5, 1))
	require.ErrorIs(t, err, ErrInvalidConfig)

	assert.True(t, shown.Equal(s.Current()))
	assert.Equal(t, good, s.Config())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestSessionUpdate(t *testing.T) {
	s, _, _ := newTestSession(t, randomFrame(t, 6, 6, 22))

	_, err := s.Update(func(c ProcessingConfig) ProcessingConfig {
		return c.WithBlurRadius(0).WithThresholds(1, 2)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Config().BlurRadius)
	assert.Equal(t, 2.0, s.Config().HighThreshold)
}

func TestSessionReset(t *testing.T) {
	src := randomFrame(t, 6, 6, 23)
	s, _, _ := newTestSession(t, src)

	_, err := s.Apply(DefaultProcessingConfig())
	require.NoError(t, err)
	require.NoError(t, s.Reset())
	assert.True(t, src.Equal(s.Current()))
	assert.False(t, s.Applied())
}

func TestSessionWithoutImage(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	_, err := s.Apply(DefaultProcessingConfig())
	assert.Error(t, err)
	assert.Nil(t, s.Current())
	assert.Error(t, s.Reset())
}

func TestImageDataMetadata(t *testing.T) {
	data := NewImageData()
	assert.False(t, data.HasImage())
	assert.Nil(t, data.GetOriginal())

	src := randomFrame(t, 5, 3, 24)
	require.NoError(t, data.SetOriginal(src, "shots/a.JPG", ""))

	meta := data.GetMetadata()
	assert.Equal(t, ImageMetadata{Width: 5, Height: 3, Format: "jpg", Source: "memory"}, meta)
	assert.Equal(t, "shots/a.JPG", data.GetFilepath())

	// caller mutations must not leak into the stored source
	src.Fill(1, 1, 1, 1)
	assert.False(t, src.Equal(data.GetOriginal()))

	data.Clear()
	assert.False(t, data.HasImage())
	assert.Equal(t, ImageMetadata{}, data.GetMetadata())
}

func TestImageDataValidation(t *testing.T) {
	data := NewImageData()
	assert.Error(t, data.SetOriginal(&frame.PixelBuffer{Width: 2, Height: 2}, "", ""))

	other := randomFrame(t, 2, 2, 25)
	assert.Error(t, data.SetProcessed(other), "no original loaded")

	require.NoError(t, data.SetOriginal(randomFrame(t, 3, 3, 26), "", ""))
	assert.Error(t, data.SetProcessed(other), "size mismatch")
	assert.Equal(t, "unknown", data.GetMetadata().Format)
}

func TestRecorder(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := NewRecorder(logger, 3)
	p := NewPipeline(logger, WithRecorder(rec))
	src := randomFrame(t, 8, 8, 27)

	gray := DefaultProcessingConfig().WithEdgeDetection(false)
	for i := 0; i < 2; i++ {
		_, err := p.Process(src, gray)
		require.NoError(t, err)
	}
	_, err := p.Process(src, DefaultProcessingConfig())
	require.NoError(t, err)
	_, err = p.Process(src, gray.WithThresholds(3, 1))
	require.Error(t, err)

	records := rec.Records()
	require.Len(t, records, 3, "history is bounded")
	assert.False(t, records[2].Success)
	assert.NotEmpty(t, records[2].Error)

	durations := rec.Durations()
	assert.Len(t, durations["grayscale"], 1)
	assert.Len(t, durations["grayscale+smoothing+gradient+classification"], 1)

	stages := rec.StageDurations()
	assert.Len(t, stages["grayscale"], 2)
	assert.Len(t, stages["classification"], 1)

	stats := rec.GetStats()
	assert.Equal(t, 3, stats["total_runs"])
	assert.InDelta(t, 2.0/3.0, stats["success_rate"], 1e-9)

	rec.Reset()
	assert.Empty(t, rec.Records())
}
