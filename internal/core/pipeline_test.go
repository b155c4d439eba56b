package core

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edge-detection-pipeline/internal/algorithms"
	"edge-detection-pipeline/internal/frame"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewPipeline(logger, opts...), hook
}

func randomFrame(t *testing.T, w, h int, seed int64) *frame.PixelBuffer {
	t.Helper()
	buf, err := frame.NewPixelBuffer(w, h)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	for i := range buf.Pix {
		buf.Pix[i] = uint8(rng.Intn(256))
	}
	return buf
}

func TestProcessBothDisabledIsCopy(t *testing.T) {
	p, _ := newTestPipeline(t)
	src := randomFrame(t, 13, 7, 1)

	cfg := DefaultProcessingConfig().WithGrayscale(false).WithEdgeDetection(false)
	out, err := p.Process(src, cfg)
	require.NoError(t, err)
	assert.True(t, src.Equal(out))
	assert.NotSame(t, src, out)
	assert.Empty(t, p.LastReport().Stages)
}

func TestProcessGrayscaleOnly(t *testing.T) {
	p, _ := newTestPipeline(t)
	src := randomFrame(t, 10, 10, 2)

	want := src.Clone()
	algorithms.Grayscale(want, 1)

	out, err := p.Process(src, DefaultProcessingConfig().WithEdgeDetection(false))
	require.NoError(t, err)
	assert.True(t, want.Equal(out))

	report := p.LastReport()
	require.Len(t, report.Stages, 1)
	assert.Equal(t, algorithms.StageGrayscale, report.Stages[0].Name)
}

func TestProcessDoesNotMutateSource(t *testing.T) {
	p, _ := newTestPipeline(t)
	src := randomFrame(t, 20, 15, 3)
	orig := src.Clone()

	_, err := p.Process(src, DefaultProcessingConfig().WithBlurRadius(2).WithSmoothing(algorithms.SmoothingGaussian))
	require.NoError(t, err)
	assert.True(t, orig.Equal(src))
}

func TestProcessAllBlackHasNoEdges(t *testing.T) {
	p, _ := newTestPipeline(t)
	src, err := frame.NewPixelBuffer(5, 5)
	require.NoError(t, err)
	src.Fill(0, 0, 0, 255)

	for _, th := range [][2]float64{{0, 0}, {10, 20}, {100, 100}} {
		out, err := p.Process(src, DefaultProcessingConfig().WithThresholds(th[0], th[1]))
		require.NoError(t, err)
		require.Equal(t, 5, out.Width)
		require.Equal(t, 5, out.Height)
		for y := 0; y < 5; y++ {
			for x := 0; x < 5; x++ {
				r, g, b, a := out.At(x, y)
				require.Equal(t, []uint8{0, 0, 0, 255}, []uint8{r, g, b, a})
			}
		}
	}
}

func TestProcessEdgeMapLevels(t *testing.T) {
	p, _ := newTestPipeline(t)
	src := randomFrame(t, 24, 18, 4)

	out, err := p.Process(src, DefaultProcessingConfig().WithBlurRadius(0).WithThresholds(100, 400))
	require.NoError(t, err)

	report := p.LastReport()
	names := make([]string, len(report.Stages))
	for i, s := range report.Stages {
		names[i] = s.Name
	}
	assert.Equal(t, []string{algorithms.StageGrayscale, algorithms.StageGradient, algorithms.StageClassify}, names)

	for i := 0; i < len(out.Pix); i += frame.Channels {
		level := out.Pix[i]
		require.Contains(t, []uint8{0, 128, 255}, level)
		require.Equal(t, uint8(255), out.Pix[i+3])
	}
}

func TestProcessMatchesStageComposition(t *testing.T) {
	p, _ := newTestPipeline(t, WithWorkers(3))
	src := randomFrame(t, 33, 21, 5)
	cfg := DefaultProcessingConfig().WithBlurRadius(2).WithThresholds(30, 90)

	want := src.Clone()
	algorithms.Grayscale(want, 1)
	kernel, err := algorithms.NewKernel(algorithms.SmoothingUniform, 2)
	require.NoError(t, err)
	want = algorithms.Smooth(want, kernel, true, 1)
	want = algorithms.Classify(algorithms.Gradient(want, 1), 30, 90, 1)

	out, err := p.Process(src, cfg)
	require.NoError(t, err)
	assert.True(t, want.Equal(out))
}

func TestProcessWorkersIndependent(t *testing.T) {
	single, _ := newTestPipeline(t, WithWorkers(1))
	multi, _ := newTestPipeline(t, WithWorkers(8))
	src := randomFrame(t, 70, 130, 6)
	cfg := DefaultProcessingConfig().WithBlurRadius(3).WithSmoothing(algorithms.SmoothingGaussian)

	a, err := single.Process(src, cfg)
	require.NoError(t, err)
	b, err := multi.Process(src, cfg)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
	assert.Equal(t, 8, multi.Workers())
}

func TestProcessDirectSmoothingMatches(t *testing.T) {
	direct, _ := newTestPipeline(t, WithSeparableSmoothing(false))
	separable, _ := newTestPipeline(t)
	src, err := frame.NewPixelBuffer(16, 16)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		for x := 8; x < 16; x++ {
			src.Set(x, y, 200, 200, 200, 255)
		}
	}
	cfg := DefaultProcessingConfig().WithBlurRadius(1).WithThresholds(50, 400)

	a, err := direct.Process(src, cfg)
	require.NoError(t, err)
	b, err := separable.Process(src, cfg)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestProcessRejectsMalformedFrames(t *testing.T) {
	p, hook := newTestPipeline(t)
	cfg := DefaultProcessingConfig()

	_, err := p.Process(nil, cfg)
	assert.ErrorIs(t, err, frame.ErrInvalidDimensions)

	_, err = p.Process(&frame.PixelBuffer{Width: 0, Height: 3}, cfg)
	assert.ErrorIs(t, err, frame.ErrInvalidDimensions)

	_, err = p.Process(&frame.PixelBuffer{Width: 2, Height: 2, Pix: make([]uint8, 12)}, cfg)
	assert.ErrorIs(t, err, frame.ErrSampleLength)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestProcessRejectsLargeFrames(t *testing.T) {
	p, _ := newTestPipeline(t, WithMaxPixels(10))
	src := randomFrame(t, 4, 4, 8)
	out, err := p.Process(src, DefaultProcessingConfig())
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Nil(t, out)

	wide := &frame.PixelBuffer{Width: MaxDimension + 1, Height: 1, Pix: make([]uint8, (MaxDimension+1)*frame.Channels)}
	assert.ErrorIs(t, ValidateFrame(wide, 0), ErrTooLarge)
}

func TestProcessRejectsInvalidConfig(t *testing.T) {
	p, _ := newTestPipeline(t)
	src := randomFrame(t, 4, 4, 9)

	tests := []struct {
		name string
		cfg  ProcessingConfig
	}{
		{"low above high", DefaultProcessingConfig().WithThresholds(20, 10)},
		{"negative low", DefaultProcessingConfig().WithThresholds(-1, 10)},
		{"nan", DefaultProcessingConfig().WithThresholds(math.NaN(), 10)},
		{"negative radius", DefaultProcessingConfig().WithBlurRadius(-2)},
		{"unknown policy", DefaultProcessingConfig().WithSmoothing("median")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Process(src, tt.cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.Nil(t, out)
		})
	}
}

func TestProcessBusy(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.processing.Store(true)
	_, err := p.Process(randomFrame(t, 3, 3, 10), DefaultProcessingConfig())
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, p.IsProcessing())

	p.processing.Store(false)
	_, err = p.Process(randomFrame(t, 3, 3, 10), DefaultProcessingConfig())
	assert.NoError(t, err)
	assert.False(t, p.IsProcessing())
}

func TestElapsedNonNegative(t *testing.T) {
	p, _ := newTestPipeline(t)
	assert.Equal(t, time.Duration(0), p.Elapsed())

	_, err := p.Process(randomFrame(t, 32, 32, 11), DefaultProcessingConfig())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Elapsed(), time.Duration(0))
	assert.GreaterOrEqual(t, p.ElapsedMillis(), 0.0)

	report := p.LastReport()
	var sum time.Duration
	for _, s := range report.Stages {
		sum += s.Duration
	}
	assert.LessOrEqual(t, sum, report.Elapsed)
}

func TestElapsedGrowsWithStages(t *testing.T) {
	if testing.Short() {
		t.Skip("timing comparison")
	}
	p, _ := newTestPipeline(t, WithWorkers(1))
	src := randomFrame(t, 256, 256, 12)
	grayOnly := DefaultProcessingConfig().WithEdgeDetection(false)
	full := DefaultProcessingConfig().WithBlurRadius(3)

	const runs = 5
	var gray, edges time.Duration
	for i := 0; i < runs; i++ {
		_, err := p.Process(src, grayOnly)
		require.NoError(t, err)
		gray += p.Elapsed()
		_, err = p.Process(src, full)
		require.NoError(t, err)
		edges += p.Elapsed()
	}
	assert.GreaterOrEqual(t, edges, gray)
}

func TestConfigWithDoesNotMutate(t *testing.T) {
	base := DefaultProcessingConfig()
	changed := base.WithThresholds(1, 2).WithBlurRadius(5).WithGrayscale(false)
	assert.Equal(t, DefaultProcessingConfig(), base)
	assert.Equal(t, 1.0, changed.LowThreshold)
	assert.Equal(t, 5, changed.BlurRadius)
	assert.False(t, changed.GrayscaleEnabled)
}

func TestConfigPlan(t *testing.T) {
	base := DefaultProcessingConfig()
	tests := []struct {
		name string
		cfg  ProcessingConfig
		want []string
	}{
		{"none", base.WithGrayscale(false).WithEdgeDetection(false), []string{}},
		{"grayscale", base.WithEdgeDetection(false), []string{algorithms.StageGrayscale}},
		{"edges without grayscale flag", base.WithGrayscale(false).WithBlurRadius(0),
			[]string{algorithms.StageGrayscale, algorithms.StageGradient, algorithms.StageClassify}},
		{"full", base.WithBlurRadius(2),
			[]string{algorithms.StageGrayscale, algorithms.StageSmoothing, algorithms.StageGradient, algorithms.StageClassify}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Plan())
		})
	}
}

func TestConfigDefaultPolicy(t *testing.T) {
	cfg := DefaultProcessingConfig().WithSmoothing("")
	assert.Equal(t, algorithms.SmoothingUniform, cfg.SmoothingPolicy())
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, algorithms.SmoothingUniform, cfg.Fields()["smoothing"])
}
