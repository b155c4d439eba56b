// Smoothing stage: neighborhood averaging with uniform or Gaussian weights
package algorithms

import (
	"fmt"
	"math"
	"strings"

	"edge-detection-pipeline/internal/frame"
)

// SmoothingPolicy selects the neighborhood weighting
type SmoothingPolicy string

const (
	// SmoothingUniform weighs every in-bounds neighbor equally (box blur).
	SmoothingUniform SmoothingPolicy = "uniform"
	// SmoothingGaussian weighs neighbors by exp(-(dx²+dy²)/(2σ²)) with σ = r/3.
	SmoothingGaussian SmoothingPolicy = "gaussian"
)

// MaxBlurRadius is the largest radius offered by configuration surfaces.
const MaxBlurRadius = 50

// ParseSmoothingPolicy maps a name to a policy. An empty name selects uniform.
func ParseSmoothingPolicy(name string) (SmoothingPolicy, error) {
	switch SmoothingPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", SmoothingUniform, "box":
		return SmoothingUniform, nil
	case SmoothingGaussian:
		return SmoothingGaussian, nil
	default:
		return "", fmt.Errorf("unknown smoothing policy: %q", name)
	}
}

// Valid reports whether p is a known policy.
func (p SmoothingPolicy) Valid() bool {
	return p == SmoothingUniform || p == SmoothingGaussian
}

// Kernel is an immutable square (2r+1)x(2r+1) weight map. Both policies
// factor into the product of two identical 1-D weight vectors.
type Kernel struct {
	radius  int
	policy  SmoothingPolicy
	weights []float64
}

// NewKernel builds the kernel for a policy and radius
func NewKernel(policy SmoothingPolicy, radius int) (*Kernel, error) {
	if radius < 0 {
		return nil, fmt.Errorf("blur radius must be non-negative, got %d", radius)
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown smoothing policy: %q", policy)
	}

	weights := make([]float64, 2*radius+1)
	switch {
	case radius == 0:
		weights[0] = 1
	case policy == SmoothingGaussian:
		sigma := float64(radius) / 3
		twoSigmaSq := 2 * sigma * sigma
		for i := range weights {
			d := float64(i - radius)
			weights[i] = math.Exp(-(d * d) / twoSigmaSq)
		}
	default:
		for i := range weights {
			weights[i] = 1
		}
	}

	return &Kernel{radius: radius, policy: policy, weights: weights}, nil
}

func (k *Kernel) Radius() int {
	return k.radius
}

func (k *Kernel) Policy() SmoothingPolicy {
	return k.policy
}

// Size returns the side length 2r+1.
func (k *Kernel) Size() int {
	return len(k.weights)
}

// Weight returns the weight at offset (dx, dy); offsets outside the kernel weigh 0.
func (k *Kernel) Weight(dx, dy int) float64 {
	if dx < -k.radius || dx > k.radius || dy < -k.radius || dy > k.radius {
		return 0
	}
	return k.weights[dx+k.radius] * k.weights[dy+k.radius]
}

// Factor returns a copy of the 1-D weight vector.
func (k *Kernel) Factor() []float64 {
	out := make([]float64, len(k.weights))
	copy(out, k.weights)
	return out
}

// Smooth returns a new buffer where each color sample is the weighted average
// of the in-bounds samples in its neighborhood. Out-of-bounds neighbors are
// excluded and the divisor is the sum of the contributing weights, so border
// pixels average fewer samples. Alpha is copied through.
//
// The direct form costs O(w*h*r²); the separable form runs two 1-D passes in
// O(w*h*r) and matches the direct form up to floating-point rounding.
func Smooth(src *frame.PixelBuffer, kernel *Kernel, separable bool, workers int) *frame.PixelBuffer {
	if kernel.radius == 0 {
		return src.Clone()
	}
	if separable {
		return smoothSeparable(src, kernel, workers)
	}
	return smoothDirect(src, kernel, workers)
}

func smoothDirect(src *frame.PixelBuffer, kernel *Kernel, workers int) *frame.PixelBuffer {
	dst := src.Clone()
	w, h, r := src.Width, src.Height, kernel.radius

	forEachRowBand(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var sr, sg, sb, wsum float64
				for dy := -r; dy <= r; dy++ {
					ny := y + dy
					if ny < 0 || ny >= h {
						continue
					}
					for dx := -r; dx <= r; dx++ {
						nx := x + dx
						if nx < 0 || nx >= w {
							continue
						}
						wt := kernel.Weight(dx, dy)
						i := (ny*w + nx) * frame.Channels
						sr += wt * float64(src.Pix[i])
						sg += wt * float64(src.Pix[i+1])
						sb += wt * float64(src.Pix[i+2])
						wsum += wt
					}
				}
				o := (y*w + x) * frame.Channels
				dst.Pix[o] = clampUint8(sr / wsum)
				dst.Pix[o+1] = clampUint8(sg / wsum)
				dst.Pix[o+2] = clampUint8(sb / wsum)
			}
		}
	})

	return dst
}

func smoothSeparable(src *frame.PixelBuffer, kernel *Kernel, workers int) *frame.PixelBuffer {
	const colors = 3
	w, h, r := src.Width, src.Height, kernel.radius
	weights := kernel.weights
	temp := make([]float64, w*h*colors)

	// Pass 1: horizontal (src -> temp)
	forEachRowBand(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var sr, sg, sb, wsum float64
				lo, hi := max(x-r, 0), min(x+r, w-1)
				for nx := lo; nx <= hi; nx++ {
					wt := weights[nx-x+r]
					i := (y*w + nx) * frame.Channels
					sr += wt * float64(src.Pix[i])
					sg += wt * float64(src.Pix[i+1])
					sb += wt * float64(src.Pix[i+2])
					wsum += wt
				}
				t := (y*w + x) * colors
				temp[t] = sr / wsum
				temp[t+1] = sg / wsum
				temp[t+2] = sb / wsum
			}
		}
	})

	// Pass 2: vertical (temp -> dst)
	dst := src.Clone()
	forEachRowBand(h, workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			lo, hi := max(y-r, 0), min(y+r, h-1)
			for x := 0; x < w; x++ {
				var sr, sg, sb, wsum float64
				for ny := lo; ny <= hi; ny++ {
					wt := weights[ny-y+r]
					t := (ny*w + x) * colors
					sr += wt * temp[t]
					sg += wt * temp[t+1]
					sb += wt * temp[t+2]
					wsum += wt
				}
				o := (y*w + x) * frame.Channels
				dst.Pix[o] = clampUint8(sr / wsum)
				dst.Pix[o+1] = clampUint8(sg / wsum)
				dst.Pix[o+2] = clampUint8(sb / wsum)
			}
		}
	})

	return dst
}
