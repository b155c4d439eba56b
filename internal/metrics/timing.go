package metrics

import (
	"errors"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// TimingSummary describes a set of run durations in milliseconds
type TimingSummary struct {
	Runs   int     `json:"runs"`
	MeanMs float64 `json:"mean_ms"`
	StdMs  float64 `json:"std_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
}

// SummarizeTimings computes mean, spread and quantiles of durations
func SummarizeTimings(durations []time.Duration) (TimingSummary, error) {
	if len(durations) == 0 {
		return TimingSummary{}, errors.New("no durations to summarize")
	}

	ms := make([]float64, len(durations))
	for i, d := range durations {
		ms[i] = float64(d) / float64(time.Millisecond)
	}
	sort.Float64s(ms)

	mean, std := stat.MeanStdDev(ms, nil)
	if len(ms) == 1 {
		std = 0
	}

	return TimingSummary{
		Runs:   len(ms),
		MeanMs: mean,
		StdMs:  std,
		MinMs:  ms[0],
		MaxMs:  ms[len(ms)-1],
		P50Ms:  stat.Quantile(0.5, stat.Empirical, ms, nil),
		P90Ms:  stat.Quantile(0.9, stat.Empirical, ms, nil),
	}, nil
}
