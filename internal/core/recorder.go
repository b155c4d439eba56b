// Run history and per-plan timing statistics
package core

import (
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultHistory is the number of runs a Recorder keeps.
const DefaultHistory = 256

// RunRecord tracks one invocation, successful or rejected
type RunRecord struct {
	Report  RunReport
	Success bool
	Error   string
}

// PlanKey identifies runs that executed the same stage sequence.
func (r RunRecord) PlanKey() string {
	return strings.Join(r.Report.Config.Plan(), "+")
}

// Recorder keeps a bounded history of pipeline runs
type Recorder struct {
	mu      sync.RWMutex
	logger  logrus.FieldLogger
	limit   int
	records []RunRecord
}

func NewRecorder(logger logrus.FieldLogger, limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &Recorder{
		logger:  logger,
		limit:   limit,
		records: make([]RunRecord, 0, limit),
	}
}

// Record appends a run, dropping the oldest when the history is full.
func (r *Recorder) Record(report RunReport, err error) {
	rec := RunRecord{Report: report, Success: err == nil}
	if err != nil {
		rec.Error = err.Error()
	}

	r.mu.Lock()
	if len(r.records) == r.limit {
		copy(r.records, r.records[1:])
		r.records = r.records[:r.limit-1]
	}
	r.records = append(r.records, rec)
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.WithFields(logrus.Fields{
			"plan":        rec.PlanKey(),
			"success":     rec.Success,
			"duration_ms": report.Elapsed.Milliseconds(),
			"error":       rec.Error,
		}).Debug("PIPELINE: Run recorded")
	}
}

// Records returns a copy of the history, oldest first
func (r *Recorder) Records() []RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RunRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Durations returns the elapsed time of successful runs grouped by plan.
func (r *Recorder) Durations() map[string][]time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]time.Duration)
	for _, rec := range r.records {
		if !rec.Success {
			continue
		}
		key := rec.PlanKey()
		out[key] = append(out[key], rec.Report.Elapsed)
	}
	return out
}

// StageDurations returns per-stage durations across successful runs.
func (r *Recorder) StageDurations() map[string][]time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]time.Duration)
	for _, rec := range r.records {
		if !rec.Success {
			continue
		}
		for _, st := range rec.Report.Stages {
			out[st.Name] = append(out[st.Name], st.Duration)
		}
	}
	return out
}

func (r *Recorder) GetStats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]interface{}{
		"total_runs": len(r.records),
	}

	successCount := 0
	var total time.Duration
	for _, rec := range r.records {
		if rec.Success {
			successCount++
			total += rec.Report.Elapsed
		}
	}
	if len(r.records) > 0 {
		stats["success_rate"] = float64(successCount) / float64(len(r.records))
	}
	if successCount > 0 {
		stats["avg_processing_time"] = total / time.Duration(successCount)
	}

	return stats
}

// Reset clears the history
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = r.records[:0]
}
