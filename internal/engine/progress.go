package engine

import (
	"time"

	"abengine/internal/domain"
	"abengine/internal/storage/sqlite"
)

// VariantProgress is one variant's sample count against the experiment's
// minimum sample size.
type VariantProgress struct {
	VariantID string  `json:"variant_id"`
	Name      string  `json:"name"`
	Samples   int64   `json:"samples"`
	Target    int     `json:"target"`
	Percent   float64 `json:"percent"` // of target, capped at 100
}

// ProgressStatus combines lifecycle state, elapsed time and per-variant
// sample progress for the operator surface.
type ProgressStatus struct {
	ExperimentID string            `json:"experiment_id"`
	Status       domain.Status     `json:"status"`
	Active       bool              `json:"active"`
	Elapsed      time.Duration     `json:"elapsed"`
	Remaining    time.Duration     `json:"remaining"`
	TotalSamples int64             `json:"total_samples"`
	Variants     []VariantProgress `json:"variants"`
}

// Progress reports how far along an experiment is.
func (e *Engine) Progress(experimentID string) (*ProgressStatus, error) {
	exp, err := e.Get(experimentID)
	if err != nil {
		return nil, err
	}
	metrics, err := sqlite.AggregateOutcomes(e.db, experimentID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	status := &ProgressStatus{
		ExperimentID: exp.ID,
		Status:       exp.Status,
		Active:       exp.IsActiveAt(now),
	}
	if !exp.StartDate.IsZero() && now.After(exp.StartDate) {
		status.Elapsed = now.Sub(exp.StartDate)
	}
	if exp.Status == domain.StatusRunning && exp.EndDate.After(now) {
		status.Remaining = exp.EndDate.Sub(now)
	}

	for _, v := range exp.Variants {
		m := metrics[v.ID]
		percent := 0.0
		if exp.MinimumSampleSize > 0 {
			percent = float64(m.TotalRequests) / float64(exp.MinimumSampleSize) * 100
			if percent > 100 {
				percent = 100
			}
		}
		status.TotalSamples += m.TotalRequests
		status.Variants = append(status.Variants, VariantProgress{
			VariantID: v.ID,
			Name:      v.Name,
			Samples:   m.TotalRequests,
			Target:    exp.MinimumSampleSize,
			Percent:   percent,
		})
	}
	return status, nil
}
