package domain

import (
	"fmt"
	"time"
)

// OutcomeRecord is one logged prediction event. Records are immutable and
// append-only; nothing in the engine updates or deletes them.
type OutcomeRecord struct {
	Timestamp      time.Time      `json:"timestamp"`
	ExperimentID   string         `json:"experiment_id"`
	VariantID      string         `json:"variant_id"`
	Prediction     map[string]any `json:"prediction_data,omitempty"` // may carry confidence, rmse, mae
	ResponseTimeMS float64        `json:"response_time_ms"`
	Success        bool           `json:"success"`
	Error          string         `json:"error,omitempty"`
}

func (r *OutcomeRecord) Validate() error {
	if r.ExperimentID == "" {
		return fmt.Errorf("outcome record has no experiment_id")
	}
	if r.VariantID == "" {
		return fmt.Errorf("outcome record has no variant_id")
	}
	if r.ResponseTimeMS < 0 {
		return fmt.Errorf("response_time_ms %.2f must be >= 0", r.ResponseTimeMS)
	}
	return nil
}
