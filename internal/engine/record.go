package engine

import (
	"fmt"

	"abengine/internal/domain"
	"abengine/internal/storage/sqlite"
)

// Outcome is one prediction result reported back after an assignment.
type Outcome struct {
	Prediction     map[string]any // may carry confidence, rmse, mae
	ResponseTimeMS float64
	Success        bool
	Error          string
}

// Record appends one outcome to the experiment's log. A failure here is
// reported to the caller but is expected to be treated as non-fatal on
// the request path; the record either lands in full or not at all.
func (e *Engine) Record(experimentID, variantID string, outcome Outcome) error {
	exp, err := e.Get(experimentID)
	if err != nil {
		return err
	}
	if exp.Variant(variantID) == nil {
		return fmt.Errorf("variant %q is not part of experiment %s", variantID, experimentID)
	}

	rec := domain.OutcomeRecord{
		Timestamp:      e.now().UTC(),
		ExperimentID:   experimentID,
		VariantID:      variantID,
		Prediction:     outcome.Prediction,
		ResponseTimeMS: outcome.ResponseTimeMS,
		Success:        outcome.Success,
		Error:          outcome.Error,
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return sqlite.AppendOutcome(e.db, &rec)
}

// Metrics reduces the experiment's outcome log into per-variant summaries
// as of now. Pure read; it never blocks writers.
func (e *Engine) Metrics(experimentID string) (map[string]domain.VariantMetrics, error) {
	if _, err := e.Get(experimentID); err != nil {
		return nil, err
	}
	return sqlite.AggregateOutcomes(e.db, experimentID)
}
