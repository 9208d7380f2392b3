package domain

import "time"

// AnalysisResult is the verdict of comparing the control variant against
// the best treatment variant. Derived on demand, never persisted.
type AnalysisResult struct {
	ExperimentID             string                    `json:"experiment_id"`
	Metric                   Metric                    `json:"success_metric"`
	ControlVariant           string                    `json:"control_variant"`
	TreatmentVariant         string                    `json:"treatment_variant"`
	ControlValue             float64                   `json:"control_value"`
	TreatmentValue           float64                   `json:"treatment_value"`
	PValue                   float64                   `json:"p_value"`
	EffectSize               float64                   `json:"effect_size"`
	StatisticallySignificant bool                      `json:"statistical_significance"`
	BusinessSignificant      bool                      `json:"business_significance"`
	Winner                   string                    `json:"winner,omitempty"`
	Recommendation           string                    `json:"recommendation"`
	VariantMetrics           map[string]VariantMetrics `json:"variant_metrics"`
	Duration                 time.Duration             `json:"duration"`
	TotalSamples             int64                     `json:"total_samples"`
	AnalyzedAt               time.Time                 `json:"analyzed_at"`
}
