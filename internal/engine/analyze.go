package engine

import (
	"fmt"
	"log"
	"math"

	"abengine/internal/domain"
	"abengine/internal/storage/sqlite"
)

// Analyze compares the control variant against the best treatment variant
// on the experiment's success metric and produces a verdict. It fails
// with ErrInsufficientData when fewer than two variants have outcomes or
// the control has none. The significance test is the operational
// threshold approximation the product has always used; degenerate inputs
// degrade to p=1.0 rather than erroring.
func (e *Engine) Analyze(experimentID string) (*domain.AnalysisResult, error) {
	exp, err := e.Get(experimentID)
	if err != nil {
		return nil, err
	}
	metrics, err := sqlite.AggregateOutcomes(e.db, experimentID)
	if err != nil {
		return nil, err
	}

	withData := 0
	var totalSamples int64
	for _, m := range metrics {
		if m.TotalRequests > 0 {
			withData++
		}
		totalSamples += m.TotalRequests
	}
	if withData < 2 {
		return nil, fmt.Errorf("%w: %d variant(s) with outcomes", domain.ErrInsufficientData, withData)
	}

	control := exp.ControlVariant()
	controlMetrics, ok := metrics[control.ID]
	if !ok || controlMetrics.TotalRequests == 0 {
		return nil, fmt.Errorf("%w: control variant %q has no outcomes", domain.ErrInsufficientData, control.ID)
	}
	controlValue, ok := exp.SuccessMetric.Value(controlMetrics)
	if !ok {
		return nil, fmt.Errorf("%w: control variant %q has no %s data", domain.ErrInsufficientData, control.ID, exp.SuccessMetric)
	}

	// Best treatment by metric polarity.
	var treatment *domain.Variant
	var treatmentValue float64
	var treatmentMetrics domain.VariantMetrics
	for i := range exp.Variants {
		v := &exp.Variants[i]
		if v.IsControl {
			continue
		}
		m, ok := metrics[v.ID]
		if !ok || m.TotalRequests == 0 {
			continue
		}
		value, ok := exp.SuccessMetric.Value(m)
		if !ok {
			continue
		}
		if treatment == nil || exp.SuccessMetric.Better(value, treatmentValue) {
			treatment = v
			treatmentValue = value
			treatmentMetrics = m
		}
	}
	if treatment == nil {
		return nil, fmt.Errorf("%w: no treatment variant has %s data", domain.ErrInsufficientData, exp.SuccessMetric)
	}

	pValue, significant := approximateSignificance(
		controlValue, controlMetrics.TotalRequests,
		treatmentValue, treatmentMetrics.TotalRequests,
		exp.ConfidenceLevel,
	)

	effectSize := 0.0
	if controlValue != 0 {
		effectSize = (treatmentValue - controlValue) / controlValue
	}
	businessSignificant := math.Abs(effectSize) >= exp.MinimumEffectSize

	treatmentBetter := exp.SuccessMetric.Better(treatmentValue, controlValue)
	winner := ""
	if significant && businessSignificant {
		if treatmentBetter {
			winner = treatment.ID
		} else {
			winner = control.ID
		}
	}

	result := &domain.AnalysisResult{
		ExperimentID:             exp.ID,
		Metric:                   exp.SuccessMetric,
		ControlVariant:           control.ID,
		TreatmentVariant:         treatment.ID,
		ControlValue:             controlValue,
		TreatmentValue:           treatmentValue,
		PValue:                   pValue,
		EffectSize:               effectSize,
		StatisticallySignificant: significant,
		BusinessSignificant:      businessSignificant,
		Winner:                   winner,
		VariantMetrics:           metrics,
		TotalSamples:             totalSamples,
		AnalyzedAt:               e.now(),
	}
	result.Duration = result.AnalyzedAt.Sub(exp.StartDate)
	result.Recommendation = recommendation(exp, control, treatment, controlMetrics, treatmentMetrics, result, treatmentBetter)

	log.Printf("Experiment analyzed id=%s metric=%s control=%.4f treatment=%.4f p=%.2f effect=%.4f winner=%q",
		exp.ID, exp.SuccessMetric, controlValue, treatmentValue, pValue, effectSize, winner)

	if e.notifier != nil {
		e.notifier.ExperimentAnalyzed(exp, result)
	}
	return result, nil
}

// approximateSignificance runs the two-proportion-style test with a
// pooled standard error and converts the t statistic to a p-value through
// fixed thresholds. Zero samples or a non-finite/zero standard error
// yield (1.0, false) instead of an error.
func approximateSignificance(controlValue float64, controlN int64, treatmentValue float64, treatmentN int64, confidenceLevel float64) (float64, bool) {
	if controlN == 0 || treatmentN == 0 {
		return 1.0, false
	}

	se := math.Sqrt(
		controlValue*(1-controlValue)/float64(controlN) +
			treatmentValue*(1-treatmentValue)/float64(treatmentN),
	)
	if math.IsNaN(se) || math.IsInf(se, 0) || se == 0 {
		return 1.0, false
	}

	t := math.Abs(treatmentValue-controlValue) / se
	var p float64
	switch {
	case t >= 2.58:
		p = 0.01
	case t >= 1.96:
		p = 0.05
	case t >= 1.65:
		p = 0.10
	default:
		p = 0.20
	}
	return p, p < 1-confidenceLevel
}

// recommendation assembles the deterministic operator guidance for a
// computed result.
func recommendation(
	exp *domain.Experiment,
	control, treatment *domain.Variant,
	controlMetrics, treatmentMetrics domain.VariantMetrics,
	result *domain.AnalysisResult,
	treatmentBetter bool,
) string {
	minSamples := int64(exp.MinimumSampleSize)
	if controlMetrics.TotalRequests < minSamples || treatmentMetrics.TotalRequests < minSamples {
		return fmt.Sprintf(
			"Insufficient sample size: collect at least %d outcomes per variant before acting on this result. Continue monitoring.",
			minSamples)
	}
	if !result.StatisticallySignificant {
		return "No statistically significant difference between variants. Continue monitoring or stop the experiment."
	}
	if !result.BusinessSignificant {
		return fmt.Sprintf(
			"Difference is statistically significant but the effect size (%.1f%%) is below the configured minimum (%.1f%%). Keep control variant %q.",
			result.EffectSize*100, exp.MinimumEffectSize*100, control.Name)
	}
	if treatmentBetter {
		return fmt.Sprintf(
			"Deploy treatment variant %q: it outperforms the control on %s with a significant effect (%.1f%%).",
			treatment.Name, exp.SuccessMetric, result.EffectSize*100)
	}
	return fmt.Sprintf(
		"Keep control variant %q: treatment %q performs significantly worse on %s.",
		control.Name, treatment.Name, exp.SuccessMetric)
}
