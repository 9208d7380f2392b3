package domain

// Metric is the experiment's success metric. Each kind carries its
// comparison polarity as data so callers never branch on the name.
type Metric string

const (
	MetricRMSE            Metric = "rmse"
	MetricMAE             Metric = "mae"
	MetricSuccessRate     Metric = "success_rate"
	MetricErrorRate       Metric = "error_rate"
	MetricAvgResponseTime Metric = "avg_response_time_ms"
	MetricAvgConfidence   Metric = "avg_prediction_confidence"
)

// true when a smaller value is the better one.
var metricLowerIsBetter = map[Metric]bool{
	MetricRMSE:            true,
	MetricMAE:             true,
	MetricSuccessRate:     false,
	MetricErrorRate:       true,
	MetricAvgResponseTime: true,
	MetricAvgConfidence:   false,
}

func (m Metric) Valid() bool {
	_, ok := metricLowerIsBetter[m]
	return ok
}

func (m Metric) LowerIsBetter() bool {
	return metricLowerIsBetter[m]
}

// Better reports whether value a beats value b under this metric's polarity.
func (m Metric) Better(a, b float64) bool {
	if metricLowerIsBetter[m] {
		return a < b
	}
	return a > b
}

// VariantMetrics is the per-variant summary derived from the outcome log.
// The quality averages are nil when no recorded outcome carried the
// corresponding key.
type VariantMetrics struct {
	TotalRequests         int64    `json:"total_requests"`
	SuccessfulPredictions int64    `json:"successful_predictions"`
	FailedPredictions     int64    `json:"failed_predictions"`
	AvgResponseTimeMS     float64  `json:"avg_response_time_ms"`
	AvgConfidence         *float64 `json:"avg_prediction_confidence,omitempty"`
	AvgRMSE               *float64 `json:"avg_rmse,omitempty"`
	AvgMAE                *float64 `json:"avg_mae,omitempty"`
}

func (m VariantMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessfulPredictions) / float64(m.TotalRequests)
}

func (m VariantMetrics) ErrorRate() float64 {
	return 1 - m.SuccessRate()
}

// Value extracts this metric's value from a variant summary. The second
// return is false when the summary has no data for the metric (e.g. an
// rmse metric with no rmse-bearing outcomes).
func (m Metric) Value(vm VariantMetrics) (float64, bool) {
	switch m {
	case MetricSuccessRate:
		return vm.SuccessRate(), true
	case MetricErrorRate:
		return vm.ErrorRate(), true
	case MetricAvgResponseTime:
		return vm.AvgResponseTimeMS, true
	case MetricAvgConfidence:
		if vm.AvgConfidence == nil {
			return 0, false
		}
		return *vm.AvgConfidence, true
	case MetricRMSE:
		if vm.AvgRMSE == nil {
			return 0, false
		}
		return *vm.AvgRMSE, true
	case MetricMAE:
		if vm.AvgMAE == nil {
			return 0, false
		}
		return *vm.AvgMAE, true
	}
	return 0, false
}
