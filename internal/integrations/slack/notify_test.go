package slacknotify

import (
	"strings"
	"testing"
	"time"

	"abengine/internal/domain"
)

func sampleExperiment() *domain.Experiment {
	start := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	return &domain.Experiment{
		ID:            "exp-1",
		Name:          "pm25 model bake-off",
		SuccessMetric: domain.MetricRMSE,
		TrafficSplit:  domain.SplitUserID,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 14),
		Variants: []domain.Variant{
			{ID: "A", Name: "control", ModelName: "pm25", ModelVersion: "1.0", TrafficPercentage: 60, IsControl: true},
			{ID: "B", Name: "treatment", ModelName: "pm25", ModelVersion: "2.0", TrafficPercentage: 40},
		},
	}
}

func TestFormatCreated(t *testing.T) {
	msg := FormatCreated(sampleExperiment())
	for _, want := range []string{"pm25 model bake-off", "exp-1", "rmse", "user_id", "[control]", "pm25@2.0"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("created message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatStopped(t *testing.T) {
	msg := FormatStopped(sampleExperiment(), "experiment window elapsed")
	if !strings.Contains(msg, "experiment window elapsed") {
		t.Fatalf("stopped message missing reason:\n%s", msg)
	}
}

func TestFormatAnalyzed(t *testing.T) {
	exp := sampleExperiment()
	result := &domain.AnalysisResult{
		ExperimentID:             "exp-1",
		Metric:                   domain.MetricRMSE,
		ControlVariant:           "A",
		TreatmentVariant:         "B",
		ControlValue:             20,
		TreatmentValue:           18,
		PValue:                   0.01,
		EffectSize:               -0.10,
		StatisticallySignificant: true,
		BusinessSignificant:      true,
		Winner:                   "B",
		Recommendation:           "Deploy treatment variant",
	}
	msg := FormatAnalyzed(exp, result)
	if !strings.Contains(msg, "winner: *treatment*") {
		t.Fatalf("analyzed message must name the winner by variant name:\n%s", msg)
	}
	if !strings.Contains(msg, "p=0.01") || !strings.Contains(msg, "-10.0%") {
		t.Fatalf("analyzed message missing stats:\n%s", msg)
	}

	result.Winner = ""
	msg = FormatAnalyzed(exp, result)
	if !strings.Contains(msg, "no winner yet") {
		t.Fatalf("analyzed message must degrade without a winner:\n%s", msg)
	}
}

func TestPostToleratesMissingClient(t *testing.T) {
	// A nil client or empty channel is a disabled side channel, not a crash.
	n := New(nil, "")
	n.ExperimentCreated(sampleExperiment())
	n.ExperimentStopped(sampleExperiment(), "done")
}
