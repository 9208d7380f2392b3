package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"abengine/internal/config"
	"abengine/internal/domain"
	"abengine/internal/engine"
	"abengine/internal/storage/sqlite"
)

type anyResolver struct{}

func (anyResolver) Resolve(modelName, modelVersion string) (engine.ModelHandle, error) {
	return modelName + "@" + modelVersion, nil
}

func newSweepEngine(t *testing.T) *engine.Engine {
	t.Helper()
	db, err := sqlite.InitDB(filepath.Join(t.TempDir(), "sweep.db"))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng, err := engine.New(db, anyResolver{}, nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

// startExpired creates and starts an experiment whose window is short
// enough to have elapsed by the time the sweep runs.
func startExpired(t *testing.T, eng *engine.Engine) *domain.Experiment {
	t.Helper()
	start := time.Now().UTC()
	exp, err := eng.Create(&domain.Experiment{
		Name:              "expiring",
		SuccessMetric:     domain.MetricSuccessRate,
		TrafficSplit:      domain.SplitUserID,
		StartDate:         start,
		EndDate:           start.Add(time.Millisecond),
		MinimumSampleSize: 10,
		Variants: []domain.Variant{
			{ID: "a", Name: "baseline", ModelName: "m", ModelVersion: "1", IsControl: true, TrafficPercentage: 50},
			{ID: "b", Name: "candidate", ModelName: "m", ModelVersion: "2", TrafficPercentage: 50},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := eng.Start(exp.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	return exp
}

func TestSweepExpiredStopsAndReports(t *testing.T) {
	eng := newSweepEngine(t)
	exp := startExpired(t, eng)

	for i := 0; i < 20; i++ {
		if err := eng.Record(exp.ID, "a", engine.Outcome{Success: i%2 == 0, ResponseTimeMS: 100}); err != nil {
			t.Fatalf("Record a: %v", err)
		}
		if err := eng.Record(exp.ID, "b", engine.Outcome{Success: true, ResponseTimeMS: 90}); err != nil {
			t.Fatalf("Record b: %v", err)
		}
	}

	cfg := config.Config{ReportOutputDir: t.TempDir(), Location: time.UTC}
	result := SweepExpired(cfg, eng)

	if result.Checked != 1 || result.Stopped != 1 {
		t.Fatalf("sweep = %+v, want 1 checked and 1 stopped", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("sweep errors: %v", result.Errors)
	}
	if len(result.Reports) != 1 {
		t.Fatalf("reports = %v, want one", result.Reports)
	}

	data, err := os.ReadFile(result.Reports[0])
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "# Experiment report: expiring") {
		t.Errorf("report content missing header:\n%s", data)
	}

	stopped, err := eng.Get(exp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stopped.Status != domain.StatusCompleted {
		t.Errorf("status = %s, want completed", stopped.Status)
	}
	if stopped.Metadata["stop_reason"] != StopReasonExpired {
		t.Errorf("stop_reason = %v", stopped.Metadata["stop_reason"])
	}
}

func TestSweepExpiredInsufficientData(t *testing.T) {
	eng := newSweepEngine(t)
	startExpired(t, eng)

	cfg := config.Config{ReportOutputDir: t.TempDir(), Location: time.UTC}
	result := SweepExpired(cfg, eng)

	if result.Stopped != 1 {
		t.Fatalf("sweep = %+v, want the experiment stopped", result)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("insufficient data should not count as an error: %v", result.Errors)
	}
	if len(result.Reports) != 0 {
		t.Errorf("no report expected without outcomes, got %v", result.Reports)
	}
}

func TestStopAndReport(t *testing.T) {
	eng := newSweepEngine(t)
	exp := startExpired(t, eng)

	for i := 0; i < 15; i++ {
		if err := eng.Record(exp.ID, "a", engine.Outcome{Success: true, ResponseTimeMS: 100}); err != nil {
			t.Fatalf("Record a: %v", err)
		}
		if err := eng.Record(exp.ID, "b", engine.Outcome{Success: true, ResponseTimeMS: 95}); err != nil {
			t.Fatalf("Record b: %v", err)
		}
	}

	cfg := config.Config{ReportOutputDir: t.TempDir(), Location: time.UTC}
	path, err := StopAndReport(cfg, eng, exp.ID, "operator decision")
	if err != nil {
		t.Fatalf("StopAndReport: %v", err)
	}
	if path == "" {
		t.Fatal("expected a report path")
	}

	stopped, err := eng.Get(exp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stopped.Metadata["stop_reason"] != "operator decision" {
		t.Errorf("stop_reason = %v", stopped.Metadata["stop_reason"])
	}

	// Stopping twice is an invalid transition.
	if _, err := StopAndReport(cfg, eng, exp.ID, "again"); err == nil {
		t.Error("expected invalid state error on second stop")
	}
}

func TestSweepExpiredNothingToDo(t *testing.T) {
	eng := newSweepEngine(t)
	cfg := config.Config{ReportOutputDir: t.TempDir(), Location: time.UTC}
	result := SweepExpired(cfg, eng)
	if result.Checked != 0 {
		t.Errorf("checked = %d, want 0", result.Checked)
	}
}

func TestFormatSweepSummary(t *testing.T) {
	if got := FormatSweepSummary(SweepResult{}); got != "No experiments past their end date." {
		t.Errorf("empty summary = %q", got)
	}

	got := FormatSweepSummary(SweepResult{
		Checked: 2,
		Stopped: 2,
		Reports: []string{"/tmp/a.md"},
		Errors:  []string{"exp-2: report: boom"},
	})
	for _, want := range []string{"Stopped 2 of 2", "/tmp/a.md", "exp-2: report: boom"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q: %s", want, got)
		}
	}
}
