package scheduler

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"abengine/internal/config"
	"abengine/internal/domain"
	"abengine/internal/engine"
	"abengine/internal/integrations/llm"
	"abengine/internal/report"
)

// SweepResult tracks separate counters for each sweep outcome.
type SweepResult struct {
	Checked int
	Stopped int
	Reports []string
	Errors  []string
}

// StopReasonExpired is recorded on experiments the sweep stops.
const StopReasonExpired = "experiment window elapsed"

// SweepExpired stops every running experiment whose window has elapsed,
// analyzes it, and writes a completion report. It has no Slack dependency
// so it can be called from both the scheduler and an operator trigger.
func SweepExpired(cfg config.Config, eng *engine.Engine) SweepResult {
	var result SweepResult

	expired := eng.Expired()
	result.Checked = len(expired)
	for _, exp := range expired {
		stopped, err := eng.Stop(exp.ID, StopReasonExpired)
		if err != nil {
			log.Printf("sweep stop %s error: %v", exp.ID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: stop: %v", exp.ID, err))
			continue
		}
		result.Stopped++

		path, err := writeReport(cfg, eng, stopped)
		if err != nil {
			log.Printf("sweep report %s error: %v", exp.ID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: report: %v", exp.ID, err))
			continue
		}
		if path != "" {
			result.Reports = append(result.Reports, path)
		}
	}
	return result
}

// StopAndReport is the manual counterpart of the sweep: it stops one
// experiment with the given reason and writes its completion report.
// The report path is empty when there is not enough data to analyze.
func StopAndReport(cfg config.Config, eng *engine.Engine, experimentID, reason string) (string, error) {
	stopped, err := eng.Stop(experimentID, reason)
	if err != nil {
		return "", err
	}
	return writeReport(cfg, eng, stopped)
}

func writeReport(cfg config.Config, eng *engine.Engine, exp *domain.Experiment) (string, error) {
	analysis, err := eng.Analyze(exp.ID)
	if errors.Is(err, domain.ErrInsufficientData) {
		log.Printf("sweep %s: no report, %v", exp.ID, err)
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var narrative string
	if cfg.NarrativeEnabled && cfg.AnthropicAPIKey != "" {
		narrative, err = llm.AnalysisNarrative(cfg.AnthropicAPIKey, cfg.LLMModel, exp, analysis)
		if err != nil {
			log.Printf("sweep %s: narrative skipped: %v", exp.ID, err)
			narrative = ""
		}
	}

	content := report.BuildCompletionReport(exp, analysis, narrative)
	return report.WriteCompletionReport(content, cfg.ReportOutputDir, exp.ID, analysis.AnalyzedAt.In(cfg.Location))
}

// FormatSweepSummary returns a human-readable summary of a SweepResult.
func FormatSweepSummary(result SweepResult) string {
	if result.Checked == 0 {
		return "No experiments past their end date."
	}
	msg := fmt.Sprintf("Stopped %d of %d expired experiment(s)", result.Stopped, result.Checked)
	if len(result.Reports) > 0 {
		msg += fmt.Sprintf(", wrote %d report(s):\n%s", len(result.Reports), strings.Join(result.Reports, "\n"))
	} else {
		msg += "."
	}
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nErrors:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// StartSweepScheduler runs SweepExpired on the configured cron schedule.
// An empty schedule disables the sweep.
func StartSweepScheduler(cfg config.Config, eng *engine.Engine) {
	schedule := strings.TrimSpace(cfg.SweepSchedule)
	if schedule == "" {
		log.Println("Sweep disabled (sweep_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid sweep_schedule '%s': %v — sweep disabled", schedule, err)
		return
	}
	log.Printf("Sweep scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			time.Sleep(next.Sub(now))

			result := SweepExpired(cfg, eng)
			log.Printf("sweep done: %s", FormatSweepSummary(result))
		}
	}()
}
