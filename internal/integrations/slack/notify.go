package slacknotify

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"

	"abengine/internal/domain"
)

// Notifier posts experiment events to a Slack channel. Posts happen in a
// goroutine and failures are only logged: an unreachable channel must
// never fail a lifecycle operation.
type Notifier struct {
	api     *slack.Client
	channel string
}

func New(api *slack.Client, channel string) *Notifier {
	return &Notifier{api: api, channel: channel}
}

func (n *Notifier) ExperimentCreated(exp *domain.Experiment) {
	n.post(FormatCreated(exp))
}

func (n *Notifier) ExperimentStarted(exp *domain.Experiment) {
	n.post(FormatStarted(exp))
}

func (n *Notifier) ExperimentStopped(exp *domain.Experiment, reason string) {
	n.post(FormatStopped(exp, reason))
}

func (n *Notifier) ExperimentAnalyzed(exp *domain.Experiment, result *domain.AnalysisResult) {
	n.post(FormatAnalyzed(exp, result))
}

func (n *Notifier) post(msg string) {
	if n == nil || n.api == nil || n.channel == "" {
		return
	}
	go func() {
		if _, _, err := n.api.PostMessage(n.channel, slack.MsgOptionText(msg, false)); err != nil {
			log.Printf("Event post error: %v", err)
		}
	}()
}

func FormatCreated(exp *domain.Experiment) string {
	var variants []string
	for _, v := range exp.Variants {
		label := fmt.Sprintf("%s (%s@%s, %.1f%%)", v.Name, v.ModelName, v.ModelVersion, v.TrafficPercentage)
		if v.IsControl {
			label += " [control]"
		}
		variants = append(variants, label)
	}
	return fmt.Sprintf(":new: Experiment created: *%s*\nID: `%s`\nMetric: %s | Split: %s\nVariants: %s",
		exp.Name, exp.ID, exp.SuccessMetric, exp.TrafficSplit, strings.Join(variants, ", "))
}

func FormatStarted(exp *domain.Experiment) string {
	return fmt.Sprintf(":rocket: Experiment started: *%s* (`%s`)\nWindow: %s → %s",
		exp.Name, exp.ID,
		exp.StartDate.Format("2006-01-02 15:04"), exp.EndDate.Format("2006-01-02 15:04"))
}

func FormatStopped(exp *domain.Experiment, reason string) string {
	return fmt.Sprintf(":checkered_flag: Experiment completed: *%s* (`%s`)\nReason: %s",
		exp.Name, exp.ID, reason)
}

func FormatAnalyzed(exp *domain.Experiment, result *domain.AnalysisResult) string {
	verdict := "no winner yet"
	if result.Winner != "" {
		if v := exp.Variant(result.Winner); v != nil {
			verdict = fmt.Sprintf("winner: *%s*", v.Name)
		} else {
			verdict = fmt.Sprintf("winner: *%s*", result.Winner)
		}
	}
	return fmt.Sprintf(
		":bar_chart: Analysis for *%s* (`%s`)\n%s control=%.4f treatment=%.4f | p=%.2f effect=%+.1f%% | %s\n%s",
		exp.Name, exp.ID, result.Metric,
		result.ControlValue, result.TreatmentValue,
		result.PValue, result.EffectSize*100, verdict,
		result.Recommendation)
}
