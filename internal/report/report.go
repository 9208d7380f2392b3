package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"abengine/internal/domain"
)

// BuildCompletionReport renders a markdown summary of a finished (or
// in-flight) experiment: configuration, per-variant metrics, and the
// statistical verdict. narrative is optional prose appended at the end.
func BuildCompletionReport(exp *domain.Experiment, result *domain.AnalysisResult, narrative string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Experiment report: %s\n\n", exp.Name)
	fmt.Fprintf(&b, "- **ID**: %s\n", exp.ID)
	fmt.Fprintf(&b, "- **Status**: %s\n", exp.Status)
	if exp.Hypothesis != "" {
		fmt.Fprintf(&b, "- **Hypothesis**: %s\n", exp.Hypothesis)
	}
	fmt.Fprintf(&b, "- **Success metric**: %s\n", exp.SuccessMetric)
	fmt.Fprintf(&b, "- **Traffic split**: %s\n", exp.TrafficSplit)
	fmt.Fprintf(&b, "- **Window**: %s to %s\n", exp.StartDate.Format("2006-01-02"), exp.EndDate.Format("2006-01-02"))
	fmt.Fprintf(&b, "- **Duration analyzed**: %s\n", formatDuration(result.Duration))
	fmt.Fprintf(&b, "- **Total outcomes**: %d\n\n", result.TotalSamples)

	b.WriteString("## Variants\n\n")
	b.WriteString("| Variant | Model | Traffic | Outcomes | Success rate | Avg response (ms) |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, v := range exp.Variants {
		name := v.Name
		if v.IsControl {
			name += " (control)"
		}
		m := result.VariantMetrics[v.ID]
		fmt.Fprintf(&b, "| %s | %s@%s | %.0f%% | %d | %.1f%% | %.1f |\n",
			name, v.ModelName, v.ModelVersion, v.TrafficPercentage,
			m.TotalRequests, m.SuccessRate()*100, m.AvgResponseTimeMS)
	}
	b.WriteString("\n")

	b.WriteString("## Verdict\n\n")
	fmt.Fprintf(&b, "- **Control** (%s): %.4f\n", variantName(exp, result.ControlVariant), result.ControlValue)
	fmt.Fprintf(&b, "- **Best treatment** (%s): %.4f\n", variantName(exp, result.TreatmentVariant), result.TreatmentValue)
	fmt.Fprintf(&b, "- **p-value**: %.2f\n", result.PValue)
	fmt.Fprintf(&b, "- **Effect size**: %+.1f%%\n", result.EffectSize*100)
	fmt.Fprintf(&b, "- **Statistically significant**: %s\n", yesNo(result.StatisticallySignificant))
	fmt.Fprintf(&b, "- **Business significant**: %s\n", yesNo(result.BusinessSignificant))
	if result.Winner != "" {
		fmt.Fprintf(&b, "- **Winner**: %s\n", variantName(exp, result.Winner))
	} else {
		b.WriteString("- **Winner**: none declared\n")
	}
	fmt.Fprintf(&b, "\n%s\n", result.Recommendation)

	if keys := sortedExtraKeys(exp.Metadata); len(keys) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, exp.Metadata[k])
		}
	}

	if narrative != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(narrative)
		b.WriteString("\n")
	}
	return b.String()
}

// WriteCompletionReport writes the report under outputDir as
// <experiment_id>_<yyyymmdd>.md and returns the path.
func WriteCompletionReport(content, outputDir, experimentID string, reportDate time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(experimentID), reportDate.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

func variantName(exp *domain.Experiment, id string) string {
	if v := exp.Variant(id); v != nil && v.Name != "" {
		return v.Name
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatDuration(d time.Duration) string {
	if d >= 24*time.Hour {
		days := d / (24 * time.Hour)
		rest := d - days*24*time.Hour
		return fmt.Sprintf("%dd%s", days, rest.Round(time.Minute))
	}
	return d.Round(time.Minute).String()
}

func sortedExtraKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return replacer.Replace(s)
}
