package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"abengine/internal/domain"
	"abengine/internal/httpx"
)

const narrativeSystemPrompt = `You are an assistant for a model experimentation platform.
You are given the configuration and current analysis of an A/B experiment between
predictive model variants. Write a short narrative (2-4 sentences) for an operations
report: what was compared, what the numbers show, and what the recommendation means.
Plain prose only, no markdown, no preamble. Do not invent numbers.`

// AnalysisNarrative asks Anthropic for a short prose summary of an
// analysis result. Callers treat failures as non-fatal: the deterministic
// recommendation always stands on its own.
func AnalysisNarrative(apiKey, model string, exp *domain.Experiment, result *domain.AnalysisResult) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("no Anthropic API key configured")
	}
	return callAnthropic(apiKey, model, narrativeSystemPrompt, BuildNarrativePrompt(exp, result))
}

// BuildNarrativePrompt renders the experiment and verdict as the user
// prompt. Kept separate so the rendering is testable without the API.
func BuildNarrativePrompt(exp *domain.Experiment, result *domain.AnalysisResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Experiment: %s\n", exp.Name)
	if exp.Hypothesis != "" {
		fmt.Fprintf(&b, "Hypothesis: %s\n", exp.Hypothesis)
	}
	fmt.Fprintf(&b, "Success metric: %s (lower is better: %v)\n", exp.SuccessMetric, exp.SuccessMetric.LowerIsBetter())
	for _, v := range exp.Variants {
		role := "treatment"
		if v.IsControl {
			role = "control"
		}
		m := result.VariantMetrics[v.ID]
		fmt.Fprintf(&b, "Variant %s (%s, model %s@%s): %d outcomes, success rate %.3f\n",
			v.Name, role, v.ModelName, v.ModelVersion, m.TotalRequests, m.SuccessRate())
	}
	fmt.Fprintf(&b, "Control value: %.4f, best treatment value: %.4f\n", result.ControlValue, result.TreatmentValue)
	fmt.Fprintf(&b, "p-value: %.2f, effect size: %.1f%%, statistically significant: %v, business significant: %v\n",
		result.PValue, result.EffectSize*100, result.StatisticallySignificant, result.BusinessSignificant)
	fmt.Fprintf(&b, "Recommendation: %s\n", result.Recommendation)
	return b.String()
}

func callAnthropic(apiKey, model, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.ExternalClient()),
	)

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm narrative response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}
