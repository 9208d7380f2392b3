package domain

import (
	"fmt"
	"math"
	"time"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusRunning, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type SplitMethod string

const (
	SplitRandom    SplitMethod = "random"
	SplitUserID    SplitMethod = "user_id"
	SplitLocation  SplitMethod = "location"
	SplitTimeBased SplitMethod = "time_based"
	SplitCustom    SplitMethod = "custom"
)

func (m SplitMethod) Valid() bool {
	switch m {
	case SplitRandom, SplitUserID, SplitLocation, SplitTimeBased, SplitCustom:
		return true
	}
	return false
}

// Variant is one model configuration under test. Immutable once the
// experiment starts.
type Variant struct {
	ID                string         `json:"variant_id"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	ModelName         string         `json:"model_name"`
	ModelVersion      string         `json:"model_version"`
	TrafficPercentage float64        `json:"traffic_percentage"`
	IsControl         bool           `json:"is_control"`
	Configuration     map[string]any `json:"configuration,omitempty"` // opaque, passed through to the caller
}

// Experiment is the unit of configuration and analysis.
type Experiment struct {
	ID                string         `json:"experiment_id"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Hypothesis        string         `json:"hypothesis,omitempty"`
	SuccessMetric     Metric         `json:"success_metric"`
	Variants          []Variant      `json:"variants"`
	TrafficSplit      SplitMethod    `json:"traffic_split_method"`
	StartDate         time.Time      `json:"start_date"`
	EndDate           time.Time      `json:"end_date"`
	Status            Status         `json:"status"`
	MinimumSampleSize int            `json:"minimum_sample_size"`
	ConfidenceLevel   float64        `json:"confidence_level"`
	MinimumEffectSize float64        `json:"minimum_effect_size"`
	Tags              []string       `json:"tags,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"` // opaque, never interpreted by the engine
}

// Traffic percentages must sum to 100 within this tolerance.
const TrafficSumTolerance = 0.01

// Validate checks the create-time invariants: at least two variants,
// exactly one control, traffic summing to 100, a known metric and split
// method, and a coherent date window.
func (e *Experiment) Validate() error {
	var problems []string

	if e.Name == "" {
		problems = append(problems, "name is required")
	}
	if !e.SuccessMetric.Valid() {
		problems = append(problems, fmt.Sprintf("unknown success_metric %q", e.SuccessMetric))
	}
	if !e.TrafficSplit.Valid() {
		problems = append(problems, fmt.Sprintf("unknown traffic_split_method %q", e.TrafficSplit))
	}
	if len(e.Variants) < 2 {
		problems = append(problems, fmt.Sprintf("at least 2 variants required, got %d", len(e.Variants)))
	}

	controls := 0
	sum := 0.0
	seen := make(map[string]bool, len(e.Variants))
	for i, v := range e.Variants {
		if v.ID == "" {
			problems = append(problems, fmt.Sprintf("variant %d has no variant_id", i))
		} else if seen[v.ID] {
			problems = append(problems, fmt.Sprintf("duplicate variant_id %q", v.ID))
		}
		seen[v.ID] = true
		if v.ModelName == "" || v.ModelVersion == "" {
			problems = append(problems, fmt.Sprintf("variant %q needs model_name and model_version", v.ID))
		}
		if v.TrafficPercentage <= 0 || v.TrafficPercentage > 100 {
			problems = append(problems, fmt.Sprintf("variant %q traffic_percentage %.4f out of (0, 100]", v.ID, v.TrafficPercentage))
		}
		if v.IsControl {
			controls++
		}
		sum += v.TrafficPercentage
	}
	if controls != 1 {
		problems = append(problems, fmt.Sprintf("exactly one control variant required, got %d", controls))
	}
	if len(e.Variants) >= 2 && math.Abs(sum-100.0) > TrafficSumTolerance {
		problems = append(problems, fmt.Sprintf("traffic percentages sum to %.4f, want 100", sum))
	}

	if !e.EndDate.After(e.StartDate) {
		problems = append(problems, "end_date must be after start_date")
	}
	if e.ConfidenceLevel <= 0 || e.ConfidenceLevel >= 1 {
		problems = append(problems, fmt.Sprintf("confidence_level %.4f out of (0, 1)", e.ConfidenceLevel))
	}
	if e.MinimumEffectSize < 0 {
		problems = append(problems, fmt.Sprintf("minimum_effect_size %.4f must be >= 0", e.MinimumEffectSize))
	}
	if e.MinimumSampleSize < 0 {
		problems = append(problems, fmt.Sprintf("minimum_sample_size %d must be >= 0", e.MinimumSampleSize))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ControlVariant returns the control variant, or nil if none is marked.
func (e *Experiment) ControlVariant() *Variant {
	for i := range e.Variants {
		if e.Variants[i].IsControl {
			return &e.Variants[i]
		}
	}
	return nil
}

// Variant returns the variant with the given id, or nil.
func (e *Experiment) Variant(id string) *Variant {
	for i := range e.Variants {
		if e.Variants[i].ID == id {
			return &e.Variants[i]
		}
	}
	return nil
}

// IsActiveAt reports whether the experiment is serving traffic at the
// given instant: status RUNNING and within the configured window.
func (e *Experiment) IsActiveAt(now time.Time) bool {
	return e.Status == StatusRunning && !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// HasTags reports whether the experiment carries every given tag.
func (e *Experiment) HasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range e.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns a deep copy. Variants and the opaque maps are copied so
// that callers holding a clone cannot mutate cached state.
func (e *Experiment) Clone() *Experiment {
	out := *e
	out.Variants = make([]Variant, len(e.Variants))
	for i, v := range e.Variants {
		out.Variants[i] = v
		out.Variants[i].Configuration = cloneMap(v.Configuration)
	}
	out.Tags = append([]string(nil), e.Tags...)
	out.Metadata = cloneMap(e.Metadata)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
