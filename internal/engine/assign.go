package engine

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"

	"abengine/internal/domain"
)

// Location is a request's coordinates, used by location-based splits.
type Location struct {
	Latitude  float64
	Longitude float64
}

// AssignmentContext carries the request attributes an assignment may key
// on. All fields are optional; missing ones degrade to a random key.
type AssignmentContext struct {
	UserID   string
	Location *Location
	Request  map[string]any // opaque, reserved for custom splits outside the engine
}

// Assign deterministically maps a request to one of the experiment's
// variants, honoring the configured traffic percentages. It returns nil
// when the experiment is unknown or not currently active, so callers fall
// back to their default behavior. Assignment reads only the immutable
// definition in the active cache; it performs no I/O and is safe for any
// number of concurrent callers.
func (e *Engine) Assign(experimentID string, actx AssignmentContext) *domain.Variant {
	e.mu.RLock()
	exp := e.active[experimentID]
	e.mu.RUnlock()
	now := e.now()
	if exp == nil || !exp.IsActiveAt(now) {
		return nil
	}

	key := assignmentKey(exp.TrafficSplit, actx, now)
	v := pickVariant(exp, key)
	out := *v
	return &out
}

// assignmentKey derives the hash input for the configured split method.
// user_id and location keys are reproducible; the rest draw a fresh
// random key per call.
func assignmentKey(method domain.SplitMethod, actx AssignmentContext, now time.Time) string {
	switch method {
	case domain.SplitUserID:
		if actx.UserID != "" {
			return actx.UserID
		}
	case domain.SplitLocation:
		if actx.Location != nil {
			return fmt.Sprintf("%.4f,%.4f", actx.Location.Latitude, actx.Location.Longitude)
		}
	case domain.SplitTimeBased:
		// Every request in the same hour of day lands on the same variant.
		return strconv.Itoa(now.Hour())
	}
	return uuid.New().String()
}

// pickVariant hashes experiment_id:key into a draw in [0, 100) and walks
// the variant list accumulating traffic percentages. Falls back to the
// control (then the first variant) on floating-point edge cases.
func pickVariant(exp *domain.Experiment, key string) *domain.Variant {
	h := fnv.New32a()
	h.Write([]byte(exp.ID + ":" + key))
	draw := float64(h.Sum32()%10000) / 100.0

	cumulative := 0.0
	for i := range exp.Variants {
		cumulative += exp.Variants[i].TrafficPercentage
		if draw < cumulative {
			return &exp.Variants[i]
		}
	}
	if c := exp.ControlVariant(); c != nil {
		return c
	}
	return &exp.Variants[0]
}
