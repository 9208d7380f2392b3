package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when no experiment exists for a given id.
var ErrNotFound = errors.New("experiment not found")

// ErrInsufficientData is returned by analysis when fewer than two variants
// have recorded outcomes, or the control variant has none.
var ErrInsufficientData = errors.New("insufficient data to analyze experiment")

// ValidationError reports a malformed experiment definition. Nothing is
// persisted when Create fails with one of these.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid experiment: " + strings.Join(e.Problems, "; ")
}

// InvalidStateError reports a lifecycle transition not permitted from the
// experiment's current status. The operation performs no mutation.
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s experiment in status %q", e.Op, e.Status)
}

// ModelResolutionError reports that a variant's model could not be
// resolved during Start. The whole Start fails and the experiment stays
// in DRAFT.
type ModelResolutionError struct {
	VariantID    string
	ModelName    string
	ModelVersion string
	Err          error
}

func (e *ModelResolutionError) Error() string {
	return fmt.Sprintf("variant %q: cannot resolve model %s@%s: %v", e.VariantID, e.ModelName, e.ModelVersion, e.Err)
}

func (e *ModelResolutionError) Unwrap() error { return e.Err }
