package engine

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"abengine/internal/domain"
	"abengine/internal/storage/sqlite"
)

const (
	defaultConfidenceLevel   = 0.95
	defaultMinimumEffectSize = 0.05
	defaultMinimumSampleSize = 100
	defaultWindowDays        = 14
)

// ModelHandle is whatever the resolver hands back for a (name, version)
// pair. The engine never calls or inspects it.
type ModelHandle = any

// ModelResolver resolves a variant's model reference during Start.
type ModelResolver interface {
	Resolve(modelName, modelVersion string) (ModelHandle, error)
}

// Notifier receives fire-and-forget experiment events. Implementations
// must never block the calling operation or surface failures to it.
type Notifier interface {
	ExperimentCreated(exp *domain.Experiment)
	ExperimentStarted(exp *domain.Experiment)
	ExperimentStopped(exp *domain.Experiment, reason string)
	ExperimentAnalyzed(exp *domain.Experiment, result *domain.AnalysisResult)
}

// Engine ties the experiment store, the lifecycle state machine, variant
// assignment, outcome recording and analysis together. Construct one
// explicitly with New and inject it where it is needed; there is no
// process-wide instance.
type Engine struct {
	db       *sql.DB
	resolver ModelResolver
	notifier Notifier

	mu     sync.RWMutex
	active map[string]*domain.Experiment // currently RUNNING, keyed by id

	now func() time.Time
}

// New builds an engine over an initialized database and rebuilds the
// active-experiment cache from the store. notifier may be nil.
func New(db *sql.DB, resolver ModelResolver, notifier Notifier) (*Engine, error) {
	e := &Engine{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		active:   make(map[string]*domain.Experiment),
		now:      time.Now,
	}

	running, err := sqlite.ListExperiments(db, sqlite.ExperimentFilter{Status: domain.StatusRunning})
	if err != nil {
		return nil, fmt.Errorf("restore running experiments: %w", err)
	}
	for _, exp := range running {
		e.active[exp.ID] = exp
	}
	log.Printf("Experiment engine ready: %d running experiment(s) restored", len(e.active))
	return e, nil
}

// Create validates the definition, assigns an id, and persists it in
// DRAFT. Defaults are applied before validation: confidence level 0.95,
// minimum effect size 0.05, minimum sample size 100, a 14-day window when
// no dates are given. Nothing is persisted on a validation failure.
func (e *Engine) Create(exp *domain.Experiment) (*domain.Experiment, error) {
	exp = exp.Clone()

	if exp.ConfidenceLevel == 0 {
		exp.ConfidenceLevel = defaultConfidenceLevel
	}
	if exp.MinimumEffectSize == 0 {
		exp.MinimumEffectSize = defaultMinimumEffectSize
	}
	if exp.MinimumSampleSize == 0 {
		exp.MinimumSampleSize = defaultMinimumSampleSize
	}
	if exp.StartDate.IsZero() {
		exp.StartDate = e.now()
	}
	if exp.EndDate.IsZero() {
		exp.EndDate = exp.StartDate.AddDate(0, 0, defaultWindowDays)
	}
	exp.Status = domain.StatusDraft

	if err := exp.Validate(); err != nil {
		return nil, err
	}

	exp.ID = uuid.New().String()
	if err := sqlite.SaveExperiment(e.db, exp); err != nil {
		return nil, err
	}
	log.Printf("Experiment created id=%s name=%q variants=%d metric=%s split=%s",
		exp.ID, exp.Name, len(exp.Variants), exp.SuccessMetric, exp.TrafficSplit)

	if e.notifier != nil {
		e.notifier.ExperimentCreated(exp)
	}
	return exp.Clone(), nil
}

// Get returns the experiment by id, preferring the active cache.
func (e *Engine) Get(experimentID string) (*domain.Experiment, error) {
	e.mu.RLock()
	exp := e.active[experimentID]
	e.mu.RUnlock()
	if exp != nil {
		return exp.Clone(), nil
	}
	return sqlite.LoadExperiment(e.db, experimentID)
}

// List returns experiments matching the filter, newest start date first.
func (e *Engine) List(filter sqlite.ExperimentFilter) ([]*domain.Experiment, error) {
	return sqlite.ListExperiments(e.db, filter)
}

// Start transitions DRAFT -> RUNNING. Every variant's model reference is
// resolved first; any failure aborts the whole call and the experiment
// stays in DRAFT. On success the start date is reset to now (the window
// length is preserved) and the experiment joins the active set.
func (e *Engine) Start(experimentID string) (*domain.Experiment, error) {
	exp, err := sqlite.LoadExperiment(e.db, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != domain.StatusDraft {
		return nil, &domain.InvalidStateError{Op: "start", Status: exp.Status}
	}

	for i := range exp.Variants {
		v := &exp.Variants[i]
		if _, err := e.resolver.Resolve(v.ModelName, v.ModelVersion); err != nil {
			return nil, &domain.ModelResolutionError{
				VariantID: v.ID, ModelName: v.ModelName, ModelVersion: v.ModelVersion, Err: err,
			}
		}
	}

	window := exp.EndDate.Sub(exp.StartDate)
	exp.StartDate = e.now()
	exp.EndDate = exp.StartDate.Add(window)
	exp.Status = domain.StatusRunning

	if err := sqlite.SaveExperiment(e.db, exp); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.active[exp.ID] = exp
	e.mu.Unlock()
	log.Printf("Experiment started id=%s name=%q window=%s", exp.ID, exp.Name, window)

	if e.notifier != nil {
		e.notifier.ExperimentStarted(exp)
	}
	return exp.Clone(), nil
}

// Stop transitions RUNNING or PAUSED -> COMPLETED, stamps the end date,
// records the reason in metadata, and leaves the active set.
func (e *Engine) Stop(experimentID, reason string) (*domain.Experiment, error) {
	exp, err := e.Get(experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != domain.StatusRunning && exp.Status != domain.StatusPaused {
		return nil, &domain.InvalidStateError{Op: "stop", Status: exp.Status}
	}

	exp.Status = domain.StatusCompleted
	exp.EndDate = e.now()
	if exp.Metadata == nil {
		exp.Metadata = make(map[string]any)
	}
	exp.Metadata["stop_reason"] = reason

	if err := sqlite.SaveExperiment(e.db, exp); err != nil {
		return nil, err
	}
	e.mu.Lock()
	delete(e.active, exp.ID)
	e.mu.Unlock()
	log.Printf("Experiment stopped id=%s name=%q reason=%q", exp.ID, exp.Name, reason)

	if e.notifier != nil {
		e.notifier.ExperimentStopped(exp, reason)
	}
	return exp.Clone(), nil
}

// Pause transitions RUNNING -> PAUSED and leaves the active set. A paused
// experiment keeps its window; Resume puts it back.
func (e *Engine) Pause(experimentID string) (*domain.Experiment, error) {
	exp, err := e.Get(experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != domain.StatusRunning {
		return nil, &domain.InvalidStateError{Op: "pause", Status: exp.Status}
	}

	exp.Status = domain.StatusPaused
	if err := sqlite.SaveExperiment(e.db, exp); err != nil {
		return nil, err
	}
	e.mu.Lock()
	delete(e.active, exp.ID)
	e.mu.Unlock()
	log.Printf("Experiment paused id=%s", exp.ID)
	return exp.Clone(), nil
}

// Resume transitions PAUSED -> RUNNING and rejoins the active set.
func (e *Engine) Resume(experimentID string) (*domain.Experiment, error) {
	exp, err := sqlite.LoadExperiment(e.db, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.Status != domain.StatusPaused {
		return nil, &domain.InvalidStateError{Op: "resume", Status: exp.Status}
	}

	exp.Status = domain.StatusRunning
	if err := sqlite.SaveExperiment(e.db, exp); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.active[exp.ID] = exp
	e.mu.Unlock()
	log.Printf("Experiment resumed id=%s", exp.ID)
	return exp.Clone(), nil
}

// Cancel abandons an experiment from DRAFT, RUNNING or PAUSED. The reason
// lands in metadata; no analysis or report is produced.
func (e *Engine) Cancel(experimentID, reason string) (*domain.Experiment, error) {
	exp, err := e.Get(experimentID)
	if err != nil {
		return nil, err
	}
	switch exp.Status {
	case domain.StatusDraft, domain.StatusRunning, domain.StatusPaused:
	default:
		return nil, &domain.InvalidStateError{Op: "cancel", Status: exp.Status}
	}

	exp.Status = domain.StatusCancelled
	if exp.Metadata == nil {
		exp.Metadata = make(map[string]any)
	}
	exp.Metadata["cancel_reason"] = reason

	if err := sqlite.SaveExperiment(e.db, exp); err != nil {
		return nil, err
	}
	e.mu.Lock()
	delete(e.active, exp.ID)
	e.mu.Unlock()
	log.Printf("Experiment cancelled id=%s reason=%q", exp.ID, reason)
	return exp.Clone(), nil
}

// IsActive reports whether the experiment is RUNNING and inside its window.
func (e *Engine) IsActive(experimentID string) bool {
	e.mu.RLock()
	exp := e.active[experimentID]
	e.mu.RUnlock()
	return exp != nil && exp.IsActiveAt(e.now())
}

// Expired returns the running experiments whose window has elapsed.
// The sweep scheduler stops these.
func (e *Engine) Expired() []*domain.Experiment {
	now := e.now()
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*domain.Experiment
	for _, exp := range e.active {
		if now.After(exp.EndDate) {
			out = append(out, exp.Clone())
		}
	}
	return out
}
