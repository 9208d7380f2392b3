package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"abengine/internal/domain"
)

// InitDB opens (or creates) the experiment database. WAL mode keeps
// aggregation reads from blocking outcome appends and vice versa; the busy
// timeout serializes concurrent appends instead of failing them.
func InitDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS experiments (
		experiment_id TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		status        TEXT NOT NULL,
		start_date    DATETIME NOT NULL,
		end_date      DATETIME NOT NULL,
		doc           TEXT NOT NULL,
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);
	CREATE INDEX IF NOT EXISTS idx_experiments_start ON experiments(start_date);

	CREATE TABLE IF NOT EXISTS outcomes (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		experiment_id    TEXT NOT NULL,
		variant_id       TEXT NOT NULL,
		recorded_at      DATETIME NOT NULL,
		response_time_ms REAL NOT NULL DEFAULT 0,
		success          INTEGER NOT NULL,
		error            TEXT DEFAULT '',
		prediction       TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_experiment ON outcomes(experiment_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_variant ON outcomes(experiment_id, variant_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// SaveExperiment persists the full definition, overwriting any prior
// version keyed by experiment_id. The write is a single statement, so a
// reader never observes a partial record. The canonical JSON document is
// the source of truth; the indexed columns exist for filtering only.
func SaveExperiment(db *sql.DB, exp *domain.Experiment) error {
	doc, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshal experiment %s: %w", exp.ID, err)
	}
	_, err = db.Exec(
		`INSERT OR REPLACE INTO experiments (experiment_id, name, status, start_date, end_date, doc)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.Name, string(exp.Status), exp.StartDate, exp.EndDate, string(doc),
	)
	if err != nil {
		return fmt.Errorf("save experiment %s: %w", exp.ID, err)
	}
	return nil
}

func LoadExperiment(db *sql.DB, experimentID string) (*domain.Experiment, error) {
	var doc string
	err := db.QueryRow(
		`SELECT doc FROM experiments WHERE experiment_id = ?`, experimentID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load experiment %s: %w", experimentID, err)
	}

	var exp domain.Experiment
	if err := json.Unmarshal([]byte(doc), &exp); err != nil {
		return nil, fmt.Errorf("decode experiment %s: %w", experimentID, err)
	}
	return &exp, nil
}

// ExperimentFilter narrows ListExperiments. Zero values match everything;
// a tag filter requires every listed tag to be present.
type ExperimentFilter struct {
	Status domain.Status
	Tags   []string
}

// ListExperiments returns experiments ordered by start date descending.
func ListExperiments(db *sql.DB, filter ExperimentFilter) ([]*domain.Experiment, error) {
	query := `SELECT doc FROM experiments`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY start_date DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Experiment
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var exp domain.Experiment
		if err := json.Unmarshal([]byte(doc), &exp); err != nil {
			return nil, fmt.Errorf("decode experiment: %w", err)
		}
		if len(filter.Tags) > 0 && !exp.HasTags(filter.Tags) {
			continue
		}
		out = append(out, &exp)
	}
	return out, rows.Err()
}

// AppendOutcome appends one record to the experiment's outcome log.
func AppendOutcome(db *sql.DB, rec *domain.OutcomeRecord) error {
	prediction := "{}"
	if len(rec.Prediction) > 0 {
		data, err := json.Marshal(rec.Prediction)
		if err != nil {
			return fmt.Errorf("marshal prediction data: %w", err)
		}
		prediction = string(data)
	}
	_, err := db.Exec(
		`INSERT INTO outcomes (experiment_id, variant_id, recorded_at, response_time_ms, success, error, prediction)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ExperimentID, rec.VariantID, rec.Timestamp, rec.ResponseTimeMS,
		boolToInt(rec.Success), rec.Error, prediction,
	)
	if err != nil {
		return fmt.Errorf("append outcome for %s: %w", rec.ExperimentID, err)
	}
	return nil
}

// ReadOutcomes streams the experiment's full outcome log in append order.
func ReadOutcomes(db *sql.DB, experimentID string) ([]domain.OutcomeRecord, error) {
	rows, err := db.Query(
		`SELECT experiment_id, variant_id, recorded_at, response_time_ms, success, error, prediction
		 FROM outcomes WHERE experiment_id = ? ORDER BY id`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("read outcomes for %s: %w", experimentID, err)
	}
	defer rows.Close()

	var out []domain.OutcomeRecord
	for rows.Next() {
		var rec domain.OutcomeRecord
		var success int
		var prediction string
		if err := rows.Scan(
			&rec.ExperimentID, &rec.VariantID, &rec.Timestamp,
			&rec.ResponseTimeMS, &success, &rec.Error, &prediction,
		); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		if prediction != "" && prediction != "{}" {
			if err := json.Unmarshal([]byte(prediction), &rec.Prediction); err != nil {
				return nil, fmt.Errorf("decode prediction data: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AggregateOutcomes reduces the outcome log into per-variant summaries.
// AVG skips NULLs, so the quality means only cover records that actually
// carry the key; a variant with no such records gets a nil average.
func AggregateOutcomes(db *sql.DB, experimentID string) (map[string]domain.VariantMetrics, error) {
	rows, err := db.Query(
		`SELECT variant_id,
		        COUNT(*),
		        COALESCE(SUM(success), 0),
		        COALESCE(AVG(response_time_ms), 0),
		        AVG(CAST(json_extract(prediction, '$.confidence') AS REAL)),
		        AVG(CAST(json_extract(prediction, '$.rmse') AS REAL)),
		        AVG(CAST(json_extract(prediction, '$.mae') AS REAL))
		 FROM outcomes
		 WHERE experiment_id = ?
		 GROUP BY variant_id`,
		experimentID,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate outcomes for %s: %w", experimentID, err)
	}
	defer rows.Close()

	out := make(map[string]domain.VariantMetrics)
	for rows.Next() {
		var variantID string
		var m domain.VariantMetrics
		var confidence, rmse, mae sql.NullFloat64
		if err := rows.Scan(
			&variantID, &m.TotalRequests, &m.SuccessfulPredictions,
			&m.AvgResponseTimeMS, &confidence, &rmse, &mae,
		); err != nil {
			return nil, err
		}
		m.FailedPredictions = m.TotalRequests - m.SuccessfulPredictions
		m.AvgConfidence = nullableFloat(confidence)
		m.AvgRMSE = nullableFloat(rmse)
		m.AvgMAE = nullableFloat(mae)
		out[variantID] = m
	}
	return out, rows.Err()
}

// CountOutcomesSince reports how many outcomes an experiment accumulated
// after the given instant. Used by progress reporting.
func CountOutcomesSince(db *sql.DB, experimentID string, since time.Time) (int64, error) {
	var count int64
	err := db.QueryRow(
		`SELECT COUNT(*) FROM outcomes WHERE experiment_id = ? AND recorded_at >= ?`,
		experimentID, since,
	).Scan(&count)
	return count, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
