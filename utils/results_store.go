package utils

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ResultsStore persists pipeline runs and their model results in
// SQLite, so waves analyzed months apart stay comparable from one
// database file.
type ResultsStore struct {
	db   *sql.DB
	path string
}

// StoredRun is one persisted pipeline run.
type StoredRun struct {
	RunID      string          `json:"run_id"`
	Pipeline   string          `json:"pipeline"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	ExecutedAt string          `json:"executed_at"`
	DurationMS int64           `json:"duration_ms"`
	Steps      []StepExecution `json:"steps"`
}

// NewResultsStore opens (or creates) the results database.
func NewResultsStore(dbPath string) (*ResultsStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	rs := &ResultsStore{db: db, path: dbPath}
	if err := rs.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return rs, nil
}

// initSchema creates the database schema
func (rs *ResultsStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		pipeline TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		error TEXT,
		executed_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		steps TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON pipeline_runs(pipeline);
	CREATE INDEX IF NOT EXISTS idx_runs_executed_at ON pipeline_runs(executed_at);

	CREATE TABLE IF NOT EXISTS run_results (
		run_id TEXT NOT NULL,
		result_key TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (run_id, result_key),
		FOREIGN KEY (run_id) REFERENCES pipeline_runs(run_id) ON DELETE CASCADE
	);
	`
	_, err := rs.db.Exec(schema)
	return err
}

// SaveRun persists one finished pipeline run.
func (rs *ResultsStore) SaveRun(ctx context.Context, run *PipelineExecutionResult) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("failed to serialize steps: %w", err)
	}

	query := `
		INSERT INTO pipeline_runs (run_id, pipeline, success, error, executed_at, duration_ms, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := rs.db.ExecContext(ctx, query,
		run.RunID, run.Pipeline, run.Success, run.Error,
		run.ExecutedAt, run.DurationMS, string(steps)); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// SaveResult attaches one JSON result to a saved run.
func (rs *ResultsStore) SaveResult(ctx context.Context, runID, key string, content map[string]any) error {
	raw, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to serialize result %s: %w", key, err)
	}
	query := `
		INSERT OR REPLACE INTO run_results (run_id, result_key, content)
		VALUES (?, ?, ?)
	`
	if _, err := rs.db.ExecContext(ctx, query, runID, key, string(raw)); err != nil {
		return fmt.Errorf("failed to save result %s for run %s: %w", key, runID, err)
	}
	return nil
}

// GetRun loads a persisted run by id.
func (rs *ResultsStore) GetRun(ctx context.Context, runID string) (*StoredRun, error) {
	query := `
		SELECT run_id, pipeline, success, error, executed_at, duration_ms, steps
		FROM pipeline_runs WHERE run_id = ?
	`
	row := rs.db.QueryRowContext(ctx, query, runID)

	var run StoredRun
	var errText sql.NullString
	var steps string
	if err := row.Scan(&run.RunID, &run.Pipeline, &run.Success, &errText,
		&run.ExecutedAt, &run.DurationMS, &steps); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	run.Error = errText.String
	if err := json.Unmarshal([]byte(steps), &run.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps for run %s: %w", runID, err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (rs *ResultsStore) ListRuns(ctx context.Context, limit int) ([]*StoredRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT run_id, pipeline, success, error, executed_at, duration_ms, steps
		FROM pipeline_runs ORDER BY executed_at DESC LIMIT ?
	`
	rows, err := rs.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*StoredRun
	for rows.Next() {
		var run StoredRun
		var errText sql.NullString
		var steps string
		if err := rows.Scan(&run.RunID, &run.Pipeline, &run.Success, &errText,
			&run.ExecutedAt, &run.DurationMS, &steps); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Error = errText.String
		if err := json.Unmarshal([]byte(steps), &run.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps for run %s: %w", run.RunID, err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// GetResult loads one JSON result of a run.
func (rs *ResultsStore) GetResult(ctx context.Context, runID, key string) (map[string]any, error) {
	query := `SELECT content FROM run_results WHERE run_id = ? AND result_key = ?`
	var raw string
	if err := rs.db.QueryRowContext(ctx, query, runID, key).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("result %s not found for run %s", key, runID)
		}
		return nil, fmt.Errorf("failed to load result %s: %w", key, err)
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, fmt.Errorf("failed to decode result %s: %w", key, err)
	}
	return content, nil
}

// ListResultKeys returns the result keys stored for a run.
func (rs *ResultsStore) ListResultKeys(ctx context.Context, runID string) ([]string, error) {
	rows, err := rs.db.QueryContext(ctx,
		`SELECT result_key FROM run_results WHERE run_id = ? ORDER BY result_key`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for run %s: %w", runID, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (rs *ResultsStore) Close() error {
	return rs.db.Close()
}
