// Package database persists suite runs and their results in MySQL.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	_ "github.com/go-sql-driver/mysql"

	"dev/bravebird/login-scenarios/pkg/models"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection. The DSN must set parseTime=true.
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewWithConn wraps an already opened connection
func NewWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS suite_runs (
		id VARCHAR(36) PRIMARY KEY,
		status VARCHAR(16) NOT NULL,
		base_url VARCHAR(2048) NOT NULL DEFAULT '',
		passed INT NOT NULL DEFAULT 0,
		failed INT NOT NULL DEFAULT 0,
		started_at DATETIME(3) NULL,
		completed_at DATETIME(3) NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scenario_results (
		run_id VARCHAR(36) NOT NULL,
		position INT NOT NULL,
		scenario_name VARCHAR(255) NOT NULL,
		status VARCHAR(16) NOT NULL,
		failed_step INT NOT NULL DEFAULT -1,
		error_message TEXT,
		total_duration_ms BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, scenario_name),
		FOREIGN KEY (run_id) REFERENCES suite_runs(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS step_results (
		id VARCHAR(36) PRIMARY KEY,
		run_id VARCHAR(36) NOT NULL,
		scenario_name VARCHAR(255) NOT NULL,
		step_index INT NOT NULL,
		step_type VARCHAR(32) NOT NULL,
		description TEXT,
		status VARCHAR(16) NOT NULL,
		error_kind VARCHAR(32) NOT NULL DEFAULT '',
		error_message TEXT,
		screenshot_path VARCHAR(1024) NOT NULL DEFAULT '',
		executed_at DATETIME(3) NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		INDEX idx_step_results_run (run_id, scenario_name, step_index),
		FOREIGN KEY (run_id) REFERENCES suite_runs(id) ON DELETE CASCADE
	)`,
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// ==================== Suite Runs ====================

// CreateRun inserts a run in its initial state
func (db *DB) CreateRun(ctx context.Context, run *models.SuiteRun) error {
	query := `
		INSERT INTO suite_runs (id, status, base_url, started_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.BaseURL,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and tallies of a run
func (db *DB) FinishRun(ctx context.Context, run *models.SuiteRun) error {
	query := `
		UPDATE suite_runs
		SET status = ?, passed = ?, failed = ?, completed_at = ?
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.Status,
		run.Passed,
		run.Failed,
		run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun retrieves a run with its scenario and step results. It returns nil
// when the run does not exist.
func (db *DB) GetRun(ctx context.Context, id string) (*models.SuiteRun, error) {
	query := `
		SELECT id, status, base_url, passed, failed, started_at, completed_at
		FROM suite_runs
		WHERE id = ?
	`

	var run models.SuiteRun
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.Status,
		&run.BaseURL,
		&run.Passed,
		&run.Failed,
		&run.StartedAt,
		&run.CompletedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.Results, err = db.getScenarioResults(ctx, id); err != nil {
		return nil, err
	}
	steps, err := db.GetStepResults(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range run.Results {
		res := &run.Results[i]
		for _, step := range steps {
			if step.ScenarioName == res.ScenarioName {
				res.StepResults = append(res.StepResults, step)
			}
		}
	}

	return &run, nil
}

// ListRuns retrieves the most recent runs without their results
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.SuiteRun, error) {
	query := `
		SELECT id, status, base_url, passed, failed, started_at, completed_at
		FROM suite_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.SuiteRun
	for rows.Next() {
		var run models.SuiteRun
		err := rows.Scan(
			&run.ID,
			&run.Status,
			&run.BaseURL,
			&run.Passed,
			&run.Failed,
			&run.StartedAt,
			&run.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ==================== Results ====================

// SaveScenarioResult records the outcome of one scenario at position in the run
func (db *DB) SaveScenarioResult(ctx context.Context, runID string, position int, res models.ScenarioResult) error {
	query := `
		INSERT INTO scenario_results (run_id, position, scenario_name, status, failed_step, error_message, total_duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		runID,
		position,
		res.ScenarioName,
		res.Status,
		res.FailedStep,
		res.ErrorMessage,
		res.TotalDuration,
	)
	if err != nil {
		return fmt.Errorf("failed to save scenario result: %w", err)
	}
	return nil
}

func (db *DB) getScenarioResults(ctx context.Context, runID string) ([]models.ScenarioResult, error) {
	query := `
		SELECT scenario_name, status, failed_step, error_message, total_duration_ms
		FROM scenario_results
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario results: %w", err)
	}
	defer rows.Close()

	var results []models.ScenarioResult
	for rows.Next() {
		var res models.ScenarioResult
		var errMsg sql.NullString
		err := rows.Scan(
			&res.ScenarioName,
			&res.Status,
			&res.FailedStep,
			&errMsg,
			&res.TotalDuration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scenario result: %w", err)
		}
		res.ErrorMessage = errMsg.String
		results = append(results, res)
	}

	return results, rows.Err()
}

// SaveStepResult records one executed step
func (db *DB) SaveStepResult(ctx context.Context, result models.StepResult) error {
	query := `
		INSERT INTO step_results (id, run_id, scenario_name, step_index, step_type, description,
		                          status, error_kind, error_message, screenshot_path, executed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		result.ID,
		result.RunID,
		result.ScenarioName,
		result.Index,
		result.Type,
		result.Description,
		result.Status,
		result.ErrorKind,
		result.ErrorMessage,
		result.ScreenshotPath,
		result.ExecutedAt,
		result.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to save step result: %w", err)
	}
	return nil
}

// GetStepResults retrieves step results for a run
func (db *DB) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT id, run_id, scenario_name, step_index, step_type, description, status,
		       error_kind, error_message, screenshot_path, executed_at, duration_ms
		FROM step_results
		WHERE run_id = ?
		ORDER BY scenario_name, step_index
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	var results []models.StepResult
	for rows.Next() {
		var result models.StepResult
		var description, errMsg sql.NullString
		err := rows.Scan(
			&result.ID,
			&result.RunID,
			&result.ScenarioName,
			&result.Index,
			&result.Type,
			&description,
			&result.Status,
			&result.ErrorKind,
			&errMsg,
			&result.ScreenshotPath,
			&result.ExecutedAt,
			&result.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		result.Description = description.String
		result.ErrorMessage = errMsg.String
		results = append(results, result)
	}

	return results, rows.Err()
}

// ==================== Observer ====================

// Recorder writes results to the database as the runner produces them.
// Write failures are logged; they never fail the run.
type Recorder struct {
	db    *DB
	ctx   context.Context
	log   logr.Logger
	runID string

	positions map[string]int
}

// NewRecorder returns a Recorder for the run whose scenarios are named, in
// order, by names.
func (db *DB) NewRecorder(ctx context.Context, log logr.Logger, runID string, names []string) *Recorder {
	positions := make(map[string]int, len(names))
	for i, name := range names {
		positions[name] = i
	}
	return &Recorder{db: db, ctx: ctx, log: log, runID: runID, positions: positions}
}

func (r *Recorder) StepCompleted(res models.StepResult) {
	if err := r.db.SaveStepResult(r.ctx, res); err != nil {
		r.log.Error(err, "Failed to persist step result", "run", r.runID, "scenario", res.ScenarioName, "step", res.Index)
	}
}

func (r *Recorder) ScenarioCompleted(res models.ScenarioResult) {
	if err := r.db.SaveScenarioResult(r.ctx, r.runID, r.positions[res.ScenarioName], res); err != nil {
		r.log.Error(err, "Failed to persist scenario result", "run", r.runID, "scenario", res.ScenarioName)
	}
}
