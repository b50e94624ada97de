package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/login-scenarios/pkg/models"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return NewWithConn(conn), mock
}

var runColumns = []string{"id", "status", "base_url", "passed", "failed", "started_at", "completed_at"}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS suite_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scenario_results").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS step_results").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
}

func TestMigrateError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS suite_runs").WillReturnError(errors.New("access denied"))

	assert.ErrorContains(t, db.Migrate(context.Background()), "failed to migrate: access denied")
}

func TestCreateAndFinishRun(t *testing.T) {
	db, mock := newMock(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(12 * time.Second)
	run := &models.SuiteRun{ID: "run-1", Status: models.StatusRunning, BaseURL: "https://x/login", StartedAt: &started}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO suite_runs (id, status, base_url, started_at)")).
		WithArgs("run-1", "running", "https://x/login", started).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, db.CreateRun(context.Background(), run))

	run.Status = models.StatusFailed
	run.Passed, run.Failed = 1, 1
	run.CompletedAt = &completed
	mock.ExpectExec("UPDATE suite_runs").
		WithArgs("failed", 1, 1, completed, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, db.FinishRun(context.Background(), run))
}

func TestGetRunNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("FROM suite_runs").WithArgs("missing").WillReturnRows(sqlmock.NewRows(runColumns))

	run, err := db.GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestGetRunAssemblesResults(t *testing.T) {
	db, mock := newMock(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM suite_runs").WithArgs("run-1").WillReturnRows(
		sqlmock.NewRows(runColumns).AddRow("run-1", "failed", "https://x/login", 1, 1, started, nil))
	mock.ExpectQuery("FROM scenario_results").WithArgs("run-1").WillReturnRows(
		sqlmock.NewRows([]string{"scenario_name", "status", "failed_step", "error_message", "total_duration_ms"}).
			AddRow("Successful Login", "success", -1, nil, 3100).
			AddRow("Unsuccessful Login Attempts", "failed", 1, "step 1 (wait): boom", 900))
	mock.ExpectQuery("FROM step_results").WithArgs("run-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "run_id", "scenario_name", "step_index", "step_type", "description", "status",
			"error_kind", "error_message", "screenshot_path", "executed_at", "duration_ms"}).
			AddRow("s1", "run-1", "Successful Login", 0, "navigate", "navigate https://x/login", "success", "", nil, "", started, 800).
			AddRow("s2", "run-1", "Unsuccessful Login Attempts", 0, "navigate", "navigate https://x/login", "success", "", nil, "", started, 700).
			AddRow("s3", "run-1", "Unsuccessful Login Attempts", 1, "wait_for", `wait for ".alert"`, "failed",
				"ElementNotFoundError", "boom", "shots/a.png", started, 200))

	run, err := db.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.StatusFailed, run.Status)
	assert.Nil(t, run.CompletedAt)
	require.Len(t, run.Results, 2)
	assert.Equal(t, -1, run.Results[0].FailedStep)
	assert.Empty(t, run.Results[0].ErrorMessage)
	assert.Len(t, run.Results[0].StepResults, 1)

	bad := run.Results[1]
	require.Len(t, bad.StepResults, 2)
	assert.Equal(t, models.StepWaitFor, bad.StepResults[1].Type)
	assert.Equal(t, "ElementNotFoundError", bad.StepResults[1].ErrorKind)
	assert.Equal(t, "shots/a.png", bad.StepResults[1].ScreenshotPath)
}

func TestListRuns(t *testing.T) {
	db, mock := newMock(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM suite_runs").WithArgs(20).WillReturnRows(
		sqlmock.NewRows(runColumns).
			AddRow("run-2", "running", "u", 0, 0, started, nil).
			AddRow("run-1", "success", "u", 2, 0, started, started))

	runs, err := db.ListRuns(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, 2, runs[1].Passed)
	assert.NotNil(t, runs[1].CompletedAt)
}

func TestRecorderPersistsAndLogsErrors(t *testing.T) {
	db, mock := newMock(t)
	rec := db.NewRecorder(context.Background(), testr.New(t), "run-1", []string{"A", "B"})
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO step_results").
		WithArgs("s1", "run-1", "B", 0, "click", `click "#go"`, "success", "", "", "", at, int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	rec.StepCompleted(models.StepResult{
		ID: "s1", RunID: "run-1", ScenarioName: "B", Index: 0, Type: models.StepClick,
		Description: `click "#go"`, Status: models.StatusSuccess, ExecutedAt: &at, Duration: 5,
	})

	mock.ExpectExec("INSERT INTO scenario_results").
		WithArgs("run-1", 1, "B", "success", -1, "", int64(5)).
		WillReturnError(errors.New("deadlock"))
	assert.NotPanics(t, func() {
		rec.ScenarioCompleted(models.ScenarioResult{ScenarioName: "B", Status: models.StatusSuccess, FailedStep: -1, TotalDuration: 5})
	})
}
