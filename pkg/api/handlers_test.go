package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/browser/browsertest"
	"dev/bravebird/login-scenarios/pkg/models"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/scenario"
)

const (
	validUser = "kedar_karche"
	validPass = "Kedar@123"
)

type gatedExecutor struct {
	suite   *runner.Suite
	release chan struct{}
}

func (e *gatedExecutor) Execute(ctx context.Context, runID string, scenarios []models.Scenario, parallelism int, obs runner.Observer) models.SuiteRun {
	if e.release != nil {
		<-e.release
	}
	return e.suite.Execute(ctx, runID, scenarios, parallelism, obs)
}

func newTestHandlers(t *testing.T, release chan struct{}) (*Handlers, string) {
	t.Helper()
	dir := t.TempDir()
	suite := &runner.Suite{
		Runner: runner.New(runner.Options{
			WaitForTimeout: 50 * time.Millisecond,
			PollInterval:   time.Millisecond,
			ScreenshotDir:  dir,
			Logger:         testr.New(t),
		}),
		Open: func(ctx context.Context) (browser.Session, error) {
			return browsertest.NewLoginSession(validUser, validPass), nil
		},
	}

	scenarios := scenario.LoginSuite(scenario.LoginConfig{
		URL:             "https://login.test/login",
		Valid:           models.Credentials{Username: validUser, Password: validPass},
		InvalidUsername: "invalid_username",
		InvalidPassword: "invalid_password",
	})
	scenarios = append(scenarios, models.Scenario{
		Name:  "Expects Dashboard With Bad User",
		Steps: append(append([]models.Step{models.Navigate("https://login.test/login")}, scenario.LoginSteps(models.Credentials{Username: "nope", Password: validPass})...), models.AssertTitleContains(scenario.DashboardTitle)),
	})

	h := NewHandlers(Config{
		Scenarios:     scenarios,
		Executor:      &gatedExecutor{suite: suite, release: release},
		BaseURL:       "https://login.test/login",
		ScreenshotDir: dir,
		Logger:        testr.New(t),
		PollInterval:  5 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h, dir
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func startRun(t *testing.T, h http.Handler, body string) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/runs", body)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	var resp struct {
		RunID  string `json:"run_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	require.NotEmpty(t, resp.RunID)
	return resp.RunID
}

func waitForRun(t *testing.T, h http.Handler, id string) models.SuiteRun {
	t.Helper()
	var run models.SuiteRun
	require.Eventually(t, func() bool {
		rr := do(t, h, http.MethodGet, "/api/runs/"+id, "")
		if rr.Code != http.StatusOK {
			return false
		}
		run = models.SuiteRun{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
		return run.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return run
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	rr := do(t, h.Router(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListScenarios(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	rr := do(t, h.Router(), http.MethodGet, "/api/scenarios", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var out []scenarioSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 3)
	assert.Equal(t, scenario.SuccessfulLogin, out[0].Name)
	assert.Equal(t, len(out[0].Steps), out[0].StepCount)
}

func TestStartRunSelectedScenario(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	router := h.Router()

	id := startRun(t, router, `{"scenarios":["Successful Login"]}`)
	run := waitForRun(t, router, id)

	assert.Equal(t, models.StatusSuccess, run.Status)
	require.Len(t, run.Results, 1)
	assert.Equal(t, scenario.SuccessfulLogin, run.Results[0].ScenarioName)
	assert.Equal(t, 1, run.Passed)

	rr := do(t, router, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []models.SuiteRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}

func TestStartRunAllWithFailureAndScreenshot(t *testing.T) {
	h, dir := newTestHandlers(t, nil)
	router := h.Router()

	id := startRun(t, router, "")
	run := waitForRun(t, router, id)

	assert.Equal(t, models.StatusFailed, run.Status)
	assert.Equal(t, 2, run.Passed)
	assert.Equal(t, 1, run.Failed)

	failed := run.Results[2]
	require.Equal(t, 4, failed.FailedStep)
	shot := failed.StepResults[4].ScreenshotPath
	require.NotEmpty(t, shot)
	assert.Equal(t, dir, filepath.Dir(shot))

	rr := do(t, router, http.MethodGet, "/api/screenshots/"+filepath.Base(shot), "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
}

func TestStartRunBadRequests(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	router := h.Router()

	rr := do(t, router, http.MethodPost, "/api/runs", `{"scenarios":["Nope"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown scenario(s): Nope")

	rr = do(t, router, http.MethodPost, "/api/runs", `{"scenarios":["Successful Login","Successful Login"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `scenario "Successful Login" selected more than once`)

	rr = do(t, router, http.MethodPost, "/api/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/runs", `{"parallelism":-1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetRunNotFound(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	rr := do(t, h.Router(), http.MethodGet, "/api/runs/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeScreenshotStaysInDirectory(t *testing.T) {
	h, dir := newTestHandlers(t, nil)
	outside := filepath.Join(filepath.Dir(dir), "secret.png")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0644))
	t.Cleanup(func() { os.Remove(outside) })

	req := httptest.NewRequest(http.MethodGet, "/api/screenshots/x", nil)
	req = mux.SetURLVars(req, map[string]string{"filename": "../secret.png"})
	rr := httptest.NewRecorder()
	h.ServeScreenshot(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStreamRunUpdates(t *testing.T) {
	release := make(chan struct{})
	h, _ := newTestHandlers(t, release)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	id := startRun(t, srv.Config.Handler, `{"scenarios":["Successful Login"]}`)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/runs/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first struct {
		Type    string          `json:"type"`
		Payload models.SuiteRun `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "run_update", first.Type)
	assert.Equal(t, models.StatusRunning, first.Payload.Status)
	assert.Equal(t, models.StatusPending, first.Payload.Results[0].Status)

	close(release)

	var last models.SuiteRun
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload models.SuiteRun `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
		last = msg.Payload
	}
	assert.Equal(t, models.StatusSuccess, last.Status)
}

func TestStreamUnknownRun(t *testing.T) {
	h, _ := newTestHandlers(t, nil)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/runs/missing/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg models.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}
