// Package api exposes scenarios and runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"dev/bravebird/login-scenarios/pkg/database"
	"dev/bravebird/login-scenarios/pkg/metrics"
	"dev/bravebird/login-scenarios/pkg/models"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/scenario"
)

// Executor runs a suite of scenarios to completion
type Executor interface {
	Execute(ctx context.Context, runID string, scenarios []models.Scenario, parallelism int, obs runner.Observer) models.SuiteRun
}

// Config wires the handlers' collaborators. DB and Metrics are optional.
type Config struct {
	Scenarios     []models.Scenario
	Executor      Executor
	BaseURL       string
	ScreenshotDir string
	DB            *database.DB
	Metrics       *metrics.Recorder
	Logger        logr.Logger
	// PollInterval paces run stream updates
	PollInterval time.Duration
}

// Handlers contains API handlers
type Handlers struct {
	cfg      Config
	log      logr.Logger
	registry *Registry
	upgrader websocket.Upgrader

	// runs outlive their request; ctx is canceled on shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHandlers creates new API handlers
func NewHandlers(cfg Config) *Handlers {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		cfg:      cfg,
		log:      cfg.Logger.WithName("api"),
		registry: NewRegistry(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Router registers every route on a new mux.Router
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/scenarios", h.ListScenarios).Methods("GET")
	apiRouter.HandleFunc("/runs", h.StartRun).Methods("POST")
	apiRouter.HandleFunc("/runs", h.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/stream", h.StreamRunUpdates).Methods("GET")
	apiRouter.HandleFunc("/screenshots/{filename}", h.ServeScreenshot).Methods("GET")

	return router
}

// Shutdown cancels in-flight runs and waits for them to record their results.
func (h *Handlers) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ==================== Scenario Handlers ====================

type scenarioSummary struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StepCount   int           `json:"step_count"`
	Steps       []models.Step `json:"steps"`
}

// ListScenarios lists the scenarios a run can select
func (h *Handlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	out := make([]scenarioSummary, 0, len(h.cfg.Scenarios))
	for _, sc := range h.cfg.Scenarios {
		out = append(out, scenarioSummary{
			Name:        sc.Name,
			Description: sc.Description,
			StepCount:   len(sc.Steps),
			Steps:       sc.Steps,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// ==================== Run Handlers ====================

// StartRun starts the requested scenarios in the background and returns the
// run id immediately.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	var req models.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Parallelism < 0 {
		http.Error(w, "parallelism must not be negative", http.StatusBadRequest)
		return
	}

	selected, err := scenario.Select(h.cfg.Scenarios, req.Scenarios)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	run := models.SuiteRun{
		ID:        uuid.New().String(),
		Status:    models.StatusRunning,
		BaseURL:   h.cfg.BaseURL,
		StartedAt: &now,
	}
	h.registry.Start(run, selected)

	observers := runner.Observers{h.registry.Observer(run.ID), h.cfg.Metrics}
	if h.cfg.DB != nil {
		if err := h.cfg.DB.CreateRun(r.Context(), &run); err != nil {
			h.log.Error(err, "Failed to persist run", "run", run.ID)
		} else {
			names := make([]string, len(selected))
			for i, sc := range selected {
				names[i] = sc.Name
			}
			observers = append(observers, h.cfg.DB.NewRecorder(h.ctx, h.log, run.ID, names))
		}
	}

	h.wg.Add(1)
	go h.execute(run.ID, selected, req.Parallelism, observers)

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"run_id": run.ID,
		"status": run.Status,
	})
}

func (h *Handlers) execute(runID string, scenarios []models.Scenario, parallelism int, obs runner.Observer) {
	defer h.wg.Done()
	log := h.log.WithValues("run", runID)
	log.Info("Run started", "scenarios", len(scenarios))

	h.cfg.Metrics.RunStarted()
	defer h.cfg.Metrics.RunFinished()

	result := h.cfg.Executor.Execute(h.ctx, runID, scenarios, parallelism, obs)
	h.registry.Finish(result)

	if h.cfg.DB != nil {
		// the run context may already be canceled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.cfg.DB.FinishRun(ctx, &result); err != nil {
			log.Error(err, "Failed to persist run result")
		}
	}
	log.Info("Run completed", "status", result.Status, "passed", result.Passed, "failed", result.Failed)
}

// ListRuns lists recent runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.cfg.DB == nil {
		respondJSON(w, http.StatusOK, h.registry.List())
		return
	}

	runs, err := h.cfg.DB.ListRuns(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.SuiteRun{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (h *Handlers) lookupRun(ctx context.Context, id string) (*models.SuiteRun, error) {
	if run, ok := h.registry.Get(id); ok {
		return &run, nil
	}
	if h.cfg.DB == nil {
		return nil, nil
	}
	return h.cfg.DB.GetRun(ctx, id)
}

// GetRun retrieves a run with its results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	run, err := h.lookupRun(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

func countSteps(run *models.SuiteRun) int {
	n := 0
	for _, res := range run.Results {
		n += len(res.StepResults)
	}
	return n
}

// StreamRunUpdates streams run updates via WebSocket until the run ends
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	var lastStatus models.RunStatus
	lastSteps, lastDone := -1, -1

	for {
		run, err := h.lookupRun(ctx, runID)
		if err != nil {
			h.log.Error(err, "Failed to load run for stream", "run", runID)
		}
		if run == nil && err == nil {
			conn.WriteJSON(models.WSMessage{Type: "error", Payload: map[string]string{"run_id": runID, "error": "run not found"}})
			return
		}

		if run != nil {
			steps := countSteps(run)
			done := 0
			for _, res := range run.Results {
				if res.Status.Terminal() {
					done++
				}
			}
			if run.Status != lastStatus || steps != lastSteps || done != lastDone {
				msg := models.WSMessage{Type: "run_update", Payload: run}
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
				lastStatus, lastSteps, lastDone = run.Status, steps, done
			}
			if run.Status.Terminal() {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run completed"))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only files directly inside the screenshot directory
	filePath := filepath.Join(h.cfg.ScreenshotDir, filepath.Base(filename))

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
