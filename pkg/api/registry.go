package api

import (
	"sort"
	"sync"

	"dev/bravebird/login-scenarios/pkg/models"
)

// Registry keeps the state of runs started by this process so clients can
// follow them without a database.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*models.SuiteRun
}

func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*models.SuiteRun)}
}

// Start records a run that is about to execute scenarios.
func (r *Registry) Start(run models.SuiteRun, scenarios []models.Scenario) {
	run.Results = make([]models.ScenarioResult, len(scenarios))
	for i, sc := range scenarios {
		run.Results[i] = models.ScenarioResult{
			ScenarioName: sc.Name,
			Status:       models.StatusPending,
			FailedStep:   -1,
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = &run
}

// Finish replaces the tracked run with its final state.
func (r *Registry) Finish(run models.SuiteRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = &run
}

// Get returns a copy of the run, or false when it is unknown.
func (r *Registry) Get(id string) (models.SuiteRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return models.SuiteRun{}, false
	}
	return copyRun(run), true
}

// List returns all runs, most recently started first, without results.
func (r *Registry) List() []models.SuiteRun {
	r.mu.RLock()
	runs := make([]models.SuiteRun, 0, len(r.runs))
	for _, run := range r.runs {
		summary := *run
		summary.Results = nil
		runs = append(runs, summary)
	}
	r.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		a, b := runs[i].StartedAt, runs[j].StartedAt
		if a == nil || b == nil {
			return runs[i].ID < runs[j].ID
		}
		return a.After(*b)
	})
	return runs
}

func copyRun(run *models.SuiteRun) models.SuiteRun {
	out := *run
	out.Results = make([]models.ScenarioResult, len(run.Results))
	for i, res := range run.Results {
		res.StepResults = append([]models.StepResult(nil), res.StepResults...)
		out.Results[i] = res
	}
	return out
}

// Observer returns a runner observer that updates run id in place.
func (r *Registry) Observer(id string) *RunObserver {
	return &RunObserver{registry: r, runID: id}
}

// RunObserver feeds one run's progress into the Registry
type RunObserver struct {
	registry *Registry
	runID    string
}

func (o *RunObserver) update(scenario string, fn func(res *models.ScenarioResult)) {
	o.registry.mu.Lock()
	defer o.registry.mu.Unlock()
	run, ok := o.registry.runs[o.runID]
	if !ok {
		return
	}
	for i := range run.Results {
		if run.Results[i].ScenarioName == scenario {
			fn(&run.Results[i])
			return
		}
	}
}

func (o *RunObserver) StepCompleted(step models.StepResult) {
	o.update(step.ScenarioName, func(res *models.ScenarioResult) {
		res.Status = models.StatusRunning
		res.StepResults = append(res.StepResults, step)
	})
}

func (o *RunObserver) ScenarioCompleted(result models.ScenarioResult) {
	o.update(result.ScenarioName, func(res *models.ScenarioResult) {
		*res = result
	})
}
