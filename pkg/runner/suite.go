package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/models"
)

// Suite runs a set of scenarios, each in its own browser session. Up to
// Parallelism scenarios run at once; they share no state.
type Suite struct {
	Runner      *Runner
	Open        browser.Factory
	Parallelism int
	BaseURL     string
}

// Run executes scenarios and returns the completed run. Results keep the
// order of scenarios regardless of completion order. A scenario failure
// never stops the others.
func (s *Suite) Run(ctx context.Context, runID string, scenarios []models.Scenario, obs Observer) models.SuiteRun {
	started := time.Now()
	run := models.SuiteRun{
		ID:        runID,
		Status:    models.StatusRunning,
		BaseURL:   s.BaseURL,
		StartedAt: &started,
		Results:   make([]models.ScenarioResult, len(scenarios)),
	}

	limit := s.Parallelism
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, sc := range scenarios {
		i, sc := i, sc
		g.Go(func() error {
			run.Results[i] = s.runOne(gctx, runID, sc, obs)
			return nil
		})
	}
	_ = g.Wait()

	completed := time.Now()
	run.CompletedAt = &completed
	for _, res := range run.Results {
		if res.Passed() {
			run.Passed++
		} else {
			run.Failed++
		}
	}

	switch {
	case ctx.Err() != nil:
		run.Status = models.StatusCanceled
	case run.Failed > 0:
		run.Status = models.StatusFailed
	default:
		run.Status = models.StatusSuccess
	}
	return run
}

func (s *Suite) runOne(ctx context.Context, runID string, sc models.Scenario, obs Observer) models.ScenarioResult {
	session, err := s.Open(ctx)
	if err != nil {
		s.Runner.log.Error(err, "Failed to open browser session", "scenario", sc.Name)
		res := models.ScenarioResult{
			ScenarioName: sc.Name,
			Status:       models.StatusFailed,
			FailedStep:   -1,
			ErrorMessage: fmt.Sprintf("open browser session: %v", err),
		}
		if obs != nil {
			obs.ScenarioCompleted(res)
		}
		return res
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.Runner.log.Error(err, "Failed to close browser session", "scenario", sc.Name)
		}
	}()

	return s.Runner.Run(ctx, session, runID, sc, obs)
}

// Execute is Run with a per-call parallelism; zero keeps the suite's.
func (s *Suite) Execute(ctx context.Context, runID string, scenarios []models.Scenario, parallelism int, obs Observer) models.SuiteRun {
	suite := *s
	if parallelism > 0 {
		suite.Parallelism = parallelism
	}
	return suite.Run(ctx, runID, scenarios, obs)
}
