// Package executor submits suites to Temporal and waits for their results.
package executor

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"go.temporal.io/sdk/client"

	"dev/bravebird/login-scenarios/pkg/models"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/temporal/workflows"
)

// Executor runs suites as SuiteWorkflow executions on a worker
type Executor struct {
	Client  client.Client
	BaseURL string
	// ActivityTimeout bounds each activity; zero uses the workflow default
	ActivityTimeout time.Duration
	Logger          logr.Logger
}

// WorkflowID names the suite workflow of a run
func WorkflowID(runID string) string {
	return "suite-" + runID
}

// Execute starts the suite and blocks until it completes. Results are
// reported to obs once the workflow returns. Canceling ctx cancels the
// workflow. parallelism is ignored; worker concurrency bounds the suite.
func (e *Executor) Execute(ctx context.Context, runID string, scenarios []models.Scenario, parallelism int, obs runner.Observer) models.SuiteRun {
	log := e.Logger.WithValues("run", runID)
	started := time.Now()

	options := client.StartWorkflowOptions{
		ID:        WorkflowID(runID),
		TaskQueue: workflows.TaskQueue,
	}
	input := models.SuiteInput{
		RunID:     runID,
		BaseURL:   e.BaseURL,
		Scenarios: scenarios,
		Timeout:   e.ActivityTimeout,
	}

	we, err := e.Client.ExecuteWorkflow(ctx, options, workflows.SuiteWorkflow, input)
	if err != nil {
		log.Error(err, "Failed to start suite workflow")
		return e.failed(runID, scenarios, started, models.StatusFailed, "failed to start workflow: "+err.Error())
	}
	log.Info("Suite workflow started", "workflowID", we.GetID(), "runID", we.GetRunID())

	var run models.SuiteRun
	if err := we.Get(ctx, &run); err != nil {
		if ctx.Err() != nil {
			// the caller's context is gone; cancel with a fresh one
			cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if cerr := e.Client.CancelWorkflow(cancelCtx, we.GetID(), we.GetRunID()); cerr != nil {
				log.Error(cerr, "Failed to cancel suite workflow")
			}
			return e.failed(runID, scenarios, started, models.StatusCanceled, ctx.Err().Error())
		}
		log.Error(err, "Suite workflow failed")
		return e.failed(runID, scenarios, started, models.StatusFailed, err.Error())
	}

	replay(run, obs)
	return run
}

func replay(run models.SuiteRun, obs runner.Observer) {
	if obs == nil {
		return
	}
	for _, res := range run.Results {
		for _, step := range res.StepResults {
			obs.StepCompleted(step)
		}
		obs.ScenarioCompleted(res)
	}
}

// failed builds a run in which every scenario failed before executing.
func (e *Executor) failed(runID string, scenarios []models.Scenario, started time.Time, status models.RunStatus, msg string) models.SuiteRun {
	completed := time.Now()
	run := models.SuiteRun{
		ID:          runID,
		Status:      status,
		BaseURL:     e.BaseURL,
		StartedAt:   &started,
		CompletedAt: &completed,
		Failed:      len(scenarios),
		Results:     make([]models.ScenarioResult, len(scenarios)),
	}
	for i, sc := range scenarios {
		run.Results[i] = models.ScenarioResult{
			ScenarioName: sc.Name,
			Status:       status,
			FailedStep:   -1,
			ErrorMessage: msg,
		}
	}
	return run
}
