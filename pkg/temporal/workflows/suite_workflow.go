package workflows

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"dev/bravebird/login-scenarios/pkg/models"
)

// SuiteWorkflow runs every scenario as a child ScenarioWorkflow in parallel
// and collects the results in declaration order.
func SuiteWorkflow(ctx workflow.Context, input models.SuiteInput) (models.SuiteRun, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting suite workflow", "runID", input.RunID, "scenarioCount", len(input.Scenarios))

	started := workflow.Now(ctx)
	run := models.SuiteRun{
		ID:        input.RunID,
		Status:    models.StatusRunning,
		BaseURL:   input.BaseURL,
		StartedAt: &started,
		Results:   make([]models.ScenarioResult, len(input.Scenarios)),
	}
	for i, sc := range input.Scenarios {
		run.Results[i] = models.ScenarioResult{ScenarioName: sc.Name, Status: models.StatusPending, FailedStep: -1}
	}

	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.SuiteRun, error) {
		return run, nil
	}); err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	// Execute child workflows in parallel using selectors
	selector := workflow.NewSelector(ctx)
	for i, sc := range input.Scenarios {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: fmt.Sprintf("%s-%d", input.RunID, i),
		})
		run.Results[i].Status = models.StatusRunning
		future := workflow.ExecuteChildWorkflow(childCtx, ScenarioWorkflow, models.ScenarioInput{
			RunID:    input.RunID,
			Scenario: sc,
			Timeout:  input.Timeout,
		})

		idx, name := i, sc.Name
		selector.AddFuture(future, func(f workflow.Future) {
			var res models.ScenarioResult
			if err := f.Get(ctx, &res); err != nil {
				res = models.ScenarioResult{
					ScenarioName: name,
					Status:       models.StatusFailed,
					FailedStep:   -1,
					ErrorMessage: err.Error(),
				}
			}
			run.Results[idx] = res
		})
	}

	// Wait for all child workflows to complete
	for range input.Scenarios {
		selector.Select(ctx)
	}

	completed := workflow.Now(ctx)
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

	logger.Info("Suite workflow completed", "status", run.Status, "passed", run.Passed, "failed", run.Failed)
	return run, nil
}
