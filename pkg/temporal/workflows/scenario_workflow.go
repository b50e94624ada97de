// Package workflows runs scenarios as Temporal workflows. Each step is one
// activity against a browser session held by the worker.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/login-scenarios/pkg/models"
)

// Error types the activities report; none of them is retried
var NonRetryableErrorTypes = []string{"NavigationError", "ElementNotFoundError", "AssertionError"}

func activityOptions(timeout time.Duration) workflow.ActivityOptions {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        1,
			NonRetryableErrorTypes: NonRetryableErrorTypes,
		},
	}
}

// ScenarioWorkflow executes the steps of one scenario in order in a fresh
// browser session. A failed step ends the scenario; the workflow itself only
// fails when it cannot run at all.
func ScenarioWorkflow(ctx workflow.Context, input models.ScenarioInput) (models.ScenarioResult, error) {
	logger := workflow.GetLogger(ctx)
	sc := input.Scenario
	logger.Info("Starting scenario workflow", "runID", input.RunID, "scenario", sc.Name)

	result := models.ScenarioResult{
		ScenarioName: sc.Name,
		Status:       models.StatusRunning,
		FailedStep:   -1,
		StepResults:  make([]models.StepResult, 0, len(sc.Steps)),
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.ScenarioResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	startTime := workflow.Now(ctx)
	ctx = workflow.WithActivityOptions(ctx, activityOptions(input.Timeout))

	var session BrowserSession
	if err := workflow.ExecuteActivity(ctx, OpenSessionActivity).Get(ctx, &session); err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = "open browser session: " + errorMessage(err)
		result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()
		return result, nil
	}

	defer func() {
		// Close even when the workflow is canceled
		closeCtx, _ := workflow.NewDisconnectedContext(ctx)
		if err := workflow.ExecuteActivity(closeCtx, CloseSessionActivity, session.SessionID).Get(closeCtx, nil); err != nil {
			logger.Warn("Failed to close browser session", "sessionID", session.SessionID, "error", err)
		}
	}()

	for i, step := range sc.Steps {
		stepStart := workflow.Now(ctx)

		var err error
		if step.Type == models.StepWait {
			err = workflow.Sleep(ctx, step.Duration)
		} else {
			err = workflow.ExecuteActivity(ctx, ExecuteStepActivity, StepInput{
				SessionID: session.SessionID,
				Step:      step,
			}).Get(ctx, nil)
		}

		res := models.StepResult{
			ID:           newID(ctx),
			RunID:        input.RunID,
			ScenarioName: sc.Name,
			Index:        i,
			Type:         step.Type,
			Description:  step.String(),
			Status:       models.StatusSuccess,
			ExecutedAt:   &stepStart,
			Duration:     workflow.Now(ctx).Sub(stepStart).Milliseconds(),
		}

		if err != nil {
			res.Status = models.StatusFailed
			res.ErrorKind = errorKind(err)
			res.ErrorMessage = errorMessage(err)

			// Take screenshot on failure
			var screenshotPath string
			if shotErr := workflow.ExecuteActivity(ctx, TakeScreenshotActivity, ScreenshotInput{
				SessionID: session.SessionID,
				Scenario:  sc.Name,
				Index:     i,
			}).Get(ctx, &screenshotPath); shotErr != nil {
				logger.Warn("Failed to capture failure screenshot", "error", shotErr)
			}
			res.ScreenshotPath = screenshotPath

			result.StepResults = append(result.StepResults, res)
			result.Status = models.StatusFailed
			result.FailedStep = i
			result.ErrorMessage = fmt.Sprintf("step %d (%s): %s", i, step, res.ErrorMessage)
			logger.Info("Step failed", "step", i, "kind", res.ErrorKind, "error", res.ErrorMessage)
			break
		}
		result.StepResults = append(result.StepResults, res)
	}

	if result.Status != models.StatusFailed {
		result.Status = models.StatusSuccess
	}
	result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()

	logger.Info("Scenario workflow completed", "status", result.Status, "duration", result.TotalDuration)
	return result, nil
}

func newID(ctx workflow.Context) string {
	var id string
	encoded := workflow.SideEffect(ctx, func(workflow.Context) interface{} { return uuid.New().String() })
	if err := encoded.Get(&id); err != nil {
		return ""
	}
	return id
}

// errorKind reads the type an activity attached to its application error.
func errorKind(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return appErr.Type()
	}
	var canceledErr *temporal.CanceledError
	if errors.As(err, &canceledErr) {
		return "Canceled"
	}
	return "Error"
}

func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
