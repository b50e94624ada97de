// Package activities implements the Temporal activities behind the scenario
// workflows. Sessions live in a browser.Pool on the worker between calls.
package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/temporal/workflows"
)

// Activities holds activity implementations
type Activities struct {
	Pool   *browser.Pool
	Runner *runner.Runner
}

// NewActivities creates new activities
func NewActivities(pool *browser.Pool, r *runner.Runner) *Activities {
	return &Activities{Pool: pool, Runner: r}
}

// OpenSessionActivity launches a browser session and returns its id
func (a *Activities) OpenSessionActivity(ctx context.Context) (workflows.BrowserSession, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Opening browser session")

	s, err := a.Pool.Open(ctx)
	if err != nil {
		return workflows.BrowserSession{}, fmt.Errorf("failed to open browser session: %w", err)
	}

	logger.Info("Browser session created", "sessionID", s.ID())
	return workflows.BrowserSession{SessionID: s.ID()}, nil
}

// ExecuteStepActivity performs a single step. Step failures come back as
// non-retryable application errors typed with the runner's error kind.
func (a *Activities) ExecuteStepActivity(ctx context.Context, input workflows.StepInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Executing step", "sessionID", input.SessionID, "step", input.Step.String())

	s, err := a.Pool.Get(input.SessionID)
	if err != nil {
		return temporal.NewNonRetryableApplicationError(err.Error(), runner.KindOther, nil)
	}

	if err := a.Runner.ExecuteStep(ctx, s, input.Step); err != nil {
		kind := runner.ErrorKind(err)
		logger.Info("Step failed", "kind", kind, "error", err)
		return temporal.NewNonRetryableApplicationError(err.Error(), kind, nil)
	}
	return nil
}

// TakeScreenshotActivity captures the page of a session and returns the file
// path, or "" when screenshots are disabled.
func (a *Activities) TakeScreenshotActivity(ctx context.Context, input workflows.ScreenshotInput) (string, error) {
	s, err := a.Pool.Get(input.SessionID)
	if err != nil {
		return "", err
	}

	path, err := a.Runner.Screenshot(ctx, s, input.Scenario, input.Index)
	if err != nil {
		return "", fmt.Errorf("failed to take screenshot: %w", err)
	}
	if path != "" {
		activity.GetLogger(ctx).Info("Screenshot saved", "path", path)
	}
	return path, nil
}

// CloseSessionActivity closes a browser session. Unknown ids are ignored.
func (a *Activities) CloseSessionActivity(ctx context.Context, sessionID string) error {
	activity.GetLogger(ctx).Info("Closing browser session", "sessionID", sessionID)
	return a.Pool.Close(sessionID)
}
