// Package runner executes scenarios step by step against a browser session.
// Steps run strictly in declared order; the first failing step ends the
// scenario. Nothing is retried.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/models"
)

// Observer receives results as they are produced. Suites running scenarios
// in parallel call it from several goroutines.
type Observer interface {
	StepCompleted(res models.StepResult)
	ScenarioCompleted(res models.ScenarioResult)
}

// Observers fans results out to several observers
type Observers []Observer

func (o Observers) StepCompleted(res models.StepResult) {
	for _, obs := range o {
		if obs != nil {
			obs.StepCompleted(res)
		}
	}
}

func (o Observers) ScenarioCompleted(res models.ScenarioResult) {
	for _, obs := range o {
		if obs != nil {
			obs.ScenarioCompleted(res)
		}
	}
}

// Options configures a Runner
type Options struct {
	// WaitForTimeout bounds wait_for steps that carry no timeout of their own
	WaitForTimeout time.Duration
	PollInterval   time.Duration
	// ScreenshotDir receives a PNG of the page when a step fails; empty
	// disables capture
	ScreenshotDir string
	Logger        logr.Logger
}

// Runner executes scenarios
type Runner struct {
	opts  Options
	log   logr.Logger
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates a Runner
func New(opts Options) *Runner {
	if opts.WaitForTimeout <= 0 {
		opts.WaitForTimeout = 15 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	return &Runner{
		opts:  opts,
		log:   opts.Logger,
		sleep: sleep,
		now:   time.Now,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes every step of sc in order on s and returns the scenario's
// result. The session is not closed.
func (r *Runner) Run(ctx context.Context, s browser.Session, runID string, sc models.Scenario, obs Observer) models.ScenarioResult {
	log := r.log.WithValues("scenario", sc.Name, "session", s.ID())
	log.Info("Starting scenario", "steps", len(sc.Steps))

	result := models.ScenarioResult{
		ScenarioName: sc.Name,
		Status:       models.StatusRunning,
		FailedStep:   -1,
		StepResults:  make([]models.StepResult, 0, len(sc.Steps)),
	}
	start := r.now()

	for i, step := range sc.Steps {
		stepLog := log.WithValues("step", i, "type", step.Type)
		stepLog.V(1).Info("Executing step", "description", step.String())

		stepStart := r.now()
		err := r.ExecuteStep(ctx, s, step)

		res := models.StepResult{
			ID:           uuid.New().String(),
			RunID:        runID,
			ScenarioName: sc.Name,
			Index:        i,
			Type:         step.Type,
			Description:  step.String(),
			Status:       models.StatusSuccess,
			ExecutedAt:   &stepStart,
			Duration:     r.now().Sub(stepStart).Milliseconds(),
		}

		if err != nil {
			stepErr := &StepError{Index: i, Step: step, Err: err}
			res.Status = models.StatusFailed
			res.ErrorKind = ErrorKind(err)
			res.ErrorMessage = err.Error()

			if path, shotErr := r.Screenshot(ctx, s, sc.Name, i); shotErr != nil {
				stepLog.Error(shotErr, "Failed to capture failure screenshot")
			} else {
				res.ScreenshotPath = path
			}

			stepLog.Info("Step failed", "kind", res.ErrorKind, "error", err.Error())
			result.StepResults = append(result.StepResults, res)
			if obs != nil {
				obs.StepCompleted(res)
			}

			result.Status = models.StatusFailed
			result.FailedStep = i
			result.ErrorMessage = stepErr.Error()
			break
		}

		result.StepResults = append(result.StepResults, res)
		if obs != nil {
			obs.StepCompleted(res)
		}
	}

	if result.Status != models.StatusFailed {
		result.Status = models.StatusSuccess
	}
	result.TotalDuration = r.now().Sub(start).Milliseconds()

	log.Info("Scenario completed", "status", result.Status, "duration", result.TotalDuration)
	if obs != nil {
		obs.ScenarioCompleted(result)
	}
	return result
}

// ExecuteStep performs a single step. Errors are *browser.NavigationError,
// *browser.ElementNotFoundError, *AssertionError, or a context/driver error.
func (r *Runner) ExecuteStep(ctx context.Context, s browser.Session, step models.Step) error {
	switch step.Type {
	case models.StepNavigate:
		return s.Navigate(ctx, step.Value)

	case models.StepWait:
		return r.sleep(ctx, step.Duration)

	case models.StepWaitFor:
		return r.waitFor(ctx, s, step)

	case models.StepWaitForTitle:
		return r.waitForTitle(ctx, s, step)

	case models.StepTypeText:
		return browser.Resolve(s, step.Selector).TypeText(ctx, step.Value)

	case models.StepClick:
		return browser.Resolve(s, step.Selector).Click(ctx)

	case models.StepReload:
		return s.Reload(ctx, step.Hard)

	case models.StepAssertExists:
		ok, err := browser.Resolve(s, step.Selector).Exists(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return &AssertionError{Selector: step.Selector, Message: "expected element to exist"}
		}
		return nil

	case models.StepAssertNotExists:
		n, err := browser.Resolve(s, step.Selector).Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return &AssertionError{Selector: step.Selector, Message: fmt.Sprintf("expected no element, found %d", n)}
		}
		return nil

	case models.StepAssertVisible:
		visible, err := browser.Resolve(s, step.Selector).Visible(ctx)
		if err != nil {
			return err
		}
		if !visible {
			return &AssertionError{Selector: step.Selector, Message: "expected element to be visible"}
		}
		return nil

	case models.StepAssertTextContains:
		text, err := browser.Resolve(s, step.Selector).Text(ctx)
		if err != nil {
			return err
		}
		return withSelector(AssertContains(text, step.Value), step.Selector)

	case models.StepAssertValueEquals:
		value, err := browser.Resolve(s, step.Selector).Value(ctx)
		if err != nil {
			return err
		}
		return withSelector(AssertEquals(value, step.Value), step.Selector)

	case models.StepAssertTitleContains:
		title, err := s.Title(ctx)
		if err != nil {
			return err
		}
		return AssertContains(title, step.Value)

	default:
		return fmt.Errorf("unsupported step type: %s", step.Type)
	}
}

func (r *Runner) timeoutFor(step models.Step) time.Duration {
	if step.Duration > 0 {
		return step.Duration
	}
	return r.opts.WaitForTimeout
}

// poll calls check every PollInterval until it reports done or timeout
// elapses. It returns false on timeout.
func (r *Runner) poll(ctx context.Context, timeout time.Duration, check func() (bool, error)) (bool, error) {
	deadline := r.now().Add(timeout)
	for {
		done, err := check()
		if err != nil || done {
			return done, err
		}
		if !r.now().Before(deadline) {
			return false, nil
		}
		if err := r.sleep(ctx, r.opts.PollInterval); err != nil {
			return false, err
		}
	}
}

func (r *Runner) waitFor(ctx context.Context, s browser.Session, step models.Step) error {
	timeout := r.timeoutFor(step)
	h := browser.Resolve(s, step.Selector)

	found, err := r.poll(ctx, timeout, func() (bool, error) { return h.Exists(ctx) })
	if err != nil {
		return err
	}
	if !found {
		return &browser.ElementNotFoundError{Selector: step.Selector, Waited: timeout}
	}
	return nil
}

func (r *Runner) waitForTitle(ctx context.Context, s browser.Session, step models.Step) error {
	timeout := r.timeoutFor(step)
	var title string

	found, err := r.poll(ctx, timeout, func() (bool, error) {
		var err error
		title, err = s.Title(ctx)
		return err == nil && strings.Contains(title, step.Value), err
	})
	if err != nil {
		return err
	}
	if !found {
		return &AssertionError{Message: fmt.Sprintf("title %q did not contain %q within %s", title, step.Value, timeout)}
	}
	return nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Screenshot captures the current page into ScreenshotDir and returns the
// file path. It returns "" and no error when capture is disabled.
func (r *Runner) Screenshot(ctx context.Context, s browser.Session, scenario string, index int) (string, error) {
	if r.opts.ScreenshotDir == "" {
		return "", nil
	}

	// Ensure screenshot directory exists
	if err := os.MkdirAll(r.opts.ScreenshotDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	data, err := s.Screenshot(ctx)
	if err != nil {
		return "", err
	}

	name := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(scenario), "_"), "_")
	filename := fmt.Sprintf("%s_step%d_%s.png", name, index, uuid.New().String()[:8])
	path := filepath.Join(r.opts.ScreenshotDir, filename)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	return path, nil
}
