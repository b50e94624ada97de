package runner

import (
	"fmt"
	"io"
	"time"

	"dev/bravebird/login-scenarios/pkg/models"
)

// WriteReport prints a human-readable summary of run to w
func WriteReport(w io.Writer, run models.SuiteRun) error {
	for _, res := range run.Results {
		d := time.Duration(res.TotalDuration) * time.Millisecond
		if res.Passed() {
			if _, err := fmt.Fprintf(w, "✓ %s (%d steps, %s)\n", res.ScenarioName, len(res.StepResults), d); err != nil {
				return err
			}
			continue
		}

		if _, err := fmt.Fprintf(w, "✗ %s\n", res.ScenarioName); err != nil {
			return err
		}
		if res.FailedStep >= 0 && res.FailedStep < len(res.StepResults) {
			step := res.StepResults[res.FailedStep]
			fmt.Fprintf(w, "    step %d: %s\n", step.Index, step.Description)
			fmt.Fprintf(w, "    %s: %s\n", step.ErrorKind, step.ErrorMessage)
			if step.ScreenshotPath != "" {
				fmt.Fprintf(w, "    screenshot: %s\n", step.ScreenshotPath)
			}
		} else if res.ErrorMessage != "" {
			fmt.Fprintf(w, "    %s\n", res.ErrorMessage)
		}
	}

	var total time.Duration
	if run.StartedAt != nil && run.CompletedAt != nil {
		total = run.CompletedAt.Sub(*run.StartedAt).Round(time.Millisecond)
	}
	_, err := fmt.Fprintf(w, "\n%d passed, %d failed (%s)\n", run.Passed, run.Failed, total)
	return err
}
