package models

import (
	"fmt"
	"time"
)

// ==================== Scenario Types ====================

// Scenario is one named end-to-end test case: an ordered list of steps
// executed against a single browser session.
type Scenario struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// StepType identifies which browser action or assertion a Step performs
type StepType string

const (
	StepNavigate            StepType = "navigate"              // Load a URL
	StepWait                StepType = "wait"                  // Fixed delay
	StepWaitFor             StepType = "wait_for"              // Poll until selector exists
	StepWaitForTitle        StepType = "wait_for_title"        // Poll until document.title contains Value
	StepTypeText            StepType = "type_text"             // Replace input value
	StepClick               StepType = "click"                 // Left click
	StepReload              StepType = "reload"                // Reload page, optionally bypassing cache
	StepAssertExists        StepType = "assert_exists"         // Selector matches at least one element
	StepAssertNotExists     StepType = "assert_not_exists"     // Selector matches nothing
	StepAssertVisible       StepType = "assert_visible"        // First match is rendered visible
	StepAssertTextContains  StepType = "assert_text_contains"  // Element innerText contains Value
	StepAssertTitleContains StepType = "assert_title_contains" // document.title contains Value
	StepAssertValueEquals   StepType = "assert_value_equals"   // Input value equals Value
)

// Step is one atomic browser action or assertion within a Scenario.
// Steps are values; build them with the constructors below.
type Step struct {
	Type     StepType      `json:"type" yaml:"type"`
	Selector string        `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value    string        `json:"value,omitempty" yaml:"value,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Hard     bool          `json:"hard,omitempty" yaml:"hard,omitempty"`
}

func Navigate(url string) Step { return Step{Type: StepNavigate, Value: url} }

func Wait(d time.Duration) Step { return Step{Type: StepWait, Duration: d} }

// WaitFor polls until selector matches an element. A zero timeout means the
// runner's configured default.
func WaitFor(selector string, timeout time.Duration) Step {
	return Step{Type: StepWaitFor, Selector: selector, Duration: timeout}
}

// WaitForTitle polls until document.title contains substring.
func WaitForTitle(substring string, timeout time.Duration) Step {
	return Step{Type: StepWaitForTitle, Value: substring, Duration: timeout}
}

func TypeText(selector, value string) Step {
	return Step{Type: StepTypeText, Selector: selector, Value: value}
}

func Click(selector string) Step { return Step{Type: StepClick, Selector: selector} }

func Reload(hard bool) Step { return Step{Type: StepReload, Hard: hard} }

func AssertExists(selector string) Step { return Step{Type: StepAssertExists, Selector: selector} }

func AssertNotExists(selector string) Step {
	return Step{Type: StepAssertNotExists, Selector: selector}
}

func AssertVisible(selector string) Step { return Step{Type: StepAssertVisible, Selector: selector} }

func AssertTextContains(selector, substring string) Step {
	return Step{Type: StepAssertTextContains, Selector: selector, Value: substring}
}

func AssertTitleContains(substring string) Step {
	return Step{Type: StepAssertTitleContains, Value: substring}
}

func AssertValueEquals(selector, value string) Step {
	return Step{Type: StepAssertValueEquals, Selector: selector, Value: value}
}

// String renders the step for logs and reports.
func (s Step) String() string {
	switch s.Type {
	case StepNavigate:
		return fmt.Sprintf("navigate %s", s.Value)
	case StepWait:
		return fmt.Sprintf("wait %s", s.Duration)
	case StepWaitFor:
		return fmt.Sprintf("wait for %q", s.Selector)
	case StepTypeText:
		return fmt.Sprintf("type into %q", s.Selector)
	case StepClick:
		return fmt.Sprintf("click %q", s.Selector)
	case StepReload:
		if s.Hard {
			return "hard reload"
		}
		return "reload"
	case StepWaitForTitle:
		return fmt.Sprintf("wait for title %q", s.Value)
	case StepAssertTitleContains:
		return fmt.Sprintf("expect title to contain %q", s.Value)
	case StepAssertTextContains, StepAssertValueEquals:
		return fmt.Sprintf("%s %q %q", s.Type, s.Selector, s.Value)
	default:
		return fmt.Sprintf("%s %q", s.Type, s.Selector)
	}
}

// Validate reports whether the step carries the fields its type needs.
func (s Step) Validate() error {
	needSelector := false
	needValue := false
	switch s.Type {
	case StepNavigate, StepWaitForTitle, StepAssertTitleContains:
		needValue = true
	case StepWait:
		if s.Duration <= 0 {
			return fmt.Errorf("%s: duration must be positive", s.Type)
		}
	case StepWaitFor, StepClick, StepAssertExists, StepAssertNotExists, StepAssertVisible:
		needSelector = true
	case StepTypeText, StepAssertValueEquals:
		needSelector = true
	case StepAssertTextContains:
		needSelector, needValue = true, true
	case StepReload:
	default:
		return fmt.Errorf("unknown step type %q", s.Type)
	}
	if needSelector && s.Selector == "" {
		return fmt.Errorf("%s: selector is required", s.Type)
	}
	if needValue && s.Value == "" {
		return fmt.Errorf("%s: value is required", s.Type)
	}
	return nil
}

// Credentials is a username/password pair fed into a login form
type Credentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"-" yaml:"password"`
}

// ==================== Run Types ====================

// RunStatus represents the status of a run, scenario, or step
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusSkipped  RunStatus = "skipped"
	StatusCanceled RunStatus = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// StepResult represents the outcome of executing a single step
type StepResult struct {
	ID             string     `json:"id" db:"id"`
	RunID          string     `json:"run_id" db:"run_id"`
	ScenarioName   string     `json:"scenario" db:"scenario_name"`
	Index          int        `json:"index" db:"step_index"`
	Type           StepType   `json:"type" db:"step_type"`
	Description    string     `json:"description" db:"description"`
	Status         RunStatus  `json:"status" db:"status"`
	ErrorKind      string     `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	ScreenshotPath string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	ExecutedAt     *time.Time `json:"executed_at" db:"executed_at"`
	Duration       int64      `json:"duration_ms" db:"duration_ms"`
}

// ScenarioResult is the pass/fail outcome of one scenario. FailedStep is -1
// when every step passed.
type ScenarioResult struct {
	ScenarioName  string       `json:"scenario"`
	Status        RunStatus    `json:"status"`
	FailedStep    int          `json:"failed_step"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	StepResults   []StepResult `json:"step_results"`
	TotalDuration int64        `json:"total_duration_ms"`
}

// Passed reports whether the scenario completed without failure.
func (r ScenarioResult) Passed() bool { return r.Status == StatusSuccess }

// SuiteRun is a single execution of a set of scenarios
type SuiteRun struct {
	ID          string           `json:"id" db:"id"`
	Status      RunStatus        `json:"status" db:"status"`
	BaseURL     string           `json:"base_url" db:"base_url"`
	StartedAt   *time.Time       `json:"started_at" db:"started_at"`
	CompletedAt *time.Time       `json:"completed_at" db:"completed_at"`
	Passed      int              `json:"passed" db:"passed"`
	Failed      int              `json:"failed" db:"failed"`
	Results     []ScenarioResult `json:"results,omitempty"`
}

// ==================== Workflow Types ====================

// ScenarioInput is the input of a durable scenario execution
type ScenarioInput struct {
	RunID    string   `json:"run_id"`
	Scenario Scenario `json:"scenario"`
	// Timeout bounds each activity; zero uses the workflow default
	Timeout time.Duration `json:"timeout"`
}

// SuiteInput fans a set of scenarios out to independent executions
type SuiteInput struct {
	RunID     string        `json:"run_id"`
	BaseURL   string        `json:"base_url"`
	Scenarios []Scenario    `json:"scenarios"`
	Timeout   time.Duration `json:"timeout"`
}

// ==================== API Request/Response Types ====================

// RunRequest represents a request to execute scenarios
type RunRequest struct {
	Scenarios   []string `json:"scenarios,omitempty"` // names; empty means all
	Parallelism int      `json:"parallelism"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
