package workflows

import "dev/bravebird/login-scenarios/pkg/models"

// TaskQueue is the queue workers poll and clients submit to
const TaskQueue = "login-scenarios"

// Activity names, matching the method names registered by the worker
const (
	OpenSessionActivity    = "OpenSessionActivity"
	ExecuteStepActivity    = "ExecuteStepActivity"
	TakeScreenshotActivity = "TakeScreenshotActivity"
	CloseSessionActivity   = "CloseSessionActivity"
)

// ProgressQuery returns the in-flight result of a scenario or suite
const ProgressQuery = "getProgress"

// BrowserSession identifies a session held open by a worker
type BrowserSession struct {
	SessionID string `json:"session_id"`
}

// StepInput is the input for executing one step
type StepInput struct {
	SessionID string      `json:"session_id"`
	Step      models.Step `json:"step"`
}

// ScreenshotInput is the input for taking a screenshot
type ScreenshotInput struct {
	SessionID string `json:"session_id"`
	Scenario  string `json:"scenario"`
	Index     int    `json:"index"`
}
