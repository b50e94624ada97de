// Package scenario defines the built-in login suite and loads scenario files.
package scenario

import (
	"time"

	"dev/bravebird/login-scenarios/pkg/models"
)

// Login page selectors
const (
	UsernameInput  = `input[name="username"]`
	PasswordInput  = `input[name="password"]`
	SubmitButton   = `button[type="submit"]`
	ErrorContainer = `.alert.alert-danger`
)

// Expected page texts
const (
	DashboardTitle     = "Welcome to DeepThought | DeepThought"
	LoginFailedHeading = "Login Unsuccessful"
	LoginFailedDetail  = "Invalid login credentials"
)

// Built-in scenario names
const (
	SuccessfulLogin   = "Successful Login"
	UnsuccessfulLogin = "Unsuccessful Login Attempts"
)

// LoginConfig supplies everything the login suite needs from configuration
type LoginConfig struct {
	URL             string
	Valid           models.Credentials
	InvalidUsername string
	InvalidPassword string
	// Timeout bounds each polling wait; zero uses the runner default
	Timeout time.Duration
}

// LoginSteps fills the form with creds and submits it
func LoginSteps(creds models.Credentials) []models.Step {
	return []models.Step{
		models.TypeText(UsernameInput, creds.Username),
		models.TypeText(PasswordInput, creds.Password),
		models.Click(SubmitButton),
	}
}

// ExpectLoginRejected asserts the error container is shown with the
// rejection message.
func ExpectLoginRejected(timeout time.Duration) []models.Step {
	return []models.Step{
		models.WaitFor(ErrorContainer, timeout),
		models.AssertExists(ErrorContainer),
		models.AssertVisible(ErrorContainer),
		models.AssertTextContains(ErrorContainer, LoginFailedHeading),
		models.AssertTextContains(ErrorContainer, LoginFailedDetail),
	}
}

// ExpectCleanForm asserts the page shows a blank form with no error.
func ExpectCleanForm() []models.Step {
	return []models.Step{
		models.AssertNotExists(ErrorContainer),
		models.AssertValueEquals(UsernameInput, ""),
		models.AssertValueEquals(PasswordInput, ""),
	}
}

// LoginSuite returns the login scenarios: one successful login and one
// parameterized run of rejected attempts (bad username, then bad password)
// separated by a hard reload.
func LoginSuite(cfg LoginConfig) []models.Scenario {
	open := []models.Step{
		models.Navigate(cfg.URL),
		models.WaitFor(UsernameInput, cfg.Timeout),
	}

	success := concat(
		open,
		LoginSteps(cfg.Valid),
		[]models.Step{
			models.WaitForTitle(DashboardTitle, cfg.Timeout),
			models.AssertTitleContains(DashboardTitle),
		},
	)

	attempts := []models.Credentials{
		{Username: cfg.InvalidUsername, Password: cfg.Valid.Password},
		{Username: cfg.Valid.Username, Password: cfg.InvalidPassword},
	}
	rejected := concat(open)
	for i, creds := range attempts {
		if i > 0 {
			rejected = concat(rejected,
				[]models.Step{
					models.Reload(true),
					models.WaitFor(UsernameInput, cfg.Timeout),
				},
				ExpectCleanForm(),
			)
		}
		rejected = concat(rejected, LoginSteps(creds), ExpectLoginRejected(cfg.Timeout))
	}

	return []models.Scenario{
		{
			Name:        SuccessfulLogin,
			Description: "Valid credentials land on the dashboard",
			Steps:       success,
		},
		{
			Name:        UnsuccessfulLogin,
			Description: "An invalid username, then an invalid password, are each rejected with an error message",
			Steps:       rejected,
		},
	}
}

func concat(parts ...[]models.Step) []models.Step {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]models.Step, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
