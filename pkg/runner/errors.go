package runner

import (
	"errors"
	"fmt"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/models"
)

// Error kinds reported in results and used as Temporal error types
const (
	KindNavigation      = "NavigationError"
	KindElementNotFound = "ElementNotFoundError"
	KindAssertion       = "AssertionError"
	KindOther           = "Error"
)

// AssertionError is returned when an observed value does not meet an
// expectation.
type AssertionError struct {
	Selector string // empty for page-level assertions
	Message  string
}

func (e *AssertionError) Error() string {
	if e.Selector == "" {
		return e.Message
	}
	return fmt.Sprintf("%q: %s", e.Selector, e.Message)
}

// StepError ties a failure to the step that produced it.
type StepError struct {
	Index int
	Step  models.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var (
		navErr      *browser.NavigationError
		notFoundErr *browser.ElementNotFoundError
		assertErr   *AssertionError
	)
	switch {
	case errors.As(err, &navErr):
		return KindNavigation
	case errors.As(err, &notFoundErr):
		return KindElementNotFound
	case errors.As(err, &assertErr):
		return KindAssertion
	default:
		return KindOther
	}
}
