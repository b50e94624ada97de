package browser

import (
	"fmt"
	"time"
)

// NavigationError is returned when a page does not load within the
// configured page-load timeout, or the browser reports a navigation failure.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("page load failed: %v", e.Err)
	}
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ElementNotFoundError is returned when an action needs at least one element
// and the selector matched none. Waited is non-zero when the selector was
// polled before giving up.
type ElementNotFoundError struct {
	Selector string
	Waited   time.Duration
}

func (e *ElementNotFoundError) Error() string {
	if e.Waited > 0 {
		return fmt.Sprintf("no element matches %q after %s", e.Selector, e.Waited)
	}
	return fmt.Sprintf("no element matches %q", e.Selector)
}
