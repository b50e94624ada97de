package runner

import (
	"fmt"
	"strings"
)

// AssertContains fails with *AssertionError unless actual contains substring.
func AssertContains(actual, substring string) error {
	if strings.Contains(actual, substring) {
		return nil
	}
	return &AssertionError{Message: fmt.Sprintf("expected %q to contain %q", actual, substring)}
}

// AssertEquals fails with *AssertionError unless actual equals expected.
func AssertEquals(actual, expected string) error {
	if actual == expected {
		return nil
	}
	return &AssertionError{Message: fmt.Sprintf("expected %q, got %q", expected, actual)}
}

func withSelector(err error, selector string) error {
	if ae, ok := err.(*AssertionError); ok && ae.Selector == "" {
		ae.Selector = selector
	}
	return err
}
