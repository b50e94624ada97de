package runner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/models"
)

func TestAssertContains(t *testing.T) {
	assert.NoError(t, AssertContains("abc", "b"))
	assert.NoError(t, AssertContains("abc", ""))

	err := AssertContains("abc", "z")
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, `expected "abc" to contain "z"`, ae.Error())
}

func TestAssertEquals(t *testing.T) {
	assert.NoError(t, AssertEquals("", ""))
	assert.EqualError(t, AssertEquals("kedar", ""), `expected "", got "kedar"`)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{&browser.NavigationError{URL: "u", Err: errors.New("x")}, KindNavigation},
		{&browser.ElementNotFoundError{Selector: "#a"}, KindElementNotFound},
		{&AssertionError{Message: "m"}, KindAssertion},
		{fmt.Errorf("wrapped: %w", &AssertionError{Message: "m"}), KindAssertion},
		{&StepError{Index: 2, Step: models.Click("#a"), Err: &browser.ElementNotFoundError{Selector: "#a"}}, KindElementNotFound},
		{errors.New("cdp: target closed"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.kind, ErrorKind(tt.err))
		})
	}
}

func TestStepErrorMessage(t *testing.T) {
	err := &StepError{Index: 3, Step: models.Click(`button[type="submit"]`), Err: &browser.ElementNotFoundError{Selector: `button[type="submit"]`}}
	assert.Equal(t, `step 3 (click "button[type=\"submit\"]"): no element matches "button[type=\"submit\"]"`, err.Error())
}
