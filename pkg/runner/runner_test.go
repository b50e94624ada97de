package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/browser/browsertest"
	"dev/bravebird/login-scenarios/pkg/models"
	"dev/bravebird/login-scenarios/pkg/scenario"
)

const (
	validUser = "kedar_karche"
	validPass = "Kedar@123"
)

// fakeClock makes polling deterministic: sleeping advances now.
type fakeClock struct {
	mu      sync.Mutex
	t       time.Time
	sleeps  int
	onSleep func()
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.sleeps++
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func newTestRunner(t *testing.T, dir string) (*Runner, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := New(Options{
		WaitForTimeout: time.Second,
		PollInterval:   100 * time.Millisecond,
		ScreenshotDir:  dir,
		Logger:         testr.New(t),
	})
	r.sleep = clock.sleep
	r.now = clock.now
	return r, clock
}

func loginSuite(url string) []models.Scenario {
	return scenario.LoginSuite(scenario.LoginConfig{
		URL:             url,
		Valid:           models.Credentials{Username: validUser, Password: validPass},
		InvalidUsername: "invalid_username",
		InvalidPassword: "invalid_password",
	})
}

type recorder struct {
	mu        sync.Mutex
	steps     []models.StepResult
	scenarios []models.ScenarioResult
}

func (r *recorder) StepCompleted(res models.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, res)
}

func (r *recorder) ScenarioCompleted(res models.ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scenarios = append(r.scenarios, res)
}

func TestRunLoginSuitePasses(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t, t.TempDir())

	for _, sc := range loginSuite("https://login.test/login") {
		t.Run(sc.Name, func(t *testing.T) {
			s := browsertest.NewLoginSession(validUser, validPass)
			rec := &recorder{}

			res := r.Run(ctx, s, "run-1", sc, rec)

			require.True(t, res.Passed(), res.ErrorMessage)
			assert.Equal(t, -1, res.FailedStep)
			assert.Len(t, res.StepResults, len(sc.Steps))
			assert.Len(t, rec.steps, len(sc.Steps))
			require.Len(t, rec.scenarios, 1)
			for i, step := range res.StepResults {
				assert.Equal(t, i, step.Index)
				assert.Equal(t, "run-1", step.RunID)
				assert.Equal(t, models.StatusSuccess, step.Status)
			}
			assert.NotContains(t, s.Calls, "screenshot")
			assert.False(t, s.Closed, "Run must leave the session open")
		})
	}
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	r, _ := newTestRunner(t, "")
	s := browsertest.NewLoginSession(validUser, validPass)

	sc := models.Scenario{
		Name: "order",
		Steps: []models.Step{
			models.Navigate("https://login.test/login"),
			models.TypeText(scenario.UsernameInput, "a"),
			models.TypeText(scenario.PasswordInput, "b"),
			models.Click(scenario.SubmitButton),
			models.AssertTitleContains("Login"),
		},
	}
	res := r.Run(context.Background(), s, "run", sc, nil)
	require.True(t, res.Passed(), res.ErrorMessage)

	assert.Equal(t, []string{
		"navigate https://login.test/login",
		"count " + scenario.UsernameInput,
		"input " + scenario.UsernameInput + "=a",
		"count " + scenario.PasswordInput,
		"input " + scenario.PasswordInput + "=b",
		"count " + scenario.SubmitButton,
		"click " + scenario.SubmitButton,
		"title",
	}, s.Calls)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	r, _ := newTestRunner(t, dir)
	s := browsertest.NewLoginSession(validUser, validPass)

	sc := models.Scenario{
		Name: "Wrong Title",
		Steps: []models.Step{
			models.Navigate("https://login.test/login"),
			models.AssertTitleContains("Dashboard"),
			models.Click(scenario.SubmitButton),
		},
	}
	res := r.Run(context.Background(), s, "run", sc, nil)

	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, 1, res.FailedStep)
	require.Len(t, res.StepResults, 2, "steps after the failure must not run")
	assert.NotContains(t, s.Calls, "click "+scenario.SubmitButton)

	failed := res.StepResults[1]
	assert.Equal(t, KindAssertion, failed.ErrorKind)
	assert.Contains(t, failed.ErrorMessage, `to contain "Dashboard"`)
	assert.Contains(t, res.ErrorMessage, "step 1 (")

	require.NotEmpty(t, failed.ScreenshotPath)
	assert.Equal(t, dir, filepath.Dir(failed.ScreenshotPath))
	assert.Contains(t, filepath.Base(failed.ScreenshotPath), "wrong_title_step1_")
	data, err := os.ReadFile(failed.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data)
}

func TestRunReportsScreenshotFailureWithoutMaskingStepError(t *testing.T) {
	r, _ := newTestRunner(t, t.TempDir())
	s := browsertest.NewSession()
	s.ScreenshotErr = errors.New("page crashed")

	res := r.Run(context.Background(), s, "run", models.Scenario{
		Name:  "missing",
		Steps: []models.Step{models.Click("#nope")},
	}, nil)

	require.Equal(t, 0, res.FailedStep)
	assert.Equal(t, KindElementNotFound, res.StepResults[0].ErrorKind)
	assert.Empty(t, res.StepResults[0].ScreenshotPath)
}

func TestRunNavigationFailure(t *testing.T) {
	r, _ := newTestRunner(t, "")
	s := browsertest.NewSession()
	s.OnNavigate = func(*browsertest.Session, string) error { return errors.New("net::ERR_NAME_NOT_RESOLVED") }

	res := r.Run(context.Background(), s, "run", models.Scenario{
		Name:  "offline",
		Steps: []models.Step{models.Navigate("https://nowhere.test")},
	}, nil)

	require.False(t, res.Passed())
	assert.Equal(t, KindNavigation, res.StepResults[0].ErrorKind)
	assert.Contains(t, res.ErrorMessage, "ERR_NAME_NOT_RESOLVED")
}

func TestInvalidUsernameNeverReachesDashboard(t *testing.T) {
	r, clock := newTestRunner(t, "")
	s := browsertest.NewLoginSession(validUser, validPass)

	sc := models.Scenario{
		Name: "bad user expecting dashboard",
		Steps: append(
			append([]models.Step{models.Navigate("https://login.test/login")},
				scenario.LoginSteps(models.Credentials{Username: "invalid_username", Password: validPass})...),
			models.WaitForTitle(scenario.DashboardTitle, 0),
		),
	}
	res := r.Run(context.Background(), s, "run", sc, nil)

	require.Equal(t, models.StatusFailed, res.Status)
	assert.Equal(t, 4, res.FailedStep)
	assert.Equal(t, KindAssertion, res.StepResults[4].ErrorKind)
	assert.Contains(t, res.StepResults[4].ErrorMessage, browsertest.LoginTitle)
	assert.Equal(t, 10, clock.sleeps, "polls every interval until the default timeout")
}

func TestWaitForSucceedsOnceElementAppears(t *testing.T) {
	r, clock := newTestRunner(t, "")
	s := browsertest.NewSession()
	clock.onSleep = func() {
		if clock.sleeps == 3 {
			s.Set("#late", browsertest.Element{Count: 1})
		}
	}

	err := r.ExecuteStep(context.Background(), s, models.WaitFor("#late", 0))
	require.NoError(t, err)
	assert.Equal(t, 3, clock.sleeps)
}

func TestWaitForTimesOut(t *testing.T) {
	r, _ := newTestRunner(t, "")
	s := browsertest.NewSession()

	err := r.ExecuteStep(context.Background(), s, models.WaitFor("#never", 300*time.Millisecond))

	var notFound *browser.ElementNotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, 300*time.Millisecond, notFound.Waited)
	assert.Equal(t, KindElementNotFound, ErrorKind(err))
}

func TestWaitHonorsCancellation(t *testing.T) {
	r := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.ExecuteStep(ctx, browsertest.NewSession(), models.Wait(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHardReloadClearsForm(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t, "")
	s := browsertest.NewLoginSession(validUser, validPass)

	steps := []models.Step{models.Navigate("https://login.test/login")}
	steps = append(steps, scenario.LoginSteps(models.Credentials{Username: "x", Password: "y"})...)
	steps = append(steps, models.AssertExists(scenario.ErrorContainer))
	for _, step := range steps {
		require.NoError(t, r.ExecuteStep(ctx, s, step), step.String())
	}

	// A soft reload keeps the page state in the fake
	require.NoError(t, r.ExecuteStep(ctx, s, models.Reload(false)))
	assert.NoError(t, r.ExecuteStep(ctx, s, models.AssertExists(scenario.ErrorContainer)))

	require.NoError(t, r.ExecuteStep(ctx, s, models.Reload(true)))
	for _, step := range scenario.ExpectCleanForm() {
		assert.NoError(t, r.ExecuteStep(ctx, s, step), step.String())
	}
}

func TestExecuteStepAssertions(t *testing.T) {
	s := browsertest.NewSession()
	s.PageTitle = "Login | DeepThought"
	s.Set("#shown", browsertest.Element{Count: 1, Visible: true, Text: "Login Unsuccessful", Value: "abc"})
	s.Set("#hidden", browsertest.Element{Count: 2})

	tests := []struct {
		name string
		step models.Step
		kind string // empty means success
	}{
		{"exists", models.AssertExists("#shown"), ""},
		{"exists missing", models.AssertExists("#missing"), KindAssertion},
		{"not exists", models.AssertNotExists("#missing"), ""},
		{"not exists present", models.AssertNotExists("#hidden"), KindAssertion},
		{"visible", models.AssertVisible("#shown"), ""},
		{"visible hidden", models.AssertVisible("#hidden"), KindAssertion},
		{"visible missing", models.AssertVisible("#missing"), KindAssertion},
		{"text contains", models.AssertTextContains("#shown", "Unsuccessful"), ""},
		{"text mismatch", models.AssertTextContains("#shown", "Welcome"), KindAssertion},
		{"text missing", models.AssertTextContains("#missing", "x"), KindElementNotFound},
		{"value equals", models.AssertValueEquals("#shown", "abc"), ""},
		{"value mismatch", models.AssertValueEquals("#shown", ""), KindAssertion},
		{"title contains", models.AssertTitleContains("Login"), ""},
		{"title mismatch", models.AssertTitleContains("Welcome"), KindAssertion},
		{"unknown", models.Step{Type: "hover"}, KindOther},
	}

	r, _ := newTestRunner(t, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.ExecuteStep(context.Background(), s, tt.step)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, ErrorKind(err), err.Error())
		})
	}
}

func TestAssertionErrorNamesSelector(t *testing.T) {
	s := browsertest.NewSession()
	s.Set("#msg", browsertest.Element{Count: 1, Text: "hello"})
	r, _ := newTestRunner(t, "")

	err := r.ExecuteStep(context.Background(), s, models.AssertTextContains("#msg", "bye"))
	assert.EqualError(t, err, `"#msg": expected "hello" to contain "bye"`)
}

func TestScreenshotDisabled(t *testing.T) {
	r, _ := newTestRunner(t, "")
	s := browsertest.NewSession()

	path, err := r.Screenshot(context.Background(), s, "any", 0)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, s.Calls)
}
