// Package browsertest provides in-memory and httptest-backed stand-ins for
// real browser pages, used by tests of the runner and the drivers.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"dev/bravebird/login-scenarios/pkg/browser"
)

// Element is the observable state of one fake DOM element
type Element struct {
	Count   int
	Visible bool
	Text    string
	Value   string
}

// Session is a scriptable in-memory browser.Session. Every call is recorded
// in Calls so tests can assert on ordering.
type Session struct {
	SessionID string
	PageTitle string
	URL       string
	Elements  map[string]*Element

	// Hooks let a test model page behavior
	OnNavigate func(s *Session, url string) error
	OnClick    map[string]func(s *Session) error
	OnReload   func(s *Session, hard bool) error

	ScreenshotErr error
	Closed        bool
	Calls         []string

	mu sync.Mutex
}

var _ browser.Session = (*Session)(nil)

// NewSession returns an empty page
func NewSession() *Session {
	return &Session{
		SessionID: "fake-session",
		Elements:  make(map[string]*Element),
		OnClick:   make(map[string]func(s *Session) error),
	}
}

// Set installs or replaces an element.
func (s *Session) Set(selector string, el Element) {
	s.Elements[selector] = &el
}

// Remove deletes an element so the selector matches nothing.
func (s *Session) Remove(selector string) {
	delete(s.Elements, selector)
}

func (s *Session) record(format string, args ...interface{}) {
	s.mu.Lock()
	s.Calls = append(s.Calls, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *Session) lookup(selector string) (*Element, error) {
	el, ok := s.Elements[selector]
	if !ok || el.Count == 0 {
		return nil, &browser.ElementNotFoundError{Selector: selector}
	}
	return el, nil
}

func (s *Session) ID() string { return s.SessionID }

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.record("navigate %s", url)
	if s.OnNavigate != nil {
		if err := s.OnNavigate(s, url); err != nil {
			return &browser.NavigationError{URL: url, Err: err}
		}
	}
	s.URL = url
	return nil
}

func (s *Session) Reload(ctx context.Context, hard bool) error {
	s.record("reload hard=%t", hard)
	if s.OnReload != nil {
		return s.OnReload(s, hard)
	}
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	s.record("title")
	return s.PageTitle, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	s.record("screenshot")
	if s.ScreenshotErr != nil {
		return nil, s.ScreenshotErr
	}
	// PNG signature is enough for callers that only write bytes out
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (s *Session) Close() error {
	s.record("close")
	s.Closed = true
	return nil
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	s.record("count %s", selector)
	if el, ok := s.Elements[selector]; ok {
		return el.Count, nil
	}
	return 0, nil
}

func (s *Session) Input(ctx context.Context, selector, value string) error {
	s.record("input %s=%s", selector, value)
	el, err := s.lookup(selector)
	if err != nil {
		return err
	}
	el.Value = value
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	s.record("click %s", selector)
	if _, err := s.lookup(selector); err != nil {
		return err
	}
	if hook, ok := s.OnClick[selector]; ok {
		return hook(s)
	}
	return nil
}

func (s *Session) Visible(ctx context.Context, selector string) (bool, error) {
	s.record("visible %s", selector)
	el, err := s.lookup(selector)
	if err != nil {
		return false, err
	}
	return el.Visible, nil
}

func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	s.record("text %s", selector)
	el, err := s.lookup(selector)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (s *Session) Value(ctx context.Context, selector string) (string, error) {
	s.record("value %s", selector)
	el, err := s.lookup(selector)
	if err != nil {
		return "", err
	}
	return el.Value, nil
}
