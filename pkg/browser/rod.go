package browser

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// RodSession is a Session backed by go-rod
type RodSession struct {
	id       string
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	opts     Options
	log      logr.Logger
}

// NewRodSession launches a browser and opens a blank page
func NewRodSession(ctx context.Context, opts Options) (*RodSession, error) {
	l := launcher.New().Context(ctx)

	// CHROME_BIN wins when nothing explicit is configured (Docker environment)
	bin := opts.Bin
	if bin == "" {
		bin = os.Getenv("CHROME_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	l = l.Headless(opts.Headless)

	// Additional Chrome flags for Docker compatibility
	l = l.Set("no-sandbox")
	l = l.Set("disable-gpu")
	l = l.Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	s := &RodSession{
		id:       uuid.New().String(),
		launcher: l,
		browser:  browser,
		page:     page,
		opts:     opts,
	}
	s.log = opts.Logger.WithValues("session", s.id, "driver", DriverRod)
	s.log.V(1).Info("Browser session created", "headless", opts.Headless)
	return s, nil
}

func (s *RodSession) ID() string { return s.id }

func (s *RodSession) p(ctx context.Context) *rod.Page {
	return s.page.Context(ctx)
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	p := s.p(ctx).Timeout(s.opts.PageLoadTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if err := p.WaitLoad(); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *RodSession) Reload(ctx context.Context, hard bool) error {
	p := s.p(ctx).Timeout(s.opts.PageLoadTimeout)
	defer p.CancelTimeout()

	wait := p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := (proto.PageReload{IgnoreCache: hard}).Call(p); err != nil {
		return &NavigationError{Err: err}
	}
	// wait returns silently on timeout; WaitLoad reports it
	wait()
	if err := p.WaitLoad(); err != nil {
		return &NavigationError{Err: err}
	}
	return nil
}

func (s *RodSession) Title(ctx context.Context) (string, error) {
	res, err := s.p(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate document.title: %w", err)
	}
	return res.Value.Str(), nil
}

func (s *RodSession) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.p(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

func (s *RodSession) Close() error {
	err := s.browser.Close()
	s.launcher.Cleanup()
	s.log.V(1).Info("Browser session closed")
	return err
}

// first returns the first match without waiting; Elements does not retry.
func (s *RodSession) first(ctx context.Context, selector string) (*rod.Element, error) {
	els, err := s.p(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	if els.Empty() {
		return nil, &ElementNotFoundError{Selector: selector}
	}
	return els.First(), nil
}

func (s *RodSession) Count(ctx context.Context, selector string) (int, error) {
	els, err := s.p(ctx).Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return len(els), nil
}

func (s *RodSession) Input(ctx context.Context, selector, value string) error {
	el, err := s.first(ctx, selector)
	if err != nil {
		return err
	}
	el = el.Timeout(s.opts.PageLoadTimeout)
	defer el.CancelTimeout()

	// Clear existing text and input new value
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text in %q: %w", selector, err)
	}
	return el.Input(value)
}

func (s *RodSession) Click(ctx context.Context, selector string) error {
	el, err := s.first(ctx, selector)
	if err != nil {
		return err
	}
	// Click waits for the element to become interactable
	el = el.Timeout(s.opts.PageLoadTimeout)
	defer el.CancelTimeout()

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

func (s *RodSession) Visible(ctx context.Context, selector string) (bool, error) {
	el, err := s.first(ctx, selector)
	if err != nil {
		return false, err
	}
	return el.Visible()
}

func (s *RodSession) Text(ctx context.Context, selector string) (string, error) {
	el, err := s.first(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (s *RodSession) Value(ctx context.Context, selector string) (string, error) {
	el, err := s.first(ctx, selector)
	if err != nil {
		return "", err
	}
	v, err := el.Property("value")
	if err != nil {
		return "", fmt.Errorf("failed to read value of %q: %w", selector, err)
	}
	return v.Str(), nil
}
