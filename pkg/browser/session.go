// Package browser drives a real browser for scenario execution. A Session is
// one browser instance with a single page; selectors are resolved lazily
// against the live DOM each time a Handle is used.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Elements is the DOM surface that selectors resolve against. Implementations
// must not wait for elements to appear: a selector with no matches is
// reported immediately.
type Elements interface {
	Count(ctx context.Context, selector string) (int, error)
	Input(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Visible(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Value(ctx context.Context, selector string) (string, error)
}

// Session is one browser instance executing a scenario.
type Session interface {
	Elements

	ID() string
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context, hard bool) error
	Title(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Factory opens a new, independent Session.
type Factory func(ctx context.Context) (Session, error)

// Driver names accepted by NewFactory
const (
	DriverRod      = "rod"
	DriverChromedp = "chromedp"
)

// Options configures how sessions are launched
type Options struct {
	Driver          string
	Headless        bool
	Bin             string // browser executable; empty lets the driver pick
	PageLoadTimeout time.Duration
	Logger          logr.Logger
}

// NewFactory returns a Factory for the configured driver.
func NewFactory(opts Options) (Factory, error) {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	switch opts.Driver {
	case "", DriverRod:
		return func(ctx context.Context) (Session, error) { return NewRodSession(ctx, opts) }, nil
	case DriverChromedp:
		return func(ctx context.Context) (Session, error) { return NewChromedpSession(ctx, opts) }, nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", opts.Driver)
	}
}

// Handle is a lazy reference to the elements matching a selector. Nothing is
// looked up until a method is called, and every call queries the live DOM.
type Handle struct {
	selector string
	el       Elements
}

// Resolve returns a Handle for selector. It never fails; a selector with no
// matches is only an error for the operation that needs an element.
func Resolve(el Elements, selector string) Handle {
	return Handle{selector: selector, el: el}
}

func (h Handle) Selector() string { return h.selector }

// Count returns the number of matching elements right now.
func (h Handle) Count(ctx context.Context) (int, error) {
	return h.el.Count(ctx, h.selector)
}

// Exists reports whether at least one element matches.
func (h Handle) Exists(ctx context.Context) (bool, error) {
	n, err := h.Count(ctx)
	return n > 0, err
}

func (h Handle) require(ctx context.Context) error {
	ok, err := h.Exists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return &ElementNotFoundError{Selector: h.selector}
	}
	return nil
}

// TypeText replaces the value of the first matching input.
func (h Handle) TypeText(ctx context.Context, value string) error {
	if err := h.require(ctx); err != nil {
		return err
	}
	return h.el.Input(ctx, h.selector, value)
}

// Click dispatches a left click on the first match.
func (h Handle) Click(ctx context.Context) error {
	if err := h.require(ctx); err != nil {
		return err
	}
	return h.el.Click(ctx, h.selector)
}

// Visible reports whether the first match is rendered visible. An empty
// match set is not visible.
func (h Handle) Visible(ctx context.Context) (bool, error) {
	ok, err := h.Exists(ctx)
	if err != nil || !ok {
		return false, err
	}
	return h.el.Visible(ctx, h.selector)
}

// Text returns the innerText of the first match.
func (h Handle) Text(ctx context.Context) (string, error) {
	if err := h.require(ctx); err != nil {
		return "", err
	}
	return h.el.Text(ctx, h.selector)
}

// Value returns the current input value of the first match.
func (h Handle) Value(ctx context.Context) (string, error) {
	if err := h.require(ctx); err != nil {
		return "", err
	}
	return h.el.Value(ctx, h.selector)
}
