package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// ChromedpSession is a Session backed by chromedp
type ChromedpSession struct {
	id          string
	chromeCtx   context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	opts        Options
	log         logr.Logger
}

// NewChromedpSession starts a browser subprocess. The process lives until
// Close.
func NewChromedpSession(_ context.Context, opts Options) (*ChromedpSession, error) {
	options := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)

	bin := opts.Bin
	if bin == "" {
		bin = os.Getenv("CHROME_BIN")
	}
	if bin != "" {
		options = append(options, chromedp.ExecPath(bin))
	}
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		options = append(options, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), options...)

	s := &ChromedpSession{
		id:          uuid.New().String(),
		cancelAlloc: cancelAlloc,
		opts:        opts,
	}
	s.log = opts.Logger.WithValues("session", s.id, "driver", DriverChromedp)

	chromeCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			s.log.V(2).Info(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			s.log.Error(nil, fmt.Sprintf(format, args...))
		}),
	)
	s.chromeCtx = chromeCtx
	s.cancelTab = cancelTab

	// Start the browser. The first Run binds the process lifetime to its
	// context, so it must be the tab context itself.
	if err := chromedp.Run(chromeCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.log.V(1).Info("Browser session created", "headless", opts.Headless)
	return s, nil
}

func (s *ChromedpSession) ID() string { return s.id }

// run executes actions on the tab, bounded by ctx and, when timeout is set,
// the page-load timeout.
func (s *ChromedpSession) run(ctx context.Context, timeout bool, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.chromeCtx)
	defer cancel()
	if timeout {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.opts.PageLoadTimeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *ChromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, true, chromedp.Navigate(url)); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

func (s *ChromedpSession) Reload(ctx context.Context, hard bool) error {
	var err error
	if hard {
		err = s.run(ctx, true, chromedp.ActionFunc(hardReload))
	} else {
		err = s.run(ctx, true, chromedp.Reload())
	}
	if err != nil {
		return &NavigationError{Err: err}
	}
	return nil
}

// hardReload reloads bypassing the cache and returns once the new document
// fires its load event. Page.reload answers before the old document is
// replaced, so waiting on the DOM alone could observe the old page.
func hardReload(ctx context.Context) error {
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	loaded := make(chan struct{})
	var once sync.Once
	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			once.Do(func() { close(loaded) })
		}
	})

	if err := page.Reload().WithIgnoreCache(true).Do(ctx); err != nil {
		return err
	}
	select {
	case <-loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChromedpSession) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, false, chromedp.Evaluate(`document.title`, &title)); err != nil {
		return "", fmt.Errorf("failed to evaluate document.title: %w", err)
	}
	return title, nil
}

func (s *ChromedpSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, false, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return buf, nil
}

func (s *ChromedpSession) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	s.log.V(1).Info("Browser session closed")
	return nil
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// eval runs fn(document.querySelector(selector)) in the page. fn receives
// null when nothing matches.
func (s *ChromedpSession) eval(ctx context.Context, selector, fn string, out interface{}) error {
	expr := fmt.Sprintf(`(%s)(document.querySelector(%s))`, fn, jsString(selector))
	return s.run(ctx, false, chromedp.Evaluate(expr, out))
}

func (s *ChromedpSession) Count(ctx context.Context, selector string) (int, error) {
	var n int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := s.run(ctx, false, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return n, nil
}

func (s *ChromedpSession) require(ctx context.Context, selector string) error {
	n, err := s.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return &ElementNotFoundError{Selector: selector}
	}
	return nil
}

func (s *ChromedpSession) Input(ctx context.Context, selector, value string) error {
	if err := s.require(ctx, selector); err != nil {
		return err
	}
	// SendKeys and Click wait for the node to be visible
	return s.run(ctx, true,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *ChromedpSession) Click(ctx context.Context, selector string) error {
	if err := s.require(ctx, selector); err != nil {
		return err
	}
	return s.run(ctx, true, chromedp.Click(selector, chromedp.ByQuery))
}

const visibleJS = `(el) => {
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
}`

func (s *ChromedpSession) Visible(ctx context.Context, selector string) (bool, error) {
	var visible bool
	if err := s.eval(ctx, selector, visibleJS, &visible); err != nil {
		return false, fmt.Errorf("failed to check visibility of %q: %w", selector, err)
	}
	return visible, nil
}

func (s *ChromedpSession) Text(ctx context.Context, selector string) (string, error) {
	if err := s.require(ctx, selector); err != nil {
		return "", err
	}
	var text string
	if err := s.eval(ctx, selector, `(el) => el ? el.innerText : ""`, &text); err != nil {
		return "", fmt.Errorf("failed to read text of %q: %w", selector, err)
	}
	return text, nil
}

func (s *ChromedpSession) Value(ctx context.Context, selector string) (string, error) {
	if err := s.require(ctx, selector); err != nil {
		return "", err
	}
	var value string
	if err := s.eval(ctx, selector, `(el) => el && el.value != null ? String(el.value) : ""`, &value); err != nil {
		return "", fmt.Errorf("failed to read value of %q: %w", selector, err)
	}
	return value, nil
}
