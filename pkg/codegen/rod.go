// Package codegen exports a scenario as a standalone go-rod program that
// can be run with `go run` outside this module.
package codegen

import (
	"fmt"
	"go/format"
	"sort"
	"strings"
	"time"

	"dev/bravebird/login-scenarios/pkg/models"
)

// Options tunes the generated program
type Options struct {
	Headless bool
	// WaitForTimeout replaces zero timeouts on wait_for and wait_for_title
	WaitForTimeout time.Duration
	// Timeout bounds the whole program run
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.WaitForTimeout <= 0 {
		o.WaitForTimeout = 15 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Minute
	}
	return o
}

type generator struct {
	opts    Options
	body    strings.Builder
	imports map[string]bool
	helpers map[string]string
}

// GenerateGoRodScript renders sc as a gofmt'ed main package.
func GenerateGoRodScript(sc models.Scenario, opts Options) ([]byte, error) {
	g := &generator{
		opts: opts.withDefaults(),
		imports: map[string]bool{
			"fmt":                                true,
			"os":                                 true,
			"time":                               true,
			"github.com/go-rod/rod":              true,
			"github.com/go-rod/rod/lib/launcher": true,
		},
		helpers: make(map[string]string),
	}

	for i, step := range sc.Steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		g.step(i, step)
	}

	src := g.render(sc)
	out, err := format.Source([]byte(src))
	if err != nil {
		return nil, fmt.Errorf("failed to format generated program: %w", err)
	}
	return out, nil
}

func (g *generator) printf(format string, args ...interface{}) {
	fmt.Fprintf(&g.body, format, args...)
}

func (g *generator) fail(i int, format string, args ...string) {
	g.printf("\t\treturn fmt.Errorf(%q, %d%s)\n\t}\n", "step %d: "+format, i, joinArgs(args))
}

func joinArgs(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return ", " + strings.Join(args, ", ")
}

func (g *generator) timeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return g.opts.WaitForTimeout
}

func (g *generator) step(i int, step models.Step) {
	g.printf("\t// Step %d: %s\n", i, step)

	switch step.Type {
	case models.StepNavigate:
		g.printf("\tpage.MustNavigate(%q).MustWaitLoad()\n", step.Value)

	case models.StepWait:
		g.printf("\ttime.Sleep(%s)\n", durationLiteral(step.Duration))

	case models.StepWaitFor:
		g.printf("\tif _, err := page.Timeout(%s).Element(%q); err != nil {\n", durationLiteral(g.timeout(step.Duration)), step.Selector)
		g.fail(i, "no element matches %q: %w", fmt.Sprintf("%q", step.Selector), "err")

	case models.StepWaitForTitle:
		g.imports["strings"] = true
		g.helpers["waitForTitle"] = waitForTitleHelper
		g.printf("\tif err := waitForTitle(page, %q, %s); err != nil {\n", step.Value, durationLiteral(g.timeout(step.Duration)))
		g.fail(i, "%w", "err")

	case models.StepTypeText:
		g.printf("\tpage.MustElement(%q).MustSelectAllText().MustInput(%q)\n", step.Selector, step.Value)

	case models.StepClick:
		g.printf("\tpage.MustElement(%q).MustClick()\n", step.Selector)

	case models.StepReload:
		if step.Hard {
			g.imports["github.com/go-rod/rod/lib/proto"] = true
			g.printf("\t{\n\t\twait := page.WaitNavigation(proto.PageLifecycleEventNameLoad)\n")
			g.printf("\tif err := (proto.PageReload{IgnoreCache: true}).Call(page); err != nil {\n")
			g.fail(i, "%w", "err")
			g.printf("\twait()\n\t}\n")
		} else {
			g.printf("\tpage.MustReload().MustWaitLoad()\n")
		}

	case models.StepAssertExists:
		g.printf("\tif has, _, _ := page.Has(%q); !has {\n", step.Selector)
		g.fail(i, "expected %q to exist", fmt.Sprintf("%q", step.Selector))

	case models.StepAssertNotExists:
		g.printf("\tif has, _, _ := page.Has(%q); has {\n", step.Selector)
		g.fail(i, "expected no element matching %q", fmt.Sprintf("%q", step.Selector))

	case models.StepAssertVisible:
		g.printf("\tif els := page.MustElements(%q); els.Empty() || !els.First().MustVisible() {\n", step.Selector)
		g.fail(i, "expected %q to be visible", fmt.Sprintf("%q", step.Selector))

	case models.StepAssertTextContains:
		g.imports["strings"] = true
		g.printf("\tif text := page.MustElement(%q).MustText(); !strings.Contains(text, %q) {\n", step.Selector, step.Value)
		g.fail(i, "expected %q to contain %q", "text", fmt.Sprintf("%q", step.Value))

	case models.StepAssertTitleContains:
		g.imports["strings"] = true
		g.printf("\tif title := page.MustEval(`() => document.title`).Str(); !strings.Contains(title, %q) {\n", step.Value)
		g.fail(i, "expected %q to contain %q", "title", fmt.Sprintf("%q", step.Value))

	case models.StepAssertValueEquals:
		g.printf("\tif value := page.MustElement(%q).MustProperty(\"value\").Str(); value != %q {\n", step.Selector, step.Value)
		g.fail(i, "expected %q, got %q", fmt.Sprintf("%q", step.Value), "value")
	}

	g.printf("\n")
}

func (g *generator) render(sc models.Scenario) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "// Code generated by login-scenarios export. DO NOT EDIT.\n\n")
	fmt.Fprintf(&sb, "// %s", sc.Name)
	if sc.Description != "" {
		fmt.Fprintf(&sb, ": %s", sc.Description)
	}
	sb.WriteString("\npackage main\n\nimport (\n")

	paths := make([]string, 0, len(g.imports))
	for p := range g.imports {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(&sb, "\t%q\n", p)
	}
	sb.WriteString(")\n\n")

	fmt.Fprintf(&sb, `func main() {
	u := launcher.New().Headless(%t).MustLaunch()
	browser := rod.New().ControlURL(u).MustConnect()
	page := browser.MustPage().Timeout(%s)

	var err error
	if tryErr := rod.Try(func() { err = run(page) }); tryErr != nil {
		err = tryErr
	}
	browser.MustClose()

	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %%s: %%v\n", %q, err)
		os.Exit(1)
	}
	fmt.Printf("✓ %%s\n", %q)
}

func run(page *rod.Page) error {
`, g.opts.Headless, durationLiteral(g.opts.Timeout), sc.Name, sc.Name)

	sb.WriteString(g.body.String())
	sb.WriteString("\treturn nil\n}\n")

	names := make([]string, 0, len(g.helpers))
	for name := range g.helpers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sb.WriteString("\n" + g.helpers[name])
	}
	return sb.String()
}

const waitForTitleHelper = `func waitForTitle(page *rod.Page, substring string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		title := page.MustEval(` + "`() => document.title`" + `).Str()
		if strings.Contains(title, substring) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("title %q did not contain %q within %s", title, substring, timeout)
		}
		time.Sleep(250 * time.Millisecond)
	}
}
`

// durationLiteral renders d as Go source, e.g. 15 * time.Second.
func durationLiteral(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d * time.Minute", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
	default:
		return fmt.Sprintf("time.Duration(%d)", int64(d))
	}
}
