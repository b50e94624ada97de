package main

import (
	"github.com/spf13/cobra"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/runner"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		file     string
		names    []string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run scenarios in local browser sessions and print a summary",
		Long: `Run the built-in login suite, or the scenarios of --file, each in a
fresh browser session. Exits 1 unless every scenario passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := a.scenarios(file, names)
			if err != nil {
				return err
			}
			if parallel <= 0 {
				parallel = a.cfg.Parallelism
			}

			opts := a.cfg.BrowserOptions()
			opts.Logger = a.log.WithName("browser")
			factory, err := browser.NewFactory(opts)
			if err != nil {
				return err
			}

			suite := &runner.Suite{
				Runner: runner.New(runner.Options{
					WaitForTimeout: a.cfg.Browser.WaitForTimeout,
					PollInterval:   a.cfg.Browser.PollInterval,
					ScreenshotDir:  a.cfg.ScreenshotDir,
					Logger:         a.log.WithName("runner"),
				}),
				Open:    factory,
				BaseURL: a.cfg.BaseURL,
			}
			return a.execute(cmd, suite, scenarios, parallel)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario YAML file (default: built-in login suite)")
	cmd.Flags().StringSliceVarP(&names, "scenario", "s", nil, "run only the named scenario; repeatable")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 0, "scenarios to run at once (default: parallelism setting)")
	return cmd
}
