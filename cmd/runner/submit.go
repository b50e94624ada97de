package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"dev/bravebird/login-scenarios/pkg/logging"
	"dev/bravebird/login-scenarios/pkg/temporal/executor"
)

func newSubmitCmd(a *app) *cobra.Command {
	var (
		file  string
		names []string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Run scenarios on a Temporal worker and wait for the summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := a.scenarios(file, names)
			if err != nil {
				return err
			}

			c, err := client.Dial(client.Options{
				HostPort: a.cfg.TemporalHost,
				Logger:   logging.NewTemporalLogger(a.log),
			})
			if err != nil {
				return fmt.Errorf("failed to create Temporal client: %w", err)
			}
			defer c.Close()

			exec := &executor.Executor{
				Client:          c,
				BaseURL:         a.cfg.BaseURL,
				ActivityTimeout: a.cfg.ActivityTimeout,
				Logger:          a.log.WithName("executor"),
			}
			return a.execute(cmd, exec, scenarios, a.cfg.Parallelism)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario YAML file (default: built-in login suite)")
	cmd.Flags().StringSliceVarP(&names, "scenario", "s", nil, "submit only the named scenario; repeatable")
	return cmd
}
