package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/config"
	"dev/bravebird/login-scenarios/pkg/logging"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/temporal/activities"
	"dev/bravebird/login-scenarios/pkg/temporal/workflows"
)

// sessions older than this belong to workflows that never closed them
const maxSessionAge = 30 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "worker",
		Short:         "Run login scenarios as Temporal activities",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, flush, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer flush()

			if err := run(cfg, log); err != nil {
				log.Error(err, "Worker failed")
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func run(cfg *config.Config, log logr.Logger) error {
	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: cfg.TemporalHost,
		Logger:   logging.NewTemporalLogger(log),
	})
	if err != nil {
		return fmt.Errorf("failed to create Temporal client: %w", err)
	}
	defer c.Close()

	opts := cfg.BrowserOptions()
	opts.Logger = log.WithName("browser")
	factory, err := browser.NewFactory(opts)
	if err != nil {
		return err
	}
	pool := browser.NewPool(factory)
	defer pool.CloseAll()

	stopReaper := make(chan struct{})
	defer close(stopReaper)
	go reapSessions(pool, log, stopReaper)

	// Create activities
	acts := activities.NewActivities(pool, runner.New(runner.Options{
		WaitForTimeout: cfg.Browser.WaitForTimeout,
		PollInterval:   cfg.Browser.PollInterval,
		ScreenshotDir:  cfg.ScreenshotDir,
		Logger:         log.WithName("runner"),
	}))

	// Create worker
	w := worker.New(c, workflows.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     5 * cfg.Parallelism,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	// Register workflows
	w.RegisterWorkflow(workflows.ScenarioWorkflow)
	w.RegisterWorkflow(workflows.SuiteWorkflow)

	// Register activities
	w.RegisterActivity(acts)

	log.Info("Starting Temporal worker", "taskQueue", workflows.TaskQueue, "temporalHost", cfg.TemporalHost, "driver", cfg.Browser.Driver)

	return w.Run(worker.InterruptCh())
}

func reapSessions(pool *browser.Pool, log logr.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := pool.CloseIdle(maxSessionAge); n > 0 {
				log.Info("Closed abandoned browser sessions", "count", n)
			}
		case <-stop:
			return
		}
	}
}
