package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dev/bravebird/login-scenarios/pkg/config"
	"dev/bravebird/login-scenarios/pkg/database"
	"dev/bravebird/login-scenarios/pkg/logging"
	"dev/bravebird/login-scenarios/pkg/models"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/scenario"
)

// errScenariosFailed makes the process exit 1 after the report was printed.
var errScenariosFailed = errors.New("one or more scenarios failed")

// app is the state shared by every subcommand once the root has loaded the
// configuration.
type app struct {
	configPath string
	cfg        *config.Config
	log        logr.Logger
	flush      func()
}

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{log: logr.Discard(), flush: func() {}}

	root := &cobra.Command{
		Use:           "runner",
		Short:         "Run scripted browser login scenarios",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.flush()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newListCmd(a))
	root.AddCommand(newExportCmd(a))
	root.AddCommand(newSubmitCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	log, flush, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.flush = cfg, log, flush
	return nil
}

// scenarios returns the scenarios of file, or the configured scenarios when
// file is empty, narrowed to names when any are given.
func (a *app) scenarios(file string, names []string) ([]models.Scenario, error) {
	var (
		all []models.Scenario
		err error
	)
	if file != "" {
		all, err = scenario.LoadFile(file, a.cfg.Vars())
	} else {
		all, err = a.cfg.Scenarios()
	}
	if err != nil {
		return nil, err
	}
	return scenario.Select(all, names)
}

// suiteExecutor runs a suite to completion, locally or on a worker
type suiteExecutor interface {
	Execute(ctx context.Context, runID string, scenarios []models.Scenario, parallelism int, obs runner.Observer) models.SuiteRun
}

// execute runs scenarios with exec, records the run when a database is
// configured, and prints the summary. It returns errScenariosFailed unless
// every scenario passed.
func (a *app) execute(cmd *cobra.Command, exec suiteExecutor, scenarios []models.Scenario, parallelism int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now()
	run := models.SuiteRun{
		ID:        uuid.New().String(),
		Status:    models.StatusRunning,
		BaseURL:   a.cfg.BaseURL,
		StartedAt: &now,
	}
	log := a.log.WithValues("run", run.ID)
	observers := runner.Observers{progress{log: log}}

	if store := a.openStore(ctx); store != nil {
		defer store.Close()
		if err := store.CreateRun(ctx, &run); err != nil {
			log.Error(err, "Failed to persist run")
		} else {
			names := make([]string, len(scenarios))
			for i, sc := range scenarios {
				names[i] = sc.Name
			}
			observers = append(observers, store.NewRecorder(ctx, log, run.ID, names))
			defer func() {
				finishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := store.FinishRun(finishCtx, &run); err != nil {
					log.Error(err, "Failed to persist run result")
				}
			}()
		}
	}

	log.Info("Run started", "scenarios", len(scenarios), "parallelism", parallelism)
	run = exec.Execute(ctx, run.ID, scenarios, parallelism, observers)
	log.Info("Run completed", "status", run.Status, "passed", run.Passed, "failed", run.Failed)

	if err := runner.WriteReport(cmd.OutOrStdout(), run); err != nil {
		return err
	}
	if run.Status != models.StatusSuccess {
		return errScenariosFailed
	}
	return nil
}

// openStore connects to the run history database when mysql_dsn is set.
// Connection failures are logged and the run continues without persistence.
func (a *app) openStore(ctx context.Context) *database.DB {
	if a.cfg.MySQLDSN == "" {
		return nil
	}
	db, err := database.New(a.cfg.MySQLDSN)
	if err != nil {
		a.log.Error(err, "Failed to connect to database, running without persistence")
		return nil
	}
	if err := db.Migrate(ctx); err != nil {
		a.log.Error(err, "Failed to migrate database, running without persistence")
		db.Close()
		return nil
	}
	return db
}

// progress logs results as they arrive
type progress struct {
	log logr.Logger
}

func (p progress) StepCompleted(res models.StepResult) {
	p.log.V(logging.LevelDebug).Info("Step completed",
		"scenario", res.ScenarioName, "step", res.Index, "description", res.Description, "status", res.Status)
}

func (p progress) ScenarioCompleted(res models.ScenarioResult) {
	p.log.Info("Scenario completed", "scenario", res.ScenarioName, "status", res.Status, "durationMs", res.TotalDuration)
}
