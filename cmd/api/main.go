package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"dev/bravebird/login-scenarios/pkg/api"
	"dev/bravebird/login-scenarios/pkg/browser"
	"dev/bravebird/login-scenarios/pkg/config"
	"dev/bravebird/login-scenarios/pkg/database"
	"dev/bravebird/login-scenarios/pkg/logging"
	"dev/bravebird/login-scenarios/pkg/metrics"
	"dev/bravebird/login-scenarios/pkg/runner"
	"dev/bravebird/login-scenarios/pkg/temporal/executor"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Serve the login scenarios HTTP API",
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
				log.Error(err, "API server failed")
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}

func run(cfg *config.Config, log logr.Logger) error {
	log.Info("Starting login scenarios API server")

	scenarios, err := cfg.Scenarios()
	if err != nil {
		return err
	}

	// Initialize database
	var db *database.DB
	if cfg.MySQLDSN != "" {
		db, err = database.New(cfg.MySQLDSN)
		if err == nil {
			err = db.Migrate(context.Background())
		}
		if err != nil {
			log.Error(err, "Failed to connect to database, running without persistence")
			db = nil
		} else {
			defer db.Close()
		}
	}

	exec, closeExec, err := newExecutor(cfg, log)
	if err != nil {
		return err
	}
	defer closeExec()

	handlers := api.NewHandlers(api.Config{
		Scenarios:     scenarios,
		Executor:      exec,
		BaseURL:       cfg.BaseURL,
		ScreenshotDir: cfg.ScreenshotDir,
		DB:            db,
		Metrics:       metrics.New(prometheus.DefaultRegisterer),
		Logger:        log,
	})

	router := handlers.Router()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     c.Handler(router),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: run streams are long-lived websockets
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server listening", "port", cfg.Port, "executor", cfg.Executor)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := handlers.Shutdown(ctx); err != nil {
		return fmt.Errorf("runs did not finish: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// newExecutor runs suites in this process or hands them to Temporal workers,
// per the executor setting.
func newExecutor(cfg *config.Config, log logr.Logger) (api.Executor, func(), error) {
	if cfg.Executor == config.ExecutorTemporal {
		c, err := client.Dial(client.Options{
			HostPort: cfg.TemporalHost,
			Logger:   logging.NewTemporalLogger(log),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Temporal client: %w", err)
		}
		return &executor.Executor{
			Client:          c,
			BaseURL:         cfg.BaseURL,
			ActivityTimeout: cfg.ActivityTimeout,
			Logger:          log.WithName("executor"),
		}, c.Close, nil
	}

	opts := cfg.BrowserOptions()
	opts.Logger = log.WithName("browser")
	factory, err := browser.NewFactory(opts)
	if err != nil {
		return nil, nil, err
	}
	return &runner.Suite{
		Runner: runner.New(runner.Options{
			WaitForTimeout: cfg.Browser.WaitForTimeout,
			PollInterval:   cfg.Browser.PollInterval,
			ScreenshotDir:  cfg.ScreenshotDir,
			Logger:         log.WithName("runner"),
		}),
		Open:        factory,
		Parallelism: cfg.Parallelism,
		BaseURL:     cfg.BaseURL,
	}, func() {}, nil
}
