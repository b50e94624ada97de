package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dev/bravebird/login-scenarios/pkg/codegen"
	"dev/bravebird/login-scenarios/pkg/scenario"
)

func newExportCmd(a *app) *cobra.Command {
	var file, name, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a scenario as a standalone go-rod program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := a.scenarios(file, nil)
			if err != nil {
				return err
			}
			sc, ok := scenario.Find(scenarios, name)
			if !ok {
				return fmt.Errorf("unknown scenario %q", name)
			}

			src, err := codegen.GenerateGoRodScript(sc, codegen.Options{
				Headless:       a.cfg.Browser.Headless,
				WaitForTimeout: a.cfg.Browser.WaitForTimeout,
			})
			if err != nil {
				return err
			}

			if out == "" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.WriteFile(out, src, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			a.log.Info("Exported scenario", "scenario", sc.Name, "path", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario YAML file (default: built-in login suite)")
	cmd.Flags().StringVarP(&name, "scenario", "s", "", "scenario to export")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}
