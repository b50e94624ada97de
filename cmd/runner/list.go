package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scenario names and step counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := a.scenarios(file, nil)
			if err != nil {
				return err
			}
			for _, sc := range scenarios {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d steps)\n", sc.Name, len(sc.Steps))
				if sc.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", sc.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario YAML file (default: built-in login suite)")
	return cmd
}
