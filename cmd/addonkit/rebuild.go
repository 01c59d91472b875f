package main

import (
	"github.com/spf13/cobra"
)

func (a *app) newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild [-- tool args...]",
		Short: "Ensure the target's development files are installed, then build",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.opts.Ensure = true
			if _, err := a.install(cmd.Context(), cmd.OutOrStdout(), nil); err != nil {
				return err
			}
			return a.build(cmd.Context(), args)
		},
	}
	addInstallFlags(cmd.Flags())
	addBuildFlags(cmd.Flags())
	return cmd
}
